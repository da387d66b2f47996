// Package state is the core API for the ledger and implements all the
// business rules and processing for a single node.
package state

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ardanlabs/byob/foundation/blockchain/accounts"
	"github.com/ardanlabs/byob/foundation/blockchain/database"
	"github.com/ardanlabs/byob/foundation/blockchain/genesis"
	"github.com/ardanlabs/byob/foundation/blockchain/mempool"
)

// EventHandler defines a function that is called when events
// occur in the processing of persisting blocks.
type EventHandler func(v string, args ...any)

// Worker interface represents the behavior required to be implemented by any
// package providing support for mining.
type Worker interface {
	Shutdown()
	SignalStartMining()
	SignalCancelMining() (done func())
}

// =============================================================================

// Config represents the configuration required to start
// the ledger node.
type Config struct {
	MinerAccountID database.AccountID
	Signer         database.Signer
	Genesis        genesis.Genesis
	Storage        database.Storage
	PowWorkers     int
	EvHandler      EventHandler
}

// State manages the ledger database.
type State struct {
	mu sync.RWMutex

	minerAccountID database.AccountID
	signer         database.Signer
	powWorkers     int
	evHandler      EventHandler

	genesis     genesis.Genesis
	target      *big.Int
	latestBlock *database.SignedBlock
	mempool     *mempool.Mempool
	storage     database.Storage
	accounts    *accounts.Accounts

	Worker Worker
}

// New constructs a new ledger for data management. Every block found in
// storage is validated again and applied to the genesis balances.
func New(cfg Config) (*State, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	target, err := cfg.Genesis.Target()
	if err != nil {
		return nil, fmt.Errorf("genesis target: %w", err)
	}

	// Create a new accounts value to manage accounts who transact on
	// the ledger and apply the genesis information.
	accts, err := accounts.New(cfg.Genesis)
	if err != nil {
		return nil, err
	}

	state := State{
		minerAccountID: cfg.MinerAccountID,
		signer:         cfg.Signer,
		powWorkers:     cfg.PowWorkers,
		evHandler:      ev,

		genesis:  cfg.Genesis,
		target:   target,
		mempool:  mempool.New(),
		storage:  cfg.Storage,
		accounts: accts,
	}

	if err := state.replay(); err != nil {
		return nil, err
	}

	// The Worker is not set here. The call to worker.Run will assign itself
	// and start everything up and running for the node.

	return &state, nil
}

// Shutdown cleanly brings the node down.
func (s *State) Shutdown() error {
	s.evHandler("state: shutdown: started")
	defer s.evHandler("state: shutdown: completed")

	// Stop all ledger writing activity.
	if s.Worker != nil {
		s.Worker.Shutdown()
	}

	return s.storage.Close()
}

// Truncate resets the chain both in storage and in memory.
func (s *State) Truncate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mempool.Truncate()
	s.accounts.Reset()
	s.latestBlock = nil

	return s.storage.Reset()
}

// =============================================================================

// replay walks the blocks in storage and applies them to the accounts.
func (s *State) replay() error {
	iter := database.NewBlockIterator(s.storage)
	for block, err := iter.Next(); !iter.Done(); block, err = iter.Next() {
		if err != nil {
			return fmt.Errorf("reading stored blocks: %w", err)
		}

		s.evHandler("state: replay: block[%s]", block)

		if err := s.validateApply(block); err != nil {
			return fmt.Errorf("replaying block %s: %w", block, err)
		}
	}

	return nil
}

// validateApply checks the block extends the chain and is valid against the
// current balances, then applies it. The caller must hold the write lock or
// have exclusive access.
func (s *State) validateApply(block database.SignedBlock) error {
	var parent *database.Block
	if s.latestBlock != nil {
		parent = &s.latestBlock.Block
	}

	violations := database.ValidateNextBlock(block.Block, parent)
	violations = append(violations, database.ValidateBlockDeep(block, s.accounts.Balances(), s.target)...)
	if len(violations) > 0 {
		return database.NewValidationError(fmt.Sprintf("block %s rejected:", block), violations)
	}

	if err := s.accounts.ApplyBlock(block); err != nil {
		return err
	}

	s.latestBlock = &block

	return nil
}

// signalStartMining asks the worker to mine if one is registered.
func (s *State) signalStartMining() {
	if s.Worker != nil {
		s.Worker.SignalStartMining()
	}
}

// signalCancelMining asks the worker to stop mining if one is registered.
func (s *State) signalCancelMining() (done func()) {
	if s.Worker == nil {
		return func() {}
	}
	return s.Worker.SignalCancelMining()
}
