package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/ardanlabs/byob/foundation/blockchain/database"
	"github.com/ardanlabs/byob/foundation/blockchain/pow"
)

// ErrNoTransactions is returned when a block is requested to be created
// and there are not enough transactions.
var ErrNoTransactions = errors.New("no transactions in mempool")

// =============================================================================

// MineNewBlock attempts to create a new block with a compliment that solves
// the proof of work so it can become the next block in the chain.
func (s *State) MineNewBlock(ctx context.Context) (database.SignedBlock, error) {
	s.evHandler("state: MineNewBlock: MINING: check mempool count")

	// Are there enough transactions in the pool.
	if s.mempool.Count() == 0 {
		return database.SignedBlock{}, ErrNoTransactions
	}

	// Pick the oldest transactions from the mempool.
	howMany := int(s.genesis.TransPerBlock)
	if howMany == 0 {
		howMany = -1
	}
	trans := s.mempool.PickBest(howMany)

	var height uint64
	var parent string
	if latest, exists := s.latestBlockIfAny(); exists {
		height = latest.Height + 1
		parent = latest.Hash
	}

	block, err := database.CreateBlock(trans, height, parent, s.minerAccountID)
	if err != nil {
		return database.SignedBlock{}, err
	}

	seed, err := block.Seed()
	if err != nil {
		return database.SignedBlock{}, fmt.Errorf("block seed: %w", err)
	}

	s.evHandler("state: MineNewBlock: MINING: perform POW: block[%s]: numTrans[%d]", block, len(trans))

	// Attempt to solve the POW puzzle. This can be cancelled.
	task := pow.Start(ctx, seed, s.target, pow.Config{
		Workers:   s.powWorkers,
		EvHandler: pow.EventHandler(s.evHandler),
	})

	compliment, err := task.Wait()
	if err != nil {
		return database.SignedBlock{}, err
	}

	// Just check one more time we were not cancelled.
	if ctx.Err() != nil {
		return database.SignedBlock{}, ctx.Err()
	}

	signedBlock, err := database.FinalizeBlock(block, compliment, s.signer)
	if err != nil {
		return database.SignedBlock{}, err
	}

	s.evHandler("state: MineNewBlock: MINING: validate and update database")

	// Validate the block and then update the ledger database.
	if err := s.validateUpdateDatabase(signedBlock); err != nil {
		return database.SignedBlock{}, err
	}

	return signedBlock, nil
}

// latestBlockIfAny returns the latest block and whether the chain has one.
func (s *State) latestBlockIfAny() (database.SignedBlock, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.latestBlock == nil {
		return database.SignedBlock{}, false
	}
	return *s.latestBlock, true
}
