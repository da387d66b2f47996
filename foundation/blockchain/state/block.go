package state

import (
	"encoding/json"
	"fmt"

	"github.com/ardanlabs/byob/foundation/blockchain/database"
)

// ProcessProposedBlock takes a block handed to the node, validates it and
// if that passes, adds the block to the local ledger.
func (s *State) ProcessProposedBlock(block database.SignedBlock) error {
	s.evHandler("state: ProcessProposedBlock: started: parent[%s]: block[%s]: numTrans[%d]", block.Parent, block, len(block.Transactions))
	defer s.evHandler("state: ProcessProposedBlock: completed: block[%s]", block)

	// If the runMiningOperation function is being executed it needs to stop
	// immediately. The G executing runMiningOperation will not return from the
	// function until done is called. That allows this function to complete
	// its state changes before a new mining operation takes place.
	done := s.signalCancelMining()
	defer func() {
		s.evHandler("state: ProcessProposedBlock: signal runMiningOperation to terminate")
		done()
	}()

	return s.validateUpdateDatabase(block)
}

// =============================================================================

// validateUpdateDatabase takes the block and validates the block against the
// ledger rules. If the block passes, then the state of the node is updated
// including adding the block to storage.
func (s *State) validateUpdateDatabase(block database.SignedBlock) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evHandler("state: validateUpdateDatabase: validate block")

	// Validation happens against a clone so a failed write leaves the
	// accounts untouched.
	prevAccounts := s.accounts
	prevLatest := s.latestBlock
	s.accounts = s.accounts.Clone()

	if err := s.validateApply(block); err != nil {
		s.accounts = prevAccounts
		s.latestBlock = prevLatest
		return err
	}

	s.evHandler("state: validateUpdateDatabase: write to storage")

	if err := s.storage.Write(database.NewBlockData(block)); err != nil {
		s.accounts = prevAccounts
		s.latestBlock = prevLatest
		return fmt.Errorf("writing block %s: %w", block, err)
	}

	s.evHandler("state: validateUpdateDatabase: remove from mempool")

	s.mempool.Delete(block.Transactions...)
	for _, tx := range s.mempool.Revalidate(s.accounts.Balances(), s.accounts.Committed) {
		s.evHandler("state: validateUpdateDatabase: WARNING: tx[%s] no longer applies, dropped", tx)
	}

	// Send an event about this new block.
	s.blockEvent(block)

	return nil
}

// blockEvent provides a specific event about a new block in the chain for
// application specific support.
func (s *State) blockEvent(block database.SignedBlock) {
	blockJSON, err := json.Marshal(block)
	if err != nil {
		blockJSON = fmt.Appendf(nil, "%q", err.Error())
	}

	s.evHandler(`viewer: block: {"hash":%q,"height":%d,"block":%s}`, block.Hash, block.Height, string(blockJSON))
}
