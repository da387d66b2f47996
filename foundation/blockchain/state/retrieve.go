package state

import (
	"github.com/ardanlabs/byob/foundation/blockchain/database"
	"github.com/ardanlabs/byob/foundation/blockchain/genesis"
)

// RetrieveGenesis returns a copy of the genesis information.
func (s *State) RetrieveGenesis() genesis.Genesis {
	return s.genesis
}

// RetrieveMinerAccountID returns the account that signs mined blocks.
func (s *State) RetrieveMinerAccountID() database.AccountID {
	return s.minerAccountID
}

// RetrieveLatestBlock returns a copy the current latest block. The error is
// database.ErrNotFound when the chain has no blocks.
func (s *State) RetrieveLatestBlock() (database.SignedBlock, error) {
	latest, exists := s.latestBlockIfAny()
	if !exists {
		return database.SignedBlock{}, database.ErrNotFound
	}
	return latest, nil
}

// RetrieveMempool returns a copy of the mempool.
func (s *State) RetrieveMempool() []database.SignedTx {
	return s.mempool.Copy()
}

// RetrieveBalances returns a snapshot of the current balances.
func (s *State) RetrieveBalances() database.Balances {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.accounts.Balances()
}
