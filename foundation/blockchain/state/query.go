package state

import (
	"github.com/ardanlabs/byob/foundation/blockchain/database"
)

// QueryLatest represents to query the latest block in the chain.
const QueryLatest = ^uint64(0) >> 1

// =============================================================================

// QueryBalance returns the current balance for the account.
func (s *State) QueryBalance(account database.AccountID) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.accounts.Query(account)
}

// QueryMempoolLength returns the current length of the mempool.
func (s *State) QueryMempoolLength() int {
	return s.mempool.Count()
}

// QueryBlockByHash returns the block with the specified hash.
func (s *State) QueryBlockByHash(hash string) (database.SignedBlock, error) {
	blockData, err := s.storage.GetBlockByHash(hash)
	if err != nil {
		return database.SignedBlock{}, err
	}

	return database.ToBlock(blockData)
}

// QueryBlocksByHeight returns the set of blocks between the heights,
// inclusive. QueryLatest can be used for either bound.
func (s *State) QueryBlocksByHeight(from uint64, to uint64) ([]database.SignedBlock, error) {
	latest, exists := s.latestBlockIfAny()
	if !exists {
		return nil, nil
	}

	if from == QueryLatest {
		from = latest.Height
	}
	if to == QueryLatest || to > latest.Height {
		to = latest.Height
	}

	var out []database.SignedBlock
	for i := from; i <= to; i++ {
		blockData, err := s.storage.GetBlock(i)
		if err != nil {
			return nil, err
		}

		block, err := database.ToBlock(blockData)
		if err != nil {
			return nil, err
		}
		out = append(out, block)
	}

	return out, nil
}

// QueryBlocksByAccount returns the set of blocks that touch the account,
// either as the author or through a split. If the account is empty, all
// blocks are returned.
func (s *State) QueryBlocksByAccount(account database.AccountID) ([]database.SignedBlock, error) {
	var out []database.SignedBlock

	iter := database.NewBlockIterator(s.storage)
	for block, err := iter.Next(); !iter.Done(); block, err = iter.Next() {
		if err != nil {
			return nil, err
		}

		if account == "" || touches(block, account) {
			out = append(out, block)
		}
	}

	return out, nil
}

// touches reports whether the account appears in the block.
func touches(block database.SignedBlock, account database.AccountID) bool {
	if block.Author == account {
		return true
	}

	for _, tx := range block.Transactions {
		for _, split := range tx.Splits {
			if split.Account == account {
				return true
			}
		}
	}

	return false
}
