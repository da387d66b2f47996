package state

import (
	"fmt"

	"github.com/ardanlabs/byob/foundation/blockchain/database"
)

// SubmitTransaction accepts a transaction from a wallet for inclusion. The
// transaction must be well formed and, together with the transactions
// already in the pool, must apply against the current balances.
func (s *State) SubmitTransaction(tx database.SignedTx) error {
	if violations := database.ValidateTransaction(tx); len(violations) > 0 {
		return database.NewValidationError("invalid transaction:", violations)
	}

	// Hold off block commits so the balances can't move underneath the pool.
	s.mu.RLock()
	n, err := s.upsert(tx)
	s.mu.RUnlock()

	if err != nil {
		return err
	}

	s.evHandler("state: SubmitTransaction: tx[%s]: mempool[%d]", tx, n)

	s.signalStartMining()

	return nil
}

// upsert adds the transaction to the mempool unless it was already
// committed. The caller must hold the read lock.
func (s *State) upsert(tx database.SignedTx) (int, error) {
	if s.accounts.Committed(tx.Nonce) {
		violation := fmt.Sprintf("transaction %s was already committed", tx)
		return s.mempool.Count(), database.NewValidationError("invalid transaction:", []string{violation})
	}

	return s.mempool.Upsert(tx, s.accounts.Balances())
}
