// Package mempool maintains the pool of transactions that have been accepted
// but not yet committed to a block.
package mempool

import (
	"sync"

	"github.com/ardanlabs/byob/foundation/blockchain/database"
)

// Add validates that a transaction can be appended to the pool considering
// the balances. The whole resulting sequence is validated since the effect
// of the transactions is cumulative. On success a new pool is returned, on
// failure the original pool is returned unchanged with the violations.
func Add(tx database.SignedTx, pool []database.SignedTx, balances database.Balances) ([]database.SignedTx, error) {
	newPool := make([]database.SignedTx, len(pool), len(pool)+1)
	copy(newPool, pool)
	newPool = append(newPool, tx)

	if violations := database.ValidateTransactionsDeep(newPool, balances); len(violations) > 0 {
		return pool, database.NewValidationError("transaction not accepted:", violations)
	}

	return newPool, nil
}

// =============================================================================

// Mempool represents the ordered set of uncommitted transactions. It is the
// single writer for the pool so every addition is validated against the
// result of the previous one.
type Mempool struct {
	mu   sync.RWMutex
	pool []database.SignedTx
}

// New constructs a new mempool.
func New() *Mempool {
	return &Mempool{}
}

// Count returns the current number of transaction in the pool.
func (mp *Mempool) Count() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return len(mp.pool)
}

// Upsert appends a transaction to the pool if the resulting pool is valid
// against the balances. It returns the new size of the pool.
func (mp *Mempool) Upsert(tx database.SignedTx, balances database.Balances) (int, error) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	pool, err := Add(tx, mp.pool, balances)
	if err != nil {
		return len(mp.pool), err
	}

	mp.pool = pool

	return len(mp.pool), nil
}

// Delete removes the transactions from the pool, matching on the nonce.
func (mp *Mempool) Delete(txs ...database.SignedTx) {
	remove := make(map[string]bool, len(txs))
	for _, tx := range txs {
		remove[tx.Nonce] = true
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()

	pool := make([]database.SignedTx, 0, len(mp.pool))
	for _, tx := range mp.pool {
		if !remove[tx.Nonce] {
			pool = append(pool, tx)
		}
	}

	mp.pool = pool
}

// Truncate clears all the transactions from the pool.
func (mp *Mempool) Truncate() {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.pool = nil
}

// Copy returns a copy of the pool in order.
func (mp *Mempool) Copy() []database.SignedTx {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return append([]database.SignedTx(nil), mp.pool...)
}

// PickBest returns the next set of transactions for the next block. Since
// the pool is validated in order, any prefix of the pool is also valid.
// Pass -1 for all the transactions.
func (mp *Mempool) PickBest(howMany int) []database.SignedTx {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	if howMany < 0 || howMany > len(mp.pool) {
		howMany = len(mp.pool)
	}

	return append([]database.SignedTx(nil), mp.pool[:howMany]...)
}

// Revalidate rebuilds the pool against new balances, usually after a block
// has been committed. Transactions that no longer apply, or whose nonce the
// committed function reports as already on chain, are dropped and returned.
// The committed function can be nil.
func (mp *Mempool) Revalidate(balances database.Balances, committed func(nonce string) bool) []database.SignedTx {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	var pool []database.SignedTx
	var dropped []database.SignedTx
	for _, tx := range mp.pool {
		if committed != nil && committed(tx.Nonce) {
			dropped = append(dropped, tx)
			continue
		}

		next, err := Add(tx, pool, balances)
		if err != nil {
			dropped = append(dropped, tx)
			continue
		}
		pool = next
	}

	mp.pool = pool

	return dropped
}
