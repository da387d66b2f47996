// Package accounts maintains account balances derived from the genesis
// balances and the blocks applied since.
package accounts

import (
	"fmt"
	"sync"

	"github.com/ardanlabs/byob/foundation/blockchain/database"
	"github.com/ardanlabs/byob/foundation/blockchain/genesis"
)

// Accounts manages data related to accounts who have transacted on
// the blockchain. It also remembers the nonce of every committed
// transaction so a transaction can't be applied twice.
type Accounts struct {
	genesis  genesis.Genesis
	balances database.Balances
	nonces   map[string]uint64
	mu       sync.RWMutex
}

// New constructs the accounts with the genesis balances applied.
func New(genesis genesis.Genesis) (*Accounts, error) {
	accts := Accounts{
		genesis: genesis,
		nonces:  make(map[string]uint64),
	}

	balances, err := fromGenesis(genesis)
	if err != nil {
		return nil, err
	}
	accts.balances = balances

	return &accts, nil
}

// Reset re-initializes the accounts back to the genesis information.
func (act *Accounts) Reset() {
	act.mu.Lock()
	defer act.mu.Unlock()

	// The genesis balances were validated by New.
	act.balances, _ = fromGenesis(act.genesis)
	act.nonces = make(map[string]uint64)
}

// Clone makes a copy of the current accounts.
func (act *Accounts) Clone() *Accounts {
	act.mu.RLock()
	defer act.mu.RUnlock()

	nonces := make(map[string]uint64, len(act.nonces))
	for nonce, height := range act.nonces {
		nonces[nonce] = height
	}

	return &Accounts{
		genesis:  act.genesis,
		balances: act.balances.Copy(),
		nonces:   nonces,
	}
}

// Committed reports whether a transaction with the nonce is already part
// of an applied block.
func (act *Accounts) Committed(nonce string) bool {
	act.mu.RLock()
	defer act.mu.RUnlock()

	_, exists := act.nonces[nonce]
	return exists
}

// Balances returns a snapshot of the current balances.
func (act *Accounts) Balances() database.Balances {
	act.mu.RLock()
	defer act.mu.RUnlock()

	return act.balances.Copy()
}

// Query returns the balance for the specified account.
func (act *Accounts) Query(account database.AccountID) int64 {
	act.mu.RLock()
	defer act.mu.RUnlock()

	return act.balances[account]
}

// ApplyBlock performs the business logic for applying the transactions of a
// block to the balances. The block author is credited with the mining reward
// plus the fees of every transaction. Nothing is applied if any transaction
// was already committed or would leave a debited account with a negative
// balance.
func (act *Accounts) ApplyBlock(block database.SignedBlock) error {
	act.mu.Lock()
	defer act.mu.Unlock()

	balances, violations := database.ApplyTransactions(block.Transactions, act.balances)

	for i, tx := range block.Transactions {
		if height, exists := act.nonces[tx.Nonce]; exists {
			violations = append(violations, fmt.Sprintf("transaction %d: already committed in block %d", i, height))
		}
	}

	reward := act.genesis.MiningReward
	for i, tx := range block.Transactions {
		fee, err := tx.Net()
		if err == nil {
			reward, err = database.AddAmount(reward, fee)
		}
		if err != nil {
			violations = append(violations, fmt.Sprintf("transaction %d: fee overflows the block reward", i))
		}
	}

	if reward != 0 {
		bal, err := database.AddAmount(balances[block.Author], reward)
		if err != nil {
			violations = append(violations, fmt.Sprintf("author %s balance overflows", block.Author))
		}
		balances[block.Author] = bal
	}

	if len(violations) > 0 {
		return database.NewValidationError(fmt.Sprintf("block %s can't be applied:", block), violations)
	}

	act.balances = balances
	for _, tx := range block.Transactions {
		act.nonces[tx.Nonce] = block.Height
	}

	return nil
}

// =============================================================================

// fromGenesis converts the genesis balances.
func fromGenesis(genesis genesis.Genesis) (database.Balances, error) {
	balances := make(database.Balances, len(genesis.Balances))
	for pub, balance := range genesis.Balances {
		account, err := database.ToAccountID(pub)
		if err != nil {
			return nil, fmt.Errorf("genesis account %s: %w", pub, err)
		}
		if balance < 0 {
			return nil, fmt.Errorf("genesis account %s: negative balance %d", pub, balance)
		}
		balances[account] = balance
	}

	return balances, nil
}
