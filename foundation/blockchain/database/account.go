package database

import (
	"crypto/ecdsa"
	"errors"

	"github.com/ardanlabs/byob/foundation/blockchain/signature"
)

// AccountID represents an account id that is used to sign transactions and is
// associated with splits on the blockchain. It is the encoded compressed
// public key of the account.
type AccountID string

// ToAccountID converts an encoded public key to an account and validates the
// string is formatted correctly.
func ToAccountID(pub string) (AccountID, error) {
	a := AccountID(pub)
	if !a.IsAccountID() {
		return "", errors.New("invalid account format")
	}

	return a, nil
}

// PublicKeyToAccountID converts the private key's public key to an account value.
func PublicKeyToAccountID(pk *ecdsa.PrivateKey) AccountID {
	return AccountID(signature.PublicKey(pk))
}

// IsAccountID verifies whether the underlying data represents a valid
// encoded public key.
func (a AccountID) IsAccountID() bool {
	return signature.IsPublicKey(string(a))
}

// String implements the fmt.Stringer interface for logging.
func (a AccountID) String() string {
	return signature.Abbreviate(string(a))
}

// =============================================================================

// Balances is a snapshot of account balances. Validation treats it as
// read-only. Accounts that are not present have a balance of zero.
type Balances map[AccountID]int64

// Copy makes a copy of the balances.
func (b Balances) Copy() Balances {
	cpy := make(Balances, len(b))
	for account, balance := range b {
		cpy[account] = balance
	}
	return cpy
}

// =============================================================================

// MaxAmount is the largest magnitude a single split can carry.
const MaxAmount int64 = 1<<53 - 1

// AddAmount returns a + b, or ErrAmountOverflow when the result doesn't fit.
func AddAmount(a int64, b int64) (int64, error) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, ErrAmountOverflow
	}
	return sum, nil
}

// SubAmount returns a - b, or ErrAmountOverflow when the result doesn't fit.
func SubAmount(a int64, b int64) (int64, error) {
	diff := a - b
	if (b > 0 && diff > a) || (b < 0 && diff < a) {
		return 0, ErrAmountOverflow
	}
	return diff, nil
}
