package database

import (
	"fmt"

	"github.com/ardanlabs/byob/foundation/blockchain/signature"
)

// Signer represents the capability of producing signatures over a record on
// behalf of the accounts whose private keys it holds. The ledger never
// accesses private keys directly.
type Signer interface {
	Sign(value any) ([]string, error)
}

// SignerFunc is an adapter to allow the use of an ordinary function as a
// Signer.
type SignerFunc func(value any) ([]string, error)

// Sign calls f(value).
func (f SignerFunc) Sign(value any) ([]string, error) {
	return f(value)
}

// =============================================================================

// Split represents the movement of funds for one account. A positive amount
// is a debit (funds leave the account) and a negative amount is a credit
// (funds arrive at the account).
type Split struct {
	Account AccountID `json:"account"`
	Amount  int64     `json:"amount"`
}

// CreateSplit constructs a new split and validates it.
func CreateSplit(account AccountID, amount int64) (Split, error) {
	split := Split{
		Account: account,
		Amount:  amount,
	}

	if err := check("invalid split:", ValidateSplit(split)); err != nil {
		return Split{}, err
	}

	return split, nil
}

// IsDebit reports whether funds leave the account.
func (s Split) IsDebit() bool {
	return s.Amount > 0
}

// =============================================================================

// Tx is the unsigned record of a transaction. The nonce is generated for
// every transaction so two transactions with the same splits differ.
type Tx struct {
	Splits []Split `json:"splits"`
	Nonce  string  `json:"nonce"`
}

// Debits returns the accounts debited by the transaction in the order they
// first appear. Every one of these accounts must sign the transaction.
func (tx Tx) Debits() []AccountID {
	seen := make(map[AccountID]bool)

	var accounts []AccountID
	for _, split := range tx.Splits {
		if !split.IsDebit() || seen[split.Account] {
			continue
		}
		seen[split.Account] = true
		accounts = append(accounts, split.Account)
	}

	return accounts
}

// Net returns the sum of all splits. A positive value means the debits
// exceed the credits and the difference is the fee paid to the miner.
func (tx Tx) Net() (int64, error) {
	var net int64
	for _, split := range tx.Splits {
		var err error
		if net, err = AddAmount(net, split.Amount); err != nil {
			return 0, err
		}
	}
	return net, nil
}

// =============================================================================

// SignedTx is a signed version of the transaction. It carries one signature
// for every key used to sign it.
type SignedTx struct {
	Tx
	Signature []string `json:"signature"`
}

// CreateTransaction constructs a new signed transaction. The signer must hold
// the keys for every debited account.
func CreateTransaction(splits []Split, signer Signer) (SignedTx, error) {
	if len(splits) < 2 {
		return SignedTx{}, NewStructuralError("must have at least two splits")
	}

	nonce, err := signature.GenerateNonce()
	if err != nil {
		return SignedTx{}, err
	}

	tx := Tx{
		Splits: append([]Split(nil), splits...),
		Nonce:  signature.Encode(nonce),
	}

	sigs, err := signer.Sign(tx)
	if err != nil {
		return SignedTx{}, fmt.Errorf("signing transaction: %w", err)
	}

	signedTx := SignedTx{
		Tx:        tx,
		Signature: sigs,
	}

	if err := check("invalid transaction:", ValidateTransaction(signedTx)); err != nil {
		return SignedTx{}, err
	}

	return signedTx, nil
}

// Signers recovers the accounts that signed the transaction. Signatures that
// can't be recovered are skipped.
func (tx SignedTx) Signers() map[AccountID]bool {
	return signers(tx.Tx, tx.Signature)
}

// String implements the fmt.Stringer interface for logging.
func (tx SignedTx) String() string {
	return fmt.Sprintf("%s:%d", signature.Abbreviate(tx.Nonce), len(tx.Splits))
}

// =============================================================================

// signers recovers the set of accounts that produced the signatures over
// the value.
func signers(value any, sigs []string) map[AccountID]bool {
	accounts := make(map[AccountID]bool, len(sigs))
	for _, sig := range sigs {
		pub, err := signature.FromSignature(value, sig)
		if err != nil {
			continue
		}
		accounts[AccountID(pub)] = true
	}
	return accounts
}
