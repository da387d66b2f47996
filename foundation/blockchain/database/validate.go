package database

import (
	"fmt"
	"math/big"

	"github.com/ardanlabs/byob/foundation/blockchain/pow"
	"github.com/ardanlabs/byob/foundation/blockchain/signature"
)

// The validation functions never stop at the first problem. Each returns the
// ordered list of every rule that was broken, an empty list means the value
// is valid.

// ValidateSplit validates the account and amount of a split.
func ValidateSplit(split Split) []string {
	var violations []string

	if !split.Account.IsAccountID() {
		violations = append(violations, fmt.Sprintf("split account %q is not a valid public key", signature.Abbreviate(string(split.Account))))
	}

	switch {
	case split.Amount == 0:
		violations = append(violations, "split amount must be nonzero")
	case split.Amount > MaxAmount || split.Amount < -MaxAmount:
		violations = append(violations, fmt.Sprintf("split amount magnitude must not exceed %d", MaxAmount))
	}

	return violations
}

// ValidateTransaction validates the structure and signatures of a
// transaction. Every debited account must have signed the transaction, a
// credited account doesn't need to sign.
func ValidateTransaction(tx SignedTx) []string {
	var violations []string

	if len(tx.Splits) < 2 {
		violations = append(violations, "transaction must have at least two splits")
	}

	for i, split := range tx.Splits {
		for _, v := range ValidateSplit(split) {
			violations = append(violations, fmt.Sprintf("split %d: %s", i, v))
		}
	}

	switch nonce, err := signature.Decode(tx.Nonce); {
	case tx.Nonce == "":
		violations = append(violations, "transaction nonce is missing")
	case err != nil:
		violations = append(violations, "transaction nonce is not encoded correctly")
	case len(nonce) != signature.NonceLength:
		violations = append(violations, fmt.Sprintf("transaction nonce must be %d bytes, got %d", signature.NonceLength, len(nonce)))
	}

	switch net, err := tx.Net(); {
	case err != nil:
		violations = append(violations, "transaction split amounts overflow when summed")
	case net < 0:
		violations = append(violations, fmt.Sprintf("transaction credits exceed debits by %d", -net))
	}

	violations = append(violations, validateSignatures("transaction", tx.Signature)...)

	signers := tx.Signers()
	for _, account := range tx.Debits() {
		if !signers[account] {
			violations = append(violations, fmt.Sprintf("transaction is not signed by debited account %s", account))
		}
	}

	return violations
}

// ValidateBlock validates the structure of a block and the transactions it
// contains. Balances are not considered.
func ValidateBlock(block Block) []string {
	var violations []string

	if block.Height > 0 && block.Parent == "" {
		violations = append(violations, fmt.Sprintf("block at height %d must have a parent", block.Height))
	}

	if block.Parent != "" && !isHash(block.Parent) {
		violations = append(violations, "block parent is not a valid hash")
	}

	if !block.Author.IsAccountID() {
		violations = append(violations, "block author is not a valid public key")
	}

	if c, err := signature.Decode(block.Compliment); err != nil || len(c) != pow.ComplimentLength {
		violations = append(violations, fmt.Sprintf("block compliment must be %d encoded bytes", pow.ComplimentLength))
	}

	if hash := HashBlock(block).Hash; hash != block.Hash {
		violations = append(violations, fmt.Sprintf("block hash does not match its content, got %s, exp %s", signature.Abbreviate(block.Hash), signature.Abbreviate(hash)))
	}

	for i, tx := range block.Transactions {
		for _, v := range ValidateTransaction(tx) {
			violations = append(violations, fmt.Sprintf("transaction %d: %s", i, v))
		}
	}

	return violations
}

// ValidateBlockDeep validates the block structure, applies the transactions
// against the balances, checks the author signed the block and that the
// compliment satisfies the target for the block's hash.
func ValidateBlockDeep(block SignedBlock, balances Balances, target *big.Int) []string {
	violations := ValidateBlock(block.Block)

	violations = append(violations, ValidateTransactionsDeep(block.Transactions, balances)...)

	violations = append(violations, validateSignatures("block", block.Signature)...)
	if !block.Signers()[block.Author] {
		violations = append(violations, fmt.Sprintf("block is not signed by its author %s", block.Author))
	}

	seed, err := block.Seed()
	if err != nil {
		seed = nil
	}

	compliment, err := signature.Decode(block.Compliment)
	if err != nil || !pow.IsSolved(seed, compliment, target) {
		violations = append(violations, "block compliment does not satisfy the proof of work target")
	}

	return violations
}

// ValidateTransactionsDeep applies the transactions in order starting from
// the balances. After each transaction every account it debits must still
// have a balance of zero or more. Since the effect is cumulative, two
// transactions that each look fine on their own can't spend the same funds.
func ValidateTransactionsDeep(transactions []SignedTx, balances Balances) []string {
	_, violations := ApplyTransactions(transactions, balances)
	return violations
}

// ApplyTransactions applies the transactions in order to a copy of the
// balances. It returns the resulting balances along with every violation
// found, the balances are only meaningful when there are no violations.
func ApplyTransactions(transactions []SignedTx, balances Balances) (Balances, []string) {
	var violations []string

	running := balances.Copy()
	nonces := make(map[string]int)

	for i, tx := range transactions {
		if prev, exists := nonces[tx.Nonce]; exists {
			violations = append(violations, fmt.Sprintf("transaction %d: nonce was already used by transaction %d", i, prev))
		} else {
			nonces[tx.Nonce] = i
		}

		if net, err := tx.Net(); err != nil || net < 0 {
			violations = append(violations, fmt.Sprintf("transaction %d: credits exceed debits", i))
		}

		for _, split := range tx.Splits {
			bal, err := SubAmount(running[split.Account], split.Amount)
			if err != nil {
				violations = append(violations, fmt.Sprintf("transaction %d: account %s balance overflows", i, split.Account))
				continue
			}
			running[split.Account] = bal
		}

		for _, account := range tx.Debits() {
			if bal := running[account]; bal < 0 {
				violations = append(violations, fmt.Sprintf("transaction %d: account %s has insufficient funds, balance would be %d", i, account, bal))
			}
		}
	}

	return running, violations
}

// ValidateNextBlock validates the block extends the parent. A nil parent
// means the chain is empty and the block must be the genesis block.
func ValidateNextBlock(block Block, parent *Block) []string {
	var violations []string

	if parent == nil {
		if !block.IsGenesis() {
			violations = append(violations, fmt.Sprintf("first block must be at height 0, got %d", block.Height))
		}
		if block.Parent != "" {
			violations = append(violations, "first block must not have a parent")
		}
		return violations
	}

	if exp := parent.Height + 1; block.Height != exp {
		violations = append(violations, fmt.Sprintf("block is not the next height, got %d, exp %d", block.Height, exp))
	}

	if block.Parent != parent.Hash {
		violations = append(violations, fmt.Sprintf("block parent does not match the latest block, got %s, exp %s", signature.Abbreviate(block.Parent), signature.Abbreviate(parent.Hash)))
	}

	return violations
}

// =============================================================================

// validateSignatures checks every signature is well formed.
func validateSignatures(what string, sigs []string) []string {
	if len(sigs) == 0 {
		return []string{what + " is not signed"}
	}

	var violations []string
	for i, sig := range sigs {
		if err := signature.VerifySignature(sig); err != nil {
			violations = append(violations, fmt.Sprintf("%s signature %d: %s", what, i, err))
		}
	}

	return violations
}

// isHash validates the string is an encoded 32 byte hash.
func isHash(s string) bool {
	b, err := signature.Decode(s)
	return err == nil && len(b) == 32
}
