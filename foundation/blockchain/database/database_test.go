package database_test

import (
	"crypto/ecdsa"
	"errors"
	"math"
	"math/big"
	"strings"
	"testing"

	"github.com/ardanlabs/byob/foundation/blockchain/database"
	"github.com/ardanlabs/byob/foundation/blockchain/pow"
	"github.com/ardanlabs/byob/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/crypto"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const (
	keyA     = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"
	keyB     = "9f332e3700d8fc2446eaf6d15034cf96e0c2745e40353deef032a5dbf1dfed93"
	keyMiner = "8dc79feefd3b86e2f9991def0e5ccd9a5128e104682407b308594bc1032ac7f0"
)

// =============================================================================

func Test_Splits(t *testing.T) {
	pkA := loadKey(t, keyA)
	accountA := database.PublicKeyToAccountID(pkA)

	type table struct {
		name    string
		account database.AccountID
		amount  int64
		valid   bool
	}

	tt := []table{
		{name: "debit", account: accountA, amount: 10, valid: true},
		{name: "credit", account: accountA, amount: -10, valid: true},
		{name: "zero", account: accountA, amount: 0, valid: false},
		{name: "largest", account: accountA, amount: database.MaxAmount, valid: true},
		{name: "toolarge", account: accountA, amount: database.MaxAmount + 1, valid: false},
		{name: "minint", account: accountA, amount: math.MinInt64, valid: false},
		{name: "badaccount", account: "0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4", amount: 10, valid: false},
		{name: "empty", account: "", amount: 0, valid: false},
	}

	t.Log("Given the need to validate splits.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen handling a %s split.", testID, tst.name)
			{
				f := func(t *testing.T) {
					violations := database.ValidateSplit(database.Split{Account: tst.account, Amount: tst.amount})
					if (len(violations) == 0) != tst.valid {
						t.Fatalf("\t%s\tTest %d:\tShould get the right validation result: %v", failed, testID, violations)
					}
					t.Logf("\t%s\tTest %d:\tShould get the right validation result.", success, testID)

					_, err := database.CreateSplit(tst.account, tst.amount)
					if (err == nil) != tst.valid {
						t.Fatalf("\t%s\tTest %d:\tShould get the right construction result: %v", failed, testID, err)
					}
					if err != nil && !database.IsValidationError(err) {
						t.Fatalf("\t%s\tTest %d:\tShould get a validation error: %v", failed, testID, err)
					}
					t.Logf("\t%s\tTest %d:\tShould get the right construction result.", success, testID)
				}

				t.Run(tst.name, f)
			}
		}
	}

	violations := database.ValidateSplit(database.Split{Account: "bad", Amount: 0})
	if len(violations) != 2 {
		t.Fatalf("\t%s\tShould report every violation, got %v", failed, violations)
	}
	t.Logf("\t%s\tShould report every violation.", success)
}

func Test_Transaction(t *testing.T) {
	pkA := loadKey(t, keyA)
	pkB := loadKey(t, keyB)
	accountA := database.PublicKeyToAccountID(pkA)
	accountB := database.PublicKeyToAccountID(pkB)

	splits := []database.Split{
		mustSplit(t, accountA, 10),
		mustSplit(t, accountB, -10),
	}

	t.Log("Given the need to construct transactions.")
	{
		tx, err := database.CreateTransaction(splits, signer(pkA))
		if err != nil {
			t.Fatalf("\t%s\tShould be able to create a transaction: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to create a transaction.", success)

		if v := database.ValidateTransaction(tx); len(v) != 0 {
			t.Fatalf("\t%s\tShould get a valid transaction: %v", failed, v)
		}
		t.Logf("\t%s\tShould get a valid transaction.", success)

		other, err := database.CreateTransaction(splits, signer(pkA))
		if err != nil {
			t.Fatalf("\t%s\tShould be able to create a second transaction: %v", failed, err)
		}
		if other.Nonce == tx.Nonce {
			t.Fatalf("\t%s\tShould get a fresh nonce for every transaction.", failed)
		}
		t.Logf("\t%s\tShould get a fresh nonce for every transaction.", success)

		// Re-sign the same record with the credited account's key.
		resigned := tx
		resigned.Signature = mustSign(t, tx.Tx, pkB)
		if v := database.ValidateTransaction(resigned); len(v) == 0 {
			t.Fatalf("\t%s\tShould reject a signature from a non debited account.", failed)
		}
		t.Logf("\t%s\tShould reject a signature from a non debited account.", success)

		if _, err := database.CreateTransaction(splits, signer(pkB)); !database.IsValidationError(err) {
			t.Fatalf("\t%s\tShould not construct a transaction with the wrong key: %v", failed, err)
		}
		t.Logf("\t%s\tShould not construct a transaction with the wrong key.", success)

		tampered := tx
		tampered.Splits = []database.Split{
			mustSplit(t, accountA, 1),
			mustSplit(t, accountB, -1),
		}
		if v := database.ValidateTransaction(tampered); len(v) == 0 {
			t.Fatalf("\t%s\tShould reject a transaction changed after signing.", failed)
		}
		t.Logf("\t%s\tShould reject a transaction changed after signing.", success)

		unsigned := tx
		unsigned.Signature = nil
		if v := database.ValidateTransaction(unsigned); len(v) == 0 {
			t.Fatalf("\t%s\tShould reject an unsigned transaction.", failed)
		}
		t.Logf("\t%s\tShould reject an unsigned transaction.", success)
	}
}

func Test_TransactionStructure(t *testing.T) {
	pkA := loadKey(t, keyA)
	pkB := loadKey(t, keyB)
	accountA := database.PublicKeyToAccountID(pkA)
	accountB := database.PublicKeyToAccountID(pkB)

	_, err := database.CreateTransaction([]database.Split{mustSplit(t, accountA, 10)}, signer(pkA))
	if !database.IsStructuralError(err) {
		t.Fatalf("\t%s\tShould get a structural error for a single split: %v", failed, err)
	}
	if err.Error() != "must have at least two splits" {
		t.Fatalf("\t%s\tShould get the right message, got %q", failed, err)
	}
	t.Logf("\t%s\tShould get a structural error for a single split.", success)

	splits := []database.Split{
		mustSplit(t, accountA, 10),
		mustSplit(t, accountB, -20),
	}
	_, err = database.CreateTransaction(splits, signer(pkA))
	ve := database.GetValidationError(err)
	if ve == nil {
		t.Fatalf("\t%s\tShould reject credits that exceed debits: %v", failed, err)
	}
	if !strings.Contains(err.Error(), "credits exceed debits") {
		t.Fatalf("\t%s\tShould explain the violation, got %q", failed, err)
	}
	t.Logf("\t%s\tShould reject credits that exceed debits.", success)

	// A fee is the difference when debits exceed credits.
	splits = []database.Split{
		mustSplit(t, accountA, 10),
		mustSplit(t, accountB, -8),
	}
	if _, err := database.CreateTransaction(splits, signer(pkA)); err != nil {
		t.Fatalf("\t%s\tShould accept debits that exceed credits: %v", failed, err)
	}
	t.Logf("\t%s\tShould accept debits that exceed credits.", success)

	// Both accounts are debited so both must sign.
	splits = []database.Split{
		mustSplit(t, accountA, 5),
		mustSplit(t, accountB, 5),
		mustSplit(t, database.PublicKeyToAccountID(loadKey(t, keyMiner)), -10),
	}
	if _, err := database.CreateTransaction(splits, signer(pkA)); err == nil {
		t.Fatalf("\t%s\tShould require every debited account to sign.", failed)
	}
	if _, err := database.CreateTransaction(splits, signer(pkA, pkB)); err != nil {
		t.Fatalf("\t%s\tShould accept a transaction signed by every debited account: %v", failed, err)
	}
	t.Logf("\t%s\tShould require every debited account to sign.", success)
}

func Test_BlockHash(t *testing.T) {
	pkA := loadKey(t, keyA)
	pkB := loadKey(t, keyB)
	author := database.PublicKeyToAccountID(loadKey(t, keyMiner))

	tx := mustTx(t, pkA, database.PublicKeyToAccountID(pkB), 10)

	block, err := database.CreateBlock([]database.SignedTx{tx}, 0, "", author)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to create a block: %v", failed, err)
	}
	t.Logf("\t%s\tShould be able to create a block.", success)

	if h := database.HashBlock(block).Hash; h != block.Hash {
		t.Fatalf("\t%s\tShould get the same hash when recomputed: %s != %s", failed, h, block.Hash)
	}
	t.Logf("\t%s\tShould get the same hash when recomputed.", success)

	changed := block
	changed.Compliment = signature.Encode([]byte(strings.Repeat("x", pow.ComplimentLength)))
	if h := database.HashBlock(changed).Hash; h != block.Hash {
		t.Fatalf("\t%s\tShould not change the hash when only the compliment changes.", failed)
	}
	t.Logf("\t%s\tShould not change the hash when only the compliment changes.", success)

	changed = block
	changed.Height = 1
	changed.Parent = block.Hash
	if h := database.HashBlock(changed).Hash; h == block.Hash {
		t.Fatalf("\t%s\tShould change the hash when the height changes.", failed)
	}

	changed = block
	changed.Author = database.PublicKeyToAccountID(pkA)
	if h := database.HashBlock(changed).Hash; h == block.Hash {
		t.Fatalf("\t%s\tShould change the hash when the author changes.", failed)
	}

	changed = block
	changed.Transactions = nil
	if h := database.HashBlock(changed).Hash; h == block.Hash {
		t.Fatalf("\t%s\tShould change the hash when the transactions change.", failed)
	}
	t.Logf("\t%s\tShould change the hash when the content changes.", success)

	tampered := block
	tampered.Height = 7
	if v := database.ValidateBlock(tampered); len(v) == 0 {
		t.Fatalf("\t%s\tShould reject a block whose hash doesn't match.", failed)
	}
	t.Logf("\t%s\tShould reject a block whose hash doesn't match.", success)

	orphan, err := database.CreateBlock(nil, 3, "", author)
	if err == nil {
		t.Fatalf("\t%s\tShould reject a block above genesis without a parent: %v", failed, orphan)
	}
	t.Logf("\t%s\tShould reject a block above genesis without a parent.", success)
}

func Test_RecreateBlock(t *testing.T) {
	pkA := loadKey(t, keyA)
	pkB := loadKey(t, keyB)
	author := database.PublicKeyToAccountID(loadKey(t, keyMiner))

	tx1 := mustTx(t, pkA, database.PublicKeyToAccountID(pkB), 10)
	tx2 := mustTx(t, pkA, database.PublicKeyToAccountID(pkB), 20)
	txs := []database.SignedTx{tx1}

	parent := signature.Hash("parent")
	block, err := database.CreateBlock(txs, 5, parent, author)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to create a block: %v", failed, err)
	}

	same, err := database.RecreateBlock(block, txs)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to recreate a block: %v", failed, err)
	}

	if same.Height != block.Height || same.Parent != block.Parent || same.Author != block.Author || same.Hash != block.Hash {
		t.Fatalf("\t%s\tShould get back the same block with the same transactions.", failed)
	}
	t.Logf("\t%s\tShould get back the same block with the same transactions.", success)

	swapped, err := database.RecreateBlock(block, []database.SignedTx{tx1, tx2})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to recreate a block: %v", failed, err)
	}

	if swapped.Height != block.Height || swapped.Parent != block.Parent || swapped.Author != block.Author {
		t.Fatalf("\t%s\tShould keep the block metadata.", failed)
	}
	if swapped.Hash == block.Hash {
		t.Fatalf("\t%s\tShould re-derive the hash.", failed)
	}
	t.Logf("\t%s\tShould keep the metadata and re-derive the hash.", success)
}

func Test_TransactionsDeep(t *testing.T) {
	pkA := loadKey(t, keyA)
	pkB := loadKey(t, keyB)
	accountA := database.PublicKeyToAccountID(pkA)
	accountB := database.PublicKeyToAccountID(pkB)

	balances := database.Balances{
		accountA: 100,
		accountB: 0,
	}

	t.Log("Given the need to apply transactions against balances.")
	{
		tx1 := mustTx(t, pkA, accountB, 10)
		if v := database.ValidateTransactionsDeep([]database.SignedTx{tx1}, balances); len(v) != 0 {
			t.Fatalf("\t%s\tShould accept a transaction within the balance: %v", failed, v)
		}
		t.Logf("\t%s\tShould accept a transaction within the balance.", success)

		tx2 := mustTx(t, pkA, accountB, 95)
		if v := database.ValidateTransactionsDeep([]database.SignedTx{tx2}, balances); len(v) != 0 {
			t.Fatalf("\t%s\tShould accept the second transaction on its own: %v", failed, v)
		}

		v := database.ValidateTransactionsDeep([]database.SignedTx{tx1, tx2}, balances)
		if len(v) != 1 || !strings.HasPrefix(v[0], "transaction 1:") {
			t.Fatalf("\t%s\tShould reject the cumulative debit of 105: %v", failed, v)
		}
		t.Logf("\t%s\tShould reject the cumulative debit of 105.", success)

		// B can spend what it received earlier in the sequence.
		tx3 := mustTx(t, pkB, accountA, 10)
		if v := database.ValidateTransactionsDeep([]database.SignedTx{tx1, tx3}, balances); len(v) != 0 {
			t.Fatalf("\t%s\tShould allow spending funds credited earlier: %v", failed, v)
		}
		if v := database.ValidateTransactionsDeep([]database.SignedTx{tx3, tx1}, balances); len(v) == 0 {
			t.Fatalf("\t%s\tShould not allow spending funds credited later.", failed)
		}
		t.Logf("\t%s\tShould respect the order of the transactions.", success)

		if v := database.ValidateTransactionsDeep([]database.SignedTx{tx1, tx1}, balances); len(v) == 0 {
			t.Fatalf("\t%s\tShould reject a replayed transaction.", failed)
		}
		t.Logf("\t%s\tShould reject a replayed transaction.", success)

		if balances[accountA] != 100 || balances[accountB] != 0 {
			t.Fatalf("\t%s\tShould not mutate the balances.", failed)
		}
		t.Logf("\t%s\tShould not mutate the balances.", success)
	}
}

func Test_AmountOverflow(t *testing.T) {
	pkA := loadKey(t, keyA)
	pkB := loadKey(t, keyB)
	pkMiner := loadKey(t, keyMiner)
	accountA := database.PublicKeyToAccountID(pkA)
	accountB := database.PublicKeyToAccountID(pkB)

	t.Log("Given the need to keep amounts from wrapping around.")
	{
		nonce, err := signature.GenerateNonce()
		if err != nil {
			t.Fatalf("\t%s\tShould be able to generate a nonce: %v", failed, err)
		}

		// Four credits of MinInt64/2 sum to zero when the addition wraps.
		var splits []database.Split
		for range 4 {
			pk, err := crypto.GenerateKey()
			if err != nil {
				t.Fatalf("\t%s\tShould be able to generate a key: %v", failed, err)
			}
			splits = append(splits, database.Split{Account: database.PublicKeyToAccountID(pk), Amount: math.MinInt64 / 2})
		}

		tx := database.SignedTx{Tx: database.Tx{Splits: splits, Nonce: signature.Encode(nonce)}}
		tx.Signature = mustSign(t, tx.Tx, pkMiner)

		if _, err := tx.Net(); !errors.Is(err, database.ErrAmountOverflow) {
			t.Fatalf("\t%s\tShould detect the sum of the splits overflowing: %v", failed, err)
		}
		t.Logf("\t%s\tShould detect the sum of the splits overflowing.", success)

		if v := database.ValidateTransaction(tx); len(v) == 0 {
			t.Fatalf("\t%s\tShould reject a transaction with wrapping credits.", failed)
		}
		if v := database.ValidateTransactionsDeep([]database.SignedTx{tx}, database.Balances{}); len(v) == 0 {
			t.Fatalf("\t%s\tShould not apply a transaction with wrapping credits.", failed)
		}
		if _, err := database.CreateTransaction(splits, signer(pkMiner)); !database.IsValidationError(err) {
			t.Fatalf("\t%s\tShould not construct a transaction with wrapping credits: %v", failed, err)
		}
		t.Logf("\t%s\tShould reject a transaction with wrapping credits.", success)

		balances := database.Balances{
			accountA: 100,
			accountB: math.MaxInt64 - 5,
		}

		v := database.ValidateTransactionsDeep([]database.SignedTx{mustTx(t, pkA, accountB, 10)}, balances)
		if len(v) != 1 || !strings.Contains(v[0], "overflows") {
			t.Fatalf("\t%s\tShould reject a credit that overflows the balance: %v", failed, v)
		}
		t.Logf("\t%s\tShould reject a credit that overflows the balance.", success)
	}
}

func Test_FinalizeBlock(t *testing.T) {
	pkA := loadKey(t, keyA)
	pkB := loadKey(t, keyB)
	pkMiner := loadKey(t, keyMiner)
	accountA := database.PublicKeyToAccountID(pkA)
	accountB := database.PublicKeyToAccountID(pkB)
	author := database.PublicKeyToAccountID(pkMiner)

	balances := database.Balances{accountA: 100}

	target, err := pow.CalculateTarget(1000, 1)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to calculate a target: %v", failed, err)
	}

	tx := mustTx(t, pkA, accountB, 10)
	block, err := database.CreateBlock([]database.SignedTx{tx}, 0, "", author)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to create a block: %v", failed, err)
	}

	seed, err := block.Seed()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to get the seed: %v", failed, err)
	}

	// The placeholder compliment solves the target once in a thousand blocks.
	if !pow.IsSolved(seed, make([]byte, pow.ComplimentLength), target) {
		unsolved := database.SignedBlock{Block: block, Signature: mustSign(t, block, pkMiner)}
		if v := database.ValidateBlockDeep(unsolved, balances, target); len(v) == 0 {
			t.Fatalf("\t%s\tShould not accept an unsolved block.", failed)
		}
		t.Logf("\t%s\tShould not accept an unsolved block.", success)
	}

	compliment := solve(t, seed, target)

	signed, err := database.FinalizeBlock(block, compliment, signer(pkMiner))
	if err != nil {
		t.Fatalf("\t%s\tShould be able to finalize the block: %v", failed, err)
	}
	t.Logf("\t%s\tShould be able to finalize the block.", success)

	if signed.Hash != block.Hash {
		t.Fatalf("\t%s\tShould keep the content hash.", failed)
	}

	if v := database.ValidateBlockDeep(signed, balances, target); len(v) != 0 {
		t.Fatalf("\t%s\tShould accept the finalized block: %v", failed, v)
	}
	t.Logf("\t%s\tShould accept the finalized block.", success)

	if v := database.ValidateBlockDeep(signed, database.Balances{}, target); len(v) == 0 {
		t.Fatalf("\t%s\tShould reject the block when funds are missing.", failed)
	}
	t.Logf("\t%s\tShould reject the block when funds are missing.", success)

	other, err := database.FinalizeBlock(block, compliment, signer(pkA))
	if err != nil {
		t.Fatalf("\t%s\tShould be able to finalize the block: %v", failed, err)
	}
	if v := database.ValidateBlockDeep(other, balances, target); len(v) == 0 {
		t.Fatalf("\t%s\tShould reject a block not signed by its author.", failed)
	}
	t.Logf("\t%s\tShould reject a block not signed by its author.", success)

	// The smallest possible target can't be satisfied by this compliment.
	if v := database.ValidateBlockDeep(signed, balances, big.NewInt(1)); len(v) == 0 {
		t.Fatalf("\t%s\tShould reject a compliment that misses the target.", failed)
	}
	t.Logf("\t%s\tShould reject a compliment that misses the target.", success)

	data := database.NewBlockData(signed)
	back, err := database.ToBlock(data)
	if err != nil || back.Hash != signed.Hash {
		t.Fatalf("\t%s\tShould convert block data back to a block: %v", failed, err)
	}
	t.Logf("\t%s\tShould convert block data back to a block.", success)
}

func Test_ValidateNextBlock(t *testing.T) {
	author := database.PublicKeyToAccountID(loadKey(t, keyMiner))

	genesis, err := database.CreateBlock(nil, 0, "", author)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to create a genesis block: %v", failed, err)
	}

	if v := database.ValidateNextBlock(genesis, nil); len(v) != 0 {
		t.Fatalf("\t%s\tShould accept a genesis block on an empty chain: %v", failed, v)
	}
	t.Logf("\t%s\tShould accept a genesis block on an empty chain.", success)

	next, err := database.CreateBlock(nil, 1, genesis.Hash, author)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to create the next block: %v", failed, err)
	}

	if v := database.ValidateNextBlock(next, &genesis); len(v) != 0 {
		t.Fatalf("\t%s\tShould accept the next block: %v", failed, v)
	}
	if v := database.ValidateNextBlock(next, nil); len(v) == 0 {
		t.Fatalf("\t%s\tShould reject a non genesis block on an empty chain.", failed)
	}
	t.Logf("\t%s\tShould link blocks by height and parent hash.", success)

	skip, err := database.CreateBlock(nil, 2, genesis.Hash, author)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to create a block: %v", failed, err)
	}
	if v := database.ValidateNextBlock(skip, &genesis); len(v) != 1 {
		t.Fatalf("\t%s\tShould reject a block that skips a height: %v", failed, v)
	}
	t.Logf("\t%s\tShould reject a block that skips a height.", success)
}

// =============================================================================

func loadKey(t *testing.T, hexKey string) *ecdsa.PrivateKey {
	pk, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to load a private key: %v", failed, err)
	}
	return pk
}

func signer(keys ...*ecdsa.PrivateKey) database.Signer {
	return database.SignerFunc(func(value any) ([]string, error) {
		sigs := make([]string, len(keys))
		for i, key := range keys {
			sig, err := signature.Sign(value, key)
			if err != nil {
				return nil, err
			}
			sigs[i] = sig
		}
		return sigs, nil
	})
}

func mustSign(t *testing.T, value any, keys ...*ecdsa.PrivateKey) []string {
	sigs, err := signer(keys...).Sign(value)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to sign: %v", failed, err)
	}
	return sigs
}

func mustSplit(t *testing.T, account database.AccountID, amount int64) database.Split {
	split, err := database.CreateSplit(account, amount)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to create a split: %v", failed, err)
	}
	return split
}

func mustTx(t *testing.T, from *ecdsa.PrivateKey, to database.AccountID, amount int64) database.SignedTx {
	splits := []database.Split{
		mustSplit(t, database.PublicKeyToAccountID(from), amount),
		mustSplit(t, to, -amount),
	}

	tx, err := database.CreateTransaction(splits, signer(from))
	if err != nil {
		t.Fatalf("\t%s\tShould be able to create a transaction: %v", failed, err)
	}
	return tx
}

func solve(t *testing.T, seed []byte, target *big.Int) []byte {
	task := pow.Start(t.Context(), seed, target, pow.Config{Workers: 1})
	compliment, err := task.Wait()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to solve the block: %v", failed, err)
	}
	return compliment
}
