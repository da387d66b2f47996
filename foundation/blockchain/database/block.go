package database

import (
	"fmt"

	"github.com/ardanlabs/byob/foundation/blockchain/pow"
	"github.com/ardanlabs/byob/foundation/blockchain/signature"
)

// Fields of a block that are not part of its content hash.
const (
	fieldSignature  = "signature"
	fieldHash       = "hash"
	fieldCompliment = "compliment"
)

// =============================================================================

// Block represents a group of transactions batched together. The hash covers
// every field except the compliment and the hash itself, so the hash
// identifies the economic content of the block independent of the proof of
// work search.
type Block struct {
	Height       uint64     `json:"height"`           // Number of blocks before this one.
	Parent       string     `json:"parent,omitempty"` // Hash of the previous block, empty for genesis.
	Author       AccountID  `json:"author"`           // Account that mined and signed the block.
	Transactions []SignedTx `json:"transactions"`     // Transactions included in the block.
	Compliment   string     `json:"compliment"`       // Value identified to solve the proof of work.
	Hash         string     `json:"hash"`             // Content hash of the block.
}

// HashBlock returns a copy of the block with the content hash set.
func HashBlock(block Block) Block {
	block.Hash = signature.Hash(block, fieldSignature, fieldHash, fieldCompliment)
	return block
}

// CreateBlock initializes a block. The block will be valid but the compliment
// is a placeholder. In order to accept this block in a blockchain a
// compliment needs to be found that satisfies the proof of work target and
// the block signed.
func CreateBlock(transactions []SignedTx, height uint64, parent string, author AccountID) (Block, error) {
	block := HashBlock(Block{
		Height:       height,
		Parent:       parent,
		Author:       author,
		Transactions: append([]SignedTx(nil), transactions...),
		Compliment:   signature.Encode(make([]byte, pow.ComplimentLength)),
	})

	if err := check("invalid block:", ValidateBlock(block)); err != nil {
		return Block{}, err
	}

	return block, nil
}

// RecreateBlock builds a new unsolved block with the same height, parent and
// author but a different set of transactions.
func RecreateBlock(block Block, transactions []SignedTx) (Block, error) {
	return CreateBlock(transactions, block.Height, block.Parent, block.Author)
}

// FinalizeBlock attaches the compliment to the block and signs the full
// record, including the hash and compliment.
func FinalizeBlock(block Block, compliment []byte, signer Signer) (SignedBlock, error) {
	block.Compliment = signature.Encode(compliment)

	sigs, err := signer.Sign(block)
	if err != nil {
		return SignedBlock{}, fmt.Errorf("signing block: %w", err)
	}

	signedBlock := SignedBlock{
		Block:     block,
		Signature: sigs,
	}

	return signedBlock, nil
}

// Seed returns the content hash as the bytes the proof of work is solved
// against.
func (b Block) Seed() ([]byte, error) {
	return signature.Decode(b.Hash)
}

// IsGenesis reports whether this is the first block of the chain.
func (b Block) IsGenesis() bool {
	return b.Height == 0
}

// String implements the fmt.Stringer interface for logging.
func (b Block) String() string {
	return fmt.Sprintf("%d:%s", b.Height, signature.Abbreviate(b.Hash))
}

// =============================================================================

// SignedBlock is a finalized block signed by its author.
type SignedBlock struct {
	Block
	Signature []string `json:"signature"`
}

// Signers recovers the accounts that signed the block.
func (b SignedBlock) Signers() map[AccountID]bool {
	return signers(b.Block, b.Signature)
}

// =============================================================================

// BlockData represents what is written to storage.
type BlockData struct {
	Hash  string      `json:"hash"`
	Block SignedBlock `json:"block"`
}

// NewBlockData constructs the value to serialize to storage.
func NewBlockData(block SignedBlock) BlockData {
	return BlockData{
		Hash:  block.Hash,
		Block: block,
	}
}

// ToBlock converts a BlockData into a block, making sure the stored key
// matches the content of the block.
func ToBlock(blockData BlockData) (SignedBlock, error) {
	if blockData.Hash != blockData.Block.Hash {
		return SignedBlock{}, fmt.Errorf("stored hash does not match block, got %s, exp %s", blockData.Block.Hash, blockData.Hash)
	}

	return blockData.Block, nil
}
