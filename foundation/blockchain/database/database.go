// Package database defines the ledger records: splits, transactions and
// blocks. It provides the construction and validation rules that decide
// whether a record is well formed, authorized and economically sound, plus
// the storage contract used to keep blocks a node already has.
package database

// Storage interface represents the behavior required to be implemented by any
// package providing support for storing and reading the blockchain.
type Storage interface {
	Write(blockData BlockData) error
	GetBlock(height uint64) (BlockData, error)
	GetBlockByHash(hash string) (BlockData, error)
	ForEach() Iterator
	Close() error
	Reset() error
}

// Iterator interface represents the behavior required to be implemented by any
// package providing support to iterate over the blocks.
type Iterator interface {
	Next() (BlockData, error)
	Done() bool
}

// =============================================================================

// BlockIterator walks the stored blocks in height order.
type BlockIterator struct {
	iterator Iterator
}

// NewBlockIterator wraps the storage iterator so blocks are returned.
func NewBlockIterator(storage Storage) *BlockIterator {
	return &BlockIterator{iterator: storage.ForEach()}
}

// Next retrieves the next block from storage.
func (bi *BlockIterator) Next() (SignedBlock, error) {
	blockData, err := bi.iterator.Next()
	if err != nil {
		return SignedBlock{}, err
	}

	return ToBlock(blockData)
}

// Done returns the end of chain value.
func (bi *BlockIterator) Done() bool {
	return bi.iterator.Done()
}
