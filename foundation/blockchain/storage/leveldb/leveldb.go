// Package leveldb implements the ability to read and write blocks to a
// leveldb database. Blocks are kept under their height so iteration follows
// the chain, with a secondary key to find a block by its hash.
package leveldb

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/ardanlabs/byob/foundation/blockchain/database"
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	ldbErrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Key prefixes for the two buckets.
var (
	heightPrefix = []byte("h/")
	hashPrefix   = []byte("b/")
)

// options returns the settings used to open the database.
func options() *opt.Options {
	return &opt.Options{
		Compression:            opt.NoCompression,
		BlockCacheCapacity:     32 * opt.MiB,
		WriteBuffer:            16 * opt.MiB,
		DisableSeeksCompaction: true,
	}
}

// LevelDB represents the serialization implementation for reading and
// storing blocks in leveldb. This implements the database.Storage interface.
type LevelDB struct {
	path string
	mu   sync.RWMutex
	ldb  *leveldb.DB
}

// New opens the leveldb instance defined by the given path. If the database
// is corrupted an attempt is made to recover it.
func New(path string) (*LevelDB, error) {
	ldb, err := open(path)
	if err != nil {
		return nil, err
	}

	return &LevelDB{path: path, ldb: ldb}, nil
}

// Close closes the leveldb instance.
func (db *LevelDB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	return db.ldb.Close()
}

// Write stores the block under its height and hash in a single batch.
func (db *LevelDB) Write(blockData database.BlockData) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	height := blockData.Block.Height

	next, err := db.count()
	if err != nil {
		return err
	}
	if next != height {
		return fmt.Errorf("block %d is out of order, expecting %d", height, next)
	}

	data, err := json.Marshal(blockData)
	if err != nil {
		return errors.Wrap(err, "marshal block")
	}

	batch := new(leveldb.Batch)
	batch.Put(heightKey(height), data)
	batch.Put(hashKey(blockData.Hash), heightKey(height))

	if err := db.ldb.Write(batch, nil); err != nil {
		return errors.Wrapf(err, "write block %d", height)
	}

	return nil
}

// GetBlock returns the block stored at the specified height.
func (db *LevelDB) GetBlock(height uint64) (database.BlockData, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.get(heightKey(height))
}

// GetBlockByHash returns the block with the specified hash.
func (db *LevelDB) GetBlockByHash(hash string) (database.BlockData, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	key, err := db.ldb.Get(hashKey(hash), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return database.BlockData{}, database.ErrNotFound
		}
		return database.BlockData{}, errors.Wrapf(err, "lookup hash %s", hash)
	}

	return db.get(key)
}

// ForEach returns an iterator to walk through all the blocks starting with
// the genesis block.
func (db *LevelDB) ForEach() database.Iterator {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return &levelIterator{
		iter: db.ldb.NewIterator(util.BytesPrefix(heightPrefix), nil),
	}
}

// Reset removes every stored block and reopens an empty database.
func (db *LevelDB) Reset() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.ldb.Close(); err != nil {
		return errors.Wrap(err, "close")
	}

	if err := os.RemoveAll(db.path); err != nil {
		return errors.Wrap(err, "remove")
	}

	ldb, err := open(db.path)
	if err != nil {
		return err
	}
	db.ldb = ldb

	return nil
}

// =============================================================================

// get reads and decodes the block stored at the key.
func (db *LevelDB) get(key []byte) (database.BlockData, error) {
	data, err := db.ldb.Get(key, nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return database.BlockData{}, database.ErrNotFound
		}
		return database.BlockData{}, errors.Wrapf(err, "get %s", key)
	}

	var blockData database.BlockData
	if err := json.Unmarshal(data, &blockData); err != nil {
		return database.BlockData{}, errors.Wrapf(err, "unmarshal %s", key)
	}

	return blockData, nil
}

// count returns the number of stored blocks, which is also the height of the
// next block to write.
func (db *LevelDB) count() (uint64, error) {
	iter := db.ldb.NewIterator(util.BytesPrefix(heightPrefix), nil)
	defer iter.Release()

	var n uint64
	if iter.Last() {
		if _, err := fmt.Sscanf(string(iter.Key()[len(heightPrefix):]), "%d", &n); err != nil {
			return 0, errors.Wrapf(err, "parse key %s", iter.Key())
		}
		n++
	}

	return n, errors.Wrap(iter.Error(), "iterate")
}

// open opens the database, recovering it if it is corrupted.
func open(path string) (*leveldb.DB, error) {
	ldb, err := leveldb.OpenFile(path, options())

	var corrupted *ldbErrors.ErrCorrupted
	if errors.As(err, &corrupted) {
		ldb, err = leveldb.RecoverFile(path, options())
		if err != nil {
			return nil, errors.Wrapf(err, "recover %s", path)
		}
	}

	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}

	return ldb, nil
}

// heightKey pads the height so keys sort in chain order.
func heightKey(height uint64) []byte {
	return append(append([]byte{}, heightPrefix...), fmt.Sprintf("%020d", height)...)
}

func hashKey(hash string) []byte {
	return append(append([]byte{}, hashPrefix...), hash...)
}

// =============================================================================

// levelIterator walks the height bucket. This implements the database
// Iterator interface.
type levelIterator struct {
	iter iterator.Iterator
	eoc  bool
}

// Next retrieves the next block from the database.
func (li *levelIterator) Next() (database.BlockData, error) {
	if li.eoc {
		return database.BlockData{}, errors.New("end of chain")
	}

	if !li.iter.Next() {
		li.eoc = true
		err := li.iter.Error()
		li.iter.Release()
		if err != nil {
			return database.BlockData{}, errors.Wrap(err, "iterate")
		}
		return database.BlockData{}, database.ErrNotFound
	}

	var blockData database.BlockData
	if err := json.Unmarshal(li.iter.Value(), &blockData); err != nil {
		return database.BlockData{}, errors.Wrapf(err, "unmarshal %s", li.iter.Key())
	}

	return blockData, nil
}

// Done returns the end of chain value.
func (li *levelIterator) Done() bool {
	return li.eoc
}
