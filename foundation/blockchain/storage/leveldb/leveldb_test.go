package leveldb_test

import (
	"errors"
	"testing"

	"github.com/ardanlabs/byob/foundation/blockchain/database"
	"github.com/ardanlabs/byob/foundation/blockchain/storage/leveldb"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_Storage(t *testing.T) {
	t.Log("Given the need to store and read back blocks.")
	{
		strg, err := leveldb.New(t.TempDir())
		if err != nil {
			t.Fatalf("\t%s\tShould be able to open storage: %v", failed, err)
		}
		defer strg.Close()
		t.Logf("\t%s\tShould be able to open storage.", success)

		chain := blocks(3)
		for _, blockData := range chain {
			if err := strg.Write(blockData); err != nil {
				t.Fatalf("\t%s\tShould be able to write block %d: %v", failed, blockData.Block.Height, err)
			}
		}
		t.Logf("\t%s\tShould be able to write blocks.", success)

		if err := strg.Write(chain[1]); err == nil {
			t.Fatalf("\t%s\tShould not be able to write a block out of order.", failed)
		}
		t.Logf("\t%s\tShould not be able to write a block out of order.", success)

		got, err := strg.GetBlock(1)
		if err != nil || got.Hash != chain[1].Hash {
			t.Fatalf("\t%s\tShould be able to read a block by height: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to read a block by height.", success)

		got, err = strg.GetBlockByHash(chain[2].Hash)
		if err != nil || got.Block.Height != 2 {
			t.Fatalf("\t%s\tShould be able to read a block by hash: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to read a block by hash.", success)

		if _, err := strg.GetBlock(3); !errors.Is(err, database.ErrNotFound) {
			t.Fatalf("\t%s\tShould get not found for a missing block: %v", failed, err)
		}
		t.Logf("\t%s\tShould get not found for a missing block.", success)

		var heights []uint64
		iter := database.NewBlockIterator(strg)
		for block, err := iter.Next(); !iter.Done(); block, err = iter.Next() {
			if err != nil {
				t.Fatalf("\t%s\tShould be able to iterate: %v", failed, err)
			}
			heights = append(heights, block.Height)
		}
		if len(heights) != 3 || heights[0] != 0 || heights[2] != 2 {
			t.Fatalf("\t%s\tShould iterate the blocks in order, got %v", failed, heights)
		}
		t.Logf("\t%s\tShould iterate the blocks in order.", success)

		if err := strg.Reset(); err != nil {
			t.Fatalf("\t%s\tShould be able to reset storage: %v", failed, err)
		}
		if _, err := strg.GetBlock(0); !errors.Is(err, database.ErrNotFound) {
			t.Fatalf("\t%s\tShould have no blocks after a reset: %v", failed, err)
		}
		if err := strg.Write(chain[0]); err != nil {
			t.Fatalf("\t%s\tShould be able to write after a reset: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to reset storage.", success)
	}
}

func Test_Reopen(t *testing.T) {
	path := t.TempDir()

	strg, err := leveldb.New(path)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to open storage: %v", failed, err)
	}

	chain := blocks(2)
	for _, blockData := range chain {
		if err := strg.Write(blockData); err != nil {
			t.Fatalf("\t%s\tShould be able to write block %d: %v", failed, blockData.Block.Height, err)
		}
	}
	if err := strg.Close(); err != nil {
		t.Fatalf("\t%s\tShould be able to close storage: %v", failed, err)
	}

	strg, err = leveldb.New(path)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to reopen storage: %v", failed, err)
	}
	defer strg.Close()

	if _, err := strg.GetBlockByHash(chain[1].Hash); err != nil {
		t.Fatalf("\t%s\tShould keep blocks across a reopen: %v", failed, err)
	}
	if err := strg.Write(blocks(3)[2]); err != nil {
		t.Fatalf("\t%s\tShould continue the chain after a reopen: %v", failed, err)
	}
	t.Logf("\t%s\tShould keep blocks across a reopen.", success)
}

// =============================================================================

func blocks(n int) []database.BlockData {
	var chain []database.BlockData
	var parent string
	for i := range n {
		block := database.HashBlock(database.Block{
			Height: uint64(i),
			Parent: parent,
		})
		chain = append(chain, database.NewBlockData(database.SignedBlock{Block: block}))
		parent = block.Hash
	}
	return chain
}
