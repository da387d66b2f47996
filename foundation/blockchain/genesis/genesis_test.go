package genesis_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ardanlabs/byob/foundation/blockchain/genesis"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_Load(t *testing.T) {
	type table struct {
		name    string
		content string
		ok      bool
	}

	tt := []table{
		{
			name:    "valid",
			content: `{"chain_id":1,"trans_per_block":10,"base_work":1000,"difficulty":4,"mining_reward":700,"balances":{}}`,
			ok:      true,
		},
		{
			name:    "zerowork",
			content: `{"chain_id":1,"trans_per_block":10,"base_work":0,"difficulty":4}`,
			ok:      false,
		},
		{
			name:    "negativereward",
			content: `{"chain_id":1,"trans_per_block":10,"base_work":1000,"difficulty":4,"mining_reward":-1}`,
			ok:      false,
		},
		{
			name:    "malformed",
			content: `{"chain_id":`,
			ok:      false,
		},
	}

	t.Log("Given the need to load a genesis file.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				path := filepath.Join(t.TempDir(), "genesis.json")
				if err := os.WriteFile(path, []byte(tst.content), 0600); err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to write the file: %v", failed, testID, err)
				}

				gen, err := genesis.Load(path)
				if (err == nil) != tst.ok {
					t.Fatalf("\t%s\tTest %d:\tShould get the expected result loading the file: %v", failed, testID, err)
				}
				t.Logf("\t%s\tTest %d:\tShould get the expected result loading the file.", success, testID)

				if !tst.ok {
					return
				}

				if gen.MiningReward != 700 {
					t.Fatalf("\t%s\tTest %d:\tShould load the mining reward, got %d", failed, testID, gen.MiningReward)
				}
				t.Logf("\t%s\tTest %d:\tShould load the mining reward.", success, testID)

				target, err := gen.Target()
				if err != nil || target.Sign() <= 0 {
					t.Fatalf("\t%s\tTest %d:\tShould derive a target: %v", failed, testID, err)
				}
				t.Logf("\t%s\tTest %d:\tShould derive a target.", success, testID)
			}

			t.Run(tst.name, f)
		}
	}
}
