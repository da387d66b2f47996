// Package genesis maintains access to the genesis file.
package genesis

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/ardanlabs/byob/foundation/blockchain/pow"
)

// Genesis represents the genesis file.
type Genesis struct {
	Date          time.Time        `json:"date"`
	ChainID       uint16           `json:"chain_id"`        // The chain id represents an unique id for this running instance.
	TransPerBlock uint16           `json:"trans_per_block"` // The maximum number of transactions that can be in a block.
	BaseWork      uint64           `json:"base_work"`       // Attempts expected to solve a block at difficulty one.
	Difficulty    uint64           `json:"difficulty"`      // How difficult it needs to be to solve the work problem.
	MiningReward  int64            `json:"mining_reward"`   // Reward for mining a block.
	Balances      map[string]int64 `json:"balances"`        // Starting balances by encoded public key.
}

// =============================================================================

// Load opens and consumes the genesis file.
func Load(path string) (Genesis, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Genesis{}, err
	}

	var genesis Genesis
	if err := json.Unmarshal(content, &genesis); err != nil {
		return Genesis{}, fmt.Errorf("decoding genesis: %w", err)
	}

	if _, err := genesis.Target(); err != nil {
		return Genesis{}, fmt.Errorf("invalid genesis: %w", err)
	}

	if genesis.MiningReward < 0 {
		return Genesis{}, fmt.Errorf("invalid genesis: negative mining reward %d", genesis.MiningReward)
	}

	return genesis, nil
}

// Target returns the proof of work target blocks must satisfy.
func (g Genesis) Target() (*big.Int, error) {
	return pow.CalculateTarget(g.BaseWork, g.Difficulty)
}
