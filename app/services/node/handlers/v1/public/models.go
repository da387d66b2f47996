package public

import "github.com/ardanlabs/byob/foundation/blockchain/database"

type balance struct {
	Account database.AccountID `json:"account"`
	Name    string             `json:"name"`
	Balance int64              `json:"balance"`
}

type balances struct {
	LatestBlock string    `json:"latest_block"`
	Uncommitted int       `json:"uncommitted"`
	Balances    []balance `json:"balances"`
}

type split struct {
	Account database.AccountID `json:"account"`
	Name    string             `json:"name"`
	Amount  int64              `json:"amount"`
}

type tx struct {
	Nonce     string   `json:"nonce"`
	Splits    []split  `json:"splits"`
	Signature []string `json:"signature"`
}

type submitResponse struct {
	Status string `json:"status"`
	Nonce  string `json:"nonce"`
}
