// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ardanlabs/byob/business/web/errs"
	"github.com/ardanlabs/byob/foundation/blockchain/database"
	"github.com/ardanlabs/byob/foundation/blockchain/keystore"
	"github.com/ardanlabs/byob/foundation/blockchain/state"
	"github.com/ardanlabs/byob/foundation/events"
	"github.com/ardanlabs/byob/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of public ledger endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	KS    *keystore.KeyStore
	WS    websocket.Upgrader
	Evts  *events.Events
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return err
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// SubmitTransaction adds a new wallet transaction to the mempool.
func (h Handlers) SubmitTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var signedTx database.SignedTx
	if err := web.Decode(r, &signedTx); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	h.Log.Infow("submit tran", "traceid", v.TraceID, "tx", signedTx, "splits", len(signedTx.Splits))
	if err := h.State.SubmitTransaction(signedTx); err != nil {
		return err
	}

	resp := submitResponse{
		Status: "transaction added to mempool",
		Nonce:  signedTx.Nonce,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Genesis returns the genesis information.
func (h Handlers) Genesis(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	gen := h.State.RetrieveGenesis()
	return web.Respond(ctx, w, gen, http.StatusOK)
}

// Balances returns the current balances for all accounts or the one
// specified.
func (h Handlers) Balances(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	bals := h.State.RetrieveBalances()

	if param := web.Param(r, "account"); param != "" {
		account, err := database.ToAccountID(param)
		if err != nil {
			return errs.NewTrusted(err, http.StatusBadRequest)
		}
		bals = database.Balances{account: bals[account]}
	}

	out := make([]balance, 0, len(bals))
	for account, amount := range bals {
		out = append(out, balance{
			Account: account,
			Name:    h.KS.Lookup(account),
			Balance: amount,
		})
	}

	var latestHash string
	if latest, err := h.State.RetrieveLatestBlock(); err == nil {
		latestHash = latest.Hash
	}

	resp := balances{
		LatestBlock: latestHash,
		Uncommitted: h.State.QueryMempoolLength(),
		Balances:    out,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Mempool returns the set of uncommitted transactions, optionally only the
// ones that touch the specified account.
func (h Handlers) Mempool(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	acct := database.AccountID(web.Param(r, "account"))

	var out []tx
	for _, tran := range h.State.RetrieveMempool() {
		if acct != "" && !touches(tran, acct) {
			continue
		}
		out = append(out, h.toTx(tran))
	}

	return web.Respond(ctx, w, out, http.StatusOK)
}

// LatestBlock returns the last block of the chain.
func (h Handlers) LatestBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	block, err := h.State.RetrieveLatestBlock()
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return web.Respond(ctx, w, nil, http.StatusNoContent)
		}
		return err
	}

	return web.Respond(ctx, w, block, http.StatusOK)
}

// BlockByHash returns the block with the specified hash.
func (h Handlers) BlockByHash(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	block, err := h.State.QueryBlockByHash(web.Param(r, "hash"))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return errs.NewTrusted(err, http.StatusNotFound)
		}
		return err
	}

	return web.Respond(ctx, w, block, http.StatusOK)
}

// BlocksByAccount returns all the blocks that touch the account, or every
// block when no account is specified.
func (h Handlers) BlocksByAccount(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var account database.AccountID
	if param := web.Param(r, "account"); param != "" {
		var err error
		if account, err = database.ToAccountID(param); err != nil {
			return errs.NewTrusted(err, http.StatusBadRequest)
		}
	}

	blocks, err := h.State.QueryBlocksByAccount(account)
	if err != nil {
		return err
	}

	if len(blocks) == 0 {
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}

	return web.Respond(ctx, w, blocks, http.StatusOK)
}

// =============================================================================

func (h Handlers) toTx(tran database.SignedTx) tx {
	splits := make([]split, len(tran.Splits))
	for i, s := range tran.Splits {
		splits[i] = split{
			Account: s.Account,
			Name:    h.KS.Lookup(s.Account),
			Amount:  s.Amount,
		}
	}

	return tx{
		Nonce:     tran.Nonce,
		Splits:    splits,
		Signature: tran.Signature,
	}
}

func touches(tran database.SignedTx, account database.AccountID) bool {
	for _, s := range tran.Splits {
		if s.Account == account {
			return true
		}
	}
	return false
}
