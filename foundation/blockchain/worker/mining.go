package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ardanlabs/byob/foundation/blockchain/state"
)

// miningOperations waits for mining signals until the worker shuts down.
func (w *Worker) miningOperations() {
	w.evHandler("worker: miningOperations: G started")
	defer w.evHandler("worker: miningOperations: G completed")

	for {
		select {
		case <-w.startMining:
			if !w.isShutdown() {
				w.runMiningOperation()
			}
		case <-w.shut:
			w.evHandler("worker: miningOperations: received shut signal")
			return
		}
	}
}

// runMiningOperation mines one block from the mempool. A cancel request
// stops the search, and the function then holds until the requester calls
// done so the requester can commit its block first.
func (w *Worker) runMiningOperation() {
	w.evHandler("worker: runMiningOperation: MINING: started")
	defer w.evHandler("worker: runMiningOperation: MINING: completed")

	if n := w.state.QueryMempoolLength(); n == 0 {
		w.evHandler("worker: runMiningOperation: MINING: nothing to mine: Txs[%d]", n)
		return
	}

	// Runs last: leftover transactions get another round.
	defer w.signalIfPending()

	// A stale request from before this round started is meaningless.
	select {
	case <-w.cancelMining:
		w.evHandler("worker: runMiningOperation: MINING: dropped stale cancel request")
	default:
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)

	var wait chan struct{}
	go func() {
		defer wg.Done()
		wait = w.watchCancel(ctx, cancel)
	}()

	go func() {
		defer wg.Done()
		defer cancel()
		w.mine(ctx)
	}()

	wg.Wait()

	if wait != nil {
		w.evHandler("worker: runMiningOperation: MINING: holding for the cancel requester")
		<-wait
		w.evHandler("worker: runMiningOperation: MINING: released by the cancel requester")
	}
}

// watchCancel cancels the mining context on a cancel request or shutdown.
// It returns the requester's wait channel when a request arrived.
func (w *Worker) watchCancel(ctx context.Context, cancel context.CancelFunc) chan struct{} {
	defer cancel()

	select {
	case wait := <-w.cancelMining:
		w.evHandler("worker: runMiningOperation: MINING: CANCEL: requested")
		return wait
	case <-w.shut:
		w.evHandler("worker: runMiningOperation: MINING: CANCEL: shutdown")
	case <-ctx.Done():
	}

	return nil
}

// mine asks the state for a new block and reports the outcome.
func (w *Worker) mine(ctx context.Context) {
	start := time.Now()
	block, err := w.state.MineNewBlock(ctx)
	w.evHandler("worker: runMiningOperation: MINING: mining duration[%v]", time.Since(start))

	switch {
	case err == nil:
		w.evHandler("worker: runMiningOperation: MINING: mined block[%s]: numTrans[%d]", block, len(block.Transactions))
	case errors.Is(err, state.ErrNoTransactions):
		w.evHandler("worker: runMiningOperation: MINING: WARNING: mempool emptied before mining")
	case ctx.Err() != nil:
		w.evHandler("worker: runMiningOperation: MINING: CANCEL: complete")
	default:
		w.evHandler("worker: runMiningOperation: MINING: ERROR: %s", err)
	}
}

// signalIfPending asks for another round while transactions remain.
func (w *Worker) signalIfPending() {
	if n := w.state.QueryMempoolLength(); n > 0 && !w.isShutdown() {
		w.evHandler("worker: runMiningOperation: MINING: more to mine: Txs[%d]", n)
		w.SignalStartMining()
	}
}
