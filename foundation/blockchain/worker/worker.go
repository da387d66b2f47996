// Package worker implements mining for the ledger node.
package worker

import (
	"sync"
	"time"

	"github.com/ardanlabs/byob/foundation/blockchain/state"
)

// retryInterval represents the interval for checking if transactions are
// waiting in the mempool without a mining operation pending.
const retryInterval = 30 * time.Second

// =============================================================================

// Worker runs proof of work mining for the node in the background.
type Worker struct {
	state        *state.State
	wg           sync.WaitGroup
	ticker       *time.Ticker
	shut         chan struct{}
	startMining  chan bool
	cancelMining chan chan struct{}
	evHandler    state.EventHandler
}

// Run constructs a worker, attaches it to the state and starts the mining
// and retry goroutines.
func Run(st *state.State, evHandler state.EventHandler) *Worker {
	ev := func(v string, args ...any) {
		if evHandler != nil {
			evHandler(v, args...)
		}
	}

	w := Worker{
		state:        st,
		ticker:       time.NewTicker(retryInterval),
		shut:         make(chan struct{}),
		startMining:  make(chan bool, 1),
		cancelMining: make(chan chan struct{}, 1),
		evHandler:    ev,
	}

	st.Worker = &w

	operations := []func(){
		w.miningOperations,
		w.retryOperations,
	}

	g := len(operations)
	w.wg.Add(g)

	// Run returns only once every operation G is running.
	hasStarted := make(chan bool)
	for _, op := range operations {
		go func(op func()) {
			defer w.wg.Done()
			hasStarted <- true
			op()
		}(op)
	}
	for range g {
		<-hasStarted
	}

	// Transactions may have been waiting since before the worker existed.
	if st.QueryMempoolLength() > 0 {
		w.SignalStartMining()
	}

	return &w
}

// =============================================================================
// These methods implement the state.Worker interface.

// Shutdown stops any mining in progress and waits for the operation
// goroutines to return.
func (w *Worker) Shutdown() {
	w.evHandler("worker: shutdown: started")
	defer w.evHandler("worker: shutdown: completed")

	w.evHandler("worker: shutdown: stop ticker")
	w.ticker.Stop()

	w.evHandler("worker: shutdown: signal cancel mining")
	done := w.SignalCancelMining()

	w.evHandler("worker: shutdown: terminate goroutines")
	close(w.shut)
	done()
	w.wg.Wait()
}

// SignalStartMining requests a mining round. Requests collapse into one
// while a round is already pending.
func (w *Worker) SignalStartMining() {
	select {
	case w.startMining <- true:
	default:
	}
	w.evHandler("worker: SignalStartMining: mining signaled")
}

// SignalCancelMining stops the current mining round. The round holds until
// the returned done function is called, so no new round starts while the
// caller is still changing state.
func (w *Worker) SignalCancelMining() (done func()) {
	wait := make(chan struct{})

	select {
	case w.cancelMining <- wait:
	default:
	}
	w.evHandler("worker: SignalCancelMining: MINING: CANCEL: signaled")

	return func() { close(wait) }
}

// =============================================================================

// retryOperations signals mining when transactions are waiting.
func (w *Worker) retryOperations() {
	w.evHandler("worker: retryOperations: G started")
	defer w.evHandler("worker: retryOperations: G completed")

	for {
		select {
		case <-w.ticker.C:
			if !w.isShutdown() && w.state.QueryMempoolLength() > 0 {
				w.SignalStartMining()
			}
		case <-w.shut:
			w.evHandler("worker: retryOperations: received shut signal")
			return
		}
	}
}

// isShutdown reports whether Shutdown was called.
func (w *Worker) isShutdown() bool {
	select {
	case <-w.shut:
		return true
	default:
		return false
	}
}
