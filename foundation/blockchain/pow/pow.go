// Package pow implements the proof of work search that must be solved before
// a block can be finalized.
package pow

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"math/big"
	"runtime"
	"sync"
)

// ComplimentLength is the number of bytes in a compliment.
const ComplimentLength = 32

// DefaultBatchSize is the number of attempts made between checks for
// cancellation. The search yields the processor after every batch.
const DefaultBatchSize = 1024

// maxTarget represents the size of the hash output space, 2^256.
var maxTarget = new(big.Int).Lsh(big.NewInt(1), 256)

// EventHandler defines a function that is called when events
// occur in the search.
type EventHandler func(v string, args ...any)

// =============================================================================

// CalculateTarget produces the threshold a digest must fall below. The
// expected number of attempts to find a compliment grows with both values:
// target = 2^256 / (baseWork * difficulty).
func CalculateTarget(baseWork uint64, difficulty uint64) (*big.Int, error) {
	if baseWork == 0 {
		return nil, errors.New("base work must be positive")
	}

	if difficulty == 0 {
		return nil, errors.New("difficulty must be positive")
	}

	work := new(big.Int).Mul(new(big.Int).SetUint64(baseWork), new(big.Int).SetUint64(difficulty))
	return new(big.Int).Div(maxTarget, work), nil
}

// Digest returns the digest of the seed and compliment as a big unsigned
// integer.
func Digest(seed []byte, compliment []byte) *big.Int {
	h := sha256.New()
	h.Write(seed)
	h.Write(compliment)

	return new(big.Int).SetBytes(h.Sum(nil))
}

// IsSolved checks the compliment satisfies the target for the seed.
func IsSolved(seed []byte, compliment []byte, target *big.Int) bool {
	if target == nil || len(compliment) == 0 {
		return false
	}

	return Digest(seed, compliment).Cmp(target) < 0
}

// Solve searches for a compliment that satisfies the target for the seed.
// The search runs on the calling goroutine until a compliment is found or
// the context is cancelled. It yields the processor between batches.
func Solve(ctx context.Context, seed []byte, target *big.Int, ev EventHandler) ([]byte, error) {
	return search(ctx, seed, target, DefaultBatchSize, safe(ev))
}

// =============================================================================

// Config represents the settings for a parallel search.
type Config struct {
	Workers   int
	BatchSize int
	EvHandler EventHandler
}

// Task represents a search running in the background. A task either
// produces a compliment or is cancelled, partial results are never exposed.
type Task struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once

	compliment []byte
	err        error
}

// Start launches a search across the configured number of workers. Each
// worker starts from its own random candidate. The first compliment found
// stops the remaining workers.
func Start(ctx context.Context, seed []byte, target *big.Int, cfg Config) *Task {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	batch := cfg.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}

	ev := safe(cfg.EvHandler)

	ctx, cancel := context.WithCancel(ctx)
	t := Task{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	var wg sync.WaitGroup
	wg.Add(workers)

	for i := range workers {
		go func(id int) {
			defer wg.Done()

			compliment, err := search(ctx, seed, target, batch, ev)
			if err != nil {
				return
			}

			t.once.Do(func() {
				ev("pow: Start: worker[%d]: SOLVED", id)
				t.compliment = compliment
				cancel()
			})
		}(i)
	}

	go func() {
		wg.Wait()

		// Nobody found a compliment so the search was cancelled.
		t.once.Do(func() {
			t.err = ctx.Err()
			if t.err == nil {
				t.err = context.Canceled
			}
		})

		cancel()
		close(t.done)
	}()

	return &t
}

// Cancel aborts the search. It is safe to call more than once and after
// the search completes.
func (t *Task) Cancel() {
	t.cancel()
}

// Done returns a channel that is closed once the search has stopped.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the search stops and returns the compliment or the
// reason the search was cancelled.
func (t *Task) Wait() ([]byte, error) {
	<-t.done
	return t.compliment, t.err
}

// =============================================================================

// search performs the work of finding a compliment.
func search(ctx context.Context, seed []byte, target *big.Int, batch int, ev EventHandler) ([]byte, error) {
	if target == nil || target.Sign() <= 0 {
		return nil, fmt.Errorf("invalid target %v", target)
	}

	// Choose a random starting point for the compliment. After this, the
	// compliment will be incremented by 1 until a solution is found.
	buf := make([]byte, len(seed)+ComplimentLength)
	copy(buf, seed)
	candidate := buf[len(seed):]
	if _, err := rand.Read(candidate); err != nil {
		return nil, fmt.Errorf("choosing starting compliment: %w", err)
	}

	var digest big.Int
	var attempts uint64
	for {
		for range batch {
			attempts++

			sum := sha256.Sum256(buf)
			if digest.SetBytes(sum[:]).Cmp(target) < 0 {
				ev("pow: search: SOLVED: attempts[%d]", attempts)

				compliment := make([]byte, ComplimentLength)
				copy(compliment, candidate)
				return compliment, nil
			}

			increment(candidate)
		}

		if attempts%(1<<20) < uint64(batch) {
			ev("pow: search: attempts[%d]", attempts)
		}

		// Did we get cancelled trying to solve the problem.
		if err := ctx.Err(); err != nil {
			ev("pow: search: CANCELLED: attempts[%d]", attempts)
			return nil, err
		}

		runtime.Gosched()
	}
}

// increment adds one to the big endian value, wrapping on overflow.
func increment(b []byte) {
	for i := len(b) - 1; i >= 0; i-- {
		b[i]++
		if b[i] != 0 {
			return
		}
	}
}

// safe returns an event handler that can always be called.
func safe(ev EventHandler) EventHandler {
	if ev == nil {
		return func(string, ...any) {}
	}

	return ev
}
