// Package crackpool implements the worker's striding cracker pool: T
// goroutines stride through an assigned chunk (thread i takes idx,
// idx+T, idx+2T, ...), cooperatively cancellable via atomic flags,
// racing to find the one candidate whose hash matches the job's
// target. Striding rather than a contiguous split gives uniform
// progress and uniform cancellation latency across the pool.
package crackpool

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/barrosov/crackfleet/internal/enumerate"
	"github.com/barrosov/crackfleet/internal/hostcrypt"
)

// Pool holds the cracker-thread shared state for one worker process's
// lifetime: it is reused across every chunk a worker is assigned, so
// the tested counter is cumulative and heartbeat deltas always sum to
// the lifetime total.
type Pool struct {
	Algo       hostcrypt.Algorithm
	Salt       string
	TargetHash string

	tested        atomic.Uint64
	threadsActive atomic.Int32
	stopRequested atomic.Bool

	passwordMu sync.Mutex
	password   string
}

// New builds a Pool bound to one job's algorithm/salt/target-hash
// triple; a worker receives exactly one job per connection.
func New(algo hostcrypt.Algorithm, salt, targetHash string) *Pool {
	return &Pool{Algo: algo, Salt: salt, TargetHash: targetHash}
}

// RequestStop raises the cooperative-cancel flag; every cracker
// goroutine observes it within one candidate, so cancellation latency
// is bounded by the cost of a single hash probe.
func (p *Pool) RequestStop() {
	p.stopRequested.Store(true)
}

// StopRequested reports whether RequestStop has been called, so the
// request/crack loop can distinguish "chunk exhausted cleanly" from
// "chunk cut short by a stop" after Crack returns not-found.
func (p *Pool) StopRequested() bool {
	return p.stopRequested.Load()
}

// TestedTotal returns the lifetime candidate count across every chunk
// this pool has cracked, for heartbeat accounting.
func (p *Pool) TestedTotal() uint64 {
	return p.tested.Load()
}

// ThreadsActive returns the number of cracker goroutines currently
// running (0 between chunks).
func (p *Pool) ThreadsActive() int32 {
	return p.threadsActive.Load()
}

// Crack runs threads goroutines striding over [start, start+count),
// stopping early on a find or on RequestStop. It returns whether this
// chunk produced the winning password and how long the chunk took.
func (p *Pool) Crack(start, count uint64, threads int) (found bool, password string, elapsed time.Duration) {
	t0 := time.Now()

	var found32 atomic.Bool
	end := start + count

	var wg sync.WaitGroup
	for i := 0; i < threads; i++ {
		wg.Add(1)
		go func(threadID int) {
			defer wg.Done()
			p.threadsActive.Add(1)
			defer p.threadsActive.Add(-1)

			for idx := start + uint64(threadID); idx < end; idx += uint64(threads) {
				if found32.Load() || p.stopRequested.Load() {
					return
				}

				pw, err := enumerate.IndexToPassword(idx)
				if err != nil {
					continue
				}

				h, err := hostcrypt.Hash(pw, p.Algo, p.Salt)
				if err != nil {
					// Hash-primitive failure skips the candidate, never
					// aborts the chunk. Skipped candidates are not
					// counted.
					continue
				}
				digest, ok := hostcrypt.DigestSuffix(h)
				if ok && digest == p.TargetHash {
					if found32.CompareAndSwap(false, true) {
						p.passwordMu.Lock()
						p.password = pw
						p.passwordMu.Unlock()
					}
					p.tested.Add(1)
					return
				}
				p.tested.Add(1)
			}
		}(i)
	}
	wg.Wait()

	elapsed = time.Since(t0)
	if found32.Load() {
		p.passwordMu.Lock()
		password = p.password
		p.passwordMu.Unlock()
		return true, password, elapsed
	}
	return false, "", elapsed
}
