// Package dispatch implements the controller's chunk-allocation state
// machine: a monotonic cursor over the candidate space, a once-only
// found latch, and the worker-slot bookkeeping that lets
// internal/controllersrv decide when to reply MSG_CHUNK_ASSIGN vs
// MSG_STOP. It is deliberately socket-free so the allocation
// invariants (chunk coverage, monotonicity, at-most-one-find, stop
// finality) can be tested directly, without any networking.
package dispatch

import (
	"sync"

	"github.com/barrosov/crackfleet/internal/enumerate"
	"github.com/barrosov/crackfleet/internal/protocol"
)

// Chunk is a granted [Start, Start+Count) range.
type Chunk struct {
	Start uint64
	Count uint64
}

// Dispatcher holds all controller-side dispatch state. The per-worker
// reactors in internal/controllersrv mutate it, the config hot-reload
// calls SetChunkSize, and the status/metrics HTTP server reads it
// concurrently, so every field is behind mu rather than relying on
// single-goroutine ownership.
type Dispatcher struct {
	mu             sync.Mutex
	chunkSize      uint64
	nextChunkStart uint64
	found          bool
	result         protocol.CrackResult
	granted        []Chunk

	registeredWorkers int
	connectedWorkers  int
	candidatesTested  uint64
}

// New creates a Dispatcher with the cursor at 0 and chunkSize candidates
// granted per request.
func New(chunkSize uint64) *Dispatcher {
	return &Dispatcher{chunkSize: chunkSize}
}

// SetChunkSize updates the size granted to future NextChunk calls. An
// already-granted chunk is never resized retroactively (internal/config's
// hot-reload only ever affects the next grant). A zero size is ignored:
// a zero-count grant would never advance the cursor.
func (d *Dispatcher) SetChunkSize(n uint64) {
	if n == 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.chunkSize = n
}

// ChunkSize returns the size currently used for new grants.
func (d *Dispatcher) ChunkSize() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.chunkSize
}

// NextChunk answers a MSG_REQUEST_CHUNK: if found or the space is
// exhausted, there is nothing left to grant (ok=false); otherwise it
// carves off up to ChunkSize candidates and advances the cursor.
//
// TODO(outstanding-chunks): a worker that disconnects holding a chunk
// loses it permanently; nothing tracks outstanding assignments.
// Re-assignment would thread an outstanding map[workerID]Chunk through
// here and re-queue on disconnect notification.
func (d *Dispatcher) NextChunk() (Chunk, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.found || d.nextChunkStart >= enumerate.Total {
		return Chunk{}, false
	}
	remaining := enumerate.Total - d.nextChunkStart
	count := d.chunkSize
	if count > remaining {
		count = remaining
	}
	c := Chunk{Start: d.nextChunkStart, Count: count}
	d.nextChunkStart += count
	d.granted = append(d.granted, c)
	return c, true
}

// ReportResult latches the first found result; the latch transitions
// false to true at most once per run. A not-found result never
// overwrites an existing latch nor creates a second transition.
func (d *Dispatcher) ReportResult(res protocol.CrackResult) (firstFind bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if res.Found && !d.found {
		d.found = true
		d.result = res
		return true
	}
	return false
}

// Found reports whether a winning result has been latched, and the
// latched result if so.
func (d *Dispatcher) Found() (protocol.CrackResult, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.result, d.found
}

// Exhausted reports whether the cursor has consumed the whole search
// space without a find.
func (d *Dispatcher) Exhausted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.found && d.nextChunkStart >= enumerate.Total
}

// Cursor returns the current monotonic frontier of unassigned indices.
func (d *Dispatcher) Cursor() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.nextChunkStart
}

// GrantedChunks returns a copy of every chunk handed out so far.
func (d *Dispatcher) GrantedChunks() []Chunk {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Chunk, len(d.granted))
	copy(out, d.granted)
	return out
}

// AddCandidatesTested accumulates a worker's heartbeat delta into the
// fleet-wide counter the status/metrics surface exposes.
func (d *Dispatcher) AddCandidatesTested(delta uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.candidatesTested += delta
}

// CandidatesTested returns the fleet-wide tested count accumulated via
// heartbeats so far.
func (d *Dispatcher) CandidatesTested() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.candidatesTested
}

// WorkerConnected/WorkerRegistered/WorkerDisconnected track slot
// counts for the status/metrics surface. The controller's
// all-workers-disconnected shutdown check does not use them; it
// counts internal/controllersrv's own slot set.
func (d *Dispatcher) WorkerConnected() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connectedWorkers++
}

func (d *Dispatcher) WorkerRegistered() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.registeredWorkers++
}

func (d *Dispatcher) WorkerDisconnected() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connectedWorkers--
}

// Counts returns the number of currently connected workers and the
// number of workers that have registered during the run. The
// registered count is never decremented when a worker disconnects.
func (d *Dispatcher) Counts() (connected, registered int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connectedWorkers, d.registeredWorkers
}
