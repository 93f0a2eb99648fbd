// Package workerio implements the worker side of the coordination
// protocol: a single reader goroutine demultiplexing inbound control
// messages, the request/crack loop that pulls chunks until a find or a
// stop, and a write mutex serializing the reader's heartbeat replies
// against the main loop's chunk requests and result frames.
package workerio

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/barrosov/crackfleet/internal/crackpool"
	"github.com/barrosov/crackfleet/internal/hostcrypt"
	"github.com/barrosov/crackfleet/internal/protocol"
)

// Client owns one worker-to-controller TCP connection for the lifetime
// of a single job; a worker receives exactly one job per connection.
type Client struct {
	conn   net.Conn
	logger *logrus.Logger

	writeMu sync.Mutex

	mu           sync.Mutex
	cond         *sync.Cond
	chunkReady   bool
	stopReceived bool
	readerDone   bool
	pendingChunk protocol.ChunkAssign

	pool         *crackpool.Pool
	jobAck       time.Time
	resultSent   atomic.Bool
	lastReported atomic.Uint64
}

// NewClient wires a Client to an already-registered connection and the
// cracker pool that will run every chunk this job assigns.
func NewClient(conn net.Conn, pool *crackpool.Pool, jobAck time.Time, logger *logrus.Logger) *Client {
	c := &Client{conn: conn, pool: pool, jobAck: jobAck, logger: logger}
	c.cond = sync.NewCond(&c.mu)
	return c
}

func (c *Client) writeTag(tag protocol.MessageTag) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return protocol.WriteTag(c.conn, tag)
}

func (c *Client) writeResult(res protocol.CrackResult) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return protocol.WriteResult(c.conn, res)
}

func (c *Client) writeHeartbeatResponse(hb protocol.HeartbeatResponse) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return protocol.WriteHeartbeatResponse(c.conn, hb)
}

// RunReader is the sole reader of c.conn after the job handshake: it
// demultiplexes MSG_HEARTBEAT_REQ, MSG_CHUNK_ASSIGN and MSG_STOP, and
// treats EOF or an unknown tag as an implicit stop. Run as its own
// goroutine; returns once the socket is unusable.
func (c *Client) RunReader() {
	defer c.markReaderDone()

	for {
		tag, err := protocol.ReadTag(c.conn)
		if err != nil {
			c.logger.WithError(err).Debug("workerio: reader: connection closed")
			return
		}

		switch tag {
		case protocol.MsgHeartbeatReq:
			total := c.pool.TestedTotal()
			delta := total - c.lastReportedSwap(total)
			elapsed := time.Since(c.jobAck).Seconds()
			var rate float64
			if elapsed > 0 {
				rate = float64(total) / elapsed
			}
			hb := protocol.HeartbeatResponse{
				DeltaTested:   delta,
				TotalTested:   total,
				ThreadsActive: uint32(c.pool.ThreadsActive()),
				CurrentRate:   rate,
			}
			if err := c.writeHeartbeatResponse(hb); err != nil {
				return
			}

		case protocol.MsgStop:
			c.pool.RequestStop()
			c.mu.Lock()
			c.stopReceived = true
			c.cond.Broadcast()
			c.mu.Unlock()

		case protocol.MsgChunkAssign:
			chunk, err := protocol.ReadChunkAssign(c.conn)
			if err != nil {
				c.logger.WithError(err).WithField("error_kind", "protocol").Warn("workerio: reader: short read on chunk assign")
				return
			}
			c.mu.Lock()
			c.pendingChunk = chunk
			c.chunkReady = true
			c.cond.Broadcast()
			c.mu.Unlock()

		default:
			c.logger.WithFields(logrus.Fields{
				"msg_tag":    tag.String(),
				"error_kind": "protocol",
			}).Warn("workerio: reader: unexpected tag")
			return
		}
	}
}

// markReaderDone records that the socket is unusable. Closure by the
// controller is equivalent to MSG_STOP, so the cancel flag is raised
// too; an in-flight chunk must not run to completion against a dead
// connection.
func (c *Client) markReaderDone() {
	c.pool.RequestStop()
	c.mu.Lock()
	c.readerDone = true
	c.cond.Broadcast()
	c.mu.Unlock()
}

// lastReportedSwap stores total and returns the previous reported
// value in one atomic step, so delta accounting never double-counts
// even if a heartbeat lands mid-chunk.
func (c *Client) lastReportedSwap(total uint64) uint64 {
	return c.lastReported.Swap(total)
}

// RequestChunk sends MSG_REQUEST_CHUNK and blocks on the condition
// variable until the reader goroutine signals either a granted chunk
// or a stop condition (explicit MSG_STOP, socket closure, or reader
// exit).
func (c *Client) RequestChunk() (chunk protocol.ChunkAssign, stop bool) {
	c.mu.Lock()
	c.chunkReady = false
	c.stopReceived = false
	c.mu.Unlock()

	if err := c.writeTag(protocol.MsgRequestChunk); err != nil {
		return protocol.ChunkAssign{}, true
	}

	c.mu.Lock()
	for !c.chunkReady && !c.stopReceived && !c.readerDone {
		c.cond.Wait()
	}
	ready := c.chunkReady
	stopNow := c.stopReceived || c.readerDone
	pending := c.pendingChunk
	c.mu.Unlock()

	if stopNow || !ready {
		return protocol.ChunkAssign{}, true
	}
	return pending, false
}

// SendResult emits the terminal MSG_RESULT frame exactly once per
// connection. A second call (a stop arriving after a found result was
// already sent) is a silent no-op; the controller has latched the
// first result either way.
func (c *Client) SendResult(res protocol.CrackResult) error {
	if !c.resultSent.CompareAndSwap(false, true) {
		return nil
	}
	return c.writeResult(res)
}

// validateAlgorithm rejects a job whose algorithm byte is outside the
// known set. Each hostcrypt hasher embeds its own "$tag$" framing, so
// no per-algorithm salt template needs building here.
func validateAlgorithm(algo hostcrypt.Algorithm) error {
	switch algo {
	case hostcrypt.MD5, hostcrypt.Bcrypt, hostcrypt.SHA256, hostcrypt.SHA512:
		return nil
	case hostcrypt.Yescrypt:
		// Not fatal: a hash-primitive failure skips the candidate, so
		// a yescrypt job runs to exhaustion and reports not-found (see
		// hostcrypt.ErrAlgorithmUnavailable).
		return nil
	default:
		return fmt.Errorf("workerio: unsupported algorithm %d", algo)
	}
}
