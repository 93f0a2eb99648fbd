package controllersrv

import (
	"net"
	"sync"
	"sync/atomic"

	"github.com/barrosov/crackfleet/internal/protocol"
)

// slot is the controller-side connection descriptor. Removal never
// shifts other slots' identities within one run: slots live in a map
// keyed by pointer, never a re-indexed slice.
type slot struct {
	conn       net.Conn
	writeMu    sync.Mutex
	registered atomic.Bool
}

func newSlot(conn net.Conn) *slot {
	return &slot{conn: conn}
}

func (s *slot) sendJob(job protocol.CrackJob) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return protocol.WriteJob(s.conn, job)
}

func (s *slot) sendStop() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return protocol.WriteTag(s.conn, protocol.MsgStop)
}

func (s *slot) sendChunkAssign(c protocol.ChunkAssign) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return protocol.WriteChunkAssign(s.conn, c)
}

func (s *slot) sendHeartbeatReq() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return protocol.WriteTag(s.conn, protocol.MsgHeartbeatReq)
}
