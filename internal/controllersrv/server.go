// Package controllersrv implements the controller's TCP accept loop
// and per-worker state machine wrapped around an
// internal/dispatch.Dispatcher: one goroutine per connected worker
// plus a shared heartbeat ticker, rather than a manually multiplexed
// readiness set. All dispatch decisions stay inside the Dispatcher, so
// concurrent worker goroutines never race on allocation state.
package controllersrv

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/barrosov/crackfleet/internal/dispatch"
	"github.com/barrosov/crackfleet/internal/protocol"
)

// Server accepts worker connections, dispatches chunks via a
// dispatch.Dispatcher, and tracks the two shutdown conditions: a
// latched find (after the stop broadcast completes), or every attached
// worker disconnecting without one.
type Server struct {
	Job               protocol.CrackJob
	Dispatcher        *dispatch.Dispatcher
	HeartbeatInterval time.Duration
	Logger            *logrus.Logger

	// Metrics is optional; when set, chunk grants and heartbeat deltas
	// are mirrored into it. Left nil, the server runs metrics-free.
	Metrics interface {
		RecordChunkAssigned()
		RecordCandidatesTested(delta uint64)
	}

	mu           sync.Mutex
	slots        map[*slot]struct{}
	everAttached bool

	intervalUpdates chan time.Duration

	done     chan struct{}
	doneOnce sync.Once
}

// New builds a Server ready to Serve on an already-bound listener.
func New(job protocol.CrackJob, d *dispatch.Dispatcher, heartbeatInterval time.Duration, logger *logrus.Logger) *Server {
	return &Server{
		Job:               job,
		Dispatcher:        d,
		HeartbeatInterval: heartbeatInterval,
		Logger:            logger,
		slots:             make(map[*slot]struct{}),
		intervalUpdates:   make(chan time.Duration, 1),
		done:              make(chan struct{}),
	}
}

// SetHeartbeatInterval changes the period used by the heartbeat ticker.
// internal/config calls this on a hot-reload. When the heartbeat loop
// picks the update up it resets the ticker, so the next tick comes one
// new interval after that moment; ticks already sent are unaffected.
func (s *Server) SetHeartbeatInterval(d time.Duration) {
	select {
	case s.intervalUpdates <- d:
	default:
		// A previous update hasn't been picked up yet; drop it in
		// favor of the newest value.
		select {
		case <-s.intervalUpdates:
		default:
		}
		s.intervalUpdates <- d
	}
}

// Done returns a channel closed once the server has decided to shut
// down (found-and-broadcast, or all-workers-disconnected-without-a-find).
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// Serve accepts connections on ln until Done fires or accept fails
// fatally. It blocks; run it in its own goroutine.
func (s *Server) Serve(ln net.Listener) {
	go s.heartbeatLoop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
			}
			s.Logger.WithError(err).WithField("error_kind", "transport").Error("controllersrv: accept failed")
			s.finish()
			return
		}
		sl := newSlot(conn)
		s.addSlot(sl)
		s.Logger.WithField("worker_addr", conn.RemoteAddr().String()).Info("controllersrv: worker connected")
		go s.handleConn(sl)
	}
}

func (s *Server) finish() {
	s.doneOnce.Do(func() { close(s.done) })
}

func (s *Server) addSlot(sl *slot) {
	s.mu.Lock()
	s.slots[sl] = struct{}{}
	s.everAttached = true
	s.mu.Unlock()
	s.Dispatcher.WorkerConnected()
}

func (s *Server) removeSlot(sl *slot) {
	s.mu.Lock()
	delete(s.slots, sl)
	remaining := len(s.slots)
	everAttached := s.everAttached
	s.mu.Unlock()
	s.Dispatcher.WorkerDisconnected()

	_, found := s.Dispatcher.Found()
	if everAttached && remaining == 0 && !found {
		s.Logger.Warn("controllersrv: all workers disconnected; no password found")
		s.finish()
	}
}

func (s *Server) registeredSlots() []*slot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*slot, 0, len(s.slots))
	for sl := range s.slots {
		if sl.registered.Load() {
			out = append(out, sl)
		}
	}
	return out
}

// heartbeatLoop fires MSG_HEARTBEAT_REQ to every registered worker
// once per HeartbeatInterval tick.
func (s *Server) heartbeatLoop() {
	ticker := time.NewTicker(s.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case d := <-s.intervalUpdates:
			ticker.Reset(d)
			s.Logger.WithField("heartbeat_interval", d).Info("controllersrv: heartbeat interval updated")
		case <-ticker.C:
			for _, sl := range s.registeredSlots() {
				if err := sl.sendHeartbeatReq(); err != nil {
					s.Logger.WithError(err).Debug("controllersrv: heartbeat send failed")
				}
			}
		}
	}
}

// handleConn runs the per-worker state machine: ACCEPTED ->
// (MSG_REGISTER) -> REGISTERED -> serve requests until disconnect,
// protocol error, or a terminal MSG_RESULT.
func (s *Server) handleConn(sl *slot) {
	defer func() {
		sl.conn.Close()
		s.removeSlot(sl)
	}()

	tag, err := protocol.ReadTag(sl.conn)
	if err != nil || tag != protocol.MsgRegister {
		s.Logger.WithError(err).WithField("error_kind", "protocol").Warn("controllersrv: expected MSG_REGISTER, dropping peer")
		return
	}
	if err := sl.sendJob(s.Job); err != nil {
		s.Logger.WithError(err).WithField("error_kind", "transport").Warn("controllersrv: failed to send job")
		return
	}
	sl.registered.Store(true)
	s.Dispatcher.WorkerRegistered()
	s.Logger.WithField("worker_addr", sl.conn.RemoteAddr().String()).Info("controllersrv: worker registered")

	for {
		tag, err := protocol.ReadTag(sl.conn)
		if err != nil {
			s.Logger.WithError(err).Debug("controllersrv: worker connection closed")
			return
		}

		switch tag {
		case protocol.MsgRequestChunk:
			if _, found := s.Dispatcher.Found(); found {
				_ = sl.sendStop()
				continue
			}
			chunk, ok := s.Dispatcher.NextChunk()
			if !ok {
				_ = sl.sendStop()
				continue
			}
			if err := sl.sendChunkAssign(protocol.ChunkAssign{Start: chunk.Start, Count: chunk.Count}); err != nil {
				s.Logger.WithError(err).WithField("error_kind", "transport").Warn("controllersrv: failed to send chunk assign")
				return
			}
			if s.Metrics != nil {
				s.Metrics.RecordChunkAssigned()
			}
			s.Logger.WithFields(logrus.Fields{
				"worker_addr": sl.conn.RemoteAddr().String(),
				"chunk_start": chunk.Start,
				"chunk_count": chunk.Count,
			}).Debug("controllersrv: chunk assigned")

		case protocol.MsgHeartbeatResp:
			hb, err := protocol.ReadHeartbeatResponse(sl.conn)
			if err != nil {
				s.Logger.WithError(err).WithField("error_kind", "protocol").Warn("controllersrv: short read on heartbeat response")
				return
			}
			s.Dispatcher.AddCandidatesTested(hb.DeltaTested)
			if s.Metrics != nil {
				s.Metrics.RecordCandidatesTested(hb.DeltaTested)
			}
			s.Logger.WithFields(logrus.Fields{
				"worker_addr":    sl.conn.RemoteAddr().String(),
				"delta_tested":   hb.DeltaTested,
				"total_tested":   hb.TotalTested,
				"threads_active": hb.ThreadsActive,
				"current_rate":   fmt.Sprintf("%.0f/s", hb.CurrentRate),
			}).Info("controllersrv: heartbeat")

		case protocol.MsgResult:
			res, err := protocol.ReadResult(sl.conn)
			if err != nil {
				s.Logger.WithError(err).WithField("error_kind", "protocol").Warn("controllersrv: short read on result")
				return
			}
			if res.Found {
				if first := s.Dispatcher.ReportResult(res); first {
					s.Logger.WithField("password", res.Password).Info("controllersrv: password found")
					s.broadcastStopExcept(sl)
					s.finish()
				}
			}
			return // MSG_RESULT is terminal for this worker.

		default:
			s.Logger.WithFields(logrus.Fields{
				"msg_tag":    tag.String(),
				"error_kind": "protocol",
			}).Warn("controllersrv: unexpected tag, dropping peer")
			return
		}
	}
}

// broadcastStopExcept sends MSG_STOP to every registered slot other
// than the winner.
func (s *Server) broadcastStopExcept(winner *slot) {
	for _, sl := range s.registeredSlots() {
		if sl == winner {
			continue
		}
		if err := sl.sendStop(); err != nil {
			s.Logger.WithError(err).Debug("controllersrv: stop broadcast failed")
		}
	}
}
