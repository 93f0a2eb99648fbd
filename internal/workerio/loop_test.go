package workerio

import (
	"net"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/barrosov/crackfleet/internal/enumerate"
	"github.com/barrosov/crackfleet/internal/hostcrypt"
	"github.com/barrosov/crackfleet/internal/protocol"
)

func discardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)
	return l
}

// fakeController plays the controller side of the protocol over a
// net.Pipe: it answers MSG_REQUEST_CHUNK with one real chunk covering
// the known-password index, then MSG_STOP forever after, and records
// the worker's terminal MSG_RESULT.
func fakeController(t *testing.T, conn net.Conn, chunkStart, chunkCount uint64) chan protocol.CrackResult {
	resultCh := make(chan protocol.CrackResult, 1)
	go func() {
		grantedOnce := false
		for {
			tag, err := protocol.ReadTag(conn)
			if err != nil {
				return
			}
			switch tag {
			case protocol.MsgRequestChunk:
				if grantedOnce {
					if err := protocol.WriteTag(conn, protocol.MsgStop); err != nil {
						return
					}
					continue
				}
				grantedOnce = true
				if err := protocol.WriteChunkAssign(conn, protocol.ChunkAssign{Start: chunkStart, Count: chunkCount}); err != nil {
					return
				}
			case protocol.MsgResult:
				res, err := protocol.ReadResult(conn)
				if err != nil {
					return
				}
				resultCh <- res
				return
			default:
				return
			}
		}
	}()
	return resultCh
}

func TestRunFindsPasswordInAssignedChunk(t *testing.T) {
	const pw = "A"
	idx, err := enumerate.PasswordToIndex(pw)
	if err != nil {
		t.Fatalf("PasswordToIndex: %v", err)
	}

	hash, err := hostcrypt.Hash(pw, hostcrypt.MD5, "xy")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	digest, ok := hostcrypt.DigestSuffix(hash)
	if !ok {
		t.Fatalf("DigestSuffix(%q) failed", hash)
	}

	clientConn, controllerConn := net.Pipe()
	defer clientConn.Close()
	defer controllerConn.Close()

	resultCh := fakeController(t, controllerConn, idx, 1)

	job := protocol.CrackJob{Algorithm: uint8(hostcrypt.MD5), Salt: "xy", TargetHash: digest}
	res, err := Run(clientConn, job, 2, discardLogger())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Found || res.Password != pw {
		t.Fatalf("Run result = %+v, want found=true password=%q", res, pw)
	}

	select {
	case wire := <-resultCh:
		if !wire.Found || wire.Password != pw {
			t.Errorf("wire result = %+v, want found=true password=%q", wire, pw)
		}
	case <-time.After(2 * time.Second):
		t.Errorf("worker did not send a MSG_RESULT frame")
	}
}

func TestRunReportsNotFoundOnImmediateStop(t *testing.T) {
	clientConn, controllerConn := net.Pipe()
	defer clientConn.Close()
	defer controllerConn.Close()

	resultCh := make(chan protocol.CrackResult, 1)
	go func() {
		tag, err := protocol.ReadTag(controllerConn)
		if err != nil || tag != protocol.MsgRequestChunk {
			return
		}
		if err := protocol.WriteTag(controllerConn, protocol.MsgStop); err != nil {
			return
		}
		tag, err = protocol.ReadTag(controllerConn)
		if err != nil || tag != protocol.MsgResult {
			return
		}
		res, err := protocol.ReadResult(controllerConn)
		if err == nil {
			resultCh <- res
		}
	}()

	job := protocol.CrackJob{Algorithm: uint8(hostcrypt.MD5), Salt: "xy", TargetHash: "unreachable"}
	res, err := Run(clientConn, job, 2, discardLogger())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Found {
		t.Fatalf("Run reported found on an immediate stop")
	}

	select {
	case wire := <-resultCh:
		if wire.Found {
			t.Errorf("wire result reported found, want not-found")
		}
	case <-time.After(2 * time.Second):
		t.Errorf("worker did not send a terminal MSG_RESULT frame")
	}
}

// TestRunTreatsZeroCountChunkAsStop: a zero-count grant can never make
// progress, so the worker must finalize with a not-found result instead
// of re-requesting forever.
func TestRunTreatsZeroCountChunkAsStop(t *testing.T) {
	clientConn, controllerConn := net.Pipe()
	defer clientConn.Close()
	defer controllerConn.Close()

	resultCh := make(chan protocol.CrackResult, 1)
	go func() {
		tag, err := protocol.ReadTag(controllerConn)
		if err != nil || tag != protocol.MsgRequestChunk {
			return
		}
		if err := protocol.WriteChunkAssign(controllerConn, protocol.ChunkAssign{Start: 0, Count: 0}); err != nil {
			return
		}
		tag, err = protocol.ReadTag(controllerConn)
		if err != nil || tag != protocol.MsgResult {
			return
		}
		res, err := protocol.ReadResult(controllerConn)
		if err == nil {
			resultCh <- res
		}
	}()

	job := protocol.CrackJob{Algorithm: uint8(hostcrypt.MD5), Salt: "xy", TargetHash: "unreachable"}
	res, err := Run(clientConn, job, 2, discardLogger())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Found {
		t.Fatalf("Run reported found on a zero-count chunk")
	}

	select {
	case wire := <-resultCh:
		if wire.Found {
			t.Errorf("wire result reported found, want not-found")
		}
	case <-time.After(2 * time.Second):
		t.Errorf("worker did not send a terminal MSG_RESULT frame")
	}
}
