package crackpool

import (
	"testing"

	"github.com/barrosov/crackfleet/internal/enumerate"
	"github.com/barrosov/crackfleet/internal/hostcrypt"
)

func TestCrackFindsKnownPassword(t *testing.T) {
	const pw = "A"
	idx, err := enumerate.PasswordToIndex(pw)
	if err != nil {
		t.Fatalf("PasswordToIndex: %v", err)
	}

	target, err := hostcrypt.Hash(pw, hostcrypt.MD5, "xy")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	digest, ok := hostcrypt.DigestSuffix(target)
	if !ok {
		t.Fatalf("DigestSuffix failed on %q", target)
	}

	p := New(hostcrypt.MD5, "xy", digest)
	found, password, _ := p.Crack(idx, 1, 2)
	if !found || password != pw {
		t.Fatalf("Crack(%d,1) = found=%v password=%q, want found=true password=%q", idx, found, password, pw)
	}
}

func TestCrackNotFoundExhaustsChunk(t *testing.T) {
	p := New(hostcrypt.MD5, "xy", "0000000000000000000000000000000")
	found, _, _ := p.Crack(0, 1000, 4)
	if found {
		t.Fatalf("Crack reported found against an unreachable target hash")
	}
	if p.TestedTotal() != 1000 {
		t.Errorf("TestedTotal = %d, want 1000", p.TestedTotal())
	}
	if p.ThreadsActive() != 0 {
		t.Errorf("ThreadsActive = %d after Crack returned, want 0", p.ThreadsActive())
	}
}

func TestCrackStopsOnRequestStop(t *testing.T) {
	p := New(hostcrypt.MD5, "xy", "unreachable")
	p.RequestStop()
	found, _, _ := p.Crack(0, enumerate.Total, 4)
	if found {
		t.Fatalf("Crack reported found after a stop request")
	}
	if p.TestedTotal() >= enumerate.Total {
		t.Errorf("TestedTotal = %d, expected early exit well short of %d", p.TestedTotal(), enumerate.Total)
	}
}

func TestHeartbeatAccounting(t *testing.T) {
	p := New(hostcrypt.MD5, "xy", "unreachable")
	var lastReported uint64
	var sumDeltas uint64

	for _, chunk := range [][2]uint64{{0, 500}, {500, 500}, {1000, 500}} {
		p.Crack(chunk[0], chunk[1], 3)
		total := p.TestedTotal()
		sumDeltas += total - lastReported
		lastReported = total
	}

	if sumDeltas != p.TestedTotal() {
		t.Errorf("sum of deltas = %d, want lifetime total %d", sumDeltas, p.TestedTotal())
	}
}
