package dispatch

import (
	"testing"

	"github.com/barrosov/crackfleet/internal/enumerate"
	"github.com/barrosov/crackfleet/internal/protocol"
)

func TestChunkCoverageAndMonotonicity(t *testing.T) {
	d := New(10000)
	var prevStart uint64
	first := true
	for {
		c, ok := d.NextChunk()
		if !ok {
			break
		}
		if !first && c.Start != prevStart {
			t.Fatalf("chunk start %d is not contiguous with previous bound %d", c.Start, prevStart)
		}
		first = false
		prevStart = c.Start + c.Count
	}
	if d.Cursor() != enumerate.Total {
		t.Errorf("cursor = %d, want %d", d.Cursor(), enumerate.Total)
	}

	chunks := d.GrantedChunks()
	var covered uint64
	for i, c := range chunks {
		if c.Start != covered {
			t.Fatalf("chunk %d starts at %d, want %d (disjoint coverage broken)", i, c.Start, covered)
		}
		covered += c.Count
	}
	if covered != enumerate.Total {
		t.Errorf("total coverage = %d, want %d", covered, enumerate.Total)
	}
}

func TestAtMostOneFind(t *testing.T) {
	d := New(1000)
	first := d.ReportResult(protocol.CrackResult{Found: true, Password: "A"})
	if !first {
		t.Fatalf("first found result should latch")
	}
	second := d.ReportResult(protocol.CrackResult{Found: true, Password: "B"})
	if second {
		t.Fatalf("second found result must not re-latch")
	}
	res, ok := d.Found()
	if !ok || res.Password != "A" {
		t.Errorf("latched result = %+v, want password A", res)
	}
}

func TestStopFinalityAfterFound(t *testing.T) {
	d := New(1000)
	d.ReportResult(protocol.CrackResult{Found: true, Password: "A"})

	for i := 0; i < 5; i++ {
		if _, ok := d.NextChunk(); ok {
			t.Fatalf("NextChunk granted a chunk after a find was latched")
		}
	}
}

func TestStopFinalityAfterExhaustion(t *testing.T) {
	d := New(enumerate.Total) // one giant chunk drains the whole space
	c, ok := d.NextChunk()
	if !ok || c.Count != enumerate.Total {
		t.Fatalf("expected the whole space in one chunk, got %+v ok=%v", c, ok)
	}
	if !d.Exhausted() {
		t.Fatalf("dispatcher should report exhausted once cursor==Total")
	}
	if _, ok := d.NextChunk(); ok {
		t.Fatalf("NextChunk granted a chunk after exhaustion")
	}
}

func TestSetChunkSizeIgnoresZero(t *testing.T) {
	d := New(1000)
	d.SetChunkSize(0)
	c, ok := d.NextChunk()
	if !ok || c.Count != 1000 {
		t.Fatalf("NextChunk = %+v ok=%v after SetChunkSize(0), want the previous size 1000", c, ok)
	}
}

func TestNotFoundResultDoesNotLatch(t *testing.T) {
	d := New(1000)
	first := d.ReportResult(protocol.CrackResult{Found: false})
	if first {
		t.Fatalf("a not-found result must never latch")
	}
	if _, ok := d.Found(); ok {
		t.Fatalf("Found() reported true after only a not-found result")
	}
}
