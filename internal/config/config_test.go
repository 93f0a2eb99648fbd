package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func discardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)
	return l
}

func TestStartLoadsInitialOverlaySynchronously(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "overlay.yaml")
	if err := os.WriteFile(path, []byte("heartbeat_seconds: 10\nchunk_size: 50000\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	applied := make(chan Overlay, 1)
	w := NewWatcher(Overlay{}, discardLogger(), func(o Overlay) { applied <- o })

	stop := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- w.Start(path, stop) }()

	var got Overlay
	select {
	case got = <-applied:
	case <-time.After(2 * time.Second):
		t.Fatalf("onChange was never invoked with the initial overlay")
	}

	if got.HeartbeatSeconds != 10 || got.ChunkSize != 50000 {
		t.Errorf("initial overlay = %+v, want {10 50000}", got)
	}
	if w.Current() != got {
		t.Errorf("Current() = %+v, want %+v", w.Current(), got)
	}

	close(stop)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Start did not return after stop was closed")
	}
}

func TestStartFailsFastOnMalformedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("not: [valid yaml"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	w := NewWatcher(Overlay{}, discardLogger(), nil)
	stop := make(chan struct{})
	defer close(stop)

	if err := w.Start(path, stop); err == nil {
		t.Fatalf("expected Start to fail on malformed YAML")
	}
}

func TestReloadAppliesFileChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "overlay.yaml")
	if err := os.WriteFile(path, []byte("heartbeat_seconds: 5\nchunk_size: 1000\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	applied := make(chan Overlay, 4)
	w := NewWatcher(Overlay{}, discardLogger(), func(o Overlay) { applied <- o })

	stop := make(chan struct{})
	defer close(stop)
	go w.Start(path, stop)

	select {
	case o := <-applied:
		if o.HeartbeatSeconds != 5 {
			t.Fatalf("initial overlay = %+v, want heartbeat_seconds=5", o)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("initial overlay never applied")
	}

	if err := os.WriteFile(path, []byte("heartbeat_seconds: 20\nchunk_size: 2000\n"), 0o644); err != nil {
		t.Fatalf("rewrite fixture: %v", err)
	}

	select {
	case o := <-applied:
		if o.HeartbeatSeconds != 20 || o.ChunkSize != 2000 {
			t.Fatalf("reloaded overlay = %+v, want {20 2000}", o)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("reload was never observed")
	}
}
