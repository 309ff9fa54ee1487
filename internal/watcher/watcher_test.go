package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubOrganizer records ingestion calls and signals each one on notify.
type stubOrganizer struct {
	mu       sync.Mutex
	calls    []string
	failures int // fail this many initial calls
	notify   chan string
}

func newStubOrganizer(failures int) *stubOrganizer {
	return &stubOrganizer{
		failures: failures,
		notify:   make(chan string, 16),
	}
}

func (s *stubOrganizer) organize(_ context.Context, path string) error {
	s.mu.Lock()
	s.calls = append(s.calls, path)
	fail := len(s.calls) <= s.failures
	s.mu.Unlock()

	s.notify <- path
	if fail {
		return errors.New("ingest failed")
	}
	return nil
}

func (s *stubOrganizer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func startWatcher(t *testing.T, dir string, settle time.Duration, stub *stubOrganizer) *Watcher {
	t.Helper()

	w, err := New(dir, settle, stub.organize, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	require.NoError(t, w.Start(ctx))
	t.Cleanup(w.Stop)
	return w
}

func writeSession(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("# Session transcript\n"), 0o644))
	return path
}

func TestNew_RequiresOrganizeFunc(t *testing.T) {
	_, err := New(t.TempDir(), 0, nil, zap.NewNop())
	assert.Error(t, err)
}

func TestWatcher_IngestsNewSessionFile(t *testing.T) {
	dir := t.TempDir()
	stub := newStubOrganizer(0)
	startWatcher(t, dir, 50*time.Millisecond, stub)

	path := writeSession(t, dir, "copilot-session-2025.md")

	select {
	case got := <-stub.notify:
		assert.Equal(t, path, got)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for ingestion")
	}
}

func TestWatcher_SettleDelayCoalescesEvents(t *testing.T) {
	dir := t.TempDir()
	stub := newStubOrganizer(0)
	startWatcher(t, dir, 100*time.Millisecond, stub)

	// Several writes in quick succession look like an export still in
	// progress; only the final quiet period triggers ingestion.
	path := filepath.Join(dir, "copilot-session-burst.md")
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(path, []byte("chunk\n"), 0o644))
		time.Sleep(20 * time.Millisecond)
	}

	select {
	case <-stub.notify:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for ingestion")
	}

	select {
	case got := <-stub.notify:
		t.Fatalf("file ingested twice: %s", got)
	case <-time.After(300 * time.Millisecond):
		// Expected - one ingestion for the whole burst
	}
	assert.Equal(t, 1, stub.callCount())
}

func TestWatcher_IgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	stub := newStubOrganizer(0)
	startWatcher(t, dir, 50*time.Millisecond, stub)

	writeSession(t, dir, "notes.md")
	writeSession(t, dir, "copilot-session-export.txt")

	select {
	case got := <-stub.notify:
		t.Fatalf("unrelated file ingested: %s", got)
	case <-time.After(300 * time.Millisecond):
		// Expected - neither name matches the session pattern
	}
}

func TestWatcher_IngestsExistingFilesOnStart(t *testing.T) {
	dir := t.TempDir()
	path := writeSession(t, dir, "copilot-session-old.md")

	stub := newStubOrganizer(0)
	startWatcher(t, dir, time.Hour, stub)

	// The startup scan runs inside Start, without the settle delay.
	select {
	case got := <-stub.notify:
		assert.Equal(t, path, got)
	case <-time.After(time.Second):
		t.Fatal("existing file was not ingested")
	}
}

func TestWatcher_SkipsAlreadyIngestedFile(t *testing.T) {
	dir := t.TempDir()
	stub := newStubOrganizer(0)
	startWatcher(t, dir, 50*time.Millisecond, stub)

	path := writeSession(t, dir, "copilot-session-once.md")

	select {
	case <-stub.notify:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for ingestion")
	}

	// A later touch of a processed file must not re-ingest it.
	require.NoError(t, os.WriteFile(path, []byte("appended\n"), 0o644))

	select {
	case got := <-stub.notify:
		t.Fatalf("file ingested twice: %s", got)
	case <-time.After(300 * time.Millisecond):
		// Expected
	}
}

func TestWatcher_RetriesAfterFailedIngestion(t *testing.T) {
	dir := t.TempDir()
	stub := newStubOrganizer(1)
	startWatcher(t, dir, 50*time.Millisecond, stub)

	path := writeSession(t, dir, "copilot-session-retry.md")

	select {
	case <-stub.notify:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for first attempt")
	}

	// The failed file stayed unmarked, so the next event retries it.
	require.NoError(t, os.WriteFile(path, []byte("complete\n"), 0o644))

	select {
	case got := <-stub.notify:
		assert.Equal(t, path, got)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for retry")
	}
	assert.Equal(t, 2, stub.callCount())
}

func TestWatcher_StopCancelsPendingIngestion(t *testing.T) {
	dir := t.TempDir()
	stub := newStubOrganizer(0)

	w, err := New(dir, 200*time.Millisecond, stub.organize, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))

	writeSession(t, dir, "copilot-session-late.md")
	time.Sleep(50 * time.Millisecond)

	w.Stop()
	w.Stop() // reentrant

	select {
	case got := <-stub.notify:
		t.Fatalf("ingested after stop: %s", got)
	case <-time.After(400 * time.Millisecond):
		// Expected - settle timer was cancelled
	}
}

func TestIsSessionFile(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"/tmp/sessions/copilot-session-2025-01-14.md", true},
		{"copilot-session-x.md", true},
		{"/tmp/sessions/copilot-session-notes.txt", false},
		{"/tmp/sessions/session.md", false},
		{"/tmp/sessions/README.md", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, isSessionFile(tc.path), tc.path)
	}
}
