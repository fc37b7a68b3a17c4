package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/csvscope/internal/testutil"
)

func startWatcher(t *testing.T, path string) (*Watcher, <-chan string) {
	t.Helper()
	changes := make(chan string, 8)
	w, err := New(20*time.Millisecond, func(p string) { changes <- p }, testutil.NewTestLogger(t))
	require.NoError(t, err)
	require.NoError(t, w.Watch(path))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		_ = w.Close()
	})
	return w, changes
}

func TestWatcher_ReportsWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.csv")
	require.NoError(t, os.WriteFile(path, []byte("a\n1\n"), 0o644))

	_, changes := startWatcher(t, path)

	// Several quick writes collapse into one notification.
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(path, []byte("a\n2\n"), 0o644))
	}

	select {
	case got := <-changes:
		want, _ := filepath.Abs(path)
		assert.Equal(t, want, got)
	case <-time.After(3 * time.Second):
		t.Fatal("no change reported")
	}

	select {
	case <-changes:
		t.Fatal("writes were not debounced")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.csv")
	require.NoError(t, os.WriteFile(path, []byte("a\n"), 0o644))

	_, changes := startWatcher(t, path)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.csv"), []byte("b\n"), 0o644))

	select {
	case got := <-changes:
		t.Fatalf("unexpected change for %s", got)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_Retarget(t *testing.T) {
	first := filepath.Join(t.TempDir(), "first.csv")
	second := filepath.Join(t.TempDir(), "second.csv")
	require.NoError(t, os.WriteFile(first, []byte("a\n"), 0o644))
	require.NoError(t, os.WriteFile(second, []byte("a\n"), 0o644))

	w, err := New(0, func(string) {}, nil)
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	require.NoError(t, w.Watch(first))
	require.NoError(t, w.Watch(second))
	want, _ := filepath.Abs(second)
	assert.Equal(t, want, w.Target())
	assert.Error(t, w.Watch(filepath.Join(t.TempDir(), "missing", "x.csv")))
}

func TestWatcher_Unwatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.csv")
	require.NoError(t, os.WriteFile(path, []byte("a\n"), 0o644))

	w, changes := startWatcher(t, path)
	w.Unwatch()
	assert.Empty(t, w.Target())

	require.NoError(t, os.WriteFile(path, []byte("a\n2\n"), 0o644))
	select {
	case got := <-changes:
		t.Fatalf("unexpected change for %s", got)
	case <-time.After(300 * time.Millisecond):
	}

	require.NoError(t, w.Watch(path))
	require.NoError(t, os.WriteFile(path, []byte("a\n3\n"), 0o644))
	select {
	case <-changes:
	case <-time.After(3 * time.Second):
		t.Fatal("no change reported after watching again")
	}
}
