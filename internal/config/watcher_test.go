package config

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func loadNumber(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startWatcher(t *testing.T, path string, opts ...WatcherOption[int]) *Watcher[int] {
	t.Helper()
	opts = append([]WatcherOption[int]{WithDebounce[int](50 * time.Millisecond)}, opts...)
	w := NewWatcher(path, loadNumber, newTestLogger(), opts...)
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		if err := w.Stop(); err != nil {
			t.Errorf("Stop: %v", err)
		}
	})
	return w
}

func TestWatcher_Reload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "value.txt")
	if err := os.WriteFile(path, []byte("1"), 0o644); err != nil {
		t.Fatal(err)
	}

	w := startWatcher(t, path)
	received := make(chan int, 4)
	w.OnReload(func(v int) { received <- v })

	if err := os.WriteFile(path, []byte("42"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case v := <-received:
		if v != 42 {
			t.Errorf("got %d, want 42", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for reload")
	}
}

func TestWatcher_FollowsReplacedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "value.txt")

	w := startWatcher(t, path)
	received := make(chan int, 4)
	w.OnReload(func(v int) { received <- v })

	tmp := filepath.Join(dir, "value.txt.tmp")
	if err := os.WriteFile(tmp, []byte("7"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}

	select {
	case v := <-received:
		if v != 7 {
			t.Errorf("got %d, want 7", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for reload after rename")
	}
}

func TestWatcher_IgnoresSiblings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "value.txt")

	w := startWatcher(t, path)
	var calls atomic.Int32
	w.OnReload(func(int) { calls.Add(1) })

	if err := os.WriteFile(filepath.Join(dir, "other.txt"), []byte("5"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)

	if calls.Load() != 0 {
		t.Errorf("handler called %d times for unrelated file", calls.Load())
	}
}

func TestWatcher_Debounce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "value.txt")
	if err := os.WriteFile(path, []byte("0"), 0o644); err != nil {
		t.Fatal(err)
	}

	w := startWatcher(t, path, WithDebounce[int](200*time.Millisecond))
	var calls atomic.Int32
	last := make(chan int, 10)
	w.OnReload(func(v int) {
		calls.Add(1)
		last <- v
	})

	for i := 1; i <= 5; i++ {
		if err := os.WriteFile(path, []byte(strconv.Itoa(i)), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	select {
	case v := <-last:
		if v != 5 {
			t.Errorf("got %d, want 5", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for debounced reload")
	}
	time.Sleep(300 * time.Millisecond)
	if calls.Load() != 1 {
		t.Errorf("handler called %d times, want 1", calls.Load())
	}
}

func TestWatcher_ErrorHandler(t *testing.T) {
	path := filepath.Join(t.TempDir(), "value.txt")
	errs := make(chan error, 4)

	w := startWatcher(t, path, WithErrorHandler[int](func(err error) { errs <- err }))
	var calls atomic.Int32
	w.OnReload(func(int) { calls.Add(1) })

	if err := os.WriteFile(path, []byte("not a number"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-errs:
		var numErr *strconv.NumError
		if !errors.As(err, &numErr) {
			t.Errorf("unexpected error type %T", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for error")
	}
	if calls.Load() != 0 {
		t.Error("handlers must not run on load failure")
	}
}

func TestWatcher_Unsubscribe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "value.txt")
	if err := os.WriteFile(path, []byte("1"), 0o644); err != nil {
		t.Fatal(err)
	}

	w := startWatcher(t, path)
	var removed atomic.Int32
	unsub := w.OnReload(func(int) { removed.Add(1) })
	kept := make(chan int, 4)
	w.OnReload(func(v int) { kept <- v })
	unsub()

	if err := os.WriteFile(path, []byte("2"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-kept:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for reload")
	}
	if removed.Load() != 0 {
		t.Error("unsubscribed handler was called")
	}
}
