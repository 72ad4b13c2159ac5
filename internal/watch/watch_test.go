package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func startWatcher(t *testing.T, files ...string) (*Watcher, chan struct{}) {
	t.Helper()
	fired := make(chan struct{}, 16)
	w, err := New(func(context.Context) error {
		fired <- struct{}{}
		return nil
	}, 20*time.Millisecond, t.Logf)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })
	for _, f := range files {
		if err := w.Watch(f); err != nil {
			t.Fatalf("watch %s: %v", f, err)
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = w.Run(ctx) }()
	return w, fired
}

func TestWatcher_FiresOnWrite(t *testing.T) {
	dir := t.TempDir()
	style := filepath.Join(dir, "style.yaml")
	if err := os.WriteFile(style, []byte("text: a\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, fired := startWatcher(t, style)

	if err := os.WriteFile(style, []byte("text: b\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatalf("handler not called after write")
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	style := filepath.Join(dir, "style.yaml")
	if err := os.WriteFile(style, []byte("text: a\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, fired := startWatcher(t, style)

	if err := os.WriteFile(filepath.Join(dir, "unrelated.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case <-fired:
		t.Fatalf("handler called for unrelated file")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_DebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	style := filepath.Join(dir, "style.yaml")
	if err := os.WriteFile(style, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	var calls atomic.Int32
	w, err := New(func(context.Context) error {
		calls.Add(1)
		return nil
	}, 150*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer w.Close()
	if err := w.Watch(style); err != nil {
		t.Fatalf("watch: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	for i := 0; i < 5; i++ {
		if err := os.WriteFile(style, []byte{byte('a' + i)}, 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	deadline := time.Now().Add(3 * time.Second)
	for calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	time.Sleep(300 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Fatalf("handler called %d times, want 1", n)
	}
}

func TestWatch_AddTwice(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "bg.png")
	w, _ := startWatcher(t)
	if err := w.Watch(f); err != nil {
		t.Fatalf("watch: %v", err)
	}
	if err := w.Watch(f); err != nil {
		t.Fatalf("watch again: %v", err)
	}
	if len(w.dirs) != 1 || len(w.files) != 1 {
		t.Fatalf("dirs=%d files=%d", len(w.dirs), len(w.files))
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	w, err := New(func(context.Context) error { return nil }, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("err = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Run did not return")
	}
}
