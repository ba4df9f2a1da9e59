package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func tempDir(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return dir
}

func startWatcher(t *testing.T, files []string) (*Watcher, chan string) {
	t.Helper()
	changes := make(chan string, 10)
	w, err := New(files, func(path string) { changes <- path }, nil, nil)
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		w.Close()
	})
	w.Start(ctx)
	return w, changes
}

func TestWatcherSeesWrites(t *testing.T) {
	dir := tempDir(t)
	script := filepath.Join(dir, "prog.py")
	if err := os.WriteFile(script, []byte("print(1)\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, changes := startWatcher(t, []string{script})

	if err := os.WriteFile(script, []byte("print(2)\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case path := <-changes:
		if path != script {
			t.Errorf("expected %s, got %s", script, path)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change")
	}
	if w.ChangeSeq() != 1 {
		t.Errorf("expected change seq 1, got %d", w.ChangeSeq())
	}
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := tempDir(t)
	script := filepath.Join(dir, "prog.py")
	other := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(script, []byte("print(1)\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, changes := startWatcher(t, []string{script})

	if err := os.WriteFile(other, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case path := <-changes:
		t.Errorf("expected no change, got %s", path)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherDebounces(t *testing.T) {
	dir := tempDir(t)
	script := filepath.Join(dir, "prog.py")
	if err := os.WriteFile(script, []byte(""), 0o644); err != nil {
		t.Fatal(err)
	}

	w, changes := startWatcher(t, []string{script})

	for i := range 5 {
		os.WriteFile(script, []byte{byte('0' + i)}, 0o644)
	}

	select {
	case <-changes:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change")
	}
	time.Sleep(3 * Debounce)
	if seq := w.ChangeSeq(); seq != 1 {
		t.Errorf("expected rapid writes to count once, got %d", seq)
	}
}

func TestNewErrors(t *testing.T) {
	if _, err := New(nil, nil, nil, nil); err == nil {
		t.Errorf("expected error with no files")
	}
	missing := filepath.Join(t.TempDir(), "gone", "prog.py")
	if _, err := New([]string{missing}, nil, nil, nil); err == nil {
		t.Errorf("expected error for missing directory")
	}
}
