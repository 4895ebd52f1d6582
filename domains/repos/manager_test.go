package repos

import (
	"context"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"

	"github.com/go-git/go-git/v5"
	"go.uber.org/zap"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	return NewManager(zap.NewNop(), Options{
		DefaultAuthor: Author{Name: "Test", Email: "test@example.com"},
	})
}

func TestGetInitializesOnce(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "repo")

	first, err := m.Get(ctx, path, ModeWorktree)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	second, err := m.Get(ctx, path, ModeWorktree)
	if err != nil {
		t.Fatalf("Get again: %v", err)
	}
	if first != second {
		t.Fatal("expected the same handle for the same key")
	}
}

func TestBootstrapMakesHeadResolvable(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	for _, mode := range []Mode{ModeWorktree, ModeBare} {
		t.Run(mode.String(), func(t *testing.T) {
			h, err := m.Get(ctx, filepath.Join(t.TempDir(), "repo"), mode)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			hash, err := h.Git().RunText(ctx, "rev-parse", "HEAD")
			if err != nil {
				t.Fatalf("rev-parse HEAD: %v", err)
			}
			if len(hash) != 40 {
				t.Fatalf("HEAD = %q", hash)
			}
			if h.IsBare() != (mode == ModeBare) {
				t.Fatalf("IsBare = %v for mode %v", h.IsBare(), mode)
			}
		})
	}
}

func TestGetSurvivesCanceledRequestContext(t *testing.T) {
	m := newTestManager(t)
	path := filepath.Join(t.TempDir(), "repo")

	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	h, err := m.Get(canceled, path, ModeWorktree)
	if err != nil {
		t.Fatalf("Get with canceled context: %v", err)
	}
	if _, err := h.Git().RunText(context.Background(), "rev-parse", "HEAD"); err != nil {
		t.Fatalf("rev-parse HEAD: %v", err)
	}

	if _, err := m.Get(context.Background(), path, ModeWorktree); err != nil {
		t.Fatalf("Get after canceled first call: %v", err)
	}
}

func TestGetRepairsUnbootstrappedRepository(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "repo")

	// Simulate a process that died between init and the first commit:
	// the repository exists but HEAD is unborn.
	if _, err := git.PlainInit(path, false); err != nil {
		t.Fatalf("PlainInit: %v", err)
	}

	h, err := m.Get(ctx, path, ModeWorktree)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	hash, err := h.Git().RunText(ctx, "rev-parse", "HEAD")
	if err != nil {
		t.Fatalf("rev-parse HEAD after repair: %v", err)
	}
	if len(hash) != 40 {
		t.Fatalf("HEAD = %q", hash)
	}
}

func TestConcurrentGetSharesInitialization(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "repo")

	const n = 8
	handles := make([]*Handle, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := m.Get(ctx, path, ModeWorktree)
			if err != nil {
				t.Errorf("Get: %v", err)
				return
			}
			handles[i] = h
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if handles[i] != handles[0] {
			t.Fatal("concurrent Get returned different handles")
		}
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
		ok   bool
	}{
		{"worktree", ModeWorktree, true},
		{"bare", ModeBare, true},
		{"", "", false},
		{"archive", "", false},
	}
	for _, tc := range tests {
		got, ok := ParseMode(tc.in)
		if ok != tc.ok || (ok && got != tc.want) {
			t.Fatalf("ParseMode(%q) = %v, %v", tc.in, got, ok)
		}
	}
}
