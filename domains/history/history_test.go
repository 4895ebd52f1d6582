package history

import (
	"context"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gomantics/gitstore/domains/repos"
	"github.com/gomantics/gitstore/domains/storage"
	"github.com/gomantics/gitstore/pkg/apperr"
	"go.uber.org/zap"
)

var testAuthor = repos.Author{Name: "Test Author", Email: "test@example.com"}

func newFixture(t *testing.T) (storage.Store, *repos.Handle) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	manager := repos.NewManager(zap.NewNop(), repos.Options{DefaultAuthor: testAuthor})
	h, err := manager.Get(context.Background(), filepath.Join(t.TempDir(), "repo"), repos.ModeWorktree)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	return storage.New(h, testAuthor, zap.NewNop()), h
}

func mustSave(t *testing.T, st storage.Store, path, content, message string) string {
	t.Helper()
	commit, err := st.SaveFile(context.Background(), path, strings.NewReader(content), message, repos.Author{})
	if err != nil {
		t.Fatalf("SaveFile: %v", err)
	}
	return commit
}

func TestFileHistory(t *testing.T) {
	st, h := newFixture(t)
	reader := NewReader(zap.NewNop())
	ctx := context.Background()

	first := mustSave(t, st, "f.txt", "v1", "First version")
	second := mustSave(t, st, "f.txt", "v2", "Second version")
	mustSave(t, st, "other.txt", "x", "Unrelated change")

	hist, err := reader.FileHistory(ctx, h, "f.txt", 10)
	if err != nil {
		t.Fatalf("FileHistory: %v", err)
	}
	if len(hist.Commits) != 2 {
		t.Fatalf("got %d commits, want 2", len(hist.Commits))
	}
	// Newest first.
	if hist.Commits[0].Hash != second || hist.Commits[1].Hash != first {
		t.Fatalf("order = %v, %v", hist.Commits[0].Hash, hist.Commits[1].Hash)
	}
	if hist.CurrentVersion != second {
		t.Fatalf("CurrentVersion = %q", hist.CurrentVersion)
	}
	if hist.Total != 2 {
		t.Fatalf("Total = %d", hist.Total)
	}
	if hist.Commits[0].Message != "Second version" {
		t.Fatalf("message = %q", hist.Commits[0].Message)
	}
	if hist.Commits[0].AuthorName != testAuthor.Name {
		t.Fatalf("author = %q", hist.Commits[0].AuthorName)
	}
}

func TestFileHistoryLimit(t *testing.T) {
	st, h := newFixture(t)
	reader := NewReader(zap.NewNop())

	for _, v := range []string{"1", "2", "3", "4"} {
		mustSave(t, st, "f.txt", v, "Version "+v)
	}

	hist, err := reader.FileHistory(context.Background(), h, "f.txt", 2)
	if err != nil {
		t.Fatalf("FileHistory: %v", err)
	}
	if len(hist.Commits) != 2 {
		t.Fatalf("got %d commits, want 2", len(hist.Commits))
	}
	if hist.Total != 4 {
		t.Fatalf("Total = %d, want 4", hist.Total)
	}
}

func TestFileHistoryUntouchedPath(t *testing.T) {
	_, h := newFixture(t)
	reader := NewReader(zap.NewNop())

	hist, err := reader.FileHistory(context.Background(), h, "never-written.txt", 10)
	if err != nil {
		t.Fatalf("FileHistory: %v", err)
	}
	if len(hist.Commits) != 0 {
		t.Fatalf("got %d commits, want 0", len(hist.Commits))
	}
}

func TestMultilineCommitMessages(t *testing.T) {
	st, h := newFixture(t)
	reader := NewReader(zap.NewNop())

	message := "Subject line\n\nBody with: colons, \"quotes\" and\nmore lines"
	mustSave(t, st, "f.txt", "v1", message)

	hist, err := reader.FileHistory(context.Background(), h, "f.txt", 10)
	if err != nil {
		t.Fatalf("FileHistory: %v", err)
	}
	if len(hist.Commits) != 1 {
		t.Fatalf("got %d commits", len(hist.Commits))
	}
	if hist.Commits[0].Message != message {
		t.Fatalf("message = %q, want %q", hist.Commits[0].Message, message)
	}
}

func TestFileDiff(t *testing.T) {
	st, h := newFixture(t)
	reader := NewReader(zap.NewNop())
	ctx := context.Background()

	first := mustSave(t, st, "f.txt", "old line\n", "First")
	second := mustSave(t, st, "f.txt", "new line\n", "Second")

	diff, err := reader.FileDiff(ctx, h, "f.txt", second, first)
	if err != nil {
		t.Fatalf("FileDiff: %v", err)
	}
	if !strings.Contains(diff, "-old line") || !strings.Contains(diff, "+new line") {
		t.Fatalf("diff = %q", diff)
	}

	// Without an explicit parent the commit's own patch is rendered.
	diff, err = reader.FileDiff(ctx, h, "f.txt", second, "")
	if err != nil {
		t.Fatalf("FileDiff: %v", err)
	}
	if !strings.Contains(diff, "+new line") {
		t.Fatalf("diff = %q", diff)
	}

	bogus := strings.Repeat("0", 40)
	if _, err := reader.FileDiff(ctx, h, "f.txt", bogus, ""); !apperr.Is(err, apperr.NotFound) {
		t.Fatalf("bogus commit kind = %v", apperr.KindOf(err))
	}
}

func TestCommitDetails(t *testing.T) {
	st, h := newFixture(t)
	reader := NewReader(zap.NewNop())
	ctx := context.Background()

	first := mustSave(t, st, "f.txt", "v1", "First")
	second := mustSave(t, st, "f.txt", "v2", "Second")

	record, err := reader.CommitDetails(ctx, h, second)
	if err != nil {
		t.Fatalf("CommitDetails: %v", err)
	}
	if record.Hash != second || record.Message != "Second" {
		t.Fatalf("record = %+v", record)
	}
	if len(record.Parents) != 1 || record.Parents[0] != first {
		t.Fatalf("parents = %v, want [%s]", record.Parents, first)
	}

	bogus := strings.Repeat("0", 40)
	if _, err := reader.CommitDetails(ctx, h, bogus); !apperr.Is(err, apperr.NotFound) {
		t.Fatalf("bogus hash kind = %v", apperr.KindOf(err))
	}
}
