package uploads

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gomantics/gitstore/domains/repos"
	"github.com/gomantics/gitstore/pkg/apperr"
	"go.uber.org/zap"
)

type fakeSaver struct {
	path    string
	message string
	author  repos.Author
	content []byte
}

func (f *fakeSaver) SaveFile(ctx context.Context, path string, content io.Reader, message string, author repos.Author) (string, error) {
	data, err := io.ReadAll(content)
	if err != nil {
		return "", err
	}
	f.path, f.message, f.author, f.content = path, message, author, data
	return "deadbeefdeadbeefdeadbeefdeadbeefdeadbeef", nil
}

func newTestManager(t *testing.T, opts Options) *Manager {
	t.Helper()
	if opts.Dir == "" {
		opts.Dir = t.TempDir()
	}
	return NewManager(zap.NewNop(), opts)
}

func TestInitIsDeterministic(t *testing.T) {
	m := newTestManager(t, Options{ChunkSize: 4})
	ctx := context.Background()

	params := InitParams{RepoKey: "worktree:/tmp/r", TargetPath: "docs/a.bin", Size: 10, SourceModified: 1700000000}
	first, err := m.Init(ctx, params)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	second, err := m.Init(ctx, params)
	if err != nil {
		t.Fatalf("Init again: %v", err)
	}
	if first.UploadID != second.UploadID {
		t.Fatalf("ids differ: %q vs %q", first.UploadID, second.UploadID)
	}
	if first.TotalChunks != 3 {
		t.Fatalf("TotalChunks = %d, want 3", first.TotalChunks)
	}

	// Different facts, different session.
	params.Size = 11
	third, err := m.Init(ctx, params)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if third.UploadID == first.UploadID {
		t.Fatal("changed size should produce a new id")
	}
}

func TestInitValidation(t *testing.T) {
	m := newTestManager(t, Options{
		ChunkSize:         4,
		MaxFileSize:       100,
		AllowedExtensions: []string{".txt", ".bin"},
	})
	ctx := context.Background()

	tests := []struct {
		name   string
		params InitParams
		kind   apperr.Kind
	}{
		{name: "zero size", params: InitParams{TargetPath: "a.txt", Size: 0}, kind: apperr.Validation},
		{name: "too large", params: InitParams{TargetPath: "a.txt", Size: 101}, kind: apperr.PayloadTooLarge},
		{name: "bad extension", params: InitParams{TargetPath: "a.exe", Size: 10}, kind: apperr.UnsupportedType},
		{name: "escaping path", params: InitParams{TargetPath: "../a.txt", Size: 10}, kind: apperr.Validation},
		{name: "empty path", params: InitParams{TargetPath: "", Size: 10}, kind: apperr.Validation},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := m.Init(ctx, tc.params)
			if !apperr.Is(err, tc.kind) {
				t.Fatalf("kind = %v (err %v), want %v", apperr.KindOf(err), err, tc.kind)
			}
		})
	}
}

func TestUploadRoundTrip(t *testing.T) {
	m := newTestManager(t, Options{ChunkSize: 4})
	ctx := context.Background()
	payload := []byte("abcdefghij")

	res, err := m.Init(ctx, InitParams{RepoKey: "k", TargetPath: "big/file.bin", Size: int64(len(payload))})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if res.TotalChunks != 3 {
		t.Fatalf("TotalChunks = %d, want 3", res.TotalChunks)
	}

	// Deliver chunks out of order; assembly must still be by index.
	for _, idx := range []int{2, 0, 1} {
		start := idx * 4
		end := min(start+4, len(payload))
		if err := m.PutChunk(ctx, res.UploadID, idx, bytes.NewReader(payload[start:end])); err != nil {
			t.Fatalf("PutChunk(%d): %v", idx, err)
		}
	}

	saver := &fakeSaver{}
	author := repos.Author{Name: "Ann", Email: "ann@example.com"}
	commit, err := m.Complete(ctx, saver, "k", res.UploadID, "", author)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if commit == "" {
		t.Fatal("empty commit hash")
	}
	if !bytes.Equal(saver.content, payload) {
		t.Fatalf("assembled %q, want %q", saver.content, payload)
	}
	if saver.path != "big/file.bin" {
		t.Fatalf("saved to %q", saver.path)
	}
	if saver.message != "Upload big/file.bin" {
		t.Fatalf("default message = %q", saver.message)
	}

	// The session is gone once committed.
	if _, err := m.Complete(ctx, saver, "k", res.UploadID, "", author); !apperr.Is(err, apperr.NotFound) {
		t.Fatalf("second Complete kind = %v, want NotFound", apperr.KindOf(err))
	}
}

func TestResumeReportsReceivedChunks(t *testing.T) {
	m := newTestManager(t, Options{ChunkSize: 4})
	ctx := context.Background()

	params := InitParams{RepoKey: "k", TargetPath: "f.bin", Size: 10}
	res, err := m.Init(ctx, params)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := m.PutChunk(ctx, res.UploadID, 1, strings.NewReader("efgh")); err != nil {
		t.Fatalf("PutChunk: %v", err)
	}

	resumed, err := m.Init(ctx, params)
	if err != nil {
		t.Fatalf("resume Init: %v", err)
	}
	if len(resumed.Received) != 1 || resumed.Received[0] != 1 {
		t.Fatalf("Received = %v, want [1]", resumed.Received)
	}
}

func TestResumeAndFinishAcrossSessions(t *testing.T) {
	m := newTestManager(t, Options{ChunkSize: 2})
	ctx := context.Background()
	payload := []byte("aabbccddee") // 5 chunks of 2

	params := InitParams{RepoKey: "k", TargetPath: "f.bin", Size: int64(len(payload))}
	res, err := m.Init(ctx, params)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	for _, idx := range []int{0, 2, 4} {
		if err := m.PutChunk(ctx, res.UploadID, idx, bytes.NewReader(payload[idx*2:idx*2+2])); err != nil {
			t.Fatalf("PutChunk(%d): %v", idx, err)
		}
	}

	resumed, err := m.Init(ctx, params)
	if err != nil {
		t.Fatalf("resume Init: %v", err)
	}
	if got := fmt.Sprint(resumed.Received); got != "[0 2 4]" {
		t.Fatalf("Received = %v, want [0 2 4]", resumed.Received)
	}

	for _, idx := range []int{1, 3} {
		if err := m.PutChunk(ctx, resumed.UploadID, idx, bytes.NewReader(payload[idx*2:idx*2+2])); err != nil {
			t.Fatalf("PutChunk(%d): %v", idx, err)
		}
	}

	saver := &fakeSaver{}
	if _, err := m.Complete(ctx, saver, "k", resumed.UploadID, "", repos.Author{}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !bytes.Equal(saver.content, payload) {
		t.Fatalf("assembled %q, want %q", saver.content, payload)
	}
}

func TestConcurrentDuplicateChunkWrites(t *testing.T) {
	m := newTestManager(t, Options{ChunkSize: 4})
	ctx := context.Background()

	res, err := m.Init(ctx, InitParams{RepoKey: "k", TargetPath: "f.bin", Size: 8})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := m.PutChunk(ctx, res.UploadID, 0, strings.NewReader("abcd")); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent PutChunk: %v", err)
	}

	if err := m.PutChunk(ctx, res.UploadID, 1, strings.NewReader("efgh")); err != nil {
		t.Fatalf("PutChunk: %v", err)
	}
	saver := &fakeSaver{}
	if _, err := m.Complete(ctx, saver, "k", res.UploadID, "", repos.Author{}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if string(saver.content) != "abcdefgh" {
		t.Fatalf("assembled %q", saver.content)
	}
}

func TestCompleteMissingChunks(t *testing.T) {
	m := newTestManager(t, Options{ChunkSize: 4})
	ctx := context.Background()

	res, err := m.Init(ctx, InitParams{RepoKey: "k", TargetPath: "f.bin", Size: 10})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := m.PutChunk(ctx, res.UploadID, 0, strings.NewReader("abcd")); err != nil {
		t.Fatalf("PutChunk: %v", err)
	}

	_, err = m.Complete(ctx, &fakeSaver{}, "k", res.UploadID, "", repos.Author{})
	if !apperr.Is(err, apperr.Conflict) {
		t.Fatalf("kind = %v, want Conflict", apperr.KindOf(err))
	}
}

func TestCompleteRejectsShortPayload(t *testing.T) {
	m := newTestManager(t, Options{ChunkSize: 4})
	ctx := context.Background()

	res, err := m.Init(ctx, InitParams{RepoKey: "k", TargetPath: "f.bin", Size: 8})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	// Every index is present but chunk 0 is short, so the assembly
	// would be 6 bytes against a declared 8.
	if err := m.PutChunk(ctx, res.UploadID, 0, strings.NewReader("ab")); err != nil {
		t.Fatalf("PutChunk: %v", err)
	}
	if err := m.PutChunk(ctx, res.UploadID, 1, strings.NewReader("cdef")); err != nil {
		t.Fatalf("PutChunk: %v", err)
	}

	saver := &fakeSaver{}
	_, err = m.Complete(ctx, saver, "k", res.UploadID, "", repos.Author{})
	if !apperr.Is(err, apperr.Conflict) {
		t.Fatalf("kind = %v, want Conflict", apperr.KindOf(err))
	}
	if saver.path != "" {
		t.Fatalf("short payload reached the store as %q", saver.path)
	}

	// The session survives so the client can re-send the bad chunk.
	if err := m.PutChunk(ctx, res.UploadID, 0, strings.NewReader("xyab")); err != nil {
		t.Fatalf("PutChunk after rejection: %v", err)
	}
	if _, err := m.Complete(ctx, saver, "k", res.UploadID, "", repos.Author{}); err != nil {
		t.Fatalf("Complete after repair: %v", err)
	}
	if string(saver.content) != "xyabcdef" {
		t.Fatalf("assembled %q", saver.content)
	}
}

func TestCompleteWrongRepo(t *testing.T) {
	m := newTestManager(t, Options{ChunkSize: 4})
	ctx := context.Background()

	res, err := m.Init(ctx, InitParams{RepoKey: "repo-a", TargetPath: "f.bin", Size: 4})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := m.PutChunk(ctx, res.UploadID, 0, strings.NewReader("abcd")); err != nil {
		t.Fatalf("PutChunk: %v", err)
	}

	_, err = m.Complete(ctx, &fakeSaver{}, "repo-b", res.UploadID, "", repos.Author{})
	if !apperr.Is(err, apperr.NotFound) {
		t.Fatalf("kind = %v, want NotFound", apperr.KindOf(err))
	}
}

func TestPutChunkLimits(t *testing.T) {
	m := newTestManager(t, Options{ChunkSize: 4})
	ctx := context.Background()

	res, err := m.Init(ctx, InitParams{RepoKey: "k", TargetPath: "f.bin", Size: 8})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	if err := m.PutChunk(ctx, res.UploadID, 0, strings.NewReader("abcde")); !apperr.Is(err, apperr.PayloadTooLarge) {
		t.Fatalf("oversize kind = %v, want PayloadTooLarge", apperr.KindOf(err))
	}
	if err := m.PutChunk(ctx, res.UploadID, 0, strings.NewReader("")); !apperr.Is(err, apperr.Validation) {
		t.Fatalf("empty kind = %v, want Validation", apperr.KindOf(err))
	}
	if err := m.PutChunk(ctx, res.UploadID, 5, strings.NewReader("abcd")); !apperr.Is(err, apperr.Validation) {
		t.Fatalf("out-of-range kind = %v, want Validation", apperr.KindOf(err))
	}
	if err := m.PutChunk(ctx, "0000000000000000000000000000000000000000", 0, strings.NewReader("abcd")); !apperr.Is(err, apperr.NotFound) {
		t.Fatalf("unknown id kind = %v, want NotFound", apperr.KindOf(err))
	}
}

func TestExpiredSessionsAreSwept(t *testing.T) {
	dir := t.TempDir()
	m := newTestManager(t, Options{Dir: dir, ChunkSize: 4, SessionTTL: time.Minute})
	ctx := context.Background()

	res, err := m.Init(ctx, InitParams{RepoKey: "k", TargetPath: "old.bin", Size: 4})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	// Age the descriptor past the TTL.
	old := time.Now().Add(-2 * time.Minute)
	desc := filepath.Join(dir, res.UploadID, descriptorName)
	if err := os.Chtimes(desc, old, old); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}

	// A later Init for another file triggers the sweep.
	if _, err := m.Init(ctx, InitParams{RepoKey: "k", TargetPath: "new.bin", Size: 4}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, res.UploadID)); !os.IsNotExist(err) {
		t.Fatal("expired session directory still present")
	}
}
