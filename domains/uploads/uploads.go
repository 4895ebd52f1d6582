// Package uploads implements the chunked resumable upload protocol.
// All session state lives on disk: a descriptor file plus one file per
// received chunk, so an interrupted process can resume any session.
package uploads

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gomantics/gitstore/domains/repos"
	"github.com/gomantics/gitstore/domains/storage"
	"github.com/gomantics/gitstore/pkg/apperr"
	"go.uber.org/zap"
)

const (
	descriptorName = "session.json"
	chunkPrefix    = "chunk_"
)

// Saver is the slice of the object store Complete delegates to.
type Saver interface {
	SaveFile(ctx context.Context, path string, content io.Reader, message string, author repos.Author) (string, error)
}

// Options configures a Manager.
type Options struct {
	Dir               string
	ChunkSize         int64
	MaxChunkSize      int64
	MaxFileSize       int64
	SessionTTL        time.Duration
	AllowedExtensions []string
}

// Manager owns the upload-session directory tree.
type Manager struct {
	l    *zap.Logger
	opts Options

	mu         sync.Mutex
	completing map[string]*sync.Mutex
}

// NewManager creates a Manager rooted at opts.Dir.
func NewManager(l *zap.Logger, opts Options) *Manager {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 5 << 20
	}
	if opts.MaxChunkSize > 0 && opts.ChunkSize > opts.MaxChunkSize {
		opts.ChunkSize = opts.MaxChunkSize
	}
	return &Manager{
		l:          l,
		opts:       opts,
		completing: make(map[string]*sync.Mutex),
	}
}

// uploadID derives the deterministic session id. Identical facts always
// map to the same session, which is what makes Init idempotent.
func uploadID(p InitParams) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%d\x00%d", p.RepoKey, p.TargetPath, p.Size, p.SourceModified)
	return hex.EncodeToString(h.Sum(nil))[:40]
}

func (m *Manager) sessionDir(id string) string {
	return filepath.Join(m.opts.Dir, id)
}

// Init creates or resumes a session. A prior session under the same id
// that disagrees on target path, size or chunk size is discarded.
func (m *Manager) Init(ctx context.Context, p InitParams) (*InitResult, error) {
	m.sweepExpired()

	target, err := storage.NormalizeFilePath(p.TargetPath)
	if err != nil {
		return nil, err
	}
	p.TargetPath = target

	if p.Size <= 0 {
		return nil, apperr.New(apperr.Validation, "declared size must be positive")
	}
	if m.opts.MaxFileSize > 0 && p.Size > m.opts.MaxFileSize {
		return nil, apperr.Newf(apperr.PayloadTooLarge, "declared size %d exceeds the maximum of %d", p.Size, m.opts.MaxFileSize)
	}
	if err := m.checkExtension(target); err != nil {
		return nil, err
	}

	id := uploadID(p)
	totalChunks := int((p.Size + m.opts.ChunkSize - 1) / m.opts.ChunkSize)
	if totalChunks < 1 {
		totalChunks = 1
	}

	if existing, err := m.load(id); err == nil {
		if existing.TargetPath == p.TargetPath && existing.Size == p.Size && existing.ChunkSize == m.opts.ChunkSize {
			received, err := m.receivedIndices(id)
			if err != nil {
				return nil, err
			}
			m.touch(id)
			m.l.Info("upload session resumed",
				zap.String("upload_id", id),
				zap.Int("received", len(received)),
			)
			return &InitResult{
				UploadID:    id,
				ChunkSize:   existing.ChunkSize,
				TotalChunks: existing.TotalChunks,
				Received:    received,
			}, nil
		}
		// Same id, different facts: the old session cannot be completed
		// against the new parameters.
		if err := os.RemoveAll(m.sessionDir(id)); err != nil {
			return nil, apperr.Wrap(apperr.Internal, "failed to discard stale session", err)
		}
	}

	now := time.Now()
	sess := &Session{
		UploadID:       id,
		RepoKey:        p.RepoKey,
		TargetPath:     p.TargetPath,
		Size:           p.Size,
		SourceModified: p.SourceModified,
		Mime:           p.Mime,
		ChunkSize:      m.opts.ChunkSize,
		TotalChunks:    totalChunks,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := os.MkdirAll(m.sessionDir(id), 0o755); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to create session directory", err)
	}
	if err := m.writeDescriptor(sess); err != nil {
		return nil, err
	}

	m.l.Info("upload session created",
		zap.String("upload_id", id),
		zap.String("target", p.TargetPath),
		zap.Int("total_chunks", totalChunks),
	)
	return &InitResult{
		UploadID:    id,
		ChunkSize:   sess.ChunkSize,
		TotalChunks: sess.TotalChunks,
		Received:    []int{},
	}, nil
}

// PutChunk stores one chunk. Writes are atomic (temp file then rename),
// so re-writing the same index, even concurrently with identical bytes,
// is safe: last write wins and no reader ever sees a torn file.
func (m *Manager) PutChunk(ctx context.Context, id string, index int, body io.Reader) error {
	sess, err := m.load(id)
	if err != nil {
		return err
	}
	if index < 0 || index >= sess.TotalChunks {
		return apperr.Newf(apperr.Validation, "chunk index %d out of range [0,%d)", index, sess.TotalChunks)
	}

	dir := m.sessionDir(id)
	tmp, err := os.CreateTemp(dir, chunkPrefix+"tmp-*")
	if err != nil {
		return apperr.Wrap(apperr.Internal, "failed to create chunk file", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, io.LimitReader(body, sess.ChunkSize+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return apperr.Wrap(apperr.Internal, "failed to write chunk", err)
	}
	if n == 0 {
		return apperr.New(apperr.Validation, "chunk payload is empty")
	}
	if n > sess.ChunkSize {
		return apperr.Newf(apperr.PayloadTooLarge, "chunk exceeds the chunk size of %d", sess.ChunkSize)
	}

	if err := os.Rename(tmp.Name(), filepath.Join(dir, chunkName(index))); err != nil {
		return apperr.Wrap(apperr.Internal, "failed to store chunk", err)
	}
	m.touch(id)
	return nil
}

// Complete verifies every chunk is present, assembles them strictly in
// index order and hands the stream to the object store. The session is
// deleted once the commit exists.
func (m *Manager) Complete(ctx context.Context, saver Saver, repoKey, id, message string, author repos.Author) (string, error) {
	// Double-concatenation of the same session is wasteful even when
	// idempotent, so Complete never races itself for one id.
	lock := m.completeLock(id)
	lock.Lock()
	defer lock.Unlock()

	sess, err := m.load(id)
	if err != nil {
		return "", err
	}
	if sess.RepoKey != repoKey {
		return "", apperr.Newf(apperr.NotFound, "upload session %q not found", id)
	}

	received, err := m.receivedIndices(id)
	if err != nil {
		return "", err
	}
	if missing := missingIndices(received, sess.TotalChunks); len(missing) > 0 {
		shown := missing
		if len(shown) > 10 {
			shown = shown[:10]
		}
		return "", apperr.Newf(apperr.Conflict, "upload incomplete, missing chunks %v", shown)
	}

	if message == "" {
		message = "Upload " + sess.TargetPath
	}

	dir := m.sessionDir(id)
	files := make([]*os.File, 0, sess.TotalChunks)
	readers := make([]io.Reader, 0, sess.TotalChunks)
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()
	var assembled int64
	for i := 0; i < sess.TotalChunks; i++ {
		f, err := os.Open(filepath.Join(dir, chunkName(i)))
		if err != nil {
			return "", apperr.Wrap(apperr.Internal, "failed to open chunk", err)
		}
		files = append(files, f)
		readers = append(readers, f)
		info, err := f.Stat()
		if err != nil {
			return "", apperr.Wrap(apperr.Internal, "failed to stat chunk", err)
		}
		assembled += info.Size()
	}
	// An undersized non-final chunk passes the presence check but would
	// commit a silently corrupted file.
	if assembled != sess.Size {
		return "", apperr.Newf(apperr.Conflict, "assembled size %d does not match the declared size %d", assembled, sess.Size)
	}

	commit, err := saver.SaveFile(ctx, sess.TargetPath, io.MultiReader(readers...), message, author)
	if err != nil {
		return "", err
	}

	if err := os.RemoveAll(dir); err != nil {
		m.l.Warn("failed to delete completed session", zap.String("upload_id", id), zap.Error(err))
	}

	m.mu.Lock()
	delete(m.completing, id)
	m.mu.Unlock()

	m.l.Info("upload completed",
		zap.String("upload_id", id),
		zap.String("target", sess.TargetPath),
		zap.String("commit", commit),
	)
	return commit, nil
}

func (m *Manager) completeLock(id string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.completing[id]
	if !ok {
		lock = &sync.Mutex{}
		m.completing[id] = lock
	}
	return lock
}

// sweepExpired garbage-collects sessions whose descriptor has not been
// touched within the TTL. Best effort; runs before each Init rather
// than on a timer.
func (m *Manager) sweepExpired() {
	if m.opts.SessionTTL <= 0 {
		return
	}
	entries, err := os.ReadDir(m.opts.Dir)
	if err != nil {
		return
	}
	cutoff := time.Now().Add(-m.opts.SessionTTL)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := os.Stat(filepath.Join(m.opts.Dir, e.Name(), descriptorName))
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(m.opts.Dir, e.Name())); err == nil {
			m.l.Info("expired upload session removed", zap.String("upload_id", e.Name()))
		}
	}
}

func (m *Manager) checkExtension(target string) error {
	if len(m.opts.AllowedExtensions) == 0 {
		return nil
	}
	ext := strings.ToLower(filepath.Ext(target))
	for _, allowed := range m.opts.AllowedExtensions {
		if ext == strings.ToLower(allowed) {
			return nil
		}
	}
	return apperr.Newf(apperr.UnsupportedType, "file type %q is not allowed", ext)
}

func (m *Manager) load(id string) (*Session, error) {
	if !validID(id) {
		return nil, apperr.Newf(apperr.NotFound, "upload session %q not found", id)
	}
	data, err := os.ReadFile(filepath.Join(m.sessionDir(id), descriptorName))
	if err != nil {
		return nil, apperr.Newf(apperr.NotFound, "upload session %q not found", id)
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "corrupt session descriptor", err)
	}
	return &sess, nil
}

func (m *Manager) writeDescriptor(sess *Session) error {
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return apperr.Wrap(apperr.Internal, "failed to encode session", err)
	}
	dir := m.sessionDir(sess.UploadID)
	tmp, err := os.CreateTemp(dir, "descriptor-*")
	if err != nil {
		return apperr.Wrap(apperr.Internal, "failed to write session", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return apperr.Wrap(apperr.Internal, "failed to write session", err)
	}
	if err := tmp.Close(); err != nil {
		return apperr.Wrap(apperr.Internal, "failed to write session", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, descriptorName)); err != nil {
		return apperr.Wrap(apperr.Internal, "failed to write session", err)
	}
	return nil
}

// touch bumps the descriptor mtime so activity defers garbage
// collection.
func (m *Manager) touch(id string) {
	now := time.Now()
	_ = os.Chtimes(filepath.Join(m.sessionDir(id), descriptorName), now, now)
}

// receivedIndices reads the set of stored chunk files.
func (m *Manager) receivedIndices(id string) ([]int, error) {
	entries, err := os.ReadDir(m.sessionDir(id))
	if err != nil {
		return nil, apperr.Newf(apperr.NotFound, "upload session %q not found", id)
	}
	received := []int{}
	for _, e := range entries {
		var idx int
		if _, err := fmt.Sscanf(e.Name(), chunkPrefix+"%06d", &idx); err == nil &&
			e.Name() == chunkName(idx) {
			received = append(received, idx)
		}
	}
	sort.Ints(received)
	return received, nil
}

func chunkName(index int) string {
	return fmt.Sprintf("%s%06d", chunkPrefix, index)
}

func missingIndices(received []int, total int) []int {
	have := make(map[int]bool, len(received))
	for _, idx := range received {
		have[idx] = true
	}
	var missing []int
	for i := 0; i < total; i++ {
		if !have[i] {
			missing = append(missing, i)
		}
	}
	return missing
}

func validID(id string) bool {
	if len(id) != 40 {
		return false
	}
	for _, c := range id {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
