// Package downloads serves file content with byte-range support and
// packages directories as streamed archives. Large-binary pointers are
// materialized once into a local cache file so ranges over them become
// true random access.
package downloads

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gomantics/gitstore/domains/storage"
	"github.com/gomantics/gitstore/pkg/apperr"
	"go.uber.org/zap"
)

// Options configures a Streamer.
type Options struct {
	CacheDir string
	CacheTTL time.Duration
}

// Streamer opens file payloads for serving.
type Streamer struct {
	l    *zap.Logger
	opts Options
}

// NewStreamer creates a Streamer with its materialization cache rooted
// at opts.CacheDir.
func NewStreamer(l *zap.Logger, opts Options) *Streamer {
	return &Streamer{l: l, opts: opts}
}

// Open returns the payload for path at commit (empty commit = live
// state). Pointer content is materialized through the cache, so the
// returned payload is seekable whenever it is backed by a plain file;
// otherwise the caller must emulate ranges by skipping.
func (s *Streamer) Open(ctx context.Context, st storage.Store, path, commit string) (*storage.Content, error) {
	isPointer, err := st.IsPointer(ctx, path, commit)
	if err != nil {
		return nil, err
	}
	if !isPointer {
		return st.RawContent(ctx, path, commit)
	}

	// Cache entries are keyed by (commit, path); the live state keys by
	// the current HEAD so a new commit naturally misses.
	rev := commit
	if rev == "" {
		if rev, err = st.Head(ctx); err != nil {
			return nil, err
		}
	}
	f, err := s.materialize(ctx, st, path, commit, rev)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, apperr.Wrap(apperr.Internal, "failed to stat cache entry", err)
	}
	return &storage.Content{Reader: f, Size: info.Size(), ModTime: info.ModTime(), File: f}, nil
}

// materialize returns the cache file for (rev, path), streaming the
// de-indirected bytes into it on a miss. The write is atomic: a temp
// file is renamed into place only once fully written, so a racing sweep
// or a concurrent request never observes partial data.
func (s *Streamer) materialize(ctx context.Context, st storage.Store, path, commit, rev string) (*os.File, error) {
	key := cacheKey(rev, path)
	cachePath := filepath.Join(s.opts.CacheDir, key)

	if info, err := os.Stat(cachePath); err == nil {
		if s.opts.CacheTTL <= 0 || time.Since(info.ModTime()) < s.opts.CacheTTL {
			return os.Open(cachePath)
		}
	}

	if err := os.MkdirAll(s.opts.CacheDir, 0o755); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to create cache directory", err)
	}
	tmp, err := os.CreateTemp(s.opts.CacheDir, key+".tmp-*")
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to create cache file", err)
	}
	defer os.Remove(tmp.Name())

	rc, err := st.FileContent(ctx, path, commit)
	if err != nil {
		tmp.Close()
		return nil, err
	}
	_, err = io.Copy(tmp, rc)
	rc.Close()
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to materialize content", err)
	}
	if err := os.Rename(tmp.Name(), cachePath); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to store cache entry", err)
	}

	s.l.Debug("content materialized",
		zap.String("path", path),
		zap.String("rev", rev),
		zap.String("cache_key", key),
	)
	return os.Open(cachePath)
}

// SweepCache removes cache entries older than the TTL. Best effort: a
// sweep racing a fresh materialization loses to the rename and at worst
// forces one redundant recomputation.
func (s *Streamer) SweepCache() {
	if s.opts.CacheTTL <= 0 {
		return
	}
	entries, err := os.ReadDir(s.opts.CacheDir)
	if err != nil {
		return
	}
	cutoff := time.Now().Add(-s.opts.CacheTTL)
	removed := 0
	for _, e := range entries {
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.opts.CacheDir, e.Name())); err == nil {
			removed++
		}
	}
	if removed > 0 {
		s.l.Info("download cache swept", zap.Int("removed", removed))
	}
}

func cacheKey(rev, path string) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s\x00%s", rev, path))
	return hex.EncodeToString(sum[:])
}
