package storage

import (
	"context"
	"io"
	"strings"

	"github.com/gomantics/gitstore/domains/repos"
	"github.com/gomantics/gitstore/pkg/apperr"
	"go.uber.org/zap"
)

// bareStore mutates a headless repository: blobs are written straight
// into the object database and the tracked index is re-pointed, so no
// file payload ever touches the working directory (there is none).
type bareStore struct {
	gitOps
}

func (s *bareStore) LiveRev() string { return "HEAD" }

// writeBlob streams content into the object database and returns the
// blob hash.
func (s *bareStore) writeBlob(ctx context.Context, content io.Reader) (string, error) {
	out, err := s.git.RunWith(ctx, nil, content, "hash-object", "-w", "--stdin")
	if err != nil {
		return "", apperr.Wrap(apperr.Internal, "failed to write blob", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// stageEntry points the index entry for path at blob with the given mode.
func (s *bareStore) stageEntry(ctx context.Context, mode, blob, path string) error {
	if _, err := s.git.Run(ctx, "update-index", "--add", "--cacheinfo", mode+","+blob+","+path); err != nil {
		return apperr.Wrap(apperr.Internal, "failed to update index", err)
	}
	return nil
}

// unstageEntry removes path from the index.
func (s *bareStore) unstageEntry(ctx context.Context, path string) error {
	if _, err := s.git.Run(ctx, "update-index", "--force-remove", "--", path); err != nil {
		return apperr.Wrap(apperr.Internal, "failed to remove index entry", err)
	}
	return nil
}

// commitIndex writes the index as a tree, commits it onto HEAD and
// advances HEAD. Exactly one commit per successful mutation.
func (s *bareStore) commitIndex(ctx context.Context, message string, author repos.Author) (string, error) {
	env := s.authorEnv(author)

	tree, err := s.git.RunText(ctx, "write-tree")
	if err != nil {
		return "", apperr.Wrap(apperr.Internal, "failed to write tree", err)
	}
	parent, err := s.Head(ctx)
	if err != nil {
		return "", err
	}
	out, err := s.git.RunWith(ctx, env, strings.NewReader(message),
		"commit-tree", tree, "-p", parent, "-F", "-")
	if err != nil {
		return "", apperr.Wrap(apperr.Internal, "failed to create commit", err)
	}
	commit := strings.TrimSpace(string(out))
	if _, err := s.git.Run(ctx, "update-ref", "HEAD", commit); err != nil {
		return "", apperr.Wrap(apperr.Internal, "failed to advance HEAD", err)
	}
	return commit, nil
}

// trackedUnder returns the tracked file entries at HEAD equal to path or
// under path/ (mode, hash, full path).
func (s *bareStore) trackedUnder(ctx context.Context, path string) ([]indexEntry, error) {
	out, err := s.git.Run(ctx, "ls-tree", "-r", "-z", "HEAD")
	if err != nil {
		return nil, s.classifyRevErr(err, "HEAD")
	}

	var matched []indexEntry
	prefix := path + "/"
	for _, e := range parseIndexEntries(out) {
		if e.path == path || strings.HasPrefix(e.path, prefix) {
			matched = append(matched, e)
		}
	}
	return matched, nil
}

type indexEntry struct {
	mode string
	hash string
	path string
}

// parseIndexEntries parses `ls-tree -r -z` records:
// "mode SP type SP hash TAB path".
func parseIndexEntries(out []byte) []indexEntry {
	var entries []indexEntry
	for _, record := range strings.Split(string(out), "\x00") {
		tab := strings.IndexByte(record, '\t')
		if tab < 0 {
			continue
		}
		meta := strings.Fields(record[:tab])
		if len(meta) != 3 {
			continue
		}
		entries = append(entries, indexEntry{mode: meta[0], hash: meta[2], path: record[tab+1:]})
	}
	return entries
}

func (s *bareStore) SaveFile(ctx context.Context, path string, content io.Reader, message string, author repos.Author) (string, error) {
	path, err := NormalizeFilePath(path)
	if err != nil {
		return "", err
	}

	var commit string
	err = s.h.Serialize(func() error {
		blob, err := s.writeBlob(ctx, content)
		if err != nil {
			return err
		}
		if err := s.stageEntry(ctx, "100644", blob, path); err != nil {
			return err
		}
		commit, err = s.commitIndex(ctx, message, author)
		return err
	})
	if err != nil {
		return "", err
	}

	s.l.Debug("file saved", zap.String("path", path), zap.String("commit", commit))
	return commit, nil
}

func (s *bareStore) DeleteFile(ctx context.Context, path, message string, author repos.Author) (string, error) {
	path, err := NormalizeFilePath(path)
	if err != nil {
		return "", err
	}

	var commit string
	err = s.h.Serialize(func() error {
		entries, err := s.trackedUnder(ctx, path)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return apperr.Newf(apperr.NotFound, "path %q not found", path)
		}
		for _, e := range entries {
			if err := s.unstageEntry(ctx, e.path); err != nil {
				return err
			}
		}
		commit, err = s.commitIndex(ctx, message, author)
		return err
	})
	if err != nil {
		return "", err
	}

	s.l.Debug("path deleted", zap.String("path", path), zap.String("commit", commit))
	return commit, nil
}

func (s *bareStore) MovePath(ctx context.Context, from, to, message string, author repos.Author) (string, error) {
	from, err := NormalizeFilePath(from)
	if err != nil {
		return "", err
	}
	to, err = NormalizeFilePath(to)
	if err != nil {
		return "", err
	}
	if from == to {
		return "", apperr.New(apperr.Validation, "source and destination are the same path")
	}

	var commit string
	err = s.h.Serialize(func() error {
		entries, err := s.trackedUnder(ctx, from)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return apperr.Newf(apperr.NotFound, "path %q not found", from)
		}
		existing, err := s.trackedUnder(ctx, to)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return apperr.Newf(apperr.Conflict, "destination %q already exists", to)
		}

		// Re-point each tracked entry from the old prefix to the new one,
		// then drop the originals.
		for _, e := range entries {
			newPath := to
			if e.path != from {
				newPath = to + strings.TrimPrefix(e.path, from)
			}
			if err := s.stageEntry(ctx, e.mode, e.hash, newPath); err != nil {
				return err
			}
			if err := s.unstageEntry(ctx, e.path); err != nil {
				return err
			}
		}
		commit, err = s.commitIndex(ctx, message, author)
		return err
	})
	if err != nil {
		return "", err
	}

	s.l.Debug("path moved",
		zap.String("from", from),
		zap.String("to", to),
		zap.String("commit", commit),
	)
	return commit, nil
}

func (s *bareStore) CreateDirectory(ctx context.Context, path, message string, author repos.Author) (string, error) {
	path, err := NormalizeFilePath(path)
	if err != nil {
		return "", err
	}

	var commit string
	err = s.h.Serialize(func() error {
		existing, err := s.trackedUnder(ctx, path)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return apperr.Newf(apperr.Conflict, "directory %q already exists", path)
		}

		blob, err := s.writeBlob(ctx, strings.NewReader(""))
		if err != nil {
			return err
		}
		if err := s.stageEntry(ctx, "100644", blob, path+"/"+placeholderName); err != nil {
			return err
		}
		commit, err = s.commitIndex(ctx, message, author)
		return err
	})
	if err != nil {
		return "", err
	}

	s.l.Debug("directory created", zap.String("path", path), zap.String("commit", commit))
	return commit, nil
}

func (s *bareStore) rev(commit string) string {
	if commit == "" {
		return "HEAD"
	}
	return commit
}

func (s *bareStore) ListFiles(ctx context.Context, dir, commit string) ([]FileEntry, error) {
	dir, err := NormalizePath(dir)
	if err != nil {
		return nil, err
	}
	entries, err := s.lsTreeEntries(ctx, s.rev(commit), dir)
	if err != nil {
		return nil, err
	}
	sortEntries(entries)
	s.annotate(ctx, s.rev(commit), entries)
	return entries, nil
}

func (s *bareStore) ListTree(ctx context.Context, base, commit string) ([]FileEntry, error) {
	base, err := NormalizePath(base)
	if err != nil {
		return nil, err
	}
	return s.lsTreeRecursive(ctx, s.rev(commit), base)
}

func (s *bareStore) Stat(ctx context.Context, path, commit string) (*FileEntry, error) {
	path, err := NormalizePath(path)
	if err != nil {
		return nil, err
	}
	return s.statAt(ctx, s.rev(commit), path)
}

func (s *bareStore) RawContent(ctx context.Context, path, commit string) (*Content, error) {
	path, err := NormalizeFilePath(path)
	if err != nil {
		return nil, err
	}
	return s.blobAt(ctx, s.rev(commit), path)
}

func (s *bareStore) FileContent(ctx context.Context, path, commit string) (io.ReadCloser, error) {
	c, err := s.RawContent(ctx, path, commit)
	if err != nil {
		return nil, err
	}
	return s.resolveContent(ctx, c)
}

func (s *bareStore) IsPointer(ctx context.Context, path, commit string) (bool, error) {
	c, err := s.RawContent(ctx, path, commit)
	if err != nil {
		return false, err
	}
	defer c.Close()

	data, err := s.readPointerCandidate(c)
	if err != nil {
		return false, err
	}
	return IsPointerData(data), nil
}
