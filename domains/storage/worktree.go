package storage

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gomantics/gitstore/domains/repos"
	"github.com/gomantics/gitstore/pkg/apperr"
	"go.uber.org/zap"
)

// worktreeStore mutates a repository with files materialized on disk:
// write to the filesystem, stage, commit.
type worktreeStore struct {
	gitOps
}

func (s *worktreeStore) LiveRev() string { return "" }

func (s *worktreeStore) absPath(rel string) string {
	return filepath.Join(s.h.Path, filepath.FromSlash(rel))
}

// commitStaged records whatever is staged as one commit and returns its
// hash. --allow-empty keeps the one-mutation-one-commit contract even
// when the new content equals the old.
func (s *worktreeStore) commitStaged(ctx context.Context, message string, author repos.Author) (string, error) {
	env := s.authorEnv(author)
	if _, err := s.git.RunWith(ctx, env, nil, "commit", "--allow-empty", "-m", message); err != nil {
		return "", apperr.Wrap(apperr.Internal, "failed to commit", err)
	}
	return s.Head(ctx)
}

func (s *worktreeStore) SaveFile(ctx context.Context, path string, content io.Reader, message string, author repos.Author) (string, error) {
	path, err := NormalizeFilePath(path)
	if err != nil {
		return "", err
	}

	var commit string
	err = s.h.Serialize(func() error {
		abs := s.absPath(path)
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			return apperr.Wrap(apperr.Internal, "failed to create parent directories", err)
		}

		f, err := os.Create(abs)
		if err != nil {
			return apperr.Wrap(apperr.Internal, "failed to write file", err)
		}
		if _, err := io.Copy(f, content); err != nil {
			f.Close()
			return apperr.Wrap(apperr.Internal, "failed to write file", err)
		}
		if err := f.Close(); err != nil {
			return apperr.Wrap(apperr.Internal, "failed to write file", err)
		}

		if _, err := s.git.Run(ctx, "add", "--", path); err != nil {
			return apperr.Wrap(apperr.Internal, "failed to stage file", err)
		}

		commit, err = s.commitStaged(ctx, message, author)
		return err
	})
	if err != nil {
		return "", err
	}

	s.l.Debug("file saved", zap.String("path", path), zap.String("commit", commit))
	return commit, nil
}

func (s *worktreeStore) DeleteFile(ctx context.Context, path, message string, author repos.Author) (string, error) {
	path, err := NormalizeFilePath(path)
	if err != nil {
		return "", err
	}

	var commit string
	err = s.h.Serialize(func() error {
		abs := s.absPath(path)
		info, err := os.Stat(abs)
		if err != nil {
			return apperr.Newf(apperr.NotFound, "path %q not found", path)
		}

		args := []string{"rm", "-q"}
		if info.IsDir() {
			args = append(args, "-r")
		}
		args = append(args, "--", path)
		if _, err := s.git.Run(ctx, args...); err != nil {
			if strings.Contains(gitStderr(err), "did not match any files") {
				return apperr.Newf(apperr.NotFound, "path %q not found", path)
			}
			return apperr.Wrap(apperr.Internal, "failed to remove path", err)
		}

		// git rm leaves untracked stragglers behind; sweep them so the
		// directory is really gone from the working tree.
		if info.IsDir() {
			_ = os.RemoveAll(abs)
		}

		commit, err = s.commitStaged(ctx, message, author)
		return err
	})
	if err != nil {
		return "", err
	}

	s.l.Debug("path deleted", zap.String("path", path), zap.String("commit", commit))
	return commit, nil
}

func (s *worktreeStore) MovePath(ctx context.Context, from, to, message string, author repos.Author) (string, error) {
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
		if _, err := os.Stat(s.absPath(from)); err != nil {
			return apperr.Newf(apperr.NotFound, "path %q not found", from)
		}
		// git mv would relocate the source INTO an existing directory;
		// an occupied destination is a conflict regardless of its kind.
		if _, err := os.Stat(s.absPath(to)); err == nil {
			return apperr.Newf(apperr.Conflict, "destination %q already exists", to)
		}
		if err := os.MkdirAll(filepath.Dir(s.absPath(to)), 0o755); err != nil {
			return apperr.Wrap(apperr.Internal, "failed to create parent directories", err)
		}

		if _, err := s.git.Run(ctx, "mv", from, to); err != nil {
			stderr := gitStderr(err)
			if strings.Contains(stderr, "destination exists") {
				return apperr.Newf(apperr.Conflict, "destination %q already exists", to)
			}
			if strings.Contains(stderr, "bad source") {
				return apperr.Newf(apperr.NotFound, "path %q not found", from)
			}
			return apperr.Wrap(apperr.Internal, "failed to move path", err)
		}

		commit, err = s.commitStaged(ctx, message, author)
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

func (s *worktreeStore) CreateDirectory(ctx context.Context, path, message string, author repos.Author) (string, error) {
	path, err := NormalizeFilePath(path)
	if err != nil {
		return "", err
	}

	var commit string
	err = s.h.Serialize(func() error {
		abs := s.absPath(path)
		if _, err := os.Stat(abs); err == nil {
			return apperr.Newf(apperr.Conflict, "directory %q already exists", path)
		}

		// The object model cannot hold an empty directory, so a
		// placeholder file is committed inside it.
		keep := path + "/" + placeholderName
		if err := os.MkdirAll(abs, 0o755); err != nil {
			return apperr.Wrap(apperr.Internal, "failed to create directory", err)
		}
		if err := os.WriteFile(s.absPath(keep), nil, 0o644); err != nil {
			return apperr.Wrap(apperr.Internal, "failed to create placeholder", err)
		}
		if _, err := s.git.Run(ctx, "add", "--", keep); err != nil {
			return apperr.Wrap(apperr.Internal, "failed to stage placeholder", err)
		}

		commit, err = s.commitStaged(ctx, message, author)
		return err
	})
	if err != nil {
		return "", err
	}

	s.l.Debug("directory created", zap.String("path", path), zap.String("commit", commit))
	return commit, nil
}

func (s *worktreeStore) ListFiles(ctx context.Context, dir, commit string) ([]FileEntry, error) {
	dir, err := NormalizePath(dir)
	if err != nil {
		return nil, err
	}

	if commit != "" {
		entries, err := s.lsTreeEntries(ctx, commit, dir)
		if err != nil {
			return nil, err
		}
		sortEntries(entries)
		s.annotate(ctx, commit, entries)
		return entries, nil
	}

	abs := s.absPath(dir)
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return nil, apperr.Newf(apperr.NotFound, "directory %q not found", dir)
	}

	dirents, err := os.ReadDir(abs)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to read directory", err)
	}

	entries := make([]FileEntry, 0, len(dirents))
	for _, de := range dirents {
		if de.Name() == ".git" {
			continue
		}
		fi, err := de.Info()
		if err != nil {
			continue
		}
		entry := FileEntry{
			Name:       de.Name(),
			Path:       joinRepoPath(dir, de.Name()),
			Kind:       KindFile,
			ModifiedAt: fi.ModTime(),
		}
		if de.IsDir() {
			entry.Kind = KindDirectory
		} else {
			entry.Size = fi.Size()
		}
		entries = append(entries, entry)
	}
	sortEntries(entries)
	s.annotate(ctx, "", entries)
	return entries, nil
}

func (s *worktreeStore) ListTree(ctx context.Context, base, commit string) ([]FileEntry, error) {
	base, err := NormalizePath(base)
	if err != nil {
		return nil, err
	}
	if commit != "" {
		return s.lsTreeRecursive(ctx, commit, base)
	}

	root := s.absPath(base)
	if _, err := os.Stat(root); err != nil {
		return nil, apperr.Newf(apperr.NotFound, "directory %q not found", base)
	}

	var entries []FileEntry
	err = filepath.WalkDir(root, func(p string, de fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if p == root {
			return nil
		}
		if de.IsDir() && de.Name() == ".git" {
			return filepath.SkipDir
		}

		rel, err := filepath.Rel(s.h.Path, p)
		if err != nil {
			return err
		}
		fi, err := de.Info()
		if err != nil {
			return nil
		}
		entry := FileEntry{
			Name:       de.Name(),
			Path:       filepath.ToSlash(rel),
			Kind:       KindFile,
			ModifiedAt: fi.ModTime(),
		}
		if de.IsDir() {
			entry.Kind = KindDirectory
		} else {
			entry.Size = fi.Size()
		}
		entries = append(entries, entry)
		return nil
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to walk directory", err)
	}
	return entries, nil
}

func (s *worktreeStore) Stat(ctx context.Context, path, commit string) (*FileEntry, error) {
	path, err := NormalizePath(path)
	if err != nil {
		return nil, err
	}
	if commit != "" {
		return s.statAt(ctx, commit, path)
	}

	info, err := os.Stat(s.absPath(path))
	if err != nil {
		return nil, apperr.Newf(apperr.NotFound, "path %q not found", path)
	}
	entry := &FileEntry{
		Name:       pathBase(path),
		Path:       path,
		Kind:       KindFile,
		ModifiedAt: info.ModTime(),
	}
	if info.IsDir() {
		entry.Kind = KindDirectory
	} else {
		entry.Size = info.Size()
	}
	return entry, nil
}

func (s *worktreeStore) RawContent(ctx context.Context, path, commit string) (*Content, error) {
	path, err := NormalizeFilePath(path)
	if err != nil {
		return nil, err
	}
	if commit != "" {
		return s.blobAt(ctx, commit, path)
	}

	f, err := os.Open(s.absPath(path))
	if err != nil {
		return nil, apperr.Newf(apperr.NotFound, "path %q not found", path)
	}
	info, err := f.Stat()
	if err != nil || info.IsDir() {
		f.Close()
		return nil, apperr.Newf(apperr.NotFound, "path %q is not a file", path)
	}
	return &Content{Reader: f, Size: info.Size(), ModTime: info.ModTime(), File: f}, nil
}

func (s *worktreeStore) FileContent(ctx context.Context, path, commit string) (io.ReadCloser, error) {
	c, err := s.RawContent(ctx, path, commit)
	if err != nil {
		return nil, err
	}
	return s.resolveContent(ctx, c)
}

func (s *worktreeStore) IsPointer(ctx context.Context, path, commit string) (bool, error) {
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

func joinRepoPath(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}

// placeholderName is the empty file committed to represent a directory.
const placeholderName = ".gitkeep"
