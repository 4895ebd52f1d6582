// Package storage implements the content-mutating and content-reading
// operations against a repository. The two layout modes share one
// contract: a Store selected at handle construction time, backed by a
// working tree or by the object database alone.
package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gomantics/gitstore/domains/repos"
	"github.com/gomantics/gitstore/libs/gitcmd"
	"github.com/gomantics/gitstore/pkg/apperr"
	"go.uber.org/zap"
)

// Content is an opened file payload. File is non-nil when the payload is
// backed by a seekable plain file on disk.
type Content struct {
	Reader  io.ReadCloser
	Size    int64
	ModTime time.Time
	File    *os.File
}

// Close releases the underlying source.
func (c *Content) Close() error {
	if c.Reader != nil {
		return c.Reader.Close()
	}
	return nil
}

// Store is the dual-mode object store contract. Every mutating call
// produces exactly one new commit and returns its hash; mutations on
// the same repository are serialized through the handle's lock.
type Store interface {
	Handle() *repos.Handle

	SaveFile(ctx context.Context, path string, content io.Reader, message string, author repos.Author) (string, error)
	DeleteFile(ctx context.Context, path, message string, author repos.Author) (string, error)
	MovePath(ctx context.Context, from, to, message string, author repos.Author) (string, error)
	CreateDirectory(ctx context.Context, path, message string, author repos.Author) (string, error)

	// ListFiles lists one directory level, sorted directories-first then
	// by name, each entry annotated with the most recent commit touching
	// that exact path. An empty commit means the live state.
	ListFiles(ctx context.Context, dir, commit string) ([]FileEntry, error)

	// ListTree lists every file under base recursively, without commit
	// annotations. Used by search and archive packaging.
	ListTree(ctx context.Context, base, commit string) ([]FileEntry, error)

	// Stat resolves a single path to an entry.
	Stat(ctx context.Context, path, commit string) (*FileEntry, error)

	// RawContent opens the stored bytes without resolving large-binary
	// pointers.
	RawContent(ctx context.Context, path, commit string) (*Content, error)

	// FileContent opens the logical bytes: pointer records are piped
	// through the de-indirection filter before they reach the caller.
	FileContent(ctx context.Context, path, commit string) (io.ReadCloser, error)

	// IsPointer probes whether the stored blob is a large-binary pointer.
	IsPointer(ctx context.Context, path, commit string) (bool, error)

	// Head resolves the current HEAD commit hash.
	Head(ctx context.Context) (string, error)

	// LiveRev is the revision addressing the current state: empty for a
	// working tree (read from disk), "HEAD" for a headless repository.
	LiveRev() string
}

// New selects the strategy matching the handle's layout mode.
func New(h *repos.Handle, defaultAuthor repos.Author, l *zap.Logger) Store {
	ops := gitOps{h: h, git: h.Git(), defaultAuthor: defaultAuthor, l: l}
	if h.IsBare() {
		return &bareStore{gitOps: ops}
	}
	return &worktreeStore{gitOps: ops}
}

// gitOps carries the plumbing shared by both strategies: commit-scoped
// reads, listing, annotation and error classification.
type gitOps struct {
	h             *repos.Handle
	git           *gitcmd.Git
	defaultAuthor repos.Author
	l             *zap.Logger
}

func (o *gitOps) Handle() *repos.Handle { return o.h }

func (o *gitOps) Head(ctx context.Context) (string, error) {
	hash, err := o.git.RunText(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", apperr.Wrap(apperr.Internal, "failed to resolve HEAD", err)
	}
	return hash, nil
}

func (o *gitOps) authorEnv(author repos.Author) []string {
	if author.Name == "" {
		author.Name = o.defaultAuthor.Name
	}
	if author.Email == "" {
		author.Email = o.defaultAuthor.Email
	}
	return gitcmd.AuthorEnv(author.Name, author.Email)
}

// lsTreeEntries lists one level of the tree at rev under dir. Paths in
// the result are full repo-relative paths.
func (o *gitOps) lsTreeEntries(ctx context.Context, rev, dir string) ([]FileEntry, error) {
	args := []string{"ls-tree", "-l", "-z", rev}
	if dir != "" {
		args = append(args, "--", dir+"/")
	}
	out, err := o.git.Run(ctx, args...)
	if err != nil {
		return nil, o.classifyRevErr(err, rev)
	}

	entries := parseLsTree(out)
	if len(entries) == 0 && dir != "" {
		return nil, apperr.Newf(apperr.NotFound, "directory %q not found", dir)
	}
	return entries, nil
}

// lsTreeRecursive lists every blob under base at rev.
func (o *gitOps) lsTreeRecursive(ctx context.Context, rev, base string) ([]FileEntry, error) {
	args := []string{"ls-tree", "-l", "-z", "-r", "-t", rev}
	if base != "" {
		args = append(args, "--", base+"/")
	}
	out, err := o.git.Run(ctx, args...)
	if err != nil {
		return nil, o.classifyRevErr(err, rev)
	}
	return parseLsTree(out), nil
}

// statAt resolves path at rev via a single exact ls-tree lookup.
func (o *gitOps) statAt(ctx context.Context, rev, path string) (*FileEntry, error) {
	if path == "" {
		return &FileEntry{Path: "", Kind: KindDirectory}, nil
	}
	out, err := o.git.Run(ctx, "ls-tree", "-l", "-z", rev, "--", path)
	if err != nil {
		return nil, o.classifyRevErr(err, rev)
	}
	for _, e := range parseLsTree(out) {
		if e.Path == path {
			return &e, nil
		}
	}
	return nil, apperr.Newf(apperr.NotFound, "path %q not found", path)
}

// blobAt opens the blob rev:path as a stream, size known up front.
func (o *gitOps) blobAt(ctx context.Context, rev, path string) (*Content, error) {
	spec := rev + ":" + path
	sizeOut, err := o.git.Run(ctx, "cat-file", "-s", spec)
	if err != nil {
		return nil, o.classifyPathErr(err, path)
	}
	size, err := strconv.ParseInt(strings.TrimSpace(string(sizeOut)), 10, 64)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "unparsable blob size", err)
	}

	rc, err := o.git.Start(ctx, "cat-file", "blob", spec)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to read blob", err)
	}
	return &Content{Reader: rc, Size: size}, nil
}

// lastCommit runs the bounded single-entry log query for path.
func (o *gitOps) lastCommit(ctx context.Context, rev, path string) *CommitSummary {
	args := []string{"log", "-1", "--format=" + summaryFormat}
	if rev != "" {
		args = append(args, rev)
	}
	args = append(args, "--", path)
	out, err := o.git.Run(ctx, args...)
	if err != nil {
		return nil
	}
	return parseSummary(strings.TrimRight(string(out), "\n"))
}

// annotate attaches last-commit summaries and fills commit-derived
// modification times where the filesystem gave none.
func (o *gitOps) annotate(ctx context.Context, rev string, entries []FileEntry) {
	for i := range entries {
		summary := o.lastCommit(ctx, rev, entries[i].Path)
		if summary == nil {
			continue
		}
		entries[i].LastCommit = summary
		if entries[i].ModifiedAt.IsZero() {
			entries[i].ModifiedAt = summary.When
		}
	}
}

// classifyRevErr maps an unknown-revision failure to NotFound.
func (o *gitOps) classifyRevErr(err error, rev string) error {
	stderr := gitStderr(err)
	if gitcmd.ExitCode(err) == 128 &&
		(strings.Contains(stderr, "Not a valid object name") ||
			strings.Contains(stderr, "unknown revision") ||
			strings.Contains(stderr, "bad revision")) {
		return apperr.Newf(apperr.NotFound, "commit %q not found", rev)
	}
	return apperr.Wrap(apperr.Internal, "git command failed", err)
}

// classifyPathErr maps a missing-blob failure to NotFound.
func (o *gitOps) classifyPathErr(err error, path string) error {
	stderr := gitStderr(err)
	if gitcmd.ExitCode(err) == 128 &&
		(strings.Contains(stderr, "does not exist") ||
			strings.Contains(stderr, "exists on disk, but not in") ||
			strings.Contains(stderr, "Not a valid object name") ||
			strings.Contains(stderr, "Invalid object name") ||
			strings.Contains(stderr, "fatal: path")) {
		return apperr.Newf(apperr.NotFound, "path %q not found", path)
	}
	return apperr.Wrap(apperr.Internal, "git command failed", err)
}

func gitStderr(err error) string {
	var ee *gitcmd.ExitError
	if errors.As(err, &ee) {
		return ee.Stderr
	}
	return ""
}

// summaryFormat uses unit separators so commit messages containing
// whitespace or punctuation can never shift fields.
const summaryFormat = "%H%x1f%an%x1f%ae%x1f%aI%x1f%s"

func parseSummary(line string) *CommitSummary {
	parts := strings.Split(line, "\x1f")
	if len(parts) != 5 || parts[0] == "" {
		return nil
	}
	when, _ := time.Parse(time.RFC3339, parts[3])
	return &CommitSummary{
		Hash:        parts[0],
		AuthorName:  parts[1],
		AuthorEmail: parts[2],
		When:        when,
		Message:     parts[4],
	}
}

// parseLsTree parses `ls-tree -l -z` output: NUL-separated records of
// the form "mode SP type SP hash SP size TAB path".
func parseLsTree(out []byte) []FileEntry {
	var entries []FileEntry
	for _, record := range bytes.Split(out, []byte{0}) {
		if len(record) == 0 {
			continue
		}
		tab := bytes.IndexByte(record, '\t')
		if tab < 0 {
			continue
		}
		meta := strings.Fields(string(record[:tab]))
		if len(meta) != 4 {
			continue
		}
		fullPath := string(record[tab+1:])

		entry := FileEntry{
			Name: pathBase(fullPath),
			Path: fullPath,
			Kind: KindFile,
		}
		if meta[1] == "tree" {
			entry.Kind = KindDirectory
		} else if meta[3] != "-" {
			entry.Size, _ = strconv.ParseInt(meta[3], 10, 64)
		}
		entries = append(entries, entry)
	}
	return entries
}

func pathBase(p string) string {
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[i+1:]
	}
	return p
}

// sortEntries orders directories before files, then by name.
func sortEntries(entries []FileEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Kind != entries[j].Kind {
			return entries[i].Kind == KindDirectory
		}
		return entries[i].Name < entries[j].Name
	})
}
