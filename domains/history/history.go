// Package history retrieves commit logs, commit details and diffs.
// Log records are parsed with unit/record separator delimiters so no
// commit message content can ever shift a field.
package history

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/gomantics/gitstore/domains/repos"
	"github.com/gomantics/gitstore/pkg/apperr"
	"go.uber.org/zap"
)

// CommitRecord is one immutable history point.
type CommitRecord struct {
	Hash        string    `json:"hash"`
	Parents     []string  `json:"parents"`
	AuthorName  string    `json:"author_name"`
	AuthorEmail string    `json:"author_email"`
	CommittedAt time.Time `json:"committed_at"`
	Message     string    `json:"message"`
}

// FileHistory is the bounded log of commits touching one path,
// newest first.
type FileHistory struct {
	Commits        []CommitRecord `json:"commits"`
	CurrentVersion string         `json:"current_version"`
	Total          int            `json:"total"`
}

// Reader answers history queries against a repository handle.
type Reader struct {
	l *zap.Logger
}

// NewReader creates a Reader.
func NewReader(l *zap.Logger) *Reader {
	return &Reader{l: l}
}

// logFormat: one record per commit, fields split by the unit separator,
// records split by the record separator. %B keeps the full message,
// newlines included.
const logFormat = "%H%x1f%P%x1f%an%x1f%ae%x1f%aI%x1f%B%x1e"

// FileHistory returns up to limit commits touching path. The limit
// bounds the log query itself, not client-side truncation.
func (r *Reader) FileHistory(ctx context.Context, h *repos.Handle, path string, limit int) (*FileHistory, error) {
	if limit <= 0 {
		limit = 50
	}

	out, err := h.Git().Run(ctx,
		"log", "-n", strconv.Itoa(limit), "--format="+logFormat, "--", path)
	if err != nil {
		// An unborn HEAD means no history yet; that is an empty list,
		// not a failure.
		if strings.Contains(errText(err), "does not have any commits") ||
			strings.Contains(errText(err), "unknown revision") {
			return &FileHistory{Commits: []CommitRecord{}}, nil
		}
		return nil, apperr.Wrap(apperr.Internal, "failed to read log", err)
	}

	commits := parseLog(string(out))

	total := len(commits)
	if countOut, err := h.Git().RunText(ctx, "rev-list", "--count", "HEAD", "--", path); err == nil {
		if n, err := strconv.Atoi(countOut); err == nil {
			total = n
		}
	}

	hist := &FileHistory{Commits: commits, Total: total}
	if len(commits) > 0 {
		hist.CurrentVersion = commits[0].Hash
	}
	return hist, nil
}

// FileDiff renders the unified diff for path at commit. With parent set
// the diff is exactly parent..commit; otherwise the patch the commit
// introduced for path against its auto-detected parent. A no-op diff is
// returned as the diff tool's literal (empty) output.
func (r *Reader) FileDiff(ctx context.Context, h *repos.Handle, path, commit, parent string) (string, error) {
	var out []byte
	var err error
	if parent != "" {
		out, err = h.Git().Run(ctx, "diff", parent, commit, "--", path)
	} else {
		out, err = h.Git().Run(ctx, "diff-tree", "--no-commit-id", "--root", "-p", commit, "--", path)
	}
	if err != nil {
		stderr := errText(err)
		if strings.Contains(stderr, "bad revision") ||
			strings.Contains(stderr, "unknown revision") ||
			strings.Contains(stderr, "Not a valid object name") {
			return "", apperr.Newf(apperr.NotFound, "commit %q not found", commit)
		}
		return "", apperr.Wrap(apperr.Internal, "failed to compute diff", err)
	}
	return string(out), nil
}

// CommitDetails resolves a single commit hash.
func (r *Reader) CommitDetails(ctx context.Context, h *repos.Handle, hash string) (*CommitRecord, error) {
	repo, err := git.PlainOpen(h.Path)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to open repository", err)
	}

	commit, err := repo.CommitObject(plumbing.NewHash(hash))
	if err != nil {
		if errors.Is(err, plumbing.ErrObjectNotFound) {
			return nil, apperr.Newf(apperr.NotFound, "commit %q not found", hash)
		}
		return nil, apperr.Wrap(apperr.Internal, "failed to read commit", err)
	}

	record := &CommitRecord{
		Hash:        commit.Hash.String(),
		Parents:     make([]string, 0, commit.NumParents()),
		AuthorName:  commit.Author.Name,
		AuthorEmail: commit.Author.Email,
		CommittedAt: commit.Author.When,
		Message:     strings.TrimRight(commit.Message, "\n"),
	}
	for _, p := range commit.ParentHashes {
		record.Parents = append(record.Parents, p.String())
	}
	return record, nil
}

func parseLog(out string) []CommitRecord {
	commits := []CommitRecord{}
	for _, record := range strings.Split(out, "\x1e") {
		record = strings.TrimLeft(record, "\n")
		parts := strings.Split(record, "\x1f")
		if len(parts) != 6 || parts[0] == "" {
			continue
		}
		when, _ := time.Parse(time.RFC3339, parts[4])
		commits = append(commits, CommitRecord{
			Hash:        parts[0],
			Parents:     splitHashes(parts[1]),
			AuthorName:  parts[2],
			AuthorEmail: parts[3],
			CommittedAt: when,
			Message:     strings.TrimRight(parts[5], "\n"),
		})
	}
	return commits
}

func splitHashes(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return []string{}
	}
	return strings.Fields(s)
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
