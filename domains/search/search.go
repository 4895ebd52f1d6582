// Package search finds files by name substring or by literal content.
// Content search delegates to the repository's own search primitive and
// caps result volume at every level: files, lines per file, line length.
package search

import (
	"context"
	"strconv"
	"strings"

	"github.com/gomantics/gitstore/domains/storage"
	"github.com/gomantics/gitstore/libs/gitcmd"
	"github.com/gomantics/gitstore/pkg/apperr"
	"go.uber.org/zap"
)

// Options bounds content-search results.
type Options struct {
	MaxFiles        int
	MaxLinesPerFile int
	MaxLineLength   int
}

// Engine answers search queries against one store.
type Engine struct {
	l    *zap.Logger
	opts Options
}

// NewEngine creates an Engine.
func NewEngine(l *zap.Logger, opts Options) *Engine {
	if opts.MaxFiles <= 0 {
		opts.MaxFiles = 50
	}
	if opts.MaxLinesPerFile <= 0 {
		opts.MaxLinesPerFile = 20
	}
	if opts.MaxLineLength <= 0 {
		opts.MaxLineLength = 512
	}
	return &Engine{l: l, opts: opts}
}

// ByName scans listings under base recursively for names containing
// query, case-insensitively. kind filters to files or directories when
// non-empty.
func (e *Engine) ByName(ctx context.Context, st storage.Store, query, base string, kind storage.EntryKind) ([]storage.FileEntry, error) {
	if query == "" {
		return nil, apperr.New(apperr.Validation, "query must not be empty")
	}

	entries, err := st.ListTree(ctx, base, "")
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(query)
	results := []storage.FileEntry{}
	for _, entry := range entries {
		if kind != "" && entry.Kind != kind {
			continue
		}
		if !strings.Contains(strings.ToLower(entry.Name), needle) {
			continue
		}
		results = append(results, entry)
		if len(results) >= e.opts.MaxFiles {
			break
		}
	}

	e.l.Debug("name search finished",
		zap.String("query", query),
		zap.Int("results", len(results)),
	)
	return results, nil
}

// ByContent searches file contents for the literal (non-regex) query,
// case-insensitively. The primitive's no-match exit signal is an empty
// result, never an error.
func (e *Engine) ByContent(ctx context.Context, st storage.Store, query, base string) ([]storage.FileEntry, error) {
	if query == "" {
		return nil, apperr.New(apperr.Validation, "query must not be empty")
	}
	base, err := storage.NormalizePath(base)
	if err != nil {
		return nil, err
	}

	git := st.Handle().Git()
	args := []string{"grep", "-I", "-i", "-n", "-F",
		"--max-count", strconv.Itoa(e.opts.MaxLinesPerFile),
		"-e", query,
	}
	if rev := st.LiveRev(); rev != "" {
		args = append(args, rev)
	}
	if base != "" {
		args = append(args, "--", base)
	}

	out, err := git.Run(ctx, args...)
	if err != nil {
		// Exit status 1 is grep's "no matches" signal.
		if gitcmd.ExitCode(err) == 1 {
			return []storage.FileEntry{}, nil
		}
		return nil, apperr.Wrap(apperr.Internal, "content search failed", err)
	}

	return e.collectMatches(ctx, st, string(out)), nil
}

// collectMatches groups grep output lines by file, annotating each
// matched file entry with its truncated match lines.
func (e *Engine) collectMatches(ctx context.Context, st storage.Store, out string) []storage.FileEntry {
	results := []storage.FileEntry{}
	index := map[string]int{}

	for _, line := range strings.Split(out, "\n") {
		if line == "" {
			continue
		}
		path, match := e.splitGrepLine(st, line)
		if path == "" {
			continue
		}

		i, seen := index[path]
		if !seen {
			if len(results) >= e.opts.MaxFiles {
				continue
			}
			entry, err := st.Stat(ctx, path, "")
			if err != nil {
				continue
			}
			results = append(results, *entry)
			i = len(results) - 1
			index[path] = i
		}
		if len(results[i].Matches) < e.opts.MaxLinesPerFile {
			results[i].Matches = append(results[i].Matches, match)
		}
	}
	return results
}

// splitGrepLine parses "path:line:content" (live worktree) or
// "rev:path:line:content" (tree search) and truncates the match line.
func (e *Engine) splitGrepLine(st storage.Store, line string) (string, string) {
	if rev := st.LiveRev(); rev != "" {
		line = strings.TrimPrefix(line, rev+":")
	}
	path, rest, ok := strings.Cut(line, ":")
	if !ok {
		return "", ""
	}
	lineNo, content, ok := strings.Cut(rest, ":")
	if !ok {
		return "", ""
	}
	match := lineNo + ": " + strings.TrimSpace(content)
	if len(match) > e.opts.MaxLineLength {
		match = match[:e.opts.MaxLineLength]
	}
	return path, match
}
