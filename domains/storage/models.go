package storage

import "time"

// EntryKind distinguishes files from directories in listings.
type EntryKind string

const (
	KindFile      EntryKind = "file"
	KindDirectory EntryKind = "directory"
)

// CommitSummary is the single-commit projection used to annotate
// listing entries with "last touched by".
type CommitSummary struct {
	Hash        string    `json:"hash"`
	AuthorName  string    `json:"author_name"`
	AuthorEmail string    `json:"author_email"`
	When        time.Time `json:"when"`
	Message     string    `json:"message"`
}

// FileEntry describes one file or directory. Entries are produced on
// demand by listing and search, never persisted.
type FileEntry struct {
	Name       string         `json:"name"`
	Path       string         `json:"path"`
	Kind       EntryKind      `json:"kind"`
	Size       int64          `json:"size"`
	ModifiedAt time.Time      `json:"modified_at"`
	LastCommit *CommitSummary `json:"last_commit,omitempty"`
	Matches    []string       `json:"matches,omitempty"`
}
