package repos

import (
	"sync"

	"github.com/gomantics/gitstore/libs/gitcmd"
)

// Mode selects the repository layout.
type Mode string

const (
	// ModeWorktree keeps files materialized on disk next to the object
	// database.
	ModeWorktree Mode = "worktree"
	// ModeBare keeps only the object database; mutations act directly on
	// the index and object store.
	ModeBare Mode = "bare"
)

// String returns the string representation of the mode.
func (m Mode) String() string { return string(m) }

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case ModeWorktree, ModeBare:
		return Mode(s), true
	}
	return "", false
}

// Author identifies who a commit is attributed to.
type Author struct {
	Name  string
	Email string
}

// Handle identifies one initialized repository. Handles are created once
// per (path, mode) by the Manager and shared by every component.
type Handle struct {
	Path string
	Mode Mode

	git *gitcmd.Git
	mu  sync.Mutex
}

// Git returns the command helper bound to this repository.
func (h *Handle) Git() *gitcmd.Git { return h.git }

// IsBare reports whether the handle addresses a headless repository.
func (h *Handle) IsBare() bool { return h.Mode == ModeBare }

// Serialize runs fn while holding the repository's mutation lock. All
// stage+commit sequences go through here; two concurrent mutations on
// the same index would silently lose one side's change otherwise.
// Reads never take this lock.
func (h *Handle) Serialize(fn func() error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return fn()
}
