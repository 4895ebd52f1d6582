// Package gitcmd wraps the external git executable behind a narrow
// command-runner port. Everything the storage layer knows about child
// processes lives here; the rest of the system sees readers, byte
// slices and exit codes.
package gitcmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// Command describes one invocation of the git executable.
type Command struct {
	Args  []string
	Dir   string
	Env   []string // appended to the process environment
	Stdin io.Reader
}

// Runner executes git commands. The production implementation shells
// out; tests substitute a fake.
type Runner interface {
	// Run executes the command and returns its full stdout. Use only for
	// outputs known to be small (hashes, listings, log records).
	Run(ctx context.Context, cmd Command) ([]byte, error)

	// Start executes the command and returns its stdout as a stream.
	// Closing the returned reader tears the child process down, so an
	// abandoned consumer never leaves git running to completion.
	Start(ctx context.Context, cmd Command) (io.ReadCloser, error)
}

// ExitError is returned when git exits non-zero. Stderr is captured so
// callers can classify failures (e.g. unknown revision vs. real fault).
type ExitError struct {
	Code   int
	Stderr string
	Args   []string
}

func (e *ExitError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		msg = "(no stderr)"
	}
	return fmt.Sprintf("git %s: exit status %d: %s", strings.Join(e.Args, " "), e.Code, msg)
}

// ExitCode extracts the git exit code from err, or -1 if err is not an
// ExitError.
func ExitCode(err error) int {
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return -1
}

// ExecRunner is the production Runner backed by os/exec.
type ExecRunner struct {
	// GitPath overrides the executable name, default "git".
	GitPath string
}

// NewExecRunner returns a Runner that shells out to git on PATH.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

func (r *ExecRunner) gitPath() string {
	if r.GitPath != "" {
		return r.GitPath
	}
	return "git"
}

func (r *ExecRunner) build(ctx context.Context, cmd Command) (*exec.Cmd, *bytes.Buffer) {
	c := exec.CommandContext(ctx, r.gitPath(), cmd.Args...)
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(c.Environ(), cmd.Env...)
	}
	c.Stdin = cmd.Stdin
	stderr := &bytes.Buffer{}
	c.Stderr = stderr
	return c, stderr
}

func (r *ExecRunner) Run(ctx context.Context, cmd Command) ([]byte, error) {
	c, stderr := r.build(ctx, cmd)
	out, err := c.Output()
	if err != nil {
		return nil, wrapExit(err, stderr, cmd.Args)
	}
	return out, nil
}

func (r *ExecRunner) Start(ctx context.Context, cmd Command) (io.ReadCloser, error) {
	c, stderr := r.build(ctx, cmd)
	stdout, err := c.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := c.Start(); err != nil {
		return nil, err
	}
	return &processStream{cmd: c, stdout: stdout, stderr: stderr, args: cmd.Args}, nil
}

// processStream exposes a child's stdout and reaps the process on Close.
type processStream struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *bytes.Buffer
	args   []string
	waited bool
}

func (p *processStream) Read(b []byte) (int, error) {
	n, err := p.stdout.Read(b)
	if err == io.EOF {
		// Stream drained; surface the exit status instead of silent EOF.
		if werr := p.wait(); werr != nil {
			return n, werr
		}
	}
	return n, err
}

func (p *processStream) Close() error {
	p.stdout.Close()
	if !p.waited {
		// Consumer bailed early: kill rather than let git run on.
		_ = p.cmd.Process.Kill()
		p.waited = true
		_ = p.cmd.Wait()
	}
	return nil
}

func (p *processStream) wait() error {
	if p.waited {
		return nil
	}
	p.waited = true
	if err := p.cmd.Wait(); err != nil {
		return wrapExit(err, p.stderr, p.args)
	}
	return nil
}

func wrapExit(err error, stderr *bytes.Buffer, args []string) error {
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return &ExitError{Code: ee.ExitCode(), Stderr: stderr.String(), Args: args}
	}
	return fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
}
