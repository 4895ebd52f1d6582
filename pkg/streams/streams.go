// Package streams provides small io building blocks for serving byte
// ranges over sources that cannot seek.
package streams

import (
	"io"
)

// SkipLimitReader reads from r, discarding the first skip bytes and then
// forwarding at most limit bytes. It is how a logical byte range is
// emulated over a non-seekable source (a child process stdout, a filter
// pipeline) without buffering the whole stream.
type SkipLimitReader struct {
	r       io.Reader
	skip    int64
	limit   int64
	skipped bool
}

// NewSkipLimitReader returns a reader exposing limit bytes of r starting
// at offset skip. A negative limit means "until EOF".
func NewSkipLimitReader(r io.Reader, skip, limit int64) *SkipLimitReader {
	return &SkipLimitReader{r: r, skip: skip, limit: limit}
}

func (s *SkipLimitReader) Read(p []byte) (int, error) {
	if !s.skipped {
		if err := s.discard(); err != nil {
			return 0, err
		}
		s.skipped = true
	}

	if s.limit == 0 {
		return 0, io.EOF
	}
	if s.limit > 0 && int64(len(p)) > s.limit {
		p = p[:s.limit]
	}

	n, err := s.r.Read(p)
	if s.limit > 0 {
		s.limit -= int64(n)
	}
	return n, err
}

func (s *SkipLimitReader) discard() error {
	if s.skip <= 0 {
		return nil
	}
	_, err := io.CopyN(io.Discard, s.r, s.skip)
	return err
}

// CountingWriter counts bytes written through it.
type CountingWriter struct {
	W io.Writer
	N int64
}

func (c *CountingWriter) Write(p []byte) (int, error) {
	n, err := c.W.Write(p)
	c.N += int64(n)
	return n, err
}
