package storage

import (
	"bytes"
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/gomantics/gitstore/pkg/apperr"
)

// pointerSignature is the first line of a large-binary pointer record.
const pointerSignature = "version https://git-lfs.github.com/spec/v1"

// pointerMaxSize bounds how large a blob can be and still be a pointer
// candidate. Real pointer records are ~130 bytes.
const pointerMaxSize = 1024

// Pointer is a parsed large-binary pointer record: the content hash and
// true size of the bytes held in the side store.
type Pointer struct {
	Oid  string
	Size int64
}

// IsPointerData reports whether data begins with the pointer signature.
func IsPointerData(data []byte) bool {
	return bytes.HasPrefix(data, []byte(pointerSignature))
}

// ParsePointer decodes a pointer record. Returns nil when data is not a
// pointer.
func ParsePointer(data []byte) *Pointer {
	if !IsPointerData(data) {
		return nil
	}
	p := &Pointer{}
	for _, line := range strings.Split(string(data), "\n") {
		switch {
		case strings.HasPrefix(line, "oid sha256:"):
			p.Oid = strings.TrimPrefix(line, "oid sha256:")
		case strings.HasPrefix(line, "size "):
			p.Size, _ = strconv.ParseInt(strings.TrimSpace(strings.TrimPrefix(line, "size ")), 10, 64)
		}
	}
	return p
}

// readPointerCandidate reads the raw content fully if it is small enough
// to be a pointer record. Returns nil without error for anything larger.
func (o *gitOps) readPointerCandidate(c *Content) ([]byte, error) {
	if c.Size > pointerMaxSize {
		return nil, nil
	}
	data, err := io.ReadAll(c.Reader)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to read blob", err)
	}
	return data, nil
}

// smudge pipes a pointer record through the de-indirection filter and
// returns the real bytes as a stream. The filter resolves the content
// hash against the repository's side store.
func (o *gitOps) smudge(ctx context.Context, pointer []byte) (io.ReadCloser, error) {
	rc, err := o.git.StartWith(ctx, nil, bytes.NewReader(pointer), "lfs", "smudge")
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to start de-indirection filter", err)
	}
	return rc, nil
}

// resolveContent turns a raw content stream into the logical one,
// de-indirecting pointer records transparently.
func (o *gitOps) resolveContent(ctx context.Context, c *Content) (io.ReadCloser, error) {
	data, err := o.readPointerCandidate(c)
	if err != nil {
		c.Close()
		return nil, err
	}
	if data == nil {
		// Too large to be a pointer; pass the stream through untouched.
		return c.Reader, nil
	}
	c.Close()

	if IsPointerData(data) {
		return o.smudge(ctx, data)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}
