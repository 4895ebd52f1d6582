package downloads

import (
	"strconv"
	"strings"

	"github.com/gomantics/gitstore/pkg/apperr"
)

// ByteRange is one resolved inclusive byte range within a resource of
// known size.
type ByteRange struct {
	Start int64
	End   int64
}

// Length returns the number of bytes the range covers.
func (r ByteRange) Length() int64 { return r.End - r.Start + 1 }

// ParseRange resolves a Range header of the forms bytes=a-b, bytes=a-
// and bytes=-suffix against the total size. A missing header returns
// (nil, nil): serve the whole resource. Unsatisfiable ranges (start
// beyond the end, start past the last byte) return RangeNotSatisfiable;
// the caller reports the true total size alongside.
func ParseRange(header string, size int64) (*ByteRange, error) {
	if header == "" {
		return nil, nil
	}
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok || strings.Contains(spec, ",") {
		return nil, apperr.Newf(apperr.Validation, "unsupported range %q", header)
	}

	start, end, found := strings.Cut(spec, "-")
	if !found {
		return nil, apperr.Newf(apperr.Validation, "malformed range %q", header)
	}

	// bytes=-suffix: the final N bytes. An empty resource has no final
	// bytes to serve.
	if start == "" {
		n, err := strconv.ParseInt(end, 10, 64)
		if err != nil || n <= 0 || size == 0 {
			return nil, apperr.Newf(apperr.RangeNotSatisfiable, "unsatisfiable range %q", header)
		}
		if n > size {
			n = size
		}
		return &ByteRange{Start: size - n, End: size - 1}, nil
	}

	s, err := strconv.ParseInt(start, 10, 64)
	if err != nil || s < 0 {
		return nil, apperr.Newf(apperr.Validation, "malformed range %q", header)
	}
	if s >= size {
		return nil, apperr.Newf(apperr.RangeNotSatisfiable, "range start %d is beyond the size %d", s, size)
	}

	// bytes=a-: open ended.
	if end == "" {
		return &ByteRange{Start: s, End: size - 1}, nil
	}

	e, err := strconv.ParseInt(end, 10, 64)
	if err != nil {
		return nil, apperr.Newf(apperr.Validation, "malformed range %q", header)
	}
	if e < s {
		return nil, apperr.Newf(apperr.RangeNotSatisfiable, "range start %d is beyond its end %d", s, e)
	}
	if e >= size {
		e = size - 1
	}
	return &ByteRange{Start: s, End: e}, nil
}
