package downloads

import (
	"testing"

	"github.com/gomantics/gitstore/pkg/apperr"
)

func TestParseRange(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		size     int64
		want     *ByteRange
		wantKind apperr.Kind
		wantErr  bool
	}{
		{name: "no header", header: "", size: 100, want: nil},
		{name: "closed", header: "bytes=0-49", size: 100, want: &ByteRange{0, 49}},
		{name: "middle", header: "bytes=10-19", size: 100, want: &ByteRange{10, 19}},
		{name: "open ended", header: "bytes=90-", size: 100, want: &ByteRange{90, 99}},
		{name: "suffix", header: "bytes=-10", size: 100, want: &ByteRange{90, 99}},
		{name: "suffix larger than size", header: "bytes=-500", size: 100, want: &ByteRange{0, 99}},
		{name: "end clamped", header: "bytes=50-500", size: 100, want: &ByteRange{50, 99}},
		{name: "single byte", header: "bytes=0-0", size: 1, want: &ByteRange{0, 0}},
		{
			name: "start at size", header: "bytes=100-", size: 100,
			wantErr: true, wantKind: apperr.RangeNotSatisfiable,
		},
		{
			name: "start past end", header: "bytes=20-10", size: 100,
			wantErr: true, wantKind: apperr.RangeNotSatisfiable,
		},
		{
			name: "zero suffix", header: "bytes=-0", size: 100,
			wantErr: true, wantKind: apperr.RangeNotSatisfiable,
		},
		{
			name: "suffix on empty resource", header: "bytes=-10", size: 0,
			wantErr: true, wantKind: apperr.RangeNotSatisfiable,
		},
		{
			name: "start on empty resource", header: "bytes=0-", size: 0,
			wantErr: true, wantKind: apperr.RangeNotSatisfiable,
		},
		{
			name: "multiple ranges", header: "bytes=0-1,5-6", size: 100,
			wantErr: true, wantKind: apperr.Validation,
		},
		{
			name: "wrong unit", header: "items=0-1", size: 100,
			wantErr: true, wantKind: apperr.Validation,
		},
		{
			name: "garbage", header: "bytes=abc", size: 100,
			wantErr: true, wantKind: apperr.Validation,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseRange(tc.header, tc.size)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tc.header)
				}
				if !apperr.Is(err, tc.wantKind) {
					t.Fatalf("kind = %v, want %v", apperr.KindOf(err), tc.wantKind)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRange(%q): %v", tc.header, err)
			}
			if tc.want == nil {
				if got != nil {
					t.Fatalf("range = %+v, want nil", got)
				}
				return
			}
			if got == nil || *got != *tc.want {
				t.Fatalf("range = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestByteRangeLength(t *testing.T) {
	r := ByteRange{Start: 10, End: 19}
	if r.Length() != 10 {
		t.Fatalf("Length = %d, want 10", r.Length())
	}
}
