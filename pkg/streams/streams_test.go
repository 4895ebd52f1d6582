package streams

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestSkipLimitReader(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		skip  int64
		limit int64
		want  string
	}{
		{name: "middle slice", src: "hello world", skip: 6, limit: 5, want: "world"},
		{name: "no skip", src: "hello", skip: 0, limit: 3, want: "hel"},
		{name: "until eof", src: "hello world", skip: 6, limit: -1, want: "world"},
		{name: "limit past eof", src: "abc", skip: 1, limit: 100, want: "bc"},
		{name: "zero limit", src: "abc", skip: 0, limit: 0, want: ""},
		{name: "skip everything", src: "abc", skip: 3, limit: -1, want: ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := NewSkipLimitReader(strings.NewReader(tc.src), tc.skip, tc.limit)
			got, err := io.ReadAll(r)
			if err != nil {
				t.Fatalf("ReadAll: %v", err)
			}
			if string(got) != tc.want {
				t.Fatalf("read %q, want %q", got, tc.want)
			}
		})
	}
}

func TestSkipLimitReaderSkipPastEOF(t *testing.T) {
	r := NewSkipLimitReader(strings.NewReader("ab"), 10, 5)
	if _, err := io.ReadAll(r); err == nil {
		t.Fatal("expected error when skip exceeds the source length")
	}
}

func TestSkipLimitReaderSmallReads(t *testing.T) {
	r := NewSkipLimitReader(strings.NewReader("0123456789"), 2, 6)
	var out bytes.Buffer
	buf := make([]byte, 2)
	for {
		n, err := r.Read(buf)
		out.Write(buf[:n])
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
	}
	if out.String() != "234567" {
		t.Fatalf("read %q, want %q", out.String(), "234567")
	}
}

func TestCountingWriter(t *testing.T) {
	var sink bytes.Buffer
	cw := &CountingWriter{W: &sink}
	if _, err := io.Copy(cw, strings.NewReader("some payload")); err != nil {
		t.Fatalf("Copy: %v", err)
	}
	if cw.N != int64(len("some payload")) {
		t.Fatalf("counted %d bytes, want %d", cw.N, len("some payload"))
	}
}
