package storage

import "testing"

const samplePointer = `version https://git-lfs.github.com/spec/v1
oid sha256:4d7a214614ab2935c943f9e0ff69d22eadbb8f32b1258daaa5e2ca24d17e2393
size 12345
`

func TestIsPointerData(t *testing.T) {
	if !IsPointerData([]byte(samplePointer)) {
		t.Fatal("sample pointer not recognized")
	}
	if IsPointerData([]byte("plain text file")) {
		t.Fatal("plain text misidentified as pointer")
	}
	if IsPointerData(nil) {
		t.Fatal("empty data misidentified as pointer")
	}
}

func TestParsePointer(t *testing.T) {
	p := ParsePointer([]byte(samplePointer))
	if p == nil {
		t.Fatal("ParsePointer returned nil")
	}
	if p.Oid != "4d7a214614ab2935c943f9e0ff69d22eadbb8f32b1258daaa5e2ca24d17e2393" {
		t.Fatalf("Oid = %q", p.Oid)
	}
	if p.Size != 12345 {
		t.Fatalf("Size = %d", p.Size)
	}

	if ParsePointer([]byte("not a pointer")) != nil {
		t.Fatal("non-pointer parsed")
	}
}
