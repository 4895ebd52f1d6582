package storage

import (
	"path"
	"strings"

	"github.com/gomantics/gitstore/pkg/apperr"
)

// NormalizePath canonicalizes a repo-relative path: forward slashes,
// no leading slash, no traversal outside the repository root. The empty
// string addresses the repository root and is only valid where a
// directory is expected.
func NormalizePath(p string) (string, error) {
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.TrimPrefix(p, "/")
	if p == "" || p == "." {
		return "", nil
	}

	cleaned := path.Clean(p)
	if cleaned == "." {
		return "", nil
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", apperr.Newf(apperr.Validation, "path %q escapes the repository root", p)
	}
	if cleaned == ".git" || strings.HasPrefix(cleaned, ".git/") {
		return "", apperr.Newf(apperr.Validation, "path %q is reserved", p)
	}
	return cleaned, nil
}

// NormalizeFilePath is NormalizePath but rejects the repository root,
// for operations that need a concrete file or directory name.
func NormalizeFilePath(p string) (string, error) {
	cleaned, err := NormalizePath(p)
	if err != nil {
		return "", err
	}
	if cleaned == "" {
		return "", apperr.New(apperr.Validation, "path must not be empty")
	}
	return cleaned, nil
}
