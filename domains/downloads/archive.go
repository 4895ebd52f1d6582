package downloads

import (
	"context"
	"io"
	"strings"

	"github.com/gomantics/gitstore/domains/storage"
	"github.com/gomantics/gitstore/pkg/apperr"
	"github.com/klauspost/compress/zip"
	"go.uber.org/zap"
)

// archiveCopyBufSize bounds the per-entry copy loop; no file is ever
// held in memory whole.
const archiveCopyBufSize = 32 << 10

// WriteArchive streams dir at commit (or the live state) into w as a
// ZIP archive. One entry is fully written and closed before the next
// begins; each file's bytes flow through a fixed-size buffer.
func (s *Streamer) WriteArchive(ctx context.Context, st storage.Store, dir, commit string, w io.Writer) error {
	// Entry paths come back normalized, so the prefix must be computed
	// from the normalized directory too or nothing would match it.
	dir, err := storage.NormalizePath(dir)
	if err != nil {
		return err
	}

	entries, err := st.ListTree(ctx, dir, commit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return apperr.Newf(apperr.NotFound, "directory %q not found", dir)
	}

	prefix := ""
	if dir != "" {
		prefix = strings.TrimSuffix(dir, "/") + "/"
	}

	zw := zip.NewWriter(w)
	buf := make([]byte, archiveCopyBufSize)
	files := 0

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			zw.Close()
			return err
		}

		// The listing can include the base directory's own entry; only
		// what lives under it belongs in the archive.
		if prefix != "" && !strings.HasPrefix(entry.Path, prefix) {
			continue
		}
		name := strings.TrimPrefix(entry.Path, prefix)
		if name == "" {
			continue
		}

		if entry.Kind == storage.KindDirectory {
			hdr := &zip.FileHeader{Name: name + "/", Modified: entry.ModifiedAt}
			if _, err := zw.CreateHeader(hdr); err != nil {
				zw.Close()
				return apperr.Wrap(apperr.Internal, "failed to write archive entry", err)
			}
			continue
		}

		hdr := &zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: entry.ModifiedAt,
		}
		fw, err := zw.CreateHeader(hdr)
		if err != nil {
			zw.Close()
			return apperr.Wrap(apperr.Internal, "failed to write archive entry", err)
		}

		rc, err := st.FileContent(ctx, entry.Path, commit)
		if err != nil {
			zw.Close()
			return err
		}
		_, err = io.CopyBuffer(fw, rc, buf)
		rc.Close()
		if err != nil {
			zw.Close()
			return apperr.Wrap(apperr.Internal, "failed to stream archive entry", err)
		}
		files++
	}

	if err := zw.Close(); err != nil {
		return apperr.Wrap(apperr.Internal, "failed to finalize archive", err)
	}

	s.l.Debug("archive streamed", zap.String("dir", dir), zap.Int("files", files))
	return nil
}
