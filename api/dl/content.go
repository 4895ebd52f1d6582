// Package dl serves file downloads: single files with byte-range
// support and directories as streamed ZIP archives.
package dl

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"

	"github.com/gomantics/gitstore/api/repo"
	"github.com/gomantics/gitstore/api/web"
	"github.com/gomantics/gitstore/domains/downloads"
	"github.com/gomantics/gitstore/pkg/apperr"
	"github.com/gomantics/gitstore/pkg/streams"
	"go.uber.org/zap"
)

// Content handles GET /v1/repos/:repo/file
//
// Without a Range header the full content is returned and Accept-Ranges
// advertised. With one, a 206 carries exactly the requested slice. For
// seekable payloads the range is served by direct positioning; anything
// streamed from the object database is skip-then-limited instead.
func Content(rv *repo.Resolver, streamer *downloads.Streamer) web.HandlerFunc {
	return func(c web.Context) error {
		st, err := rv.Store(c)
		if err != nil {
			return c.Fail(err)
		}
		commit, err := repo.Commit(c)
		if err != nil {
			return c.Fail(err)
		}
		filePath := c.QueryParam("path")
		if filePath == "" {
			return c.BadRequest("path is required")
		}

		payload, err := streamer.Open(c.Request().Context(), st, filePath, commit)
		if err != nil {
			return c.Fail(err)
		}
		defer payload.Close()

		res := c.Response()
		res.Header().Set("Accept-Ranges", "bytes")
		res.Header().Set("Content-Type", contentType(filePath))
		res.Header().Set("Content-Disposition",
			fmt.Sprintf("attachment; filename=%q", path.Base(filePath)))

		rng, err := downloads.ParseRange(c.Request().Header.Get("Range"), payload.Size)
		if err != nil {
			if apperr.Is(err, apperr.RangeNotSatisfiable) {
				// 416 must still tell the caller the true total size.
				res.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", payload.Size))
			}
			return c.Fail(err)
		}

		if rng == nil {
			res.Header().Set("Content-Length", strconv.FormatInt(payload.Size, 10))
			res.WriteHeader(http.StatusOK)
			_, err = io.Copy(res, payload.Reader)
			return err
		}

		res.Header().Set("Content-Range",
			fmt.Sprintf("bytes %d-%d/%d", rng.Start, rng.End, payload.Size))
		res.Header().Set("Content-Length", strconv.FormatInt(rng.Length(), 10))
		res.WriteHeader(http.StatusPartialContent)

		var src io.Reader
		if payload.File != nil {
			if _, err := payload.File.Seek(rng.Start, io.SeekStart); err != nil {
				return err
			}
			src = io.LimitReader(payload.File, rng.Length())
		} else {
			src = streams.NewSkipLimitReader(payload.Reader, rng.Start, rng.Length())
		}

		if _, err := io.Copy(res, src); err != nil {
			c.L.Debug("range stream aborted", zap.Error(err))
			return err
		}
		return nil
	}
}

func contentType(filePath string) string {
	if ct := mime.TypeByExtension(path.Ext(filePath)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
