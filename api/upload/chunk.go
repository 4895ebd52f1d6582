package upload

import (
	"strconv"

	"github.com/gomantics/gitstore/api/repo"
	"github.com/gomantics/gitstore/api/web"
	"github.com/gomantics/gitstore/domains/uploads"
)

// ChunkResponse acknowledges a stored chunk.
type ChunkResponse struct {
	UploadID string `json:"upload_id"`
	Index    int    `json:"index"`
}

// Chunk handles PUT /v1/repos/:repo/uploads/:id/chunks/:index
// The request body is the raw chunk payload.
func Chunk(rv *repo.Resolver, manager *uploads.Manager) web.HandlerFunc {
	return func(c web.Context) error {
		if _, err := rv.Handle(c); err != nil {
			return c.Fail(err)
		}
		id := c.Param("id")
		index, err := strconv.Atoi(c.Param("index"))
		if err != nil {
			return c.BadRequest("chunk index must be an integer")
		}

		if err := manager.PutChunk(c.Request().Context(), id, index, c.Request().Body); err != nil {
			return c.Fail(err)
		}
		return c.OK(ChunkResponse{UploadID: id, Index: index})
	}
}
