package uploads

import "time"

// Session is the persistent descriptor of one resumable upload. It
// lives as session.json inside the session directory; each received
// chunk is its own file next to it.
type Session struct {
	UploadID       string    `json:"upload_id"`
	RepoKey        string    `json:"repo_key"`
	TargetPath     string    `json:"target_path"`
	Size           int64     `json:"size"`
	SourceModified int64     `json:"source_modified"`
	Mime           string    `json:"mime,omitempty"`
	ChunkSize      int64     `json:"chunk_size"`
	TotalChunks    int       `json:"total_chunks"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// InitParams are the facts that identify an upload. The deterministic
// id derived from them is what makes re-running Init resume instead of
// restart.
type InitParams struct {
	RepoKey        string
	TargetPath     string
	Size           int64
	SourceModified int64
	Mime           string
}

// InitResult tells the client how to slice the file and which chunks
// the server already holds.
type InitResult struct {
	UploadID    string `json:"upload_id"`
	ChunkSize   int64  `json:"chunk_size"`
	TotalChunks int    `json:"total_chunks"`
	Received    []int  `json:"received"`
}
