package ragapi

// IngestRequest carries the material for one ingestion: an uploaded file
// and/or pasted text. At least one must be present.
type IngestRequest struct {
	// FileName is the original name of the uploaded file; required when
	// File is set.
	FileName string
	// File is the raw file content.
	File []byte `validate:"required_without=Text"`
	// Text is pasted text.
	Text string `validate:"required_without=File"`
	// SourceName optionally overrides the backend's source label for
	// pasted text.
	SourceName string
}

// IngestResult is the backend's response to a successful ingestion.
type IngestResult struct {
	Message       string `json:"message"`
	Source        string `json:"source"`
	ChunksCreated int    `json:"chunks_created"`
	ChunksIndexed int    `json:"chunks_indexed"`
	LatencyMs     int    `json:"latency_ms"`
}

// Chunks returns the created chunk count, falling back to the indexed
// count; zero when the backend reported neither.
func (r *IngestResult) Chunks() int {
	if r.ChunksCreated > 0 {
		return r.ChunksCreated
	}
	return r.ChunksIndexed
}

// QueryRequest is the body of POST /query.
type QueryRequest struct {
	Question string `json:"question"`
}

// Citation is one retrieved passage backing the answer. Citation number N
// in the answer text refers to the Nth element of the citations sequence,
// 1-based.
type Citation struct {
	Source     string `json:"source"`
	Section    string `json:"section,omitempty"`
	Content    string `json:"content"`
	ChunkIndex *int   `json:"chunk_index,omitempty"`
}

// QueryResponse is the backend's answer to a query.
type QueryResponse struct {
	Answer       string     `json:"answer"`
	Citations    []Citation `json:"citations"`
	LatencyMs    int        `json:"latency_ms"`
	InputTokens  int        `json:"input_tokens"`
	OutputTokens int        `json:"output_tokens"`
}

// SourceList is the response of GET /sources.
type SourceList struct {
	Sources []string `json:"sources"`
	Count   int      `json:"count"`
}
