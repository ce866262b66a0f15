package models

// DebugTrace is the per-request diagnostic record returned alongside a chat
// response. It lives for one request/response cycle and is never persisted.
type DebugTrace struct {
	RequestID         string    `json:"request_id"`
	Provider          string    `json:"provider"`
	Model             string    `json:"model"`
	APIURL            string    `json:"api_url"`
	RequestTimestamp  string    `json:"request_timestamp"`
	ResponseID        string    `json:"response_id,omitempty"`
	LatencyMS         int64     `json:"latency_ms"`
	RequestCharacters int       `json:"request_characters"`
	RequestBytes      int       `json:"request_bytes"`
	PromptTokens      int       `json:"prompt_tokens"`
	PromptPreview     string    `json:"prompt_preview"`
	Medications       []string  `json:"medications"`
	APICalls          []APICall `json:"api_calls"`
}

// KnowledgeResult is one hit from the knowledge index, carrying the stored
// summary, the raw record it was derived from, and the cosine similarity to
// the query.
type KnowledgeResult struct {
	Name       string           `json:"name"`
	Content    string           `json:"content"`
	Metadata   MedicationRecord `json:"metadata"`
	Similarity float64          `json:"similarity"`
}
