package engine

import "time"

// Response shapes shared by every engine and the tool surface. They are
// JSON-tagged because they travel as structured tool output.

// InfoResponse describes a memory backend: what it is, how big it is,
// and how a caller should use it.
type InfoResponse struct {
	Engine       string            `json:"engine"`
	Records      int               `json:"records"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Instructions string            `json:"instructions,omitempty"`
}

// QueryResult is one search hit.
type QueryResult struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Source    string    `json:"source,omitempty"`
	CreatedAt time.Time `json:"created_at,omitzero"`
	Score     float64   `json:"score,omitempty"`
}

// QueryResponse is a ranked result set for one query.
type QueryResponse struct {
	Query   string        `json:"query"`
	Results []QueryResult `json:"results"`
	Total   int           `json:"total"`
}

// InsertResponse confirms a persisted record.
type InsertResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// DeleteResponse reports the outcome of a delete. Found is false when the
// id didn't exist; that is still a successful, idempotent delete.
type DeleteResponse struct {
	ID      string `json:"id"`
	Found   bool   `json:"found"`
	Message string `json:"message"`
}

// GetRecordResponse is a full record fetched by id.
type GetRecordResponse struct {
	ID          string    `json:"id"`
	Content     string    `json:"content"`
	ContentType string    `json:"content_type"`
	Source      string    `json:"source,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// RecordSummary is a listing row: identity plus a content preview.
type RecordSummary struct {
	ID          string    `json:"id"`
	ContentType string    `json:"content_type"`
	Preview     string    `json:"preview"`
	CreatedAt   time.Time `json:"created_at"`
}

// ListResponse is one page of records, newest first.
type ListResponse struct {
	Records []RecordSummary `json:"records"`
	Total   int             `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}
