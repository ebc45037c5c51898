package store

import "time"

// ContentType discriminates what a record's content field holds.
type ContentType string

const (
	// ContentTypeText marks records whose content is the text body itself.
	ContentTypeText ContentType = "text"

	// ContentTypeFile marks records whose content is a path into the
	// attachments directory, relative to the attachment root.
	ContentTypeFile ContentType = "file"
)

// Record is the durable unit of stored memory and the canonical source
// of truth for all engines.
type Record struct {
	// ID is the unique record identifier, caller-supplied or a
	// generated UUIDv4.
	ID string `json:"id"`

	// Content is the text body, or the attachment-relative path for
	// file records.
	Content string `json:"content"`

	// ContentType is text or file.
	ContentType ContentType `json:"content_type"`

	// Source is the original filename, URI, or provenance. Empty when
	// unknown.
	Source string `json:"source,omitempty"`

	// CreatedAt is set once at insert and never updated.
	CreatedAt time.Time `json:"created_at"`
}
