package store

import "fmt"

// NotFoundError is returned when a referenced record or file doesn't exist.
type NotFoundError struct {
	Ref string
}

func (e *NotFoundError) Error() string {
	if e.Ref == "" {
		return "not found"
	}
	return "not found: " + e.Ref
}

// ConflictError is returned when inserting a record whose id already exists.
// Duplicate-id inserts fail rather than overwrite so a stale caller can
// never silently clobber another record.
type ConflictError struct {
	ID string
}

func (e *ConflictError) Error() string {
	return "record already exists: " + e.ID
}

// InvalidArgumentError is returned for malformed input: empty required
// fields, negative pagination, relative paths where absolute is required.
type InvalidArgumentError struct {
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return "invalid argument: " + e.Reason
}

// StorageError wraps an underlying I/O or database failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// QueryError wraps a search backend failure. Zero results is not a
// QueryError; it is a normal empty slice.
type QueryError struct {
	Query string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query failed (%q): %v", e.Query, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }
