// Package docstore is a key-addressed hierarchical document store, the
// storage contract the rest of the system is written against. Documents live
// at slash-separated paths ("users/7", "quizzes/1/questions/5/options/0")
// and are flat-ish maps of field name to value. Three backends exist:
// in-memory (tests/dev), database/sql (sqlite or postgres) and MongoDB.
package docstore

import (
	"context"
	"errors"
	"strings"
	"time"
)

var ErrNotFound = errors.New("document not found")

// Doc is a single document's fields.
type Doc map[string]any

// Increment is a sentinel field value: atomically add By to the current
// numeric value of the field (missing field counts as zero).
type Increment struct{ By int64 }

// ServerTimestamp is a sentinel field value resolved to the store's clock at
// write time.
type ServerTimestamp struct{}

// Snapshot is a document plus its id within its collection.
type Snapshot struct {
	ID   string
	Data Doc
}

// Store is the document store contract. Paths always have an even number of
// segments (collection/id pairs); collections have an odd number.
type Store interface {
	// Get returns the document at path, or ErrNotFound.
	Get(ctx context.Context, path string) (Doc, error)
	// Set writes fields at path. With merge=true existing fields not named
	// in fields are kept; otherwise the document is replaced. The document
	// is created if absent either way.
	Set(ctx context.Context, path string, fields Doc, merge bool) error
	// Update merges fields into an existing document, ErrNotFound if absent.
	Update(ctx context.Context, path string, fields Doc) error
	// UpdateIf merges fields only when every cond field equals the stored
	// value. Returns false (and no error) when the condition does not hold.
	// This is the primitive behind the completed-once guard and the
	// best-score compare-and-swap.
	UpdateIf(ctx context.Context, path string, cond Doc, fields Doc) (bool, error)
	// Delete removes the document at path. Deleting a missing document is
	// not an error.
	Delete(ctx context.Context, path string) error
	// Add creates a document with a store-assigned id under collection and
	// returns the id.
	Add(ctx context.Context, collection string, fields Doc) (string, error)
	// List returns all documents directly under collection, unordered.
	List(ctx context.Context, collection string) ([]Snapshot, error)
}

// Join builds a path from segments.
func Join(parts ...string) string { return strings.Join(parts, "/") }

// Parent returns the collection a document path belongs to.
func Parent(path string) string {
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return ""
	}
	return path[:i]
}

// ID returns the last path segment.
func ID(path string) string {
	i := strings.LastIndexByte(path, '/')
	return path[i+1:]
}

// apply merges fields into dst, materializing sentinel values against the
// current document and clock. Shared by the backends that apply writes in
// process (memory, sql).
func apply(dst, fields Doc, now time.Time) {
	for k, v := range fields {
		switch s := v.(type) {
		case Increment:
			cur, _ := AsInt64(dst[k])
			dst[k] = cur + s.By
		case ServerTimestamp:
			dst[k] = now
		default:
			dst[k] = v
		}
	}
}

// AsInt64 reads a stored numeric field regardless of the concrete type the
// backend round-tripped it as.
func AsInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case float64:
		return int64(n), true
	case float32:
		return int64(n), true
	}
	return 0, false
}

// AsTime reads a stored timestamp field.
func AsTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		if ts, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return ts, true
		}
	case int64:
		return time.Unix(t, 0), true
	case float64:
		return time.Unix(int64(t), 0), true
	}
	return time.Time{}, false
}

// AsBool reads a stored boolean field, defaulting to false.
func AsBool(v any) bool {
	b, _ := v.(bool)
	return b
}

// AsString reads a stored string field, defaulting to "".
func AsString(v any) string {
	s, _ := v.(string)
	return s
}
