// Package docstore defines the remote document store boundary: a
// document-oriented store addressed by (collection, document id) with
// get, set-with-merge, delete and list operations, plus the write
// events replication consumes.
package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Document is one stored document together with its address.
type Document struct {
	Collection string
	ID         string
	Data       map[string]any
}

// Store is the remote document store. Collections are slash-separated
// paths; "users/u1/products" is the products subcollection of user u1.
type Store interface {
	// Get returns the document body, or domainErrors.ErrDocumentNotFound.
	Get(ctx context.Context, collection, id string) (map[string]any, error)

	// Set writes a document. With merge, fields in data overlay the
	// existing body; without, the body is replaced. The document is
	// created if absent either way.
	Set(ctx context.Context, collection, id string, data map[string]any, merge bool) error

	// Delete removes a document. Deleting an absent document is a no-op.
	Delete(ctx context.Context, collection, id string) error

	// List returns every document in the collection.
	List(ctx context.Context, collection string) ([]Document, error)

	// ListByField returns documents whose top-level field equals value.
	ListByField(ctx context.Context, collection, field, value string) ([]Document, error)
}

// WriteEvent notifies that a document at the path was written or
// deleted. Delivery is at least once; consumers must act on the latest
// stored state, not on the event itself.
type WriteEvent struct {
	Collection string    `json:"collection"`
	DocID      string    `json:"docId"`
	At         time.Time `json:"at"`
}

// EventPublisher emits write events to the replication bus.
type EventPublisher interface {
	PublishWrite(ctx context.Context, ev WriteEvent) error
}

// PrivateCollection builds the per-owner subcollection path.
func PrivateCollection(ownerID, sub string) string {
	return "users/" + ownerID + "/" + sub
}

// SplitPrivateCollection decomposes a users/{owner}/{sub} path. ok is
// false for any other shape.
func SplitPrivateCollection(collection string) (ownerID, sub string, ok bool) {
	parts := strings.Split(collection, "/")
	if len(parts) != 3 || parts[0] != "users" || parts[1] == "" || parts[2] == "" {
		return "", "", false
	}
	return parts[1], parts[2], true
}

// UpdatedAtMillis extracts the updatedAt ordering signal from a
// document body. Absent or unreadable timestamps return 0, which
// degrades last-writer-wins to "never overwrite".
func UpdatedAtMillis(data map[string]any) int64 {
	v, ok := data["updatedAt"]
	if !ok {
		return 0
	}
	switch t := v.(type) {
	case int64:
		return t
	case float64:
		return int64(t)
	case int:
		return int64(t)
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return 0
		}
		return n
	case string:
		var n int64
		if _, err := fmt.Sscan(t, &n); err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}
