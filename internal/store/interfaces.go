package store

import (
	"context"
	"encoding/json"
	"time"
)

// Collection paths, matching the persisted layout
// /entries/{applicationNumber} and /posts/{autoKey}.
const (
	CollectionEntries = "entries"
	CollectionPosts   = "posts"
)

// Snapshot is the full state of one collection at a point in time. Keys holds
// the record keys in insertion order (oldest first); Records maps each key to
// its raw JSON value. Subscribers must treat every delivered snapshot as
// authoritative and replace prior state wholesale, not merge deltas.
type Snapshot struct {
	Keys    []string
	Records map[string]json.RawMessage
}

// UnsubscribeFunc stops a subscription started with Subscribe.
type UnsubscribeFunc func()

// KV defines the keyed-record store the ledger persists through. Every
// failure it returns is wrapped as a store error; raw backend errors never
// cross this boundary.
type KV interface {
	// CreateOrReplace writes the full record at key, overwriting
	// unconditionally. There is no optimistic concurrency check.
	CreateOrReplace(ctx context.Context, collection, key string, value any) error

	// Patch merges the given fields into the record at key. The record is
	// created if absent: callers that need the create-vs-update distinction
	// must call Exists first. Concurrent patches race and the last writer
	// wins per field; when two patches both carry the same array field, the
	// last writer's array wins in full.
	Patch(ctx context.Context, collection, key string, fields map[string]any) error

	// Delete removes the record at key. Deleting a missing key is not an
	// error.
	Delete(ctx context.Context, collection, key string) error

	// Exists reports whether a record is present at key.
	Exists(ctx context.Context, collection, key string) (bool, error)

	// Push appends value under a freshly generated key and returns that key.
	Push(ctx context.Context, collection string, value any) (string, error)

	// Snapshot reads the full current state of a collection.
	Snapshot(ctx context.Context, collection string) (*Snapshot, error)

	// Subscribe registers fn to receive the full collection snapshot every
	// time any record under it changes. An initial snapshot (possibly empty)
	// is delivered before Subscribe returns. The listener runs until the
	// returned UnsubscribeFunc is called or ctx is cancelled.
	Subscribe(ctx context.Context, collection string, fn func(*Snapshot)) (UnsubscribeFunc, error)
}

// Blob is a stored binary object.
type Blob struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	ContentType string    `db:"content_type"`
	Content     []byte    `db:"content"`
	CreatedAt   time.Time `db:"created_at"`
}

// BlobStore stores uploaded binary objects and hands back retrievable URLs.
type BlobStore interface {
	// Upload stores data under a generated id and returns the URL the
	// object can be fetched from.
	Upload(ctx context.Context, name, contentType string, data []byte) (string, error)

	// Open retrieves a stored object by id.
	Open(ctx context.Context, id string) (*Blob, error)
}
