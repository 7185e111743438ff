package storage

import (
	"context"

	"github.com/weftworks/weft/internal/ir"
)

// Store is the record store concepts keep their state in. A record is
// one JSON object under a (relation, key) pair. Implementations must be
// safe for concurrent use.
type Store interface {
	// Get returns the record, or found=false if absent.
	Get(ctx context.Context, relation, key string) (body ir.Object, found bool, err error)

	// Put inserts or replaces the record.
	Put(ctx context.Context, relation, key string, body ir.Object) error

	// Find returns every record in the relation whose body matches all
	// filter fields exactly. Filter values must be scalars (string,
	// int, bool). A nil or empty filter returns the whole relation.
	Find(ctx context.Context, relation string, filter ir.Object) ([]ir.Object, error)

	// Delete removes the record. Deleting an absent key is a no-op.
	Delete(ctx context.Context, relation, key string) error

	// Close releases the store.
	Close() error
}
