package reconcile

import (
	"context"
)

// Source reads one collection from the device.
type Source interface {
	// Fetch returns the full collection for t as canonical entities.
	// Errors wrap ErrDeviceUnreachable, ErrDeviceAuth or ErrDeviceProtocol.
	// No partial collection is returned alongside an error.
	Fetch(ctx context.Context, t EntityType) ([]Entity, error)
}

// Gateway reads and writes the mirrored collections in the store.
type Gateway interface {
	// FetchExisting returns every stored record of t keyed by ExternalID,
	// read from a single consistent snapshot.
	FetchExisting(ctx context.Context, t EntityType) (map[int64]Record, error)

	// FetchOne returns the stored record for externalID, or ErrNotFound.
	FetchOne(ctx context.Context, t EntityType, externalID int64) (Record, error)

	// Create inserts a new record and returns its LocalID.
	// It fails with ErrDuplicateExternalID when a row for externalID already exists.
	Create(ctx context.Context, t EntityType, externalID int64, attrs Attributes) (int64, error)

	// Update overwrites the attributes of the record identified by localID.
	// It fails with ErrNotFound when no such row exists.
	Update(ctx context.Context, t EntityType, localID int64, attrs Attributes) error
}

// Observer receives pass and type outcomes. Implementations must be safe for
// concurrent use; a nil Observer is ignored.
type Observer interface {
	ObserveType(report *TypeReport)
	ObservePass(report *PassReport)
}
