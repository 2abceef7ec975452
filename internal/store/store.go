// Package store provides the storage contract for sweets and its implementations.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Sweet is the persisted representation of a catalog item.
// Version is bumped on every successful update and is used for compare-and-swap writes.
type Sweet struct {
	ID        uuid.UUID
	Name      string
	Category  string
	Price     float64
	Quantity  int32
	Version   int32
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateParams holds the fields of a sweet that is about to be created.
type CreateParams struct {
	Name     string
	Category string
	Price    float64
	Quantity int32
}

// UpdateParams replaces every mutable field of the sweet with the given ID,
// provided the stored version still equals Version.
type UpdateParams struct {
	ID       uuid.UUID
	Name     string
	Category string
	Price    float64
	Quantity int32
	Version  int32
}

// SweetStore is an interface for sweet storage operations.
// It abstracts the underlying data store, allowing for different implementations (e.g., in-memory, database).
type SweetStore interface {
	// FindByID retrieves a single sweet by its unique identifier.
	// Returns ErrSweetNotFound if no sweet exists with the given ID.
	FindByID(ctx context.Context, id uuid.UUID) (*Sweet, error)

	// FindAll returns all sweets in creation order.
	// Returns an empty slice if no sweets exist.
	FindAll(ctx context.Context) ([]Sweet, error)

	// ExistsByName reports whether a sweet with exactly this name exists.
	ExistsByName(ctx context.Context, name string) (bool, error)

	// Create adds a new sweet and assigns its identifier.
	// Returns ErrDuplicateName if the name is already taken.
	Create(ctx context.Context, params CreateParams) (*Sweet, error)

	// Update modifies an existing sweet in place if its version still matches.
	// Returns ErrSweetNotFound if the sweet does not exist, ErrVersionMismatch if it was
	// modified since it was read and ErrDuplicateName if the new name is taken.
	Update(ctx context.Context, params UpdateParams) (*Sweet, error)

	// DeleteByID removes a sweet by its ID.
	// Returns ErrSweetNotFound if no sweet exists with the given ID.
	DeleteByID(ctx context.Context, id uuid.UUID) error
}
