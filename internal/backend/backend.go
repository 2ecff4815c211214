// internal/backend/backend.go
package backend

import (
	"context"

	"github.com/dangerclosesec/rbacsync/internal/model"
)

// Adapter is the per-service client the engine converges against. One
// adapter covers one backend service; every method may block on the
// network and must honor ctx.
type Adapter interface {
	// FetchAll returns the live entities of one kind.
	FetchAll(ctx context.Context, kind model.Kind) ([]model.Entity, error)

	// Create creates the entity and returns its live representation.
	Create(ctx context.Context, e model.Entity) (model.Entity, error)

	// Update replaces the mutable attributes of an existing entity.
	Update(ctx context.Context, e model.Entity) error

	// Delete removes the entity identified by ref.
	Delete(ctx context.Context, ref model.Ref) error
}
