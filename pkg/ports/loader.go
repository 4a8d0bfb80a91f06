package ports

import (
	"context"

	"github.com/aretw0/tops/pkg/domain"
)

// ChartLoader defines how statechart declarations are retrieved.
// This allows the source (Loam, YAML file, Memory) to be decoupled.
type ChartLoader interface {
	// Declarations returns every declared state, in a deterministic order.
	Declarations(ctx context.Context) ([]domain.Declaration, error)
}

// Watchable defines an interface for loaders that can notify about backend changes.
// This is typically used for hot-reload or dev-mode functionality.
type Watchable interface {
	// Watch returns a channel that is signaled with the changed document ID.
	Watch(ctx context.Context) (<-chan string, error)
}
