package memory

import (
	"context"
	"fmt"

	"github.com/aretw0/tops/pkg/domain"
)

// Loader implements ports.ChartLoader over declarations held in memory.
type Loader struct {
	decls []domain.Declaration
}

// NewLoader creates a new in-memory loader. Declarations keep their order.
func NewLoader(decls ...domain.Declaration) (*Loader, error) {
	for i, d := range decls {
		if d.Name == "" {
			return nil, fmt.Errorf("declaration #%d: %w", i, domain.ErrMissingName)
		}
	}
	return &Loader{decls: append([]domain.Declaration(nil), decls...)}, nil
}

// Declarations returns a copy of the stored declarations.
func (l *Loader) Declarations(ctx context.Context) ([]domain.Declaration, error) {
	return append([]domain.Declaration(nil), l.decls...), nil
}
