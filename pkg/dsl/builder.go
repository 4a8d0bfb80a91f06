package dsl

import (
	"fmt"

	"github.com/aretw0/tops/pkg/adapters/memory"
	"github.com/aretw0/tops/pkg/domain"
	"github.com/aretw0/tops/pkg/statechart"
)

// Builder collects state declarations. It is the first phase of the two-phase build.
type Builder struct {
	states []*StateBuilder
	index  map[string]*StateBuilder
}

// New creates a new statechart builder.
func New() *Builder {
	return &Builder{
		index: make(map[string]*StateBuilder),
	}
}

// Add declares a state by name.
// If the state already exists, it returns the existing builder.
// An empty name is recorded and reported by Build.
func (b *Builder) Add(name string) *StateBuilder {
	if sb, ok := b.index[name]; ok && name != "" {
		return sb
	}
	sb := &StateBuilder{
		decl: domain.Declaration{
			Name: name,
		},
	}
	b.states = append(b.states, sb)
	if name != "" {
		b.index[name] = sb
	}
	return sb
}

// Declare registers complete declarations, e.g. decoded from a file.
// Unlike Add, declaring a name twice is kept and reported by Build.
func (b *Builder) Declare(decls ...domain.Declaration) *Builder {
	for _, d := range decls {
		sb := &StateBuilder{decl: d}
		b.states = append(b.states, sb)
		if _, ok := b.index[d.Name]; !ok && d.Name != "" {
			b.index[d.Name] = sb
		}
	}
	return b
}

// Declarations returns the declared states in declaration order.
func (b *Builder) Declarations() []domain.Declaration {
	out := make([]domain.Declaration, 0, len(b.states))
	for _, sb := range b.states {
		out = append(out, sb.Build())
	}
	return out
}

// Build resolves the declarations into an immutable chart.
func (b *Builder) Build() (*statechart.Chart, error) {
	chart, err := statechart.Compile(b.Declarations())
	if err != nil {
		return nil, fmt.Errorf("failed to build statechart: %w", err)
	}
	return chart, nil
}

// Loader validates the declarations and exposes them as a ports.ChartLoader.
func (b *Builder) Loader() (*memory.Loader, error) {
	if _, err := b.Build(); err != nil {
		return nil, err
	}
	return memory.NewLoader(b.Declarations()...)
}
