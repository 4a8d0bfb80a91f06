package loam

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/loam"
	"github.com/aretw0/tops/pkg/domain"
)

// WatchPattern selects the documents that can declare states.
const WatchPattern = "**/*.{md,json,yaml,yml}"

// Loader adapts a Loam repository to the ports.ChartLoader interface.
// Each document declares one state.
type Loader struct {
	Repo *loam.TypedRepository[StateMetadata]
}

// New creates a new Loam adapter.
func New(repo *loam.TypedRepository[StateMetadata]) *Loader {
	return &Loader{
		Repo: repo,
	}
}

// Open initializes a read-only, strict Loam repository at path.
func Open(path string) (*Loader, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}

	repo, err := loam.Init(absPath,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return New(loam.NewTypedRepository[StateMetadata](repo)), nil
}

// Declarations lists every document and converts it into a state declaration.
// The result is sorted by state name; two documents declaring the same name are rejected.
func (l *Loader) Declarations(ctx context.Context) ([]domain.Declaration, error) {
	docs, err := l.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	seen := make(map[string]string, len(docs))
	decls := make([]domain.Declaration, 0, len(docs))
	for _, doc := range docs {
		decl := toDeclaration(doc.ID, doc.Data, doc.Content)
		if existing, ok := seen[decl.Name]; ok {
			return nil, fmt.Errorf("%w: %q is declared in both '%s' and '%s'", domain.ErrDuplicateState, decl.Name, existing, doc.ID)
		}
		seen[decl.Name] = doc.ID
		decls = append(decls, decl)
	}

	sort.Slice(decls, func(i, j int) bool { return decls[i].Name < decls[j].Name })
	return decls, nil
}

func toDeclaration(docID string, meta StateMetadata, content string) domain.Declaration {
	name := meta.Name
	if name == "" {
		name = docID
	}

	decl := domain.Declaration{
		Name:     trimExtension(name),
		Initial:  meta.Initial,
		Parent:   meta.Parent,
		Compound: meta.Compound,
		Doc:      strings.TrimSpace(content),
	}
	for _, t := range meta.Triggers {
		target := t.Target
		if target == "" {
			target = t.To
		}
		if t.Recall {
			target = domain.Recall(target).String()
		}
		decl.Triggers = append(decl.Triggers, domain.Trigger{Label: t.Label, Target: target})
	}
	return decl
}

func trimExtension(id string) string {
	return filepath.ToSlash(strings.TrimSuffix(id, filepath.Ext(id)))
}

// Watch implements ports.Watchable.
func (l *Loader) Watch(ctx context.Context) (<-chan string, error) {
	events, err := l.Repo.Watch(ctx, WatchPattern)
	if err != nil {
		return nil, fmt.Errorf("failed to start loam watcher: %w", err)
	}

	ch := make(chan string, 1)
	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-events:
				if !ok {
					return
				}
				select {
				case ch <- trimExtension(evt.ID):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch, nil
}
