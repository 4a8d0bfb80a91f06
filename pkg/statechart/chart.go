package statechart

import (
	"errors"
	"fmt"
	"sort"

	"github.com/aretw0/tops/pkg/domain"
)

const none = -1

// node is a compiled state. Relations are indices into Chart.nodes.
type node struct {
	name     string
	initial  int
	parent   int
	children []int
	compound bool
	doc      string
	triggers []domain.Trigger
}

// Chart is the immutable, compiled form of a set of declarations.
// It is safe for concurrent use by any number of machines.
type Chart struct {
	nodes []node
	index map[string]int
}

// Compile resolves declarations into a Chart. Every problem found is reported;
// the returned error wraps domain.ErrConfiguration.
func Compile(decls []domain.Declaration) (*Chart, error) {
	c := &Chart{
		nodes: make([]node, 0, len(decls)),
		index: make(map[string]int, len(decls)),
	}

	var errs []error
	for i, d := range decls {
		if d.Name == "" {
			errs = append(errs, fmt.Errorf("declaration #%d: %w", i, domain.ErrMissingName))
			continue
		}
		if _, dup := c.index[d.Name]; dup {
			errs = append(errs, fmt.Errorf("%w: %q", domain.ErrDuplicateState, d.Name))
			continue
		}
		c.index[d.Name] = len(c.nodes)
		c.nodes = append(c.nodes, node{
			name:     d.Name,
			initial:  none,
			parent:   none,
			compound: d.Compound,
			doc:      d.Doc,
			triggers: append([]domain.Trigger(nil), d.Triggers...),
		})
	}

	// Second pass: parents first, so initial children can be checked against them.
	byName := make(map[string]domain.Declaration, len(decls))
	for _, d := range decls {
		if d.Name != "" {
			if _, seen := byName[d.Name]; !seen {
				byName[d.Name] = d
			}
		}
	}
	for i := range c.nodes {
		d := byName[c.nodes[i].name]
		if d.Parent == "" {
			continue
		}
		p, ok := c.index[d.Parent]
		if !ok {
			errs = append(errs, fmt.Errorf("state %q: parent: %w %q", d.Name, domain.ErrUnknownState, d.Parent))
			continue
		}
		c.nodes[i].parent = p
		c.nodes[p].children = append(c.nodes[p].children, i)
	}
	for i := range c.nodes {
		if len(c.nodes[i].children) > 0 {
			c.nodes[i].compound = true
		}
		d := byName[c.nodes[i].name]
		if d.Initial == "" {
			continue
		}
		child, ok := c.index[d.Initial]
		if !ok {
			errs = append(errs, fmt.Errorf("state %q: initial: %w %q", d.Name, domain.ErrUnknownState, d.Initial))
			continue
		}
		if c.nodes[child].parent != i {
			errs = append(errs, fmt.Errorf("%w: %q is not a valid initial state for %q", domain.ErrConfiguration, d.Initial, d.Name))
			continue
		}
		c.nodes[i].initial = child
		c.nodes[i].compound = true
	}

	errs = append(errs, c.checkCycles()...)
	errs = append(errs, c.checkTriggers()...)

	if len(errs) > 0 {
		return nil, fmt.Errorf("compile statechart: %w", errors.Join(errs...))
	}
	return c, nil
}

func (c *Chart) checkCycles() []error {
	var errs []error
	for i := range c.nodes {
		steps := 0
		for p := c.nodes[i].parent; p != none; p = c.nodes[p].parent {
			steps++
			if p == i || steps > len(c.nodes) {
				errs = append(errs, fmt.Errorf("%w: parent cycle through %q", domain.ErrConfiguration, c.nodes[i].name))
				break
			}
		}
	}
	return errs
}

func (c *Chart) checkTriggers() []error {
	var errs []error
	for _, n := range c.nodes {
		for _, t := range n.triggers {
			if err := c.checkTarget(t.Target); err != nil {
				errs = append(errs, fmt.Errorf("state %q trigger %q: %w", n.name, t.Label, err))
			}
		}
	}
	return errs
}

// checkTarget validates a trigger target against the chart.
func (c *Chart) checkTarget(target string) error {
	req, err := domain.ParseRequest(target)
	if err != nil {
		return err
	}
	if _, ok := c.index[req.Target]; !ok {
		return fmt.Errorf("%w %q", domain.ErrUnknownState, req.Target)
	}
	return nil
}

// Len returns the number of states.
func (c *Chart) Len() int { return len(c.nodes) }

// Has reports whether name is a declared state.
func (c *Chart) Has(name string) bool {
	_, ok := c.index[name]
	return ok
}

// Names returns the state names in declaration order.
func (c *Chart) Names() []string {
	names := make([]string, len(c.nodes))
	for i, n := range c.nodes {
		names[i] = n.name
	}
	return names
}

// Roots returns the top-level states (one per region of the forest), in declaration order.
func (c *Chart) Roots() []string {
	var roots []string
	for _, n := range c.nodes {
		if n.parent == none {
			roots = append(roots, n.name)
		}
	}
	return roots
}

// Parent returns the parent of name, or "" for a root or unknown state.
func (c *Chart) Parent(name string) string {
	i, ok := c.index[name]
	if !ok || c.nodes[i].parent == none {
		return ""
	}
	return c.nodes[c.nodes[i].parent].name
}

// Initial returns the initial child of name, or "".
func (c *Chart) Initial(name string) string {
	i, ok := c.index[name]
	if !ok || c.nodes[i].initial == none {
		return ""
	}
	return c.nodes[c.nodes[i].initial].name
}

// Children returns the children of name, in declaration order.
func (c *Chart) Children(name string) []string {
	i, ok := c.index[name]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(c.nodes[i].children))
	for _, ch := range c.nodes[i].children {
		out = append(out, c.nodes[ch].name)
	}
	return out
}

// IsCompound reports whether name has children or was declared compound.
func (c *Chart) IsCompound(name string) bool {
	i, ok := c.index[name]
	return ok && c.nodes[i].compound
}

// IsLeaf reports whether name has no initial child.
func (c *Chart) IsLeaf(name string) bool {
	i, ok := c.index[name]
	return ok && c.nodes[i].initial == none
}

// Doc returns the markdown description of name.
func (c *Chart) Doc(name string) string {
	if i, ok := c.index[name]; ok {
		return c.nodes[i].doc
	}
	return ""
}

// Ancestry returns name followed by its ancestors, leaf to root.
func (c *Chart) Ancestry(name string) []string {
	i, ok := c.index[name]
	if !ok {
		return nil
	}
	var path []string
	for ; i != none; i = c.nodes[i].parent {
		path = append(path, c.nodes[i].name)
	}
	return path
}

// Declarations returns the resolved declarations in declaration order.
// Compound flags reflect the compiled chart rather than the input.
func (c *Chart) Declarations() []domain.Declaration {
	out := make([]domain.Declaration, len(c.nodes))
	for i, n := range c.nodes {
		out[i] = domain.Declaration{
			Name:     n.name,
			Initial:  c.Initial(n.name),
			Parent:   c.Parent(n.name),
			Compound: n.compound,
			Doc:      n.doc,
			Triggers: append([]domain.Trigger(nil), n.triggers...),
		}
	}
	return out
}

// Depth returns the number of ancestors of name.
func (c *Chart) Depth(name string) int {
	return len(c.Ancestry(name)) - 1
}

// Sorted returns the state names ordered by depth-first traversal of the forest,
// which is the natural order for tree-like rendering.
func (c *Chart) Sorted() []string {
	var out []string
	var walk func(i int)
	walk = func(i int) {
		out = append(out, c.nodes[i].name)
		children := append([]int(nil), c.nodes[i].children...)
		sort.Ints(children)
		for _, ch := range children {
			walk(ch)
		}
	}
	for i, n := range c.nodes {
		if n.parent == none {
			walk(i)
		}
	}
	return out
}
