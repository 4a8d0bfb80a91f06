package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/tops/pkg/domain"
	"github.com/aretw0/tops/pkg/ports"
)

// Class names applied to elements, mirroring the stylesheet of the web front-end.
const (
	ClassState           = "state"
	ClassSelectedState   = "selected state"
	ClassTitle           = "title"
	ClassSelectedTitle   = "selected title"
	ClassTrigger         = "trigger"
	ClassSelectedTrigger = "selected trigger"
)

// Document is an in-memory page: state elements are looked up by name and
// carry class names and click handlers the way rendered elements would.
// It implements ports.Binder and ports.Navigator. Safe for concurrent use.
type Document struct {
	mu       sync.Mutex
	elements map[string]*Element
	anchor   string
	reveals  int
}

// NewDocument creates an empty document.
func NewDocument() *Document {
	return &Document{elements: make(map[string]*Element)}
}

// NewDocumentFor creates a document with one element per declaration,
// each carrying the declared triggers.
func NewDocumentFor(decls []domain.Declaration) *Document {
	d := NewDocument()
	for _, decl := range decls {
		d.Add(decl.Name, decl.Triggers...)
	}
	return d
}

// Add creates (or replaces) the element for name with a trigger group holding triggers.
func (d *Document) Add(name string, triggers ...domain.Trigger) *Element {
	d.mu.Lock()
	defer d.mu.Unlock()

	e := &Element{doc: d, id: name, class: ClassState, titleClass: ClassTitle, hasGroup: true}
	for _, t := range triggers {
		e.triggers = append(e.triggers, &Trigger{doc: d, label: t.Label, target: t.Target, class: ClassTrigger})
	}
	d.elements[name] = e
	return e
}

// AddBare creates an element without a trigger group, so declared triggers apply.
func (d *Document) AddBare(name string) *Element {
	e := d.Add(name)
	d.mu.Lock()
	e.hasGroup = false
	d.mu.Unlock()
	return e
}

// Remove deletes the element for name.
func (d *Document) Remove(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.elements, name)
}

// Bind implements ports.Binder.
func (d *Document) Bind(name string) (ports.Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.elements[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", domain.ErrMissingElement, name)
	}
	return e, nil
}

// Element returns the element for name, or nil.
func (d *Document) Element(name string) *Element {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.elements[name]
}

// Selected returns the names of the elements currently styled as selected, sorted.
func (d *Document) Selected() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []string
	for name, e := range d.elements {
		if e.class == ClassSelectedState {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Reveal implements ports.Navigator by moving the document anchor.
func (d *Document) Reveal(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.anchor = "#" + name
	d.reveals++
	return nil
}

// Anchor returns the current location anchor ("" if never revealed).
func (d *Document) Anchor() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.anchor
}

// Element is the container of one state.
type Element struct {
	doc        *Document
	id         string
	class      string
	titleClass string
	hasGroup   bool
	triggers   []*Trigger
}

// SetSelected implements ports.Element.
func (e *Element) SetSelected(selected bool) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	if selected {
		e.class, e.titleClass = ClassSelectedState, ClassSelectedTitle
	} else {
		e.class, e.titleClass = ClassState, ClassTitle
	}
}

// Triggers implements ports.Element.
func (e *Element) Triggers() []ports.TriggerElement {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	if !e.hasGroup {
		return nil
	}
	out := make([]ports.TriggerElement, 0, len(e.triggers))
	for _, t := range e.triggers {
		out = append(out, t)
	}
	return out
}

// ClassName returns the container class.
func (e *Element) ClassName() string {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return e.class
}

// TitleClassName returns the title class.
func (e *Element) TitleClassName() string {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return e.titleClass
}

// Trigger returns the trigger labelled label, or nil.
func (e *Element) Trigger(label string) *Trigger {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	for _, t := range e.triggers {
		if t.Label() == label {
			return t
		}
	}
	return nil
}

// Trigger is one element of a state's trigger group.
type Trigger struct {
	doc     *Document
	label   string
	target  string
	class   string
	onclick func(context.Context) error
}

// Target implements ports.TriggerElement.
func (t *Trigger) Target() string { return t.target }

// Label implements ports.TriggerElement.
func (t *Trigger) Label() string {
	if t.label == "" {
		return t.target
	}
	return t.label
}

// SetSelected implements ports.TriggerElement.
func (t *Trigger) SetSelected(selected bool) {
	t.doc.mu.Lock()
	defer t.doc.mu.Unlock()
	if selected {
		t.class = ClassSelectedTrigger
	} else {
		t.class = ClassTrigger
	}
}

// SetHandler implements ports.TriggerElement.
func (t *Trigger) SetHandler(handler func(context.Context) error) {
	t.doc.mu.Lock()
	defer t.doc.mu.Unlock()
	t.onclick = handler
}

// ClassName returns the trigger class.
func (t *Trigger) ClassName() string {
	t.doc.mu.Lock()
	defer t.doc.mu.Unlock()
	return t.class
}

// Click runs the installed handler with ctx. It reports false when the trigger is inactive.
func (t *Trigger) Click(ctx context.Context) (bool, error) {
	t.doc.mu.Lock()
	handler := t.onclick
	t.doc.mu.Unlock()
	if handler == nil {
		return false, nil
	}
	return true, handler(ctx)
}
