package statechart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/tops/internal/logging"
	"github.com/aretw0/tops/pkg/domain"
	"github.com/aretw0/tops/pkg/ports"
)

// RevealKey is the key that moves the view to the current state.
const RevealKey = ' '

// ErrNoSuchTrigger is returned by Fire when no active trigger has the given label.
var ErrNoSuchTrigger = errors.New("no active trigger")

// Machine drives one compiled chart against one set of UI elements.
// It is the explicit context object that owns the current state and the history.
type Machine struct {
	mu sync.Mutex

	chart     *Chart
	binder    ports.Binder
	navigator ports.Navigator
	hooks     domain.LifecycleHooks
	logger    *slog.Logger
	sessionID string

	bindings    []binding
	last        []int
	selected    []bool
	current     int
	transitions int
	initialized bool
}

type binding struct {
	elem     ports.Element
	triggers []*trigger
}

type trigger struct {
	state   int
	elem    ports.TriggerElement
	req     domain.Request
	active  bool
	handler func(context.Context) error
}

// Option configures a Machine.
type Option func(*Machine)

// WithNavigator sets the target of Reveal.
func WithNavigator(n ports.Navigator) Option {
	return func(m *Machine) {
		m.navigator = n
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(m *Machine) {
		m.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the machine.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithSessionID tags events and snapshots with a session identifier.
func WithSessionID(id string) Option {
	return func(m *Machine) {
		m.sessionID = id
	}
}

// NewMachine creates a machine for chart. Initialize must be called before driving it.
func NewMachine(chart *Chart, binder ports.Binder, opts ...Option) *Machine {
	m := &Machine{
		chart:   chart,
		binder:  binder,
		logger:  logging.NewNop(),
		current: none,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetLifecycleHooks replaces the hooks, e.g. once a restored machine is ready to be observed.
func (m *Machine) SetLifecycleHooks(hooks domain.LifecycleHooks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = hooks
}

// Chart returns the compiled chart driven by the machine.
func (m *Machine) Chart() *Chart { return m.chart }

// Initialize binds every state to its element and trigger elements, clears the
// history and styling, and enters root.
func (m *Machine) Initialize(ctx context.Context, root string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	bindings := make([]binding, len(m.chart.nodes))
	var errs []error
	for i, n := range m.chart.nodes {
		b, err := m.bind(i, n)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		bindings[i] = b
	}
	if len(errs) > 0 {
		err := fmt.Errorf("initialize: %w", errors.Join(errs...))
		m.emitError(ctx, root, err)
		return err
	}

	m.bindings = bindings
	m.last = make([]int, len(m.chart.nodes))
	m.selected = make([]bool, len(m.chart.nodes))
	for i := range m.last {
		m.last[i] = none
		m.clear(i)
	}
	m.current = none
	m.transitions = 0
	m.initialized = true

	m.logger.Debug("statechart bound", "states", len(m.chart.nodes), "root", root)
	return m.apply(ctx, root)
}

func (m *Machine) bind(i int, n node) (binding, error) {
	elem, err := m.binder.Bind(n.name)
	if err != nil {
		if !errors.Is(err, domain.ErrMissingElement) {
			err = fmt.Errorf("%w %q: %w", domain.ErrMissingElement, n.name, err)
		}
		return binding{}, err
	}
	if elem == nil {
		return binding{}, fmt.Errorf("%w %q", domain.ErrMissingElement, n.name)
	}

	elems := elem.Triggers()
	if elems == nil {
		for _, t := range n.triggers {
			elems = append(elems, &declaredTrigger{label: t.Label, target: t.Target})
		}
	}

	b := binding{elem: elem}
	var errs []error
	for _, te := range elems {
		req, err := domain.ParseRequest(te.Target())
		if err == nil && !m.chart.Has(req.Target) {
			err = fmt.Errorf("%w %q", domain.ErrUnknownState, req.Target)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("state %q trigger %q: %w", n.name, te.Label(), err))
			continue
		}
		t := &trigger{state: i, elem: te, req: req}
		t.handler = func(ctx context.Context) error {
			return m.Apply(ctx, t.req)
		}
		b.triggers = append(b.triggers, t)
	}
	if len(errs) > 0 {
		return binding{}, errors.Join(errs...)
	}
	return b, nil
}

// SetState parses request ("NAME" or "recall(NAME)") and performs the transition.
func (m *Machine) SetState(ctx context.Context, request string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.apply(ctx, request)
}

// Apply performs an already parsed transition request.
func (m *Machine) Apply(ctx context.Context, req domain.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applyRequest(ctx, req)
}

func (m *Machine) apply(ctx context.Context, request string) error {
	req, err := domain.ParseRequest(request)
	if err != nil {
		err = fmt.Errorf("setState: %w", err)
		m.emitError(ctx, request, err)
		return err
	}
	return m.applyRequest(ctx, req)
}

func (m *Machine) applyRequest(ctx context.Context, req domain.Request) error {
	if !m.initialized {
		return domain.ErrNotInitialized
	}

	target, ok := m.chart.index[req.Target]
	if !ok {
		err := fmt.Errorf("setState: %w %q", domain.ErrUnknownState, req.Target)
		m.emitError(ctx, req.String(), err)
		return err
	}

	// Resolve before touching any element so a failed request leaves everything as it was.
	leaf, err := m.resolve(target, req.Mode)
	if err != nil {
		err = fmt.Errorf("setState %s: %w", req, err)
		m.emitError(ctx, req.String(), err)
		return err
	}

	from := ""
	if m.current != none {
		from = m.chart.nodes[m.current].name
		for i := m.current; i != none; i = m.chart.nodes[i].parent {
			m.deselectState(ctx, i)
		}
	}

	m.current = leaf
	for i := leaf; i != none; i = m.chart.nodes[i].parent {
		m.selectState(ctx, i)
	}
	m.transitions++

	to := m.chart.nodes[leaf].name
	m.logger.Debug("state transition", "request", req.String(), "from", from, "to", to)
	if m.hooks.OnTransition != nil {
		m.hooks.OnTransition(ctx, &domain.TransitionEvent{
			EventBase: m.event(domain.EventTransition),
			Request:   req.String(),
			From:      from,
			To:        to,
			Path:      m.chart.Ancestry(to),
		})
	}
	return nil
}

// resolve walks from target down to a leaf following initial children (enter)
// or history (recall). A compound state without history is entered instead.
func (m *Machine) resolve(i int, mode domain.RequestMode) (int, error) {
	for steps := 0; steps <= len(m.chart.nodes); steps++ {
		n := &m.chart.nodes[i]
		if mode == domain.ModeRecall {
			if last := m.last[i]; last != none {
				i = last
				continue
			}
			if n.compound && n.initial == none {
				return none, fmt.Errorf("%w %q", domain.ErrNoHistory, n.name)
			}
			mode = domain.ModeEnter
		}
		if n.initial != none {
			i = n.initial
			continue
		}
		if n.compound {
			return none, fmt.Errorf("%w %q", domain.ErrNoInitial, n.name)
		}
		return i, nil
	}
	return none, fmt.Errorf("%w: descent does not terminate", domain.ErrConfiguration)
}

// selectState applies active styling, enables triggers and records history.
func (m *Machine) selectState(ctx context.Context, i int) {
	b := m.bindings[i]
	b.elem.SetSelected(true)
	for _, t := range b.triggers {
		t.active = true
		t.elem.SetSelected(true)
		t.elem.SetHandler(t.handler)
	}
	m.selected[i] = true
	if p := m.chart.nodes[i].parent; p != none {
		m.last[p] = i
	}
	if m.hooks.OnSelect != nil {
		m.hooks.OnSelect(ctx, &domain.StateEvent{EventBase: m.event(domain.EventSelect), State: m.chart.nodes[i].name})
	}
}

// deselectState reverses selectState, except for the history it recorded.
func (m *Machine) deselectState(ctx context.Context, i int) {
	m.clear(i)
	if m.hooks.OnDeselect != nil {
		m.hooks.OnDeselect(ctx, &domain.StateEvent{EventBase: m.event(domain.EventDeselect), State: m.chart.nodes[i].name})
	}
}

func (m *Machine) clear(i int) {
	b := m.bindings[i]
	b.elem.SetSelected(false)
	for _, t := range b.triggers {
		t.active = false
		t.elem.SetSelected(false)
		t.elem.SetHandler(nil)
	}
	m.selected[i] = false
}

// Reveal handles a key press: the reveal key moves the navigator to the current state.
// It reports whether the key was consumed. The machine itself never changes.
func (m *Machine) Reveal(ctx context.Context, key rune) (bool, error) {
	m.mu.Lock()
	name := ""
	if m.current != none {
		name = m.chart.nodes[m.current].name
	}
	nav := m.navigator
	m.mu.Unlock()

	if key != RevealKey || name == "" || nav == nil {
		return false, nil
	}
	m.logger.Debug("reveal", "state", name)
	if err := nav.Reveal(name); err != nil {
		return true, fmt.Errorf("reveal %q: %w", name, err)
	}
	return true, nil
}

// Fire activates the trigger labelled label on the current path, deepest state first,
// exactly as a click on the trigger element would.
func (m *Machine) Fire(ctx context.Context, label string) error {
	m.mu.Lock()
	var handler func(context.Context) error
	for i := m.current; i != none && handler == nil; i = m.chart.nodes[i].parent {
		for _, t := range m.bindings[i].triggers {
			if t.active && t.elem.Label() == label {
				handler = t.handler
				break
			}
		}
	}
	m.mu.Unlock()

	if handler == nil {
		return fmt.Errorf("%w %q", ErrNoSuchTrigger, label)
	}
	return handler(ctx)
}

// ActiveTrigger describes a trigger that is currently enabled.
type ActiveTrigger struct {
	State  string `json:"state"`
	Label  string `json:"label"`
	Target string `json:"target"`
}

// ActiveTriggers lists the enabled triggers, deepest state first.
func (m *Machine) ActiveTriggers() []ActiveTrigger {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []ActiveTrigger
	for i := m.current; i != none; i = m.chart.nodes[i].parent {
		for _, t := range m.bindings[i].triggers {
			if t.active {
				out = append(out, ActiveTrigger{
					State:  m.chart.nodes[i].name,
					Label:  t.elem.Label(),
					Target: t.req.String(),
				})
			}
		}
	}
	return out
}

// Current returns the active leaf, or "" before initialization.
func (m *Machine) Current() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == none {
		return ""
	}
	return m.chart.nodes[m.current].name
}

// Path returns the selected states, leaf to root.
func (m *Machine) Path() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == none {
		return nil
	}
	return m.chart.Ancestry(m.chart.nodes[m.current].name)
}

// IsSelected reports whether name is on the selected path.
func (m *Machine) IsSelected(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.chart.index[name]
	return ok && m.selected != nil && m.selected[i]
}

// Last returns the most recently active child of name, or "".
func (m *Machine) Last(name string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.chart.index[name]
	if !ok || m.last == nil || m.last[i] == none {
		return ""
	}
	return m.chart.nodes[m.last[i]].name
}

// Snapshot captures the current leaf and the history.
func (m *Machine) Snapshot() *domain.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := domain.NewSnapshot(m.sessionID)
	snap.Transitions = m.transitions
	if m.current != none {
		snap.Current = m.chart.nodes[m.current].name
	}
	for i, l := range m.last {
		if l != none {
			snap.History[m.chart.nodes[i].name] = m.chart.nodes[l].name
		}
	}
	return snap
}

// Restore replaces the history with the snapshot's and selects its current leaf.
// The machine must be initialized. Unknown names are rejected before anything changes.
func (m *Machine) Restore(ctx context.Context, snap *domain.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return domain.ErrNotInitialized
	}

	last := make([]int, len(m.chart.nodes))
	for i := range last {
		last[i] = none
	}
	for parent, child := range snap.History {
		p, ok := m.chart.index[parent]
		if !ok {
			return fmt.Errorf("restore: history: %w %q", domain.ErrUnknownState, parent)
		}
		c, ok := m.chart.index[child]
		if !ok {
			return fmt.Errorf("restore: history: %w %q", domain.ErrUnknownState, child)
		}
		if m.chart.nodes[c].parent != p {
			return fmt.Errorf("restore: %w: %q is not a child of %q", domain.ErrConfiguration, child, parent)
		}
		last[p] = c
	}
	leaf := none
	if snap.Current != "" {
		i, ok := m.chart.index[snap.Current]
		if !ok {
			return fmt.Errorf("restore: current: %w %q", domain.ErrUnknownState, snap.Current)
		}
		if n := m.chart.nodes[i]; n.compound || n.initial != none {
			return fmt.Errorf("restore: current %q is not a leaf: %w", snap.Current, domain.ErrConfiguration)
		}
		leaf = i
	}

	if m.current != none {
		for i := m.current; i != none; i = m.chart.nodes[i].parent {
			m.deselectState(ctx, i)
		}
	}
	m.last = last
	m.current = leaf
	for i := leaf; i != none; i = m.chart.nodes[i].parent {
		m.selectState(ctx, i)
	}
	m.transitions = snap.Transitions
	return nil
}

func (m *Machine) event(t domain.EventType) domain.EventBase {
	return domain.EventBase{Timestamp: time.Now(), Type: t, SessionID: m.sessionID}
}

func (m *Machine) emitError(ctx context.Context, request string, err error) {
	m.logger.Warn("statechart request rejected", "request", request, "err", err)
	if m.hooks.OnError != nil {
		m.hooks.OnError(ctx, &domain.ErrorEvent{
			EventBase: m.event(domain.EventError),
			Request:   request,
			Err:       err,
		})
	}
}

// declaredTrigger stands in for a trigger element when the UI supplies none.
type declaredTrigger struct {
	label    string
	target   string
	selected bool
	handler  func(context.Context) error
}

func (t *declaredTrigger) Target() string { return t.target }

func (t *declaredTrigger) Label() string {
	if t.label == "" {
		return t.target
	}
	return t.label
}

func (t *declaredTrigger) SetSelected(selected bool) { t.selected = selected }

func (t *declaredTrigger) SetHandler(handler func(context.Context) error) { t.handler = handler }
