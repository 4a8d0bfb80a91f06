package dsl

import "github.com/aretw0/tops/pkg/domain"

// StateBuilder provides a fluent API for configuring a state.
type StateBuilder struct {
	decl domain.Declaration
}

// Initial sets the child entered by default.
// It also marks the state as compound.
func (s *StateBuilder) Initial(child string) *StateBuilder {
	s.decl.Initial = child
	s.decl.Compound = true
	return s
}

// Parent sets the enclosing compound state.
func (s *StateBuilder) Parent(parent string) *StateBuilder {
	s.decl.Parent = parent
	return s
}

// Compound marks the state as compound even before any child is declared.
func (s *StateBuilder) Compound() *StateBuilder {
	s.decl.Compound = true
	return s
}

// Doc sets the markdown description of the state.
func (s *StateBuilder) Doc(markdown string) *StateBuilder {
	s.decl.Doc = markdown
	return s
}

// Trigger adds a declared trigger. Target is "NAME" or "recall(NAME)".
func (s *StateBuilder) Trigger(label, target string) *StateBuilder {
	s.decl.Triggers = append(s.decl.Triggers, domain.Trigger{
		Label:  label,
		Target: target,
	})
	return s
}

// Enter adds a trigger that enters target.
func (s *StateBuilder) Enter(label, target string) *StateBuilder {
	return s.Trigger(label, domain.Enter(target).String())
}

// Recall adds a trigger that recalls the history of target.
func (s *StateBuilder) Recall(label, target string) *StateBuilder {
	return s.Trigger(label, domain.Recall(target).String())
}

// Build returns the underlying declaration.
func (s *StateBuilder) Build() domain.Declaration {
	d := s.decl
	d.Triggers = append([]domain.Trigger(nil), s.decl.Triggers...)
	return d
}
