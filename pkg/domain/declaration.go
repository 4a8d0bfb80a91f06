package domain

// Declaration describes a single state of a statechart before it is compiled.
// References to other states are by name and resolved at build time.
type Declaration struct {
	Name     string `json:"name" yaml:"name" mapstructure:"name"`
	Initial  string `json:"initial,omitempty" yaml:"initial,omitempty" mapstructure:"initial"`
	Parent   string `json:"parent,omitempty" yaml:"parent,omitempty" mapstructure:"parent"`
	Compound bool   `json:"compound,omitempty" yaml:"compound,omitempty" mapstructure:"compound"`

	// Doc is an optional markdown description shown by terminal front-ends.
	Doc string `json:"doc,omitempty" yaml:"doc,omitempty" mapstructure:"doc"`

	// Triggers are used when the UI layer does not expose triggers of its own.
	Triggers []Trigger `json:"triggers,omitempty" yaml:"triggers,omitempty" mapstructure:"triggers"`
}

// Trigger is a UI affordance that requests a transition when activated.
// Target is a request string: "NAME" or "recall(NAME)".
type Trigger struct {
	Label  string `json:"label,omitempty" yaml:"label,omitempty" mapstructure:"label"`
	Target string `json:"target" yaml:"target" mapstructure:"target"`
}
