package loam

// StateMetadata is the frontmatter of a state document.
// The document body, if any, becomes the state's markdown description.
type StateMetadata struct {
	// Name defaults to the document path without its extension.
	Name     string `json:"name" mapstructure:"name"`
	Initial  string `json:"initial" mapstructure:"initial"`
	Parent   string `json:"parent" mapstructure:"parent"`
	Compound bool   `json:"compound" mapstructure:"compound"`

	Triggers []TriggerMetadata `json:"triggers" mapstructure:"triggers"`
}

// TriggerMetadata declares a trigger. "to" is accepted as a shorthand for "target".
type TriggerMetadata struct {
	Label  string `json:"label" mapstructure:"label"`
	Target string `json:"target" mapstructure:"target"`
	To     string `json:"to" mapstructure:"to"`
	Recall bool   `json:"recall" mapstructure:"recall"`
}
