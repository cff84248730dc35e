package model

const (
	// VariablesService is the reserved service whose values act as
	// substitution variables and are never hidden by a search.
	VariablesService = "VARIABLES"
	// GlobalTemplate is the reserved template every other template stacks on.
	GlobalTemplate = "GLOBAL"
	// NewKeySentinel is the key segment reserved for the "create new" route.
	NewKeySentinel = "new"
)

// ConfigValue is a single configuration entry. An empty Service means the
// value applies to the whole template.
type ConfigValue struct {
	Template string `json:"template" yaml:"template"`
	Service  string `json:"service" yaml:"service"`
	Key      string `json:"key" yaml:"key"`
	Value    string `json:"value" yaml:"value"`
}

// ValueID identifies a ConfigValue for update and delete.
type ValueID struct {
	Template string
	Service  string
	Key      string
}

// ID returns the identity triple of the value.
func (c ConfigValue) ID() ValueID {
	return ValueID{Template: c.Template, Service: c.Service, Key: c.Key}
}

// Fields returns the searchable string fields of the value.
func (c ConfigValue) Fields() []string {
	return []string{c.Template, c.Service, c.Key, c.Value}
}
