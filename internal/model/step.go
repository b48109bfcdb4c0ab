package model

// Param is one extracted step parameter. Order matters: parameters appear
// in the pattern's declared extraction order.
type Param struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// CompiledStep is the structured form of one raw natural-language step.
// Immutable once produced by the compiler.
type CompiledStep struct {
	Raw    string     `json:"raw"`
	Action ActionKind `json:"action"`
	Target string     `json:"target,omitempty"`
	Params []Param    `json:"params,omitempty"`
}

// Param returns the value of the named parameter and whether it exists.
func (s CompiledStep) Param(name string) (string, bool) {
	for _, p := range s.Params {
		if p.Name == name {
			return p.Value, true
		}
	}
	return "", false
}

// Scenario is one ordered sequence of raw steps representing a single
// test case. Background steps are prepended by the scheduler before
// compilation.
type Scenario struct {
	Name       string   `yaml:"name" json:"name"`
	Tags       []string `yaml:"tags,omitempty" json:"tags,omitempty"`
	Background []string `yaml:"background,omitempty" json:"background,omitempty"`
	Steps      []string `yaml:"steps" json:"steps"`
}

// HasTag reports whether the scenario carries the given tag.
func (s Scenario) HasTag(tag string) bool {
	for _, t := range s.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
