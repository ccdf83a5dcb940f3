package metadata

// Rule is a declarative validation rule evaluated by the server before writes.
type Rule struct {
	Entity     string `json:"entity"`
	Type       string `json:"type"` // min_length, expression
	Field      string `json:"field"`
	Value      any    `json:"value,omitempty"`
	Expression string `json:"expression,omitempty"`
	Message    string `json:"message,omitempty"`
	// Compiled holds the compiled expression program (not serialized).
	Compiled any `json:"-"`
}
