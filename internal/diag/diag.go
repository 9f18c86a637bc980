// Package diag parses raw tool and interpreter output into structured
// diagnostics. Parsing is purely textual; target code is never executed.
package diag

// Kind identifies the class of error signal a diagnostic carries.
type Kind string

const (
	// KindNameError is a Python NameError (undefined name).
	KindNameError Kind = "NameError"
	// KindAttributeError is a Python AttributeError (missing attribute).
	KindAttributeError Kind = "AttributeError"
)

// Diagnostic is a structured record of one detected error signal.
// Immutable once parsed; consumed once per orchestration pass.
type Diagnostic struct {
	FilePath   string `json:"filePath"`
	Line       int    `json:"line"`
	Kind       Kind   `json:"kind"`
	Identifier string `json:"identifier"`

	// Receiver is the object type or module name for AttributeError
	// ("'T' object has no attribute ..." or "module 'M' has no attribute ...").
	Receiver string `json:"receiver,omitempty"`
	// ModuleAttr marks the module form of AttributeError.
	ModuleAttr bool `json:"moduleAttr,omitempty"`

	// Context is the source snippet shown in the traceback, when present.
	Context string `json:"context,omitempty"`
}
