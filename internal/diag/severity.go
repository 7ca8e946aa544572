package diag

// Severity defines the importance of a diagnostic.
type Severity uint8

const (
	// SevSuggestion is for advisory diagnostics that never block a compile.
	SevSuggestion Severity = iota
	// SevWarning is for warning diagnostics.
	SevWarning
	SevError
)

func (s Severity) String() string {
	switch s {
	case SevSuggestion:
		return "suggestion"
	case SevWarning:
		return "warning"
	case SevError:
		return "error"
	}
	return "unknown"
}
