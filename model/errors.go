package model

// ConfigError is a malformed or missing invocation input. It aborts a run
// before any target is attempted.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "config: " + e.Reason
	}
	return "config: " + e.Field + ": " + e.Reason
}
