package linker

import (
	"strings"
)

// LinkError provides context when an entry point cannot be linked.
type LinkError struct {
	Cause  error
	Phase  string
	Name   string
	Reason string
}

func (e *LinkError) Error() string {
	var b strings.Builder
	b.WriteString("link failed")

	if e.Phase != "" {
		b.WriteString(" at ")
		b.WriteString(e.Phase)
	}

	if e.Name != "" {
		b.WriteString(": ")
		b.WriteString(e.Name)
	}

	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}

	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}

	return b.String()
}

func (e *LinkError) Unwrap() error {
	return e.Cause
}

func linkError(phase, name, reason string, cause error) *LinkError {
	return &LinkError{
		Phase:  phase,
		Name:   name,
		Reason: reason,
		Cause:  cause,
	}
}
