// Package report carries accumulated coherence-check results from the core
// validation code to the CLI boundary, which decides whether to exit.
package report

import (
	"fmt"
	"strings"
)

// Violations is an ordered list of coherence-check failures. Core validation
// code appends to it and returns it; it never terminates the process itself.
type Violations struct {
	// Context names the parameter group being checked, e.g.
	// "JSON params to be modif. file".
	Context string
	items   []string
}

// NewViolations returns an empty violation list for the given context.
func NewViolations(context string) *Violations {
	return &Violations{Context: context}
}

// Add appends one violation message.
func (v *Violations) Add(format string, args ...any) {
	v.items = append(v.items, fmt.Sprintf(format, args...))
}

// Merge appends all violations of other, keeping order.
func (v *Violations) Merge(other *Violations) {
	if other != nil {
		v.items = append(v.items, other.items...)
	}
}

// Empty reports whether no violation has been recorded.
func (v *Violations) Empty() bool {
	return v == nil || len(v.items) == 0
}

// Items returns the recorded violations in insertion order.
func (v *Violations) Items() []string {
	if v == nil {
		return nil
	}
	return v.items
}

// Contains reports whether any recorded violation message contains sub.
// Used for dependent checks that must be skipped after a prior failure.
func (v *Violations) Contains(sub string) bool {
	for _, item := range v.items {
		if strings.Contains(item, sub) {
			return true
		}
	}
	return false
}

// Format renders the grouped error message printed by the CLI before it
// exits with status 1.
func (v *Violations) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "There are error(s) %s:", v.Context)
	for _, item := range v.items {
		b.WriteString("\n- ")
		b.WriteString(item)
	}
	b.WriteString("\n-> STOP")
	return b.String()
}
