// Package report correlates a test runner's textual output with tree nodes.
package report

import (
	"github.com/specvital/explorer/pkg/domain"
)

// Outcome is the result of correlating output with a single test.
type Outcome struct {
	Failed bool
	// Diagnostic locates the failure; nil when the output did not say where.
	Diagnostic *domain.Diagnostic
}

// State returns the test state the outcome maps to.
func (o Outcome) State() domain.State {
	if o.Failed {
		return domain.StateFailed
	}
	return domain.StatePassed
}

// SuiteReport is the result of correlating output with every test of a suite.
type SuiteReport struct {
	// Failed is true when any test below the suite failed.
	Failed bool
	// Diagnostics holds the located failures in tree order.
	Diagnostics []domain.Diagnostic
}

// State returns the suite state the report maps to.
func (r SuiteReport) State() domain.State {
	if r.Failed {
		return domain.StateErrored
	}
	return domain.StateCompleted
}

// Parser maps raw runner output onto nodes.
// Implementations never fail: output they cannot make sense of degrades to
// a failed test without diagnostic or to a passed one.
type Parser interface {
	// ParseTest reports whether test failed in output.
	ParseTest(test *domain.Node, output string) Outcome
	// ParseSuite resolves every descendant of suite depth-first, setting each
	// node's state and storing output verbatim as its message. visit, when
	// non-nil, is called after each descendant is updated.
	ParseSuite(suite *domain.Node, output string, visit func(*domain.Node)) SuiteReport
}
