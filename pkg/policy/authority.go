// Package policy holds the policy authority consulted by the decision
// engine, plus a rule-based implementation driven by a YAML file.
package policy

// Authority decides whether a target package must be hidden from a caller
// package and counts filter events.
type Authority interface {
	ShouldHide(caller, target string) (bool, error)
	IncrementFilterCount()
}
