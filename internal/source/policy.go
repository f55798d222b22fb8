package source

import (
	"context"
	"fmt"

	"github.com/dshills/stormcomplete/internal/completion"
)

// PolicyKind is the form of an enable policy.
type PolicyKind uint8

const (
	// PolicyAlways lets the source's Enable decide.
	PolicyAlways PolicyKind = iota
	// PolicyNever keeps the source off every document.
	PolicyNever
	// PolicyPredicate runs a user predicate before the source's Enable.
	PolicyPredicate
)

// EnablePolicy is the parsed "enable" key of a source section.
type EnablePolicy struct {
	kind      PolicyKind
	predicate string
}

// Always returns the policy for enable = true.
func Always() EnablePolicy { return EnablePolicy{kind: PolicyAlways} }

// Never returns the policy for enable = false.
func Never() EnablePolicy { return EnablePolicy{kind: PolicyNever} }

// Predicate returns the policy for enable = "<name>".
func Predicate(name string) EnablePolicy {
	return EnablePolicy{kind: PolicyPredicate, predicate: name}
}

// Kind returns the policy form.
func (p EnablePolicy) Kind() PolicyKind { return p.kind }

// PredicateName returns the predicate name for PolicyPredicate.
func (p EnablePolicy) PredicateName() string { return p.predicate }

// String implements fmt.Stringer.
func (p EnablePolicy) String() string {
	switch p.kind {
	case PolicyNever:
		return "never"
	case PolicyPredicate:
		return fmt.Sprintf("predicate(%s)", p.predicate)
	default:
		return "always"
	}
}

// ParsePolicy converts a raw "enable" value. A missing value means Always.
func ParsePolicy(v any) (EnablePolicy, bool) {
	switch v := v.(type) {
	case nil:
		return Always(), true
	case bool:
		if v {
			return Always(), true
		}
		return Never(), true
	case string:
		if v == "" {
			return EnablePolicy{}, false
		}
		return Predicate(v), true
	default:
		return EnablePolicy{}, false
	}
}

// PredicateFunc is a resolved user predicate. It must arrange to run on the
// UI thread itself, typically through doc.OnUI.
type PredicateFunc func(ctx context.Context, doc *completion.Document) (bool, error)

// PredicateResolver looks up user predicates by name at setup.
type PredicateResolver interface {
	Resolve(name string) (PredicateFunc, error)
}
