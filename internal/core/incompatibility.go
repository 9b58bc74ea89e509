package core

import (
	"fmt"
	"strings"

	"pub/internal/types"
	"pub/internal/version"
)

type causeKind int

const (
	causeRoot causeKind = iota
	causeDependency
	causeNoVersions
	causePackageNotFound
	causeConflict
)

// Cause records why an incompatibility holds. Conflict causes point at
// the two incompatibilities they were derived from.
type Cause struct {
	kind     causeKind
	Conflict *Incompatibility
	Other    *Incompatibility
	Err      error
}

func (c Cause) IsConflict() bool {
	return c.kind == causeConflict
}

// Incompatibility is a set of terms that cannot all be true at once.
type Incompatibility struct {
	Terms []Term
	Cause Cause
}

// newIncompatibility normalizes terms: the positive root term is dropped
// from derived incompatibilities and terms about the same package merge.
func newIncompatibility(terms []Term, cause Cause) *Incompatibility {
	if len(terms) != 1 && cause.kind == causeConflict {
		for _, term := range terms {
			if term.Positive && term.Package.IsRoot() {
				filtered := make([]Term, 0, len(terms))
				for _, t := range terms {
					if !t.Positive || !t.Package.IsRoot() {
						filtered = append(filtered, t)
					}
				}
				terms = filtered
				break
			}
		}
	}
	if len(terms) == 1 || (len(terms) == 2 && terms[0].Name() != terms[1].Name()) {
		return &Incompatibility{Terms: terms, Cause: cause}
	}

	type byRef struct {
		keys  []string
		terms map[string]Term
	}
	names := []string{}
	grouped := map[string]*byRef{}
	for _, term := range terms {
		group, ok := grouped[term.Name()]
		if !ok {
			group = &byRef{terms: map[string]Term{}}
			grouped[term.Name()] = group
			names = append(names, term.Name())
		}
		key := term.Package.Key()
		existing, ok := group.terms[key]
		if !ok {
			group.keys = append(group.keys, key)
			group.terms[key] = term
			continue
		}
		if merged, ok := existing.intersect(term); ok {
			group.terms[key] = merged
		}
	}

	out := make([]Term, 0, len(terms))
	for _, name := range names {
		group := grouped[name]
		positives := []Term{}
		for _, key := range group.keys {
			if group.terms[key].Positive {
				positives = append(positives, group.terms[key])
			}
		}
		if len(positives) > 0 {
			out = append(out, positives...)
			continue
		}
		for _, key := range group.keys {
			out = append(out, group.terms[key])
		}
	}
	return &Incompatibility{Terms: out, Cause: cause}
}

func dependencyIncompatibility(depender types.PackageRef, dependerRange version.Constraint, target types.Dependency) *Incompatibility {
	return newIncompatibility([]Term{
		positiveTerm(depender, dependerRange),
		negativeTerm(target.Ref(), target.Constraint),
	}, Cause{kind: causeDependency})
}

// IsFailure reports whether the incompatibility proves the root cannot
// be selected.
func (inc *Incompatibility) IsFailure() bool {
	return len(inc.Terms) == 0 || (len(inc.Terms) == 1 && inc.Terms[0].Positive && inc.Terms[0].Package.IsRoot())
}

func (inc *Incompatibility) String() string {
	switch inc.Cause.kind {
	case causeDependency:
		return fmt.Sprintf("%s depends on %s", terseEvery(inc.Terms[0]), terse(inc.Terms[1].Package, inc.Terms[1].Constraint))
	case causeNoVersions:
		return fmt.Sprintf("no versions of %s match %s", inc.Terms[0].Package, inc.Terms[0].Constraint)
	case causePackageNotFound:
		return fmt.Sprintf("%s doesn't exist (%v)", inc.Terms[0].Package, inc.Cause.Err)
	case causeRoot:
		return fmt.Sprintf("%s is %s", inc.Terms[0].Name(), inc.Terms[0].Constraint)
	}
	if inc.IsFailure() {
		return "version solving failed"
	}
	if len(inc.Terms) == 1 {
		term := inc.Terms[0]
		verdict := "required"
		if term.Positive {
			verdict = "forbidden"
		}
		return fmt.Sprintf("%s is %s", terse(term.Package, term.Constraint), verdict)
	}
	if len(inc.Terms) == 2 && inc.Terms[0].Positive == inc.Terms[1].Positive {
		a, b := inc.Terms[0], inc.Terms[1]
		if a.Positive {
			return fmt.Sprintf("%s is incompatible with %s", terse(a.Package, a.Constraint), terse(b.Package, b.Constraint))
		}
		return fmt.Sprintf("either %s or %s", terse(a.Package, a.Constraint), terse(b.Package, b.Constraint))
	}

	positive, negative := []string{}, []string{}
	var firstPositive Term
	for _, term := range inc.Terms {
		if term.Positive {
			if len(positive) == 0 {
				firstPositive = term
			}
			positive = append(positive, terse(term.Package, term.Constraint))
		} else {
			negative = append(negative, terse(term.Package, term.Constraint))
		}
	}
	switch {
	case len(positive) == 1 && len(negative) > 0:
		return fmt.Sprintf("%s requires %s", terseEvery(firstPositive), strings.Join(negative, " or "))
	case len(positive) > 0 && len(negative) > 0:
		return fmt.Sprintf("if %s then %s", strings.Join(positive, " and "), strings.Join(negative, " or "))
	case len(positive) > 0:
		return fmt.Sprintf("one of %s must be false", strings.Join(positive, " or "))
	default:
		return fmt.Sprintf("one of %s must be true", strings.Join(negative, " or "))
	}
}

func terseEvery(term Term) string {
	if term.Constraint.IsAny() && !term.Package.IsRoot() {
		return "every version of " + term.Package.String()
	}
	return terse(term.Package, term.Constraint)
}
