package core

import (
	"pub/internal/types"
	"pub/internal/version"
)

// setRelation is how the versions allowed by one term relate to another.
type setRelation int

const (
	relationSubset setRelation = iota
	relationDisjoint
	relationOverlapping
)

// Term is a statement about a package: either it is selected within
// Constraint (positive) or it is not (negative).
type Term struct {
	Package    types.PackageRef
	Constraint version.Constraint
	Positive   bool
}

func positiveTerm(ref types.PackageRef, c version.Constraint) Term {
	return Term{Package: ref, Constraint: c, Positive: true}
}

func negativeTerm(ref types.PackageRef, c version.Constraint) Term {
	return Term{Package: ref, Constraint: c}
}

func (t Term) Name() string {
	return t.Package.Name
}

func (t Term) Inverse() Term {
	return Term{Package: t.Package, Constraint: t.Constraint, Positive: !t.Positive}
}

// compatible reports whether both terms talk about the same package
// identity. The root is compatible with any descriptor of its name.
func (t Term) compatible(other types.PackageRef) bool {
	return t.Package.IsRoot() || other.IsRoot() || t.Package.Key() == other.Key()
}

// Satisfies reports whether t implies other.
func (t Term) Satisfies(other Term) bool {
	return t.Name() == other.Name() && t.relation(other) == relationSubset
}

// relation classifies t against other, which must name the same package.
func (t Term) relation(other Term) setRelation {
	oc := other.Constraint
	if other.Positive {
		if t.Positive {
			if !t.compatible(other.Package) {
				return relationDisjoint
			}
			if oc.AllowsAll(t.Constraint) {
				return relationSubset
			}
			if !t.Constraint.AllowsAny(oc) {
				return relationDisjoint
			}
			return relationOverlapping
		}
		if !t.compatible(other.Package) {
			return relationOverlapping
		}
		if t.Constraint.AllowsAll(oc) {
			return relationDisjoint
		}
		return relationOverlapping
	}
	if t.Positive {
		if !t.compatible(other.Package) {
			return relationSubset
		}
		if !oc.AllowsAny(t.Constraint) {
			return relationSubset
		}
		if oc.AllowsAll(t.Constraint) {
			return relationDisjoint
		}
		return relationOverlapping
	}
	if !t.compatible(other.Package) {
		return relationOverlapping
	}
	if t.Constraint.AllowsAll(oc) {
		return relationSubset
	}
	return relationOverlapping
}

// intersect returns the term allowed by both t and other, or false when
// no single term expresses it or the result is empty.
func (t Term) intersect(other Term) (Term, bool) {
	if t.compatible(other.Package) {
		switch {
		case t.Positive != other.Positive:
			pos, neg := t, other
			if !t.Positive {
				pos, neg = other, t
			}
			return nonEmptyTerm(pos.Package, pos.Constraint.Difference(neg.Constraint), true)
		case t.Positive:
			return nonEmptyTerm(t.Package, t.Constraint.Intersect(other.Constraint), true)
		default:
			return nonEmptyTerm(t.Package, t.Constraint.Union(other.Constraint), false)
		}
	}
	if t.Positive != other.Positive {
		if t.Positive {
			return t, true
		}
		return other, true
	}
	return Term{}, false
}

func (t Term) difference(other Term) (Term, bool) {
	return t.intersect(other.Inverse())
}

func nonEmptyTerm(ref types.PackageRef, c version.Constraint, positive bool) (Term, bool) {
	if c.IsEmpty() {
		return Term{}, false
	}
	return Term{Package: ref, Constraint: c, Positive: positive}, true
}

func (t Term) String() string {
	if t.Positive {
		return terse(t.Package, t.Constraint)
	}
	return "not " + terse(t.Package, t.Constraint)
}

// terse renders a package range for humans.
func terse(ref types.PackageRef, c version.Constraint) string {
	if ref.IsRoot() {
		return ref.Name
	}
	if c.IsAny() {
		return ref.String()
	}
	return ref.String() + " " + c.String()
}
