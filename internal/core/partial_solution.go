package core

import (
	"fmt"

	"pub/internal/types"
	"pub/internal/version"
)

// assignment is a term placed in the partial solution, either as a
// decision (Cause is nil) or derived from an incompatibility.
type assignment struct {
	Term
	decisionLevel int
	index         int
	cause         *Incompatibility
}

func (a assignment) isDecision() bool {
	return a.cause == nil
}

// partialSolution is the ordered list of assignments plus per-package
// summaries that make relation checks constant time.
type partialSolution struct {
	assignments []assignment
	decisions   map[string]types.PackageID
	positive    map[string]Term
	negative    map[string]map[string]Term

	attempted    int
	backtracking bool
}

func newPartialSolution() *partialSolution {
	return &partialSolution{
		decisions: map[string]types.PackageID{},
		positive:  map[string]Term{},
		negative:  map[string]map[string]Term{},
		attempted: 1,
	}
}

func (s *partialSolution) decisionLevel() int {
	return len(s.decisions)
}

// unsatisfied returns packages with a positive derivation but no decision.
func (s *partialSolution) unsatisfied() []Term {
	out := []Term{}
	for name, term := range s.positive {
		if _, ok := s.decisions[name]; !ok {
			out = append(out, term)
		}
	}
	return out
}

func (s *partialSolution) decide(id types.PackageID) {
	if s.backtracking {
		s.attempted++
	}
	s.backtracking = false
	s.decisions[id.Name] = id
	s.assign(assignment{
		Term:          positiveTerm(id.Ref(), version.Only(id.Version)),
		decisionLevel: s.decisionLevel(),
		index:         len(s.assignments),
	})
}

func (s *partialSolution) derive(term Term, cause *Incompatibility) {
	s.assign(assignment{
		Term:          term,
		decisionLevel: s.decisionLevel(),
		index:         len(s.assignments),
		cause:         cause,
	})
}

func (s *partialSolution) assign(a assignment) {
	s.assignments = append(s.assignments, a)
	s.register(a)
}

// backtrack drops every assignment above level in one step and rebuilds
// the summaries of the packages they touched.
func (s *partialSolution) backtrack(level int) {
	s.backtracking = true
	touched := map[string]bool{}
	for len(s.assignments) > 0 && s.assignments[len(s.assignments)-1].decisionLevel > level {
		removed := s.assignments[len(s.assignments)-1]
		s.assignments = s.assignments[:len(s.assignments)-1]
		touched[removed.Name()] = true
		if removed.isDecision() {
			delete(s.decisions, removed.Name())
		}
	}
	for name := range touched {
		delete(s.positive, name)
		delete(s.negative, name)
	}
	for _, a := range s.assignments {
		if touched[a.Name()] {
			s.register(a)
		}
	}
}

func (s *partialSolution) register(a assignment) {
	name := a.Name()
	if old, ok := s.positive[name]; ok {
		merged, ok := old.intersect(a.Term)
		if !ok {
			panic(fmt.Sprintf("assignment %s contradicts %s", a.Term, old))
		}
		s.positive[name] = merged
		return
	}
	key := a.Package.Key()
	term := a.Term
	if byRef, ok := s.negative[name]; ok {
		if old, ok := byRef[key]; ok {
			if merged, ok := a.Term.intersect(old); ok {
				term = merged
			}
		}
	}
	if term.Positive {
		delete(s.negative, name)
		s.positive[name] = term
		return
	}
	if _, ok := s.negative[name]; !ok {
		s.negative[name] = map[string]Term{}
	}
	s.negative[name][key] = term
}

// satisfier returns the earliest assignment after which term holds.
func (s *partialSolution) satisfier(term Term) assignment {
	var assigned *Term
	for _, a := range s.assignments {
		if a.Name() != term.Name() {
			continue
		}
		if !a.Package.IsRoot() && a.Package.Key() != term.Package.Key() {
			if !a.Positive {
				continue
			}
			return a
		}
		if assigned == nil {
			t := a.Term
			assigned = &t
		} else if merged, ok := assigned.intersect(a.Term); ok {
			assigned = &merged
		}
		if assigned.Satisfies(term) {
			return a
		}
	}
	panic(fmt.Sprintf("term %s is not satisfied", term))
}

func (s *partialSolution) satisfies(term Term) bool {
	return s.relation(term) == relationSubset
}

func (s *partialSolution) relation(term Term) setRelation {
	if positive, ok := s.positive[term.Name()]; ok {
		return positive.relation(term)
	}
	byRef, ok := s.negative[term.Name()]
	if !ok {
		return relationOverlapping
	}
	negative, ok := byRef[term.Package.Key()]
	if !ok {
		return relationOverlapping
	}
	return negative.relation(term)
}
