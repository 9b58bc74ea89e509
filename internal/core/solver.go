package core

import (
	"context"
	"errors"
	"sort"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"pub/internal/metrics"
	"pub/internal/ports"
	"pub/internal/types"
	"pub/internal/version"
)

// Solver is a conflict-driven version solver. Its state lives in a
// partial solution and a set of learned incompatibilities; backjumping
// truncates the partial solution in one step.
type Solver struct {
	Session   *SourceSession
	Policy    ports.LockPolicyPort
	Overrides ports.OverridePolicyPort
	Metrics   *metrics.Metrics
}

// SolveResult is a successful resolution.
type SolveResult struct {
	Root types.Pubspec
	// Packages holds the selected id of every non-root package.
	Packages map[string]types.PackageID
	// Dependencies holds the edges each selected package declared,
	// keyed by package name, root included.
	Dependencies map[string][]types.Dependency
	Decisions    int
	Attempts     int
}

func NewSolver(session *SourceSession, policy ports.LockPolicyPort, overrides ports.OverridePolicyPort, m *metrics.Metrics) Solver {
	return Solver{Session: session, Policy: policy, Overrides: overrides, Metrics: m}
}

type solveState struct {
	ctx       context.Context
	solver    Solver
	root      types.Pubspec
	rootRef   types.PackageRef
	lock      types.LockFile
	rootDeps  map[string]bool
	solution  *partialSolution
	incompats map[string][]*Incompatibility
	listers   map[string]*packageLister
	deps      map[string][]types.Dependency
	decisions int
}

// Solve resolves root's dependency graph. Unsatisfiable graphs return a
// *SolveFailure; source failures abort the solve unchanged.
func (s Solver) Solve(ctx context.Context, root types.Pubspec, lock types.LockFile) (SolveResult, error) {
	if s.Session == nil {
		return SolveResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("solver requires a source session")
	}
	state := &solveState{
		ctx:       ctx,
		solver:    s,
		root:      root,
		rootRef:   types.PackageRef{Name: root.Name, Description: types.RootDescription()},
		lock:      lock,
		rootDeps:  map[string]bool{},
		solution:  newPartialSolution(),
		incompats: map[string][]*Incompatibility{},
		listers:   map[string]*packageLister{},
		deps:      map[string][]types.Dependency{},
	}
	for _, dep := range root.RootDependencies() {
		state.rootDeps[dep.Name] = true
	}
	defer s.Session.Wait()

	state.addIncompatibility(newIncompatibility(
		[]Term{negativeTerm(state.rootRef, version.Any())},
		Cause{kind: causeRoot},
	))

	next := root.Name
	for next != "" {
		if err := ctx.Err(); err != nil {
			return SolveResult{}, err
		}
		if err := state.propagate(next); err != nil {
			return SolveResult{}, err
		}
		chosen, err := state.choosePackageVersion()
		if err != nil {
			return SolveResult{}, err
		}
		next = chosen
	}
	return state.result(), nil
}

func (st *solveState) addIncompatibility(inc *Incompatibility) {
	log.Ctx(st.ctx).Debug().Str("incompatibility", inc.String()).Msg("fact")
	for _, term := range inc.Terms {
		st.incompats[term.Name()] = append(st.incompats[term.Name()], inc)
	}
}

// propagate performs unit propagation starting from name.
func (st *solveState) propagate(name string) error {
	changed := []string{name}
	queued := map[string]bool{name: true}
	for len(changed) > 0 {
		pkg := changed[0]
		changed = changed[1:]
		delete(queued, pkg)

		list := st.incompats[pkg]
		for i := len(list) - 1; i >= 0; i-- {
			derived, conflict := st.propagateIncompatibility(list[i])
			if conflict {
				rootCause, err := st.resolveConflict(list[i])
				if err != nil {
					return err
				}
				derived, conflict = st.propagateIncompatibility(rootCause)
				if conflict || derived == "" {
					return errbuilder.New().
						WithCode(errbuilder.CodeInternal).
						WithMsg("conflict resolution did not yield a derivation: " + rootCause.String())
				}
				changed = []string{derived}
				queued = map[string]bool{derived: true}
				break
			}
			if derived != "" && !queued[derived] {
				changed = append(changed, derived)
				queued[derived] = true
			}
		}
	}
	return nil
}

// propagateIncompatibility derives the inverse of the single inconclusive
// term of inc. It returns the derived package name, or reports a conflict
// when every term is already satisfied.
func (st *solveState) propagateIncompatibility(inc *Incompatibility) (string, bool) {
	var unsatisfied *Term
	for i := range inc.Terms {
		switch st.solution.relation(inc.Terms[i]) {
		case relationDisjoint:
			return "", false
		case relationOverlapping:
			if unsatisfied != nil {
				return "", false
			}
			unsatisfied = &inc.Terms[i]
		}
	}
	if unsatisfied == nil {
		return "", true
	}
	derived := unsatisfied.Inverse()
	log.Ctx(st.ctx).Debug().Str("term", derived.String()).Msg("derived")
	st.solver.Metrics.Derivation()
	st.solution.derive(derived, inc)
	return derived.Name(), false
}

// resolveConflict learns the root cause of a satisfied incompatibility
// and backjumps to the level where it first becomes useful.
func (st *solveState) resolveConflict(inc *Incompatibility) (*Incompatibility, error) {
	log.Ctx(st.ctx).Debug().Str("incompatibility", inc.String()).Msg("conflict")
	st.solver.Metrics.Conflict()
	learned := false
	for !inc.IsFailure() {
		var mostRecentTerm *Term
		var mostRecent assignment
		found := false
		var difference *Term
		previousLevel := 1

		for i := range inc.Terms {
			term := inc.Terms[i]
			satisfier := st.solution.satisfier(term)
			switch {
			case !found:
				mostRecentTerm = &inc.Terms[i]
				mostRecent = satisfier
				found = true
			case mostRecent.index < satisfier.index:
				previousLevel = max(previousLevel, mostRecent.decisionLevel)
				mostRecentTerm = &inc.Terms[i]
				mostRecent = satisfier
				difference = nil
			default:
				previousLevel = max(previousLevel, satisfier.decisionLevel)
			}
			if mostRecentTerm == &inc.Terms[i] {
				if diff, ok := mostRecent.difference(*mostRecentTerm); ok {
					difference = &diff
					previousLevel = max(previousLevel, st.solution.satisfier(diff.Inverse()).decisionLevel)
				} else {
					difference = nil
				}
			}
		}

		if previousLevel < mostRecent.decisionLevel || mostRecent.cause == nil {
			st.solution.backtrack(previousLevel)
			if learned {
				st.addIncompatibility(inc)
			}
			return inc, nil
		}

		terms := make([]Term, 0, len(inc.Terms)+len(mostRecent.cause.Terms))
		for i := range inc.Terms {
			if &inc.Terms[i] != mostRecentTerm {
				terms = append(terms, inc.Terms[i])
			}
		}
		for _, term := range mostRecent.cause.Terms {
			if term.Name() != mostRecent.Name() {
				terms = append(terms, term)
			}
		}
		if difference != nil {
			terms = append(terms, difference.Inverse())
		}
		inc = newIncompatibility(terms, Cause{kind: causeConflict, Conflict: inc, Other: mostRecent.cause})
		learned = true
		log.Ctx(st.ctx).Debug().Str("incompatibility", inc.String()).Msg("learned")
	}
	return nil, &SolveFailure{Incompatibility: inc}
}

func (st *solveState) lister(ref types.PackageRef) *packageLister {
	key := ref.Key()
	if l, ok := st.listers[key]; ok {
		return l
	}
	l := &packageLister{
		ref:        ref,
		session:    st.solver.Session,
		preference: types.LockPreferenceKeep,
		descending: true,
		overrides:  st.solver.Overrides,
	}
	if ref.IsRoot() {
		root := st.root
		l.root = &root
	}
	if st.solver.Policy != nil {
		l.preference = st.solver.Policy.Preference(ref.Name)
		l.descending = st.solver.Policy.Descending(ref.Name)
	}
	// Path packages are read from disk on every solve, so their lock entry
	// is never a preference.
	if locked, ok := st.lock.Packages[ref.Name]; ok && locked.ID.Ref().Key() == key && locked.ID.Description.Kind != types.SourceKindPath {
		id := locked.ID
		l.locked = &id
	}
	st.listers[key] = l
	return l
}

// choosePackageVersion decides the next package, or returns "" once
// every required package has a decision.
func (st *solveState) choosePackageVersion() (string, error) {
	unsatisfied := st.solution.unsatisfied()
	if len(unsatisfied) == 0 {
		return "", nil
	}

	type candidate struct {
		term    Term
		rootDep bool
		count   int
	}
	ranked := make([]candidate, 0, len(unsatisfied))
	for _, term := range unsatisfied {
		c := candidate{term: term, rootDep: st.rootDeps[term.Name()] || term.Package.IsRoot()}
		count, err := st.lister(term.Package).countVersions(st.ctx, term.Constraint)
		if err != nil {
			var notFound *types.PackageNotFoundError
			if !errors.As(err, &notFound) {
				return "", err
			}
		}
		c.count = count
		ranked = append(ranked, c)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.rootDep != b.rootDep {
			return a.rootDep
		}
		if a.count != b.count {
			return a.count < b.count
		}
		return a.term.Name() < b.term.Name()
	})
	term := ranked[0].term
	l := st.lister(term.Package)

	id, ok, err := l.bestVersion(st.ctx, term.Constraint)
	if err != nil {
		var notFound *types.PackageNotFoundError
		if errors.As(err, &notFound) {
			st.addIncompatibility(newIncompatibility(
				[]Term{positiveTerm(term.Package, version.Any())},
				Cause{kind: causePackageNotFound, Err: err},
			))
			return term.Name(), nil
		}
		return "", err
	}
	if !ok {
		st.addIncompatibility(newIncompatibility(
			[]Term{positiveTerm(term.Package, term.Constraint)},
			Cause{kind: causeNoVersions},
		))
		return term.Name(), nil
	}

	incompats, deps, err := l.incompatibilitiesFor(st.ctx, id)
	if err != nil {
		return "", err
	}
	conflict := false
	targets := make([]types.PackageRef, 0, len(deps))
	for _, inc := range incompats {
		st.addIncompatibility(inc)
		if !conflict {
			conflict = true
			for _, t := range inc.Terms {
				if t.Name() != term.Name() && !st.solution.satisfies(t) {
					conflict = false
					break
				}
			}
		}
	}
	for _, dep := range deps {
		if dep.Constraint.AdmitsPrerelease() {
			st.lister(dep.Ref()).prerelease = true
		}
		targets = append(targets, dep.Ref())
	}
	st.solver.Session.Prefetch(st.ctx, targets)

	if !conflict {
		st.solution.decide(id)
		st.deps[id.Name] = deps
		if !id.IsRoot() {
			st.decisions++
			st.solver.Metrics.Decision()
		}
		log.Ctx(st.ctx).Debug().Str("package", id.Name).Str("version", id.Version.String()).Msg("selecting")
	}
	return term.Name(), nil
}

func (st *solveState) result() SolveResult {
	out := SolveResult{
		Root:         st.root,
		Packages:     map[string]types.PackageID{},
		Dependencies: map[string][]types.Dependency{},
		Decisions:    st.decisions,
		Attempts:     st.solution.attempted,
	}
	for name, id := range st.solution.decisions {
		out.Dependencies[name] = st.deps[name]
		if id.IsRoot() {
			continue
		}
		out.Packages[name] = id
	}
	return out
}
