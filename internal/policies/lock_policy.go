package policies

import (
	"strings"

	"pub/internal/types"
)

// LockPolicy maps a solve type and the names given on the command line
// to a per-package lock preference. Names may be exact, a prefix ending
// in "*" or the wildcard "*". No names unlock every package.
type LockPolicy struct {
	Type     types.SolveType
	exact    map[string]struct{}
	prefixes []string
	wildcard bool
}

func NewLockPolicy(solveType types.SolveType, names []string) LockPolicy {
	policy := LockPolicy{Type: solveType, exact: map[string]struct{}{}}
	if solveType == "" {
		policy.Type = types.SolveTypeGet
	}
	for _, name := range names {
		switch kind, value := parsePattern(name); kind {
		case patternWildcard:
			policy.wildcard = true
		case patternPrefix:
			policy.prefixes = append(policy.prefixes, value)
		case patternExact:
			policy.exact[value] = struct{}{}
		}
	}
	if len(names) == 0 {
		policy.wildcard = true
	}
	return policy
}

// Unlocked reports whether name was released by the given names.
func (p LockPolicy) Unlocked(name string) bool {
	if p.wildcard {
		return true
	}
	if _, ok := p.exact[name]; ok {
		return true
	}
	for _, prefix := range p.prefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

func (p LockPolicy) Preference(name string) types.LockPreference {
	switch p.Type {
	case types.SolveTypeUpgrade:
		if p.Unlocked(name) {
			return types.LockPreferenceIgnore
		}
	case types.SolveTypeDowngrade:
		if p.Unlocked(name) {
			return types.LockPreferenceInverted
		}
	}
	return types.LockPreferenceKeep
}

func (p LockPolicy) Descending(name string) bool {
	return p.Preference(name) != types.LockPreferenceInverted
}

type patternKind int

const (
	patternExact patternKind = iota
	patternPrefix
	patternWildcard
	patternInvalid
)

func parsePattern(pattern string) (patternKind, string) {
	trimmed := strings.TrimSpace(pattern)
	switch {
	case trimmed == "":
		return patternInvalid, ""
	case trimmed == "*":
		return patternWildcard, ""
	case strings.HasSuffix(trimmed, "*"):
		return patternPrefix, strings.TrimSuffix(trimmed, "*")
	default:
		return patternExact, trimmed
	}
}
