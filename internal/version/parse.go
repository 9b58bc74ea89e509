package version

import (
	"fmt"
	"strings"
)

// ConstraintParseError reports malformed version or constraint text.
type ConstraintParseError struct {
	Text      string
	Substring string
	Position  int
	Cause     error
}

func (e *ConstraintParseError) Error() string {
	if e.Substring == e.Text {
		return fmt.Sprintf("could not parse version %q", e.Text)
	}
	return fmt.Sprintf("could not parse constraint %q: unexpected %q at position %d", e.Text, e.Substring, e.Position)
}

func (e *ConstraintParseError) Unwrap() error {
	return e.Cause
}

// ParseConstraint reads constraint syntax:
//
//	any              every version
//	1.2.3            exactly that version
//	^1.2.3           compatible with 1.2.3
//	>=1.0.0 <2.0.0   intersection of space separated comparisons
//	^1.0.0 or ^2.0.0 union of alternatives
func ParseConstraint(text string) (Constraint, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Constraint{}, &ConstraintParseError{Text: text, Substring: "", Position: 0}
	}
	if trimmed == "any" {
		return Any(), nil
	}
	p := parser{text: text}
	result := Empty()
	for {
		alt, err := p.parseIntersection()
		if err != nil {
			return Constraint{}, err
		}
		result = result.Union(alt)
		p.skipSpace()
		if p.done() {
			return result, nil
		}
		if !p.consumeWord("or") {
			return Constraint{}, p.errorHere()
		}
	}
}

// MustParseConstraint is ParseConstraint for literals known to be valid.
func MustParseConstraint(text string) Constraint {
	c, err := ParseConstraint(text)
	if err != nil {
		panic(err)
	}
	return c
}

type parser struct {
	text string
	pos  int
}

func (p *parser) done() bool {
	return p.pos >= len(p.text)
}

func (p *parser) skipSpace() {
	for !p.done() && (p.text[p.pos] == ' ' || p.text[p.pos] == '\t') {
		p.pos++
	}
}

func (p *parser) consumeWord(word string) bool {
	if !strings.HasPrefix(p.text[p.pos:], word) {
		return false
	}
	end := p.pos + len(word)
	if end < len(p.text) && p.text[end] != ' ' && p.text[end] != '\t' {
		return false
	}
	p.pos = end
	return true
}

func (p *parser) errorHere() error {
	end := p.pos
	for end < len(p.text) && p.text[end] != ' ' {
		end++
	}
	return &ConstraintParseError{Text: p.text, Substring: p.text[p.pos:end], Position: p.pos}
}

// parseIntersection reads comparisons until the end of input or an "or".
func (p *parser) parseIntersection() (Constraint, error) {
	result := Any()
	count := 0
	for {
		p.skipSpace()
		if p.done() || strings.HasPrefix(p.text[p.pos:], "or ") || p.text[p.pos:] == "or" {
			break
		}
		term, err := p.parseComparison()
		if err != nil {
			return Constraint{}, err
		}
		result = result.Intersect(term)
		count++
	}
	if count == 0 {
		return Constraint{}, p.errorHere()
	}
	return excludeUpperPrereleases(result), nil
}

// excludeUpperPrereleases moves an exclusive release upper bound down to
// its first pre-release, so "<2.0.0" does not admit 2.0.0-dev. The bound
// is kept when the lower bound is a pre-release of that same release.
func excludeUpperPrereleases(c Constraint) Constraint {
	ranges := make([]Range, 0, len(c.ranges))
	for _, r := range c.ranges {
		if !r.Max.IsZero() && !r.IncludeMax && !r.Max.IsPrerelease() &&
			!(r.Min.IsPrerelease() && r.Min.sameRelease(r.Max)) {
			r.Max = r.Max.firstPrerelease()
		}
		ranges = append(ranges, r)
	}
	return FromRanges(ranges...)
}

func (p *parser) parseComparison() (Constraint, error) {
	if p.consumeWord("any") {
		return Any(), nil
	}
	op := ""
	for _, candidate := range []string{">=", "<=", ">", "<", "^"} {
		if strings.HasPrefix(p.text[p.pos:], candidate) {
			op = candidate
			p.pos += len(candidate)
			break
		}
	}
	p.skipSpace()
	start := p.pos
	for !p.done() && !strings.ContainsRune(" \t<>^", rune(p.text[p.pos])) {
		p.pos++
	}
	token := p.text[start:p.pos]
	v, err := Parse(token)
	if err != nil {
		return Constraint{}, &ConstraintParseError{Text: p.text, Substring: token, Position: start, Cause: err}
	}
	switch op {
	case ">=":
		return FromRanges(AtLeast(v)), nil
	case ">":
		return FromRanges(Range{Min: v}), nil
	case "<=":
		return FromRanges(Range{Max: v, IncludeMax: true}), nil
	case "<":
		return FromRanges(Below(v)), nil
	case "^":
		return FromRanges(Compatible(v)), nil
	default:
		return Only(v), nil
	}
}
