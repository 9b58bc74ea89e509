package core

import (
	"fmt"
	"strings"
)

// SolveFailure is returned when the root's requirements cannot be met.
// Incompatibility is the final derived fact; following its causes yields
// the full chain of reasoning.
type SolveFailure struct {
	Incompatibility *Incompatibility
}

func (f *SolveFailure) Error() string {
	return f.Explain()
}

// Chain returns every incompatibility reachable from the final one,
// depth first with external facts before the facts derived from them.
func (f *SolveFailure) Chain() []*Incompatibility {
	seen := map[*Incompatibility]bool{}
	out := []*Incompatibility{}
	var walk func(inc *Incompatibility)
	walk = func(inc *Incompatibility) {
		if inc == nil || seen[inc] {
			return
		}
		seen[inc] = true
		if inc.Cause.IsConflict() {
			walk(inc.Cause.Conflict)
			walk(inc.Cause.Other)
		}
		out = append(out, inc)
	}
	walk(f.Incompatibility)
	return out
}

// Explain renders the derivation as numbered English sentences.
func (f *SolveFailure) Explain() string {
	if f.Incompatibility == nil {
		return "version solving failed"
	}
	if !f.Incompatibility.Cause.IsConflict() {
		return "Because " + f.Incompatibility.String() + ", version solving failed."
	}
	w := &failureWriter{
		root:        f.Incompatibility,
		derivations: map[*Incompatibility]int{},
		lineNumbers: map[*Incompatibility]int{},
	}
	w.countDerivations(f.Incompatibility)
	w.visit(f.Incompatibility, true)
	return w.render()
}

type failureLine struct {
	text   string
	number int
}

type failureWriter struct {
	root        *Incompatibility
	derivations map[*Incompatibility]int
	lineNumbers map[*Incompatibility]int
	lines       []failureLine
	next        int
}

func (w *failureWriter) countDerivations(inc *Incompatibility) {
	if w.derivations[inc] > 0 {
		w.derivations[inc]++
		return
	}
	w.derivations[inc] = 1
	if inc.Cause.IsConflict() {
		w.countDerivations(inc.Cause.Conflict)
		w.countDerivations(inc.Cause.Other)
	}
}

func (w *failureWriter) write(inc *Incompatibility, text string, numbered bool) {
	if !numbered {
		w.lines = append(w.lines, failureLine{text: text})
		return
	}
	w.next++
	w.lineNumbers[inc] = w.next
	w.lines = append(w.lines, failureLine{text: text, number: w.next})
}

func (w *failureWriter) visit(inc *Incompatibility, conclusion bool) {
	numbered := conclusion || w.derivations[inc] > 1
	conjunction := "And"
	if conclusion || inc == w.root {
		conjunction = "So,"
	}
	cause := inc.Cause
	conflict, other := cause.Conflict, cause.Other

	switch {
	case conflict.Cause.IsConflict() && other.Cause.IsConflict():
		conflictLine, hasConflictLine := w.lineNumbers[conflict]
		otherLine, hasOtherLine := w.lineNumbers[other]
		switch {
		case hasConflictLine && hasOtherLine:
			w.write(inc, fmt.Sprintf("Because %s (%d) and %s (%d), %s.", conflict, conflictLine, other, otherLine, inc), numbered)
		case hasConflictLine || hasOtherLine:
			withLine, withoutLine, line := conflict, other, conflictLine
			if hasOtherLine {
				withLine, withoutLine, line = other, conflict, otherLine
			}
			w.visit(withoutLine, false)
			w.write(inc, fmt.Sprintf("%s because %s (%d), %s.", conjunction, withLine, line, inc), numbered)
		default:
			singleConflict := isSingleLine(conflict)
			singleOther := isSingleLine(other)
			if singleConflict || singleOther {
				first, second := other, conflict
				if singleOther {
					first, second = conflict, other
				}
				w.visit(first, false)
				w.visit(second, false)
				w.write(inc, fmt.Sprintf("Thus, %s.", inc), numbered)
				return
			}
			w.visit(conflict, true)
			w.lines = append(w.lines, failureLine{})
			w.visit(other, false)
			w.write(inc, fmt.Sprintf("%s because %s (%d), %s.", conjunction, conflict, w.lineNumbers[conflict], inc), numbered)
		}
	case conflict.Cause.IsConflict() || other.Cause.IsConflict():
		derived, external := conflict, other
		if !conflict.Cause.IsConflict() {
			derived, external = other, conflict
		}
		if line, ok := w.lineNumbers[derived]; ok {
			w.write(inc, fmt.Sprintf("Because %s and %s (%d), %s.", external, derived, line, inc), numbered)
			return
		}
		w.visit(derived, false)
		w.write(inc, fmt.Sprintf("%s because %s, %s.", conjunction, external, inc), numbered)
	default:
		w.write(inc, fmt.Sprintf("Because %s and %s, %s.", conflict, other, inc), numbered)
	}
}

func isSingleLine(inc *Incompatibility) bool {
	cause := inc.Cause
	return !cause.Conflict.Cause.IsConflict() && !cause.Other.Cause.IsConflict()
}

func (w *failureWriter) render() string {
	width := 0
	for _, line := range w.lines {
		if line.number > 0 {
			width = max(width, len(fmt.Sprintf("(%d)", line.number)))
		}
	}
	var b strings.Builder
	for i, line := range w.lines {
		if i > 0 {
			b.WriteString("\n")
		}
		if line.text == "" {
			continue
		}
		if width > 0 && w.next > 1 {
			prefix := ""
			if line.number > 0 {
				prefix = fmt.Sprintf("(%d)", line.number)
			}
			b.WriteString(prefix + strings.Repeat(" ", width-len(prefix)+1))
		}
		b.WriteString(line.text)
	}
	return b.String()
}
