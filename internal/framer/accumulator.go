package framer

import "strings"

// Accumulator collects lines until one ends with the terminator and then
// yields the joined record. After a record completes, the next blank line
// is swallowed once, even when non-blank lines come in between.
type Accumulator struct {
	terminator string
	join       string
	strip      bool

	pending   []string
	skipBlank bool
}

func NewAccumulator(terminator, join string, strip bool) *Accumulator {
	return &Accumulator{terminator: terminator, join: join, strip: strip}
}

// Feed consumes one line without its newline. It returns the completed
// record text and true when line ended a record.
func (a *Accumulator) Feed(line string) (string, bool) {
	if line == "" && a.skipBlank {
		a.skipBlank = false
		return "", false
	}

	if !strings.HasSuffix(line, a.terminator) {
		a.pending = append(a.pending, line)
		return "", false
	}

	last := line
	if a.strip {
		last = strings.TrimSuffix(line, a.terminator)
	}
	a.pending = append(a.pending, last)
	out := strings.Join(a.pending, a.join)
	a.pending = a.pending[:0]
	a.skipBlank = true
	return out, true
}

// Pending reports how many lines are buffered for the next record.
func (a *Accumulator) Pending() int { return len(a.pending) }

// Reset drops buffered lines and the blank-skip flag.
func (a *Accumulator) Reset() {
	a.pending = a.pending[:0]
	a.skipBlank = false
}
