package ledger

import (
	"time"
)

// LastNSize bounds the most-recent-numbers strip shown next to the caller.
const LastNSize = 3

// SizeTolerance absorbs the normal race between a push and a poll landing a
// fraction of a second apart before a count difference counts as drift.
const SizeTolerance = 2

// Ledger is the client's record of called numbers for the round currently on
// display. It only ever grows within a round; it shrinks solely through
// ResetForNewRound or an authoritative snapshot that supersedes it.
//
// The Ledger is not safe for concurrent use. The owning session serializes
// all access.
type Ledger struct {
	called  map[string]struct{}
	order   []string // arrival order, oldest first
	lastN   []string // most-recent-first, bounded at LastNSize
	current string
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{
		called: make(map[string]struct{}),
	}
}

// ApplyIncremental records one newly pushed number. Re-applying a value that
// is already present is a no-op, so duplicated or replayed push events cannot
// corrupt the lastN strip. The server's call timestamp is accepted for the
// event's sake but ordering is arrival order, which also resolves timestamp
// ties. Reports whether the value was new.
func (l *Ledger) ApplyIncremental(value string, _ time.Time) bool {
	if _, ok := l.called[value]; ok {
		return false
	}

	l.called[value] = struct{}{}
	l.order = append(l.order, value)
	l.current = value

	l.lastN = append([]string{value}, l.lastN...)
	if len(l.lastN) > LastNSize {
		l.lastN = l.lastN[:LastNSize]
	}
	return true
}

// ApplyAuthoritativeSnapshot replaces the ledger wholesale with the server's
// complete ordered list for the round. A snapshot smaller than the current
// ledger is refused: it is either a partial fetch or a stale one, and
// applying it would erase numbers the player has already seen and possibly
// marked. An empty ledger accepts any snapshot. Reports whether the snapshot
// was applied.
//
// Replacement is deliberately not a union: the snapshot is defined to be the
// full truth for the round, and a union would resurrect numbers from a
// previous round if a caller ever passed the wrong scope.
func (l *Ledger) ApplyAuthoritativeSnapshot(orderedValues []string) bool {
	deduped := make([]string, 0, len(orderedValues))
	seen := make(map[string]struct{}, len(orderedValues))
	for _, v := range orderedValues {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		deduped = append(deduped, v)
	}

	if len(l.called) > 0 && len(deduped) < len(l.called) {
		return false
	}

	l.called = seen
	l.order = deduped
	l.lastN = nil
	l.current = ""

	for i := len(deduped) - 1; i >= 0 && len(l.lastN) < LastNSize; i-- {
		l.lastN = append(l.lastN, deduped[i])
	}
	if len(deduped) > 0 {
		l.current = deduped[len(deduped)-1]
	}
	return true
}

// ResetForNewRound clears everything unconditionally. Only the round
// controller's confirmed round-start boundary may invoke it.
func (l *Ledger) ResetForNewRound() {
	l.called = make(map[string]struct{})
	l.order = nil
	l.lastN = nil
	l.current = ""
}

// SizeMismatch reports whether the server's count has drifted from the local
// ledger beyond the in-flight tolerance.
func (l *Ledger) SizeMismatch(serverCount int) bool {
	diff := serverCount - len(l.called)
	if diff < 0 {
		diff = -diff
	}
	return diff > SizeTolerance
}

// Size returns the number of distinct called values.
func (l *Ledger) Size() int {
	return len(l.called)
}

// Has reports whether value has been called this round.
func (l *Ledger) Has(value string) bool {
	_, ok := l.called[value]
	return ok
}

// Called returns the called values in call order.
func (l *Ledger) Called() []string {
	out := make([]string, len(l.order))
	copy(out, l.order)
	return out
}

// CalledSet returns the called values as a set.
func (l *Ledger) CalledSet() map[string]struct{} {
	out := make(map[string]struct{}, len(l.called))
	for v := range l.called {
		out[v] = struct{}{}
	}
	return out
}

// LastN returns up to LastNSize values, most recent first.
func (l *Ledger) LastN() []string {
	out := make([]string, len(l.lastN))
	copy(out, l.lastN)
	return out
}

// CurrentNumber returns the most recently called value, or "" when none.
func (l *Ledger) CurrentNumber() string {
	return l.current
}
