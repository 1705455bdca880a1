// Package eventlog implements the append-only sequenced log shared by
// survey forms and button panels.
//
// The log owns sequence numbering (monotonic, gapless, starting at 1) and
// the aggregate: the aggregate is only ever produced by folding events, so
// it can never silently diverge from the log. The log is not safe for
// concurrent use: the owning session serializes access under its lock.
package eventlog

// Entry is anything that can live in a log: it must expose its sequence
// number so incremental queries can filter on it.
type Entry interface {
	EventSeq() int64
}

// Log is an append-only event sequence with a cached fold result.
type Log[E Entry, A any] struct {
	zero   func() A
	fold   func(A, E) A
	events []E
	agg    A
	next   int64
}

// New creates an empty log. zero produces the aggregate for an empty log;
// fold incorporates one event into the aggregate.
func New[E Entry, A any](zero func() A, fold func(A, E) A) *Log[E, A] {
	return &Log[E, A]{
		zero: zero,
		fold: fold,
		agg:  zero(),
		next: 1,
	}
}

// Append assigns the next sequence number, builds the event with it,
// appends it and folds it into the aggregate.
func (l *Log[E, A]) Append(build func(seq int64) E) E {
	seq := l.next
	l.next++
	ev := build(seq)
	l.events = append(l.events, ev)
	l.agg = l.fold(l.agg, ev)
	return ev
}

// Since returns the events with sequence numbers strictly greater than seq,
// oldest first. Passing 0 returns everything.
func (l *Log[E, A]) Since(seq int64) []E {
	// Events are stored in seq order; find the first one past the cursor.
	idx := len(l.events)
	for i, ev := range l.events {
		if ev.EventSeq() > seq {
			idx = i
			break
		}
	}
	out := make([]E, len(l.events)-idx)
	copy(out, l.events[idx:])
	return out
}

// Events returns a copy of the whole log.
func (l *Log[E, A]) Events() []E {
	return l.Since(0)
}

// Aggregate returns the current fold of the log.
func (l *Log[E, A]) Aggregate() A {
	return l.agg
}

// Len returns the number of events in the log.
func (l *Log[E, A]) Len() int {
	return len(l.events)
}

// NextSeq returns the sequence number the next append will use.
func (l *Log[E, A]) NextSeq() int64 {
	return l.next
}

// Reset clears the log and rewinds numbering to 1. The aggregate goes back
// to its zero value.
func (l *Log[E, A]) Reset() {
	l.events = nil
	l.agg = l.zero()
	l.next = 1
}

// Restore replaces the log contents from persisted state, rebuilding the
// aggregate by folding every event from zero. A nextSeq below what the
// events imply is corrected so numbering stays gapless.
func (l *Log[E, A]) Restore(events []E, nextSeq int64) {
	l.events = append([]E(nil), events...)
	l.agg = l.zero()
	for _, ev := range l.events {
		l.agg = l.fold(l.agg, ev)
	}
	min := int64(len(l.events)) + 1
	if len(l.events) > 0 {
		if last := l.events[len(l.events)-1].EventSeq(); last+1 > min {
			min = last + 1
		}
	}
	if nextSeq < min {
		nextSeq = min
	}
	l.next = nextSeq
}
