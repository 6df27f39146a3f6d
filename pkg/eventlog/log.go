package eventlog

import (
	"context"
	"sync"
	"time"
)

// Log is an append-only FIFO keyed by monotonic sequence number within a
// single branch. Append is the only mutation; everything else reads.
type Log struct {
	mu          sync.Mutex
	entries     []Entry
	subscribers map[int]chan Entry
	nextSubID   int
}

// New returns an empty log.
func New() *Log {
	return &Log{subscribers: make(map[int]chan Entry)}
}

// FromEntries returns a log preloaded with entries, used to reconstruct a
// branch's log from a snapshot or to seed a forked child with a copy of
// its parent's history. entries are assumed already seq-ordered; they are
// copied defensively.
func FromEntries(entries []Entry) *Log {
	l := New()
	l.entries = append(l.entries, entries...)
	return l
}

// Clone returns a new Log with an independent copy of entries and no
// subscribers, used by Simulation Tree branch/fork to give a child its own
// append-only history starting from the parent's.
func (l *Log) Clone() *Log {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return &Log{entries: out, subscribers: make(map[int]chan Entry)}
}

// PruneFrom drops every entry with Seq >= from, used by the
// prune_events{from} branch patch to roll back mid-round state before
// forking. It does not renumber remaining entries.
func (l *Log) PruneFrom(from int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kept := l.entries[:0:0]
	for _, e := range l.entries {
		if e.Seq < from {
			kept = append(kept, e)
		}
	}
	l.entries = kept
}

// Append assigns the next sequence number and timestamp (if unset),
// records the entry, and fans it out to any live subscribers. Thread-safe:
// a branch has exactly one logical writer (its owning Round Runner), but
// Append itself tolerates concurrent callers.
func (l *Log) Append(entry Entry) Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry.Seq = len(l.entries) + 1
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	l.entries = append(l.entries, entry)

	for _, ch := range l.subscribers {
		select {
		case ch <- entry:
		default:
			// Slow subscriber; drop rather than block the single writer.
		}
	}
	return entry
}

// Len returns the number of entries currently appended.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// All returns a copy of every entry in the log, in append order.
func (l *Log) All() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Range returns the contiguous slice of entries with seq in [from, to].
// Sequence numbers are 1-based; an out-of-range bound is clamped.
func (l *Log) Range(from, to int) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	if from < 1 {
		from = 1
	}
	if to > len(l.entries) {
		to = len(l.entries)
	}
	if from > to {
		return nil
	}
	out := make([]Entry, to-from+1)
	copy(out, l.entries[from-1:to])
	return out
}

// StreamFrom returns a channel of entries with seq >= fromSeq, first
// draining the existing backlog and then forwarding new appends until ctx
// is cancelled, at which point the channel is closed. Intended for the
// out-of-scope WebSocket layer to subscribe with a (simulationID, nodeID,
// fromSeq) tuple.
func (l *Log) StreamFrom(ctx context.Context, fromSeq int) <-chan Entry {
	ch := make(chan Entry, 16)

	l.mu.Lock()
	id := l.nextSubID
	l.nextSubID++
	l.subscribers[id] = ch

	var backlog []Entry
	for _, e := range l.entries {
		if e.Seq >= fromSeq {
			backlog = append(backlog, e)
		}
	}
	l.mu.Unlock()

	go func() {
		defer func() {
			l.mu.Lock()
			delete(l.subscribers, id)
			l.mu.Unlock()
			close(ch)
		}()

		for _, e := range backlog {
			select {
			case ch <- e:
			case <-ctx.Done():
				return
			}
		}
		<-ctx.Done()
	}()

	return ch
}
