// Package changes keeps the append-only sequence log behind the changes feed.
package changes

import (
	"iter"
	"sync"
)

// Entry records that a document's winning revision changed at Seq.
type Entry struct {
	Seq int64  `json:"seq"`
	ID  string `json:"id"`
}

// Log assigns strictly increasing sequence numbers starting at 1.
// It is safe for concurrent use.
type Log struct {
	mu      sync.RWMutex
	entries []Entry
	latest  map[string]int64
}

// NewLog creates an empty log.
func NewLog() *Log {
	return &Log{
		latest: make(map[string]int64),
	}
}

// Append records a change to docID and returns its entry.
func (l *Log) Append(docID string) Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := Entry{Seq: int64(len(l.entries)) + 1, ID: docID}
	l.entries = append(l.entries, e)
	l.latest[docID] = e.Seq

	return e
}

// LastSeq returns the highest sequence assigned so far, 0 when empty.
func (l *Log) LastSeq() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return int64(len(l.entries))
}

// Since yields, in ascending order, every entry after since that is still its
// document's latest one. The upper bound is the last sequence at the time
// Since is called; appends made while iterating are not visited.
//
// The returned sequence is lazy and may be ranged over more than once.
func (l *Log) Since(since int64) iter.Seq[Entry] {
	upper := l.LastSeq()

	return func(yield func(Entry) bool) {
		for seq := max(since, 0) + 1; seq <= upper; seq++ {
			e, current := l.at(seq)
			if !current {
				continue
			}

			if !yield(e) {
				return
			}
		}
	}
}

// at returns the entry at seq and whether it is still its document's latest.
func (l *Log) at(seq int64) (Entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	e := l.entries[seq-1]

	return e, l.latest[e.ID] == e.Seq
}
