package eventlog

import (
	"fmt"
	"sort"
	"strings"
)

// evidenceRadius is how many entries either side of a diff are attached as
// context, per spec.md §4.G's "evidence windows around each diff".
const evidenceRadius = 3

// DiffEntry pairs a diverging entry with a window of surrounding entries
// from its own log, for human review.
type DiffEntry struct {
	Entry    Entry
	Evidence []Entry
}

// Diff is the result of aligning two logs: entries present only in the
// second log (Added) and entries present only in the first (Removed).
type Diff struct {
	Added   []DiffEntry
	Removed []DiffEntry
}

// Align computes an edit script between two branch logs using a standard
// LCS dynamic-programming alignment over each entry's (type, relevant
// payload keys) signature, per spec.md §4.G and §9. Align(l, l) always
// yields an empty Diff.
func Align(a, b []Entry) Diff {
	n, m := len(a), len(b)

	dp := make([][]int, n+1)
	for i := range dp {
		dp[i] = make([]int, m+1)
	}
	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			if signature(a[i-1]) == signature(b[j-1]) {
				dp[i][j] = dp[i-1][j-1] + 1
			} else if dp[i-1][j] >= dp[i][j-1] {
				dp[i][j] = dp[i-1][j]
			} else {
				dp[i][j] = dp[i][j-1]
			}
		}
	}

	var removed, added []DiffEntry
	i, j := n, m
	for i > 0 && j > 0 {
		switch {
		case signature(a[i-1]) == signature(b[j-1]):
			i--
			j--
		case dp[i-1][j] >= dp[i][j-1]:
			removed = append(removed, DiffEntry{Entry: a[i-1], Evidence: window(a, i-1)})
			i--
		default:
			added = append(added, DiffEntry{Entry: b[j-1], Evidence: window(b, j-1)})
			j--
		}
	}
	for i > 0 {
		removed = append(removed, DiffEntry{Entry: a[i-1], Evidence: window(a, i-1)})
		i--
	}
	for j > 0 {
		added = append(added, DiffEntry{Entry: b[j-1], Evidence: window(b, j-1)})
		j--
	}

	reverse(removed)
	reverse(added)
	return Diff{Added: added, Removed: removed}
}

func window(log []Entry, idx int) []Entry {
	lo := idx - evidenceRadius
	if lo < 0 {
		lo = 0
	}
	hi := idx + evidenceRadius + 1
	if hi > len(log) {
		hi = len(log)
	}
	out := make([]Entry, hi-lo)
	copy(out, log[lo:hi])
	return out
}

func reverse(entries []DiffEntry) {
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
}

// signature reduces an entry to the (type, sender, relevant payload keys)
// tuple Align compares for equivalence; Seq and Timestamp are deliberately
// excluded so two branches that recorded the same logical event at
// different positions still align.
func signature(e Entry) string {
	keys := make([]string, 0, len(e.Payload))
	for k := range e.Payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(string(e.Type))
	b.WriteByte('|')
	b.WriteString(e.Sender)
	for _, k := range keys {
		fmt.Fprintf(&b, "|%s=%v", k, e.Payload[k])
	}
	return b.String()
}
