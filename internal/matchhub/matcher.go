package matchhub

import (
	"time"

	"vibecall/backend/internal/models"
)

// Pair is two compatible queue entries selected by one matching pass. A joined first.
type Pair struct {
	A models.QueueEntry
	B models.QueueEntry
}

// FindPairs runs one greedy, oldest-first pass over a queue snapshot: for each unmatched
// entry U (by JoinedAt ascending) the first later unmatched entry V compatible with U is
// taken. It is O(n²) and does not look for a globally optimal pairing. No user appears in
// more than one pair and nobody is paired with themselves.
func FindPairs(snapshot []models.QueueEntry) []Pair {
	entries := append([]models.QueueEntry(nil), snapshot...)
	sortByJoin(entries)

	taken := make(map[string]bool, len(entries))
	var pairs []Pair
	for i, u := range entries {
		if taken[u.UserID] {
			continue
		}
		for j := i + 1; j < len(entries); j++ {
			v := entries[j]
			if taken[v.UserID] || v.UserID == u.UserID {
				continue
			}
			if models.Compatible(u, v) {
				taken[u.UserID] = true
				taken[v.UserID] = true
				pairs = append(pairs, Pair{A: u, B: v})
				break
			}
		}
	}
	return pairs
}

// QueueStats is the aggregate view of the waiting queue.
type QueueStats struct {
	TotalInQueue   int
	AvgWaitTime    time.Duration
	OldestWaitTime time.Duration
}

// ComputeStats derives queue statistics from a snapshot. avgWait is the rolling
// time-to-pair average kept by the queue.
func ComputeStats(snapshot []models.QueueEntry, now time.Time, avgWait time.Duration) QueueStats {
	st := QueueStats{TotalInQueue: len(snapshot), AvgWaitTime: avgWait}
	for _, e := range snapshot {
		if w := e.WaitedFor(now); w > st.OldestWaitTime {
			st.OldestWaitTime = w
		}
	}
	return st
}
