package matchhub

import (
	"time"

	"vibecall/backend/internal/models"
)

// Queue is the waiting queue: ordered, preference-filterable membership of users
// awaiting a match. Entries live in the shared Store.
type Queue struct {
	store *Store
	waits *waitTracker
	now   func() time.Time
}

func NewQueue(store *Store, sampleSize int, now func() time.Time) *Queue {
	if now == nil {
		now = time.Now
	}
	return &Queue{store: store, waits: newWaitTracker(sampleSize), now: now}
}

// QueueStatus is a queued user's view of their place in line.
type QueueStatus struct {
	Position          int
	EstimatedWaitTime time.Duration
	QueueSize         int
}

// Admit validates prefs and adds the user with JoinedAt = now.
func (q *Queue) Admit(userID string, profile models.Profile, prefs models.Preferences) (models.QueueEntry, error) {
	if err := prefs.Validate(); err != nil {
		return models.QueueEntry{}, err
	}
	now := q.now()
	return q.store.Admit(models.QueueEntry{
		UserID:          userID,
		JoinedAt:        now,
		LastHeartbeatAt: now,
		Profile:         profile,
		Preferences:     prefs,
	})
}

// Withdraw is idempotent; it reports whether an entry was removed.
func (q *Queue) Withdraw(userID string) bool {
	return q.store.Withdraw(userID)
}

// CandidatesFor lists, oldest first, the queued entries mutually compatible with a user
// holding prefs. The caller is excluded.
func (q *Queue) CandidatesFor(userID string, prefs models.Preferences) []models.QueueEntry {
	probe := models.QueueEntry{UserID: userID, Preferences: prefs}
	if self, ok := q.store.Entry(userID); ok {
		probe.Profile = self.Profile
	}
	var out []models.QueueEntry
	for _, e := range q.store.Snapshot() {
		if e.UserID != userID && models.Compatible(probe, e) {
			out = append(out, e)
		}
	}
	return out
}

// Position returns the user's 1-based rank by wait time among compatible candidates.
func (q *Queue) Position(userID string) (QueueStatus, bool) {
	snapshot := q.store.Snapshot()
	idx := -1
	for i, e := range snapshot {
		if e.UserID == userID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return QueueStatus{}, false
	}
	self := snapshot[idx]
	pos := 1
	for _, e := range snapshot[:idx] {
		if models.Compatible(self, e) {
			pos++
		}
	}
	return QueueStatus{Position: pos, EstimatedWaitTime: q.waits.Average(), QueueSize: len(snapshot)}, true
}

// Stats returns the global queue statistics.
func (q *Queue) Stats() QueueStats {
	return ComputeStats(q.store.Snapshot(), q.now(), q.waits.Average())
}

// recordPaired feeds the time-to-pair of both entries into the rolling average.
func (q *Queue) recordPaired(at time.Time, entries ...models.QueueEntry) {
	for _, e := range entries {
		q.waits.Add(e.WaitedFor(at))
	}
}
