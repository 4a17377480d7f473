package matchhub

import (
	"sort"
	"sync"
	"time"

	"vibecall/backend/internal/apperror"
	"vibecall/backend/internal/models"
)

// Store is the shared registry of queue entries and live sessions, passed by reference to
// every component. Membership changes (admit, claim, evict, release) take the store lock.
// Each session carries its own lock so unrelated sessions never serialize. A slot lock is
// never held while taking the store lock.
type Store struct {
	mu       sync.RWMutex
	seq      uint64
	queue    map[string]*models.QueueEntry
	active   map[string]string // userID -> sessionID of a non-CLOSED session
	sessions map[string]*sessionSlot
}

func NewStore() *Store {
	return &Store{
		queue:    make(map[string]*models.QueueEntry),
		active:   make(map[string]string),
		sessions: make(map[string]*sessionSlot),
	}
}

type sessionSlot struct {
	mu        sync.Mutex
	session   models.Session
	heartbeat map[string]time.Time
}

func (sl *sessionSlot) view() models.Session {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	s := sl.session
	s.SharedInterests = append([]string(nil), sl.session.SharedInterests...)
	return s
}

func (sl *sessionSlot) transition(from, to models.SessionState) bool {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	if sl.session.State != from || !from.CanTransitionTo(to) {
		return false
	}
	sl.session.State = to
	return true
}

func (sl *sessionSlot) touch(userID string, at time.Time) {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	if sl.session.HasParticipant(userID) {
		sl.heartbeat[userID] = at
	}
}

// staleParticipant returns a participant whose last heartbeat is before cutoff.
func (sl *sessionSlot) staleParticipant(cutoff time.Time) (string, bool) {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	for _, uid := range []string{sl.session.ParticipantA, sl.session.ParticipantB} {
		if sl.heartbeat[uid].Before(cutoff) {
			return uid, true
		}
	}
	return "", false
}

// Admit stores e unless the user is already queued or in a live session. The stored entry
// gets a fresh admission sequence number.
func (s *Store) Admit(e models.QueueEntry) (models.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.queue[e.UserID]; ok {
		return models.QueueEntry{}, apperror.AlreadyQueued(e.UserID)
	}
	if _, ok := s.active[e.UserID]; ok {
		return models.QueueEntry{}, apperror.AlreadyInSession(e.UserID)
	}
	s.seq++
	e.Seq = s.seq
	stored := e
	s.queue[e.UserID] = &stored
	return e, nil
}

// Withdraw removes the user's entry. It reports whether an entry existed.
func (s *Store) Withdraw(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.queue[userID]; !ok {
		return false
	}
	delete(s.queue, userID)
	return true
}

func (s *Store) Entry(userID string) (models.QueueEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.queue[userID]
	if !ok {
		return models.QueueEntry{}, false
	}
	return *e, true
}

// Snapshot returns a copy of the queue ordered by JoinedAt, then admission order.
func (s *Store) Snapshot() []models.QueueEntry {
	s.mu.RLock()
	out := make([]models.QueueEntry, 0, len(s.queue))
	for _, e := range s.queue {
		out = append(out, *e)
	}
	s.mu.RUnlock()
	sortByJoin(out)
	return out
}

func sortByJoin(entries []models.QueueEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].JoinedAt.Equal(entries[j].JoinedAt) {
			return entries[i].JoinedAt.Before(entries[j].JoinedAt)
		}
		return entries[i].Seq < entries[j].Seq
	})
}

func (s *Store) QueueLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.queue)
}

// ClaimPair is the compare-and-remove step of pairing: both entries must still be queued
// under the same admission they were snapshotted with. On success both are removed and
// sess is registered as their live session in one step.
func (s *Store) ClaimPair(a, b models.QueueEntry, sess models.Session) (*sessionSlot, bool) {
	if a.UserID == b.UserID {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ea, okA := s.queue[a.UserID]
	eb, okB := s.queue[b.UserID]
	if !okA || !okB || ea.Seq != a.Seq || eb.Seq != b.Seq {
		return nil, false
	}
	delete(s.queue, a.UserID)
	delete(s.queue, b.UserID)

	slot := &sessionSlot{session: sess, heartbeat: make(map[string]time.Time, 2)}
	s.sessions[sess.ID] = slot
	s.active[a.UserID] = sess.ID
	s.active[b.UserID] = sess.ID
	return slot, true
}

// EvictIfStale removes the entry only if it is still present and its last heartbeat is
// before cutoff. A pairing that claimed the entry first wins.
func (s *Store) EvictIfStale(userID string, cutoff time.Time) (models.QueueEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.queue[userID]
	if !ok || !e.LastHeartbeatAt.Before(cutoff) {
		return models.QueueEntry{}, false
	}
	delete(s.queue, userID)
	return *e, true
}

// Touch records a heartbeat on the user's queue entry or live session slot.
func (s *Store) Touch(userID string, at time.Time) bool {
	s.mu.Lock()
	if e, ok := s.queue[userID]; ok {
		e.LastHeartbeatAt = at
		s.mu.Unlock()
		return true
	}
	slot := s.sessions[s.active[userID]]
	s.mu.Unlock()
	if slot == nil {
		return false
	}
	slot.touch(userID, at)
	return true
}

func (s *Store) session(id string) (*sessionSlot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sl, ok := s.sessions[id]
	return sl, ok
}

func (s *Store) sessionOf(userID string) (*sessionSlot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sl, ok := s.sessions[s.active[userID]]
	return sl, ok
}

func (s *Store) liveSessions() []*sessionSlot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*sessionSlot, 0, len(s.sessions))
	for _, sl := range s.sessions {
		out = append(out, sl)
	}
	return out
}

// InSession reports whether the user belongs to a non-CLOSED session.
func (s *Store) InSession(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.active[userID]
	return ok
}

// SessionCount returns the number of live (non-CLOSED) sessions.
func (s *Store) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// release drops a session that reached CLOSED and frees both participants.
func (s *Store) release(sess models.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sess.ID)
	for _, uid := range []string{sess.ParticipantA, sess.ParticipantB} {
		if s.active[uid] == sess.ID {
			delete(s.active, uid)
		}
	}
}
