package matchhub

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"vibecall/backend/internal/apperror"
	"vibecall/backend/internal/config"
	"vibecall/backend/internal/metrics"
	"vibecall/backend/internal/models"
	"vibecall/backend/internal/video"
)

// ErrPairUnavailable means one of the entries was consumed (withdrawn, evicted or paired)
// after the matching pass took its snapshot.
var ErrPairUnavailable = errors.New("matchhub: pair no longer available")

// Orchestrator owns the session lifecycle from pairing to CLOSED.
type Orchestrator struct {
	store       *Store
	queue       *Queue
	rooms       video.Provisioner
	icebreakers IcebreakerSource
	notifier    Notifier
	results     ResultStore
	stats       StatsRecorder
	reports     ReportFiler
	cfg         config.Session
	now         func() time.Time
	retryDelay  time.Duration

	teardown sync.WaitGroup
	// closing holds CLOSED sessions whose outcome is still being written.
	closing sync.Map
}

// ActionResult is returned to the participant who acted.
type ActionResult struct {
	Success  bool
	Message  string
	Resolved bool
	IsMatch  bool
}

// OnPairFormed claims both entries, provisions a room and credentials, and activates the
// session. Any provisioning failure rolls the pair back to "not queued, not in session".
func (o *Orchestrator) OnPairFormed(ctx context.Context, pair Pair) (models.Session, error) {
	now := o.now()
	sess := models.Session{
		ID:              uuid.NewString(),
		ParticipantA:    pair.A.UserID,
		ParticipantB:    pair.B.UserID,
		State:           models.SessionPaired,
		SharedInterests: models.SharedInterests(pair.A.Preferences.Interests, pair.B.Preferences.Interests),
	}
	slot, ok := o.store.ClaimPair(pair.A, pair.B, sess)
	if !ok {
		return models.Session{}, ErrPairUnavailable
	}
	o.queue.recordPaired(now, pair.A, pair.B)
	metrics.TimeToPair.Observe(pair.A.WaitedFor(now).Seconds())
	metrics.TimeToPair.Observe(pair.B.WaitedFor(now).Seconds())

	slot.transition(models.SessionPaired, models.SessionRoomProvisioning)

	room, creds, err := o.provision(ctx, sess.ID, sess.ParticipantA, sess.ParticipantB)
	if err != nil {
		o.rollback(slot, room, err)
		return models.Session{}, apperror.Provisioning(err)
	}

	ib, ok := o.icebreakers.GetRandom()
	if !ok {
		log.Warn().Str("module", "matchhub.orchestrator").Str("session_id", sess.ID).
			Msg("no active icebreakers, session starts without a prompt")
	}
	startedAt := o.now()

	slot.mu.Lock()
	s := &slot.session
	s.RoomID = room.ID
	s.RoomURL = room.URL
	s.IcebreakerID = ib.ID
	s.Icebreaker = ib.Text
	s.StartedAt = startedAt
	s.DeadlineAt = startedAt.Add(o.cfg.Duration + o.cfg.Grace)
	s.State = models.SessionActive
	slot.heartbeat[s.ParticipantA] = startedAt
	slot.heartbeat[s.ParticipantB] = startedAt
	slot.mu.Unlock()

	active := slot.view()
	metrics.PairsFormed.Inc()
	metrics.LiveSessions.Set(float64(o.store.SessionCount()))
	log.Info().Str("module", "matchhub.orchestrator").Str("session_id", active.ID).
		Str("user_a", active.ParticipantA).Str("user_b", active.ParticipantB).Msg("session active")

	o.notifyMatchFound(active, pair, creds)
	return active, nil
}

func (o *Orchestrator) provision(ctx context.Context, sessionID string, users ...string) (video.Room, map[string]video.Credential, error) {
	var room video.Room
	err := retry(ctx, o.cfg.ProvisionAttempts, o.retryDelay, func(ctx context.Context) error {
		actx, cancel := context.WithTimeout(ctx, o.cfg.ProvisionTimeout)
		defer cancel()
		r, err := o.rooms.CreateRoom(actx, sessionID)
		if err != nil {
			return err
		}
		room = r
		return nil
	})
	if err != nil {
		return video.Room{}, nil, err
	}

	creds := make(map[string]video.Credential, len(users))
	for _, uid := range users {
		err := retry(ctx, o.cfg.ProvisionAttempts, o.retryDelay, func(ctx context.Context) error {
			actx, cancel := context.WithTimeout(ctx, o.cfg.ProvisionTimeout)
			defer cancel()
			c, err := o.rooms.GenerateToken(actx, room.ID, uid, o.cfg.TokenTTL())
			if err != nil {
				return err
			}
			creds[uid] = c
			return nil
		})
		if err != nil {
			return room, nil, err
		}
	}
	return room, creds, nil
}

func (o *Orchestrator) rollback(slot *sessionSlot, room video.Room, cause error) {
	sess := slot.view()
	slot.mu.Lock()
	slot.session.State = models.SessionClosed
	slot.mu.Unlock()
	o.store.release(sess)

	if room.ID != "" {
		o.deleteRoomAsync(room.ID)
	}
	metrics.ProvisioningFailures.Inc()
	metrics.LiveSessions.Set(float64(o.store.SessionCount()))
	log.Warn().Str("module", "matchhub.orchestrator").Str("session_id", sess.ID).Err(cause).
		Msg("provisioning failed, pair released")

	for _, uid := range []string{sess.ParticipantA, sess.ParticipantB} {
		o.notifier.Notify(models.Event{
			Type:      models.EventPairingFailed,
			UserID:    uid,
			SessionID: sess.ID,
			Retryable: true,
			Message:   "Could not start the call. Please join the queue again.",
			SentAt:    o.now().UnixMilli(),
		})
	}
}

func (o *Orchestrator) notifyMatchFound(s models.Session, pair Pair, creds map[string]video.Credential) {
	anon := map[string]bool{
		pair.A.UserID: pair.A.Preferences.AnonymousMode,
		pair.B.UserID: pair.B.Preferences.AnonymousMode,
	}
	for _, uid := range []string{s.ParticipantA, s.ParticipantB} {
		cred := creds[uid]
		o.notifier.Notify(models.Event{
			Type:             models.EventMatchFound,
			UserID:           uid,
			SessionID:        s.ID,
			RoomURL:          s.RoomURL,
			RoomToken:        cred.Token,
			TokenExpiresAt:   cred.ExpiresAt.UnixMilli(),
			Icebreaker:       s.Icebreaker,
			DeadlineAt:       s.DeadlineAt.UnixMilli(),
			PartnerAnonymous: anon[s.Partner(uid)],
			SharedInterests:  s.SharedInterests,
			SentAt:           o.now().UnixMilli(),
		})
	}
}

// HandleSessionAction records a participant's vibe, skip or report. The second outcome
// commits RESOLVED under the session lock, so resolution happens exactly once whatever
// the arrival order.
func (o *Orchestrator) HandleSessionAction(ctx context.Context, userID, sessionID string, action models.Action, reason string) (ActionResult, error) {
	if !action.Valid() {
		return ActionResult{}, apperror.Validation("action", "must be one of vibe, skip, report")
	}
	reason = strings.TrimSpace(reason)
	if action == models.ActionReport && reason == "" {
		return ActionResult{}, apperror.Validation("reportReason", "required when action is report")
	}

	slot, ok := o.store.session(sessionID)
	if !ok {
		return ActionResult{}, apperror.NotFound("session " + sessionID + " not found")
	}

	var (
		snapshot models.Session
		resolved bool
	)
	slot.mu.Lock()
	s := &slot.session
	switch {
	case !s.HasParticipant(userID):
		slot.mu.Unlock()
		return ActionResult{}, apperror.Unauthorized("not a participant of this session")
	case s.State == models.SessionResolved || s.State == models.SessionClosed:
		slot.mu.Unlock()
		return ActionResult{}, apperror.NotFound("session " + sessionID + " is already closed")
	case !s.State.AcceptsActions():
		slot.mu.Unlock()
		return ActionResult{}, apperror.Validation("sessionId", "session is not active yet")
	case s.OutcomeOf(userID) != "":
		slot.mu.Unlock()
		return ActionResult{}, apperror.Validation("action", "action already recorded for this session")
	}
	s.SetOutcome(userID, action)
	if s.BothActed() {
		o.commitResolution(s)
		resolved = true
	} else if s.State == models.SessionActive {
		s.State = models.SessionActionPending
	}
	snapshot = *s
	slot.mu.Unlock()

	log.Info().Str("module", "matchhub.orchestrator").Str("session_id", sessionID).Str("user_id", userID).
		Str("action", string(action)).Bool("resolved", resolved).Msg("session action recorded")

	if action == models.ActionReport {
		target := snapshot.Partner(userID)
		rctx, cancel := detached(ctx)
		err := retry(rctx, config.PersistAttempts, o.retryDelay, func(ctx context.Context) error {
			return o.reports.FileReport(ctx, userID, target, sessionID, reason)
		})
		cancel()
		if err != nil {
			log.Error().Str("module", "matchhub.orchestrator").Str("session_id", sessionID).Err(err).Msg("failed to file report")
		}
	}

	if resolved {
		o.finalize(ctx, slot, snapshot, "actions")
	}
	return actionResult(snapshot, resolved), nil
}

func actionResult(s models.Session, resolved bool) ActionResult {
	res := ActionResult{Success: true, Resolved: resolved, IsMatch: resolved && s.IsMatch}
	switch {
	case res.IsMatch:
		res.Message = "It's a match!"
	case resolved:
		res.Message = "Session ended."
	default:
		res.Message = "Waiting for your partner."
	}
	return res
}

// commitResolution must be called with the slot lock held and both outcomes set.
func (o *Orchestrator) commitResolution(s *models.Session) {
	s.State = models.SessionResolved
	s.IsMatch = s.Mutual()
	s.ResolvedAt = o.now()
}

// autoResolve defaults missing outcomes to skip and resolves the session if it still
// accepts actions. It returns false when another path got there first.
func (o *Orchestrator) autoResolve(ctx context.Context, slot *sessionSlot, cause string) bool {
	slot.mu.Lock()
	s := &slot.session
	if !s.State.AcceptsActions() {
		slot.mu.Unlock()
		return false
	}
	s.DefaultMissingOutcomes()
	o.commitResolution(s)
	snapshot := *s
	slot.mu.Unlock()

	log.Info().Str("module", "matchhub.orchestrator").Str("session_id", snapshot.ID).Str("cause", cause).
		Msg("session auto-resolved")
	o.finalize(ctx, slot, snapshot, cause)
	return true
}

// ExpireDeadlines auto-resolves every session whose deadline has passed.
func (o *Orchestrator) ExpireDeadlines(ctx context.Context) int {
	now := o.now()
	n := 0
	for _, slot := range o.store.liveSessions() {
		s := slot.view()
		if s.State.AcceptsActions() && now.After(s.DeadlineAt) && o.autoResolve(ctx, slot, "deadline") {
			n++
		}
	}
	return n
}

// finalize tears a RESOLVED session down: room deletion (best-effort, async), CLOSED,
// release and notification. Outcome persistence, match escalation and stats run in the
// background on a context detached from the caller.
func (o *Orchestrator) finalize(ctx context.Context, slot *sessionSlot, s models.Session, cause string) {
	o.deleteRoomAsync(s.RoomID)

	closedAt := o.now()
	slot.transition(models.SessionResolved, models.SessionClosed)
	closed := s
	closed.State = models.SessionClosed
	o.closing.Store(s.ID, closed)
	o.store.release(s)

	o.teardown.Add(1)
	go func() {
		defer o.teardown.Done()
		defer o.closing.Delete(s.ID)
		pctx, cancel := detached(ctx)
		defer cancel()
		o.persistOutcome(pctx, s, closedAt)
	}()

	result := "no_match"
	if s.IsMatch {
		result = "match"
	}
	metrics.SessionsResolved.WithLabelValues(cause, result).Inc()
	metrics.LiveSessions.Set(float64(o.store.SessionCount()))

	for _, uid := range []string{s.ParticipantA, s.ParticipantB} {
		isMatch := s.IsMatch
		o.notifier.Notify(models.Event{
			Type:      models.EventSessionResolved,
			UserID:    uid,
			SessionID: s.ID,
			IsMatch:   &isMatch,
			Outcome:   s.OutcomeOf(uid),
			SentAt:    closedAt.UnixMilli(),
		})
	}
}

func (o *Orchestrator) persistOutcome(ctx context.Context, s models.Session, closedAt time.Time) {
	o.persist(ctx, s.ID, "save session record", func(ctx context.Context) error {
		return o.results.SaveSessionRecord(ctx, models.NewSessionRecord(s, closedAt))
	})
	if s.IsMatch {
		o.persist(ctx, s.ID, "escalate match", func(ctx context.Context) error {
			return o.results.SaveMatch(ctx, &models.Match{
				ID: uuid.NewString(), UserAID: s.ParticipantA, UserBID: s.ParticipantB,
				SessionID: s.ID, CreatedAt: closedAt,
			})
		})
	}
	for _, uid := range []string{s.ParticipantA, s.ParticipantB} {
		in := models.SessionStats{
			Sent:         s.OutcomeOf(uid),
			ReceivedVibe: s.OutcomeOf(s.Partner(uid)) == models.ActionVibe,
			Mutual:       s.IsMatch,
			At:           closedAt,
		}
		o.persist(ctx, s.ID, "update stats", func(ctx context.Context) error {
			return o.stats.RecordSession(ctx, uid, in)
		})
	}
}

// closedSession returns a CLOSED session whose record is not written yet.
func (o *Orchestrator) closedSession(id string) (models.Session, bool) {
	v, ok := o.closing.Load(id)
	if !ok {
		return models.Session{}, false
	}
	return v.(models.Session), true
}

// detached keeps the caller's values but not its cancellation, so a client that
// disconnects after the resolving action does not abort the writes.
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), config.TeardownTimeout)
}

// persist retries a recoverable write. The outcome is already committed in memory, so a
// write that still fails is logged rather than surfaced.
func (o *Orchestrator) persist(ctx context.Context, sessionID, what string, op func(context.Context) error) {
	if err := retry(ctx, config.PersistAttempts, o.retryDelay, op); err != nil {
		log.Error().Str("module", "matchhub.orchestrator").Str("session_id", sessionID).Err(err).Msg("failed to " + what)
	}
}

func (o *Orchestrator) deleteRoomAsync(roomID string) {
	if roomID == "" {
		return
	}
	o.teardown.Add(1)
	go func() {
		defer o.teardown.Done()
		ctx, cancel := context.WithTimeout(context.Background(), config.RoomDeleteTimeout)
		defer cancel()
		if err := o.rooms.DeleteRoom(ctx, roomID); err != nil {
			log.Warn().Str("module", "matchhub.orchestrator").Str("room_id", roomID).Err(err).Msg("room teardown failed")
		}
	}()
}

// WaitTeardown blocks until pending room deletions and outcome writes finish.
func (o *Orchestrator) WaitTeardown() {
	o.teardown.Wait()
}
