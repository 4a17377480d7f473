package matchhub

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"vibecall/backend/internal/apperror"
	"vibecall/backend/internal/config"
	"vibecall/backend/internal/metrics"
	"vibecall/backend/internal/models"
	"vibecall/backend/internal/video"
)

const (
	defaultRetryInterval = 100 * time.Millisecond
	maxParallelPairings  = 8
)

// Deps are the collaborators of the engine.
type Deps struct {
	Rooms       video.Provisioner
	Icebreakers IcebreakerSource
	Notifier    Notifier
	Results     ResultStore
	Archive     ArchiveReader
	Stats       StatsRecorder
	Reports     ReportFiler
	Profiles    ProfileSource
	// Bans is optional.
	Bans BanChecker

	// Clock defaults to time.Now.
	Clock func() time.Time
	// RetryInterval is the first backoff step of bounded retries.
	RetryInterval time.Duration
}

// Service is the entry point used by the transport layer. It owns the store and wires the
// queue, matcher, presence tracker and orchestrator around it.
type Service struct {
	cfg      config.Session
	store    *Store
	queue    *Queue
	orch     *Orchestrator
	presence *Presence
	deps     Deps
	now      func() time.Time
}

func NewService(cfg config.Session, deps Deps) *Service {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.RetryInterval <= 0 {
		deps.RetryInterval = defaultRetryInterval
	}
	store := NewStore()
	queue := NewQueue(store, cfg.WaitSampleSize, deps.Clock)
	orch := &Orchestrator{
		store:       store,
		queue:       queue,
		rooms:       deps.Rooms,
		icebreakers: deps.Icebreakers,
		notifier:    deps.Notifier,
		results:     deps.Results,
		stats:       deps.Stats,
		reports:     deps.Reports,
		cfg:         cfg,
		now:         deps.Clock,
		retryDelay:  deps.RetryInterval,
	}
	return &Service{
		cfg:      cfg,
		store:    store,
		queue:    queue,
		orch:     orch,
		presence: &Presence{store: store, orch: orch, cfg: cfg, now: deps.Clock},
		deps:     deps,
		now:      deps.Clock,
	}
}

// StatusView answers the queue-status poll: a position for queued users, global stats otherwise.
type StatusView struct {
	InQueue bool
	QueueStatus
	Global QueueStats
}

// JoinQueue admits the user with their stored profile and returns their queue position.
func (s *Service) JoinQueue(ctx context.Context, userID string, prefs models.Preferences) (QueueStatus, error) {
	if userID == "" {
		return QueueStatus{}, apperror.Unauthorized("missing user identity")
	}
	if s.deps.Bans != nil {
		banned, err := s.deps.Bans.IsUserBanned(ctx, userID)
		if err != nil {
			log.Warn().Str("module", "matchhub").Str("user_id", userID).Err(err).Msg("ban check failed")
		} else if banned {
			return QueueStatus{}, apperror.Unauthorized("account is temporarily suspended")
		}
	}
	profile, err := s.deps.Profiles.GetProfile(ctx, userID)
	if err != nil {
		if !apperror.Is(err, apperror.CodeNotFound) {
			return QueueStatus{}, apperror.Internal(err)
		}
		// Unknown profiles match on preferences alone.
		profile = models.Profile{}
	}

	if _, err := s.queue.Admit(userID, profile, prefs); err != nil {
		return QueueStatus{}, err
	}
	log.Info().Str("module", "matchhub").Str("user_id", userID).Msg("user joined queue")

	s.broadcastPositions()
	st, _ := s.queue.Position(userID)
	return st, nil
}

// LeaveQueue is idempotent.
func (s *Service) LeaveQueue(userID string) {
	if s.queue.Withdraw(userID) {
		log.Info().Str("module", "matchhub").Str("user_id", userID).Msg("user left queue")
		s.broadcastPositions()
	}
}

// Heartbeat records liveness and returns the server time.
func (s *Service) Heartbeat(userID string, clientTS time.Time) time.Time {
	now, _ := s.presence.RecordHeartbeat(userID, clientTS)
	return now
}

func (s *Service) QueueStatus(userID string) StatusView {
	if st, ok := s.queue.Position(userID); ok {
		return StatusView{InQueue: true, QueueStatus: st}
	}
	return StatusView{Global: s.queue.Stats()}
}

func (s *Service) SessionAction(ctx context.Context, userID, sessionID string, action models.Action, reason string) (ActionResult, error) {
	return s.orch.HandleSessionAction(ctx, userID, sessionID, action, reason)
}

// Session returns the live state of a session, or its archived record once CLOSED.
// Only participants may read it.
func (s *Service) Session(ctx context.Context, userID, sessionID string) (models.Session, error) {
	if slot, ok := s.store.session(sessionID); ok {
		sess := slot.view()
		if !sess.HasParticipant(userID) {
			return models.Session{}, apperror.Unauthorized("not a participant of this session")
		}
		return sess, nil
	}
	if sess, ok := s.orch.closedSession(sessionID); ok {
		if !sess.HasParticipant(userID) {
			return models.Session{}, apperror.Unauthorized("not a participant of this session")
		}
		return sess, nil
	}
	rec, err := s.deps.Archive.GetSessionRecord(ctx, sessionID)
	if err != nil {
		if apperror.Is(err, apperror.CodeNotFound) {
			return models.Session{}, apperror.NotFound("session " + sessionID + " not found")
		}
		return models.Session{}, apperror.Internal(err)
	}
	sess := rec.Session()
	if !sess.HasParticipant(userID) {
		return models.Session{}, apperror.Unauthorized("not a participant of this session")
	}
	return sess, nil
}

// CurrentSession returns the caller's non-CLOSED session.
func (s *Service) CurrentSession(userID string) (models.Session, error) {
	slot, ok := s.store.sessionOf(userID)
	if !ok {
		return models.Session{}, apperror.NotFound("no active session")
	}
	return slot.view(), nil
}

// InSession reports whether the user belongs to a live session.
func (s *Service) InSession(userID string) bool {
	return s.store.InSession(userID)
}

// MatchOnce runs a single matching pass and provisions the resulting pairs in parallel.
// It returns the number of sessions that reached ACTIVE.
func (s *Service) MatchOnce(ctx context.Context) int {
	pairs := FindPairs(s.store.Snapshot())
	if len(pairs) == 0 {
		return 0
	}

	results := make([]bool, len(pairs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelPairings)
	for i, p := range pairs {
		g.Go(func() error {
			_, err := s.orch.OnPairFormed(gctx, p)
			switch {
			case err == nil:
				results[i] = true
			case errors.Is(err, ErrPairUnavailable):
				log.Debug().Str("module", "matchhub").Str("user_a", p.A.UserID).Str("user_b", p.B.UserID).
					Msg("pair claimed elsewhere, skipped")
			}
			// Failed pairings are rolled back individually and never abort the pass.
			return nil
		})
	}
	_ = g.Wait()

	formed := 0
	for _, ok := range results {
		if ok {
			formed++
		}
	}
	s.broadcastPositions()
	return formed
}

// RunMatcher runs matching passes until ctx is cancelled.
func (s *Service) RunMatcher(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.MatchInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.MatchOnce(ctx)
		}
	}
}

// SweepOnce evicts stale participants and auto-resolves sessions past their deadline.
func (s *Service) SweepOnce(ctx context.Context) (SweepResult, int) {
	res := s.presence.Sweep(ctx)
	expired := s.orch.ExpireDeadlines(ctx)
	if res.QueueEvicted > 0 {
		s.broadcastPositions()
	}
	return res, expired
}

// RunSweeper runs presence and deadline sweeps until ctx is cancelled.
func (s *Service) RunSweeper(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// Shutdown waits for in-flight room teardown and outcome writes.
func (s *Service) Shutdown() {
	s.orch.WaitTeardown()
}

// broadcastPositions sends every queued user their current position.
func (s *Service) broadcastPositions() {
	snapshot := s.store.Snapshot()
	metrics.QueueSize.Set(float64(len(snapshot)))
	avg := s.queue.waits.Average()
	at := s.now().UnixMilli()
	for i, self := range snapshot {
		pos := 1
		for _, e := range snapshot[:i] {
			if models.Compatible(self, e) {
				pos++
			}
		}
		s.deps.Notifier.Notify(models.Event{
			Type:              models.EventQueuePosition,
			UserID:            self.UserID,
			Position:          pos,
			QueueSize:         len(snapshot),
			EstimatedWaitTime: int64(avg / time.Second),
			SentAt:            at,
		})
	}
}
