package matchhub

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"vibecall/backend/internal/config"
	"vibecall/backend/internal/metrics"
)

// Presence tracks heartbeats for queued users and session participants and evicts
// whoever goes silent for longer than the heartbeat timeout.
type Presence struct {
	store *Store
	orch  *Orchestrator
	cfg   config.Session
	now   func() time.Time
}

// RecordHeartbeat refreshes the user's last-seen time and returns the server time that
// was recorded. Client clock skew beyond tolerance is logged; liveness always uses
// server time. It reports false when the user is neither queued nor in a session.
func (p *Presence) RecordHeartbeat(userID string, clientTS time.Time) (time.Time, bool) {
	now := p.now()
	if !clientTS.IsZero() {
		skew := now.Sub(clientTS)
		if skew < 0 {
			skew = -skew
		}
		if skew > p.cfg.HeartbeatTolerance {
			log.Warn().Str("module", "matchhub.presence").Str("user_id", userID).
				Dur("skew", skew).Msg("heartbeat timestamp outside tolerance")
		}
	}
	return now, p.store.Touch(userID, now)
}

// SweepResult counts what a single sweep did.
type SweepResult struct {
	QueueEvicted     int
	SessionsResolved int
}

// Sweep removes queue entries whose heartbeat is older than the timeout and force-resolves
// active sessions with a silent participant (missing outcomes default to skip).
func (p *Presence) Sweep(ctx context.Context) SweepResult {
	var res SweepResult
	cutoff := p.now().Add(-p.cfg.HeartbeatTimeout)

	for _, e := range p.store.Snapshot() {
		if !e.LastHeartbeatAt.Before(cutoff) {
			continue
		}
		if _, ok := p.store.EvictIfStale(e.UserID, cutoff); ok {
			res.QueueEvicted++
			metrics.Evictions.WithLabelValues("queue").Inc()
			log.Info().Str("module", "matchhub.presence").Str("user_id", e.UserID).Msg("evicted stale queue entry")
		}
	}

	for _, slot := range p.store.liveSessions() {
		s := slot.view()
		// Provisioning sessions have no heartbeats yet.
		if !s.State.AcceptsActions() {
			continue
		}
		uid, stale := slot.staleParticipant(cutoff)
		if !stale {
			continue
		}
		if p.orch.autoResolve(ctx, slot, "heartbeat") {
			res.SessionsResolved++
			metrics.Evictions.WithLabelValues("session").Inc()
			log.Info().Str("module", "matchhub.presence").Str("session_id", s.ID).Str("user_id", uid).
				Msg("participant timed out, session resolved")
		}
	}
	metrics.QueueSize.Set(float64(p.store.QueueLen()))
	return res
}

