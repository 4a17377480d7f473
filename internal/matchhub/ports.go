package matchhub

import (
	"context"

	"vibecall/backend/internal/models"
)

// Notifier pushes best-effort events. Implementations must not block.
type Notifier interface {
	Notify(evt models.Event)
}

// IcebreakerSource supplies a conversation prompt per session.
type IcebreakerSource interface {
	GetRandom() (models.Icebreaker, bool)
}

// ResultStore persists session outcomes and escalates mutual matches.
type ResultStore interface {
	SaveSessionRecord(ctx context.Context, rec *models.SessionRecord) error
	SaveMatch(ctx context.Context, m *models.Match) error
}

// ArchiveReader reads outcomes of closed sessions.
type ArchiveReader interface {
	GetSessionRecord(ctx context.Context, sessionID string) (*models.SessionRecord, error)
}

// StatsRecorder updates a user's aggregate profile stats.
type StatsRecorder interface {
	RecordSession(ctx context.Context, userID string, in models.SessionStats) error
}

// ReportFiler records a report against a session partner.
type ReportFiler interface {
	FileReport(ctx context.Context, reporterID, targetID, sessionID, reason string) error
}

// ProfileSource reads the compatibility attributes of a user's profile.
type ProfileSource interface {
	GetProfile(ctx context.Context, userID string) (models.Profile, error)
}

// BanChecker reports temporarily suspended users.
type BanChecker interface {
	IsUserBanned(ctx context.Context, userID string) (bool, error)
}
