// Package complaint provides the core logic for handling reports filed after a session,
// including complaint records and reputation management.
package complaint

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"vibecall/backend/internal/analysis"
	"vibecall/backend/internal/apperror"
	"vibecall/backend/internal/config"
	"vibecall/backend/internal/models"
)

// Repository is the persistence the complaint service needs.
type Repository interface {
	SaveComplaint(ctx context.Context, c *models.Complaint) error
	UpdateUserReputation(ctx context.Context, userID string, delta int) (int, error)
	BanUser(ctx context.Context, userID string, d time.Duration) error
}

// Service handles the business logic for complaints.
type Service struct {
	Repo Repository
	now  func() time.Time
}

// NewService creates a new complaint service.
func NewService(repo Repository) *Service {
	return &Service{Repo: repo, now: time.Now}
}

// FileReport records a report against targetID and lowers their reputation by the
// weight of the report's severity. Falling below the ban threshold suspends the user.
func (s *Service) FileReport(ctx context.Context, reporterID, targetID, sessionID, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return apperror.Validation("reportReason", "required when action is report")
	}
	if len(reason) > config.MaxReportReason {
		reason = reason[:config.MaxReportReason]
	}

	c := &models.Complaint{
		ComplaintID: uuid.NewString(),
		ReporterID:  reporterID,
		TargetID:    targetID,
		SessionID:   sessionID,
		Reason:      reason,
		Severity:    analysis.ClassifySeverity(reason),
		Status:      "new",
		CreatedAt:   s.now(),
	}
	if err := s.Repo.SaveComplaint(ctx, c); err != nil {
		return fmt.Errorf("save complaint: %w", err)
	}

	weight := analysis.GetWeight(c.Severity)
	score, err := s.Repo.UpdateUserReputation(ctx, targetID, -weight)
	if err != nil {
		return fmt.Errorf("update reputation of %s: %w", targetID, err)
	}

	log.Info().Str("module", "complaint").Str("session_id", sessionID).Str("target_id", targetID).
		Str("severity", c.Severity).Int("penalty", weight).Int("reputation", score).Msg("report filed")

	if score < config.BanThresholdReputation {
		if err := s.Repo.BanUser(ctx, targetID, config.BanDuration); err != nil {
			return fmt.Errorf("ban %s: %w", targetID, err)
		}
		log.Warn().Str("module", "complaint").Str("target_id", targetID).Msg("user suspended for low reputation")
	}
	return nil
}
