package models

import (
	"time"

	"github.com/lib/pq"
)

// SessionRecord is the archived outcome of a CLOSED session in PostgreSQL.
type SessionRecord struct {
	// SessionID is the identifier of the session (UUID).
	SessionID    string `gorm:"primaryKey" json:"id"`
	ParticipantA string `gorm:"index;not null" json:"participantA"`
	ParticipantB string `gorm:"index;not null" json:"participantB"`
	RoomID       string `json:"roomId"`
	IcebreakerID uint   `json:"icebreakerId"`
	OutcomeA     string `gorm:"type:text" json:"outcomeA"`
	OutcomeB     string `gorm:"type:text" json:"outcomeB"`
	IsMatch      bool   `gorm:"index" json:"isMatch"`
	// SharedInterests зберігаються як масив PostgreSQL.
	SharedInterests pq.StringArray `gorm:"type:text[]" json:"sharedInterests"`
	StartedAt       time.Time      `json:"startedAt"`
	DeadlineAt      time.Time      `json:"deadlineAt"`
	ResolvedAt      time.Time      `json:"resolvedAt"`
	ClosedAt        time.Time      `json:"closedAt"`
}

// NewSessionRecord snapshots a resolved session for archiving.
func NewSessionRecord(s Session, closedAt time.Time) *SessionRecord {
	return &SessionRecord{
		SessionID:       s.ID,
		ParticipantA:    s.ParticipantA,
		ParticipantB:    s.ParticipantB,
		RoomID:          s.RoomID,
		IcebreakerID:    s.IcebreakerID,
		OutcomeA:        string(s.OutcomeA),
		OutcomeB:        string(s.OutcomeB),
		IsMatch:         s.IsMatch,
		SharedInterests: pq.StringArray(s.SharedInterests),
		StartedAt:       s.StartedAt,
		DeadlineAt:      s.DeadlineAt,
		ResolvedAt:      s.ResolvedAt,
		ClosedAt:        closedAt,
	}
}

// Match is the persistent relationship created by a mutual vibe.
type Match struct {
	ID        string    `gorm:"primaryKey"`
	UserAID   string    `gorm:"index;not null"`
	UserBID   string    `gorm:"index;not null"`
	SessionID string    `gorm:"uniqueIndex;not null"`
	CreatedAt time.Time
}

// Session rebuilds the CLOSED view of an archived session.
func (r *SessionRecord) Session() Session {
	return Session{
		ID:              r.SessionID,
		ParticipantA:    r.ParticipantA,
		ParticipantB:    r.ParticipantB,
		RoomID:          r.RoomID,
		State:           SessionClosed,
		StartedAt:       r.StartedAt,
		DeadlineAt:      r.DeadlineAt,
		IcebreakerID:    r.IcebreakerID,
		OutcomeA:        Action(r.OutcomeA),
		OutcomeB:        Action(r.OutcomeB),
		IsMatch:         r.IsMatch,
		ResolvedAt:      r.ResolvedAt,
		SharedInterests: []string(r.SharedInterests),
	}
}
