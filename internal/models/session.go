package models

import "time"

// SessionState is a step of the session lifecycle. Transitions only move forward.
type SessionState string

const (
	SessionPaired           SessionState = "PAIRED"
	SessionRoomProvisioning SessionState = "ROOM_PROVISIONING"
	SessionActive           SessionState = "ACTIVE"
	SessionActionPending    SessionState = "ACTION_PENDING"
	SessionResolved         SessionState = "RESOLVED"
	SessionClosed           SessionState = "CLOSED"
)

var sessionTransitions = map[SessionState][]SessionState{
	SessionPaired:           {SessionRoomProvisioning, SessionClosed},
	SessionRoomProvisioning: {SessionActive, SessionClosed},
	SessionActive:           {SessionActionPending, SessionResolved},
	SessionActionPending:    {SessionResolved},
	SessionResolved:         {SessionClosed},
}

// CanTransitionTo reports whether next is a legal successor of s.
// PAIRED and ROOM_PROVISIONING may close directly when provisioning is rolled back.
func (s SessionState) CanTransitionTo(next SessionState) bool {
	for _, allowed := range sessionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// AcceptsActions is true while participants can vibe, skip or report.
func (s SessionState) AcceptsActions() bool {
	return s == SessionActive || s == SessionActionPending
}

// Action is a participant's verdict on the session.
type Action string

const (
	ActionVibe   Action = "vibe"
	ActionSkip   Action = "skip"
	ActionReport Action = "report"
)

func (a Action) Valid() bool {
	return a == ActionVibe || a == ActionSkip || a == ActionReport
}

// Session is one paired, time-boxed video encounter.
type Session struct {
	ID              string       `json:"id"`
	ParticipantA    string       `json:"participantA"`
	ParticipantB    string       `json:"participantB"`
	RoomID          string       `json:"roomId,omitempty"`
	RoomURL         string       `json:"roomUrl,omitempty"`
	State           SessionState `json:"state"`
	StartedAt       time.Time    `json:"startedAt"`
	DeadlineAt      time.Time    `json:"deadlineAt"`
	IcebreakerID    uint         `json:"icebreakerId,omitempty"`
	Icebreaker      string       `json:"icebreaker,omitempty"`
	OutcomeA        Action       `json:"outcomeA,omitempty"`
	OutcomeB        Action       `json:"outcomeB,omitempty"`
	IsMatch         bool         `json:"isMatch"`
	ResolvedAt      time.Time    `json:"resolvedAt"`
	SharedInterests []string     `json:"sharedInterests,omitempty"`
}

func (s *Session) HasParticipant(userID string) bool {
	return userID != "" && (s.ParticipantA == userID || s.ParticipantB == userID)
}

// Partner returns the other participant of userID.
func (s *Session) Partner(userID string) string {
	if s.ParticipantA == userID {
		return s.ParticipantB
	}
	return s.ParticipantA
}

func (s *Session) OutcomeOf(userID string) Action {
	if s.ParticipantA == userID {
		return s.OutcomeA
	}
	return s.OutcomeB
}

func (s *Session) SetOutcome(userID string, a Action) {
	if s.ParticipantA == userID {
		s.OutcomeA = a
	} else {
		s.OutcomeB = a
	}
}

// BothActed reports whether both outcomes are recorded.
func (s *Session) BothActed() bool {
	return s.OutcomeA != "" && s.OutcomeB != ""
}

// DefaultMissingOutcomes fills unset outcomes with skip.
func (s *Session) DefaultMissingOutcomes() {
	if s.OutcomeA == "" {
		s.OutcomeA = ActionSkip
	}
	if s.OutcomeB == "" {
		s.OutcomeB = ActionSkip
	}
}

// Mutual is true only when both participants vibed.
func (s *Session) Mutual() bool {
	return s.OutcomeA == ActionVibe && s.OutcomeB == ActionVibe
}
