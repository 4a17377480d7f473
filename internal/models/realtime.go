package models

type EventType string

const (
	EventQueuePosition   EventType = "queue_position"
	EventMatchFound      EventType = "match_found"
	EventSessionResolved EventType = "session_resolved"
	EventPairingFailed   EventType = "pairing_failed"
	EventHeartbeatAck    EventType = "heartbeat_ack"
)

// ClientFrame is a message sent by a client over the push connection.
type ClientFrame struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

// Event is a best-effort push to one user. Timestamps are epoch milliseconds,
// wait times whole seconds.
type Event struct {
	Type      EventType `json:"type"`
	UserID    string    `json:"userId"`
	SessionID string    `json:"sessionId,omitempty"`

	// queue_position
	Position          int   `json:"position,omitempty"`
	QueueSize         int   `json:"queueSize,omitempty"`
	EstimatedWaitTime int64 `json:"estimatedWaitTime,omitempty"`

	// match_found
	RoomURL          string   `json:"roomUrl,omitempty"`
	RoomToken        string   `json:"roomToken,omitempty"`
	TokenExpiresAt   int64    `json:"tokenExpiresAt,omitempty"`
	Icebreaker       string   `json:"icebreaker,omitempty"`
	DeadlineAt       int64    `json:"deadlineAt,omitempty"`
	PartnerAnonymous bool     `json:"partnerAnonymous,omitempty"`
	SharedInterests  []string `json:"sharedInterests,omitempty"`

	// session_resolved
	IsMatch *bool  `json:"isMatch,omitempty"`
	Outcome Action `json:"outcome,omitempty"`

	// pairing_failed
	Retryable bool   `json:"retryable,omitempty"`
	Message   string `json:"message,omitempty"`

	SentAt int64 `json:"sentAt"`
}
