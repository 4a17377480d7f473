package config

import "time"

const (
	// Points
	SessionCompletedPoints = 10
	VibeReceivedPoints     = 5
	MutualMatchPoints      = 25

	// Reputation
	InitialReputation = 1000
	MinReputation     = 0

	// Ban
	BanThresholdReputation = 500
	BanDuration            = 24 * time.Hour
	ConfirmedReportReward  = 50

	// Preferences
	MinAge          = 18
	MaxAge          = 120
	MaxInterests    = 10
	MaxReportReason = 500

	// Teardown
	RoomDeleteTimeout = 5 * time.Second
	TeardownTimeout   = 30 * time.Second
	PersistAttempts   = 3
)

// ComplaintWeights maps report severity to the reputation penalty applied to the reported user.
var ComplaintWeights = map[string]int{
	"Low":      5,
	"Medium":   50,
	"Critical": 250,
}
