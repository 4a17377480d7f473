// Package video talks to the external video-room provider: it creates and deletes two-party
// rooms and issues per-user join credentials.
package video

import (
	"context"
	"time"
)

// Room is a provisioned two-party room.
type Room struct {
	ID        string
	URL       string
	ExpiresAt time.Time
}

// Credential lets one user join one room until ExpiresAt.
type Credential struct {
	Token     string
	ExpiresAt time.Time
}

// Provisioner is the room provider contract. CreateRoom failure aborts pairing; DeleteRoom
// is best-effort.
type Provisioner interface {
	CreateRoom(ctx context.Context, sessionID string) (Room, error)
	DeleteRoom(ctx context.Context, roomID string) error
	GenerateToken(ctx context.Context, roomID, userID string, ttl time.Duration) (Credential, error)
}
