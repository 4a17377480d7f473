package video

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// LocalProvisioner hands out rooms without a provider, for development and tests.
// Room URLs are domain + "/" + room id.
type LocalProvisioner struct {
	mu      sync.Mutex
	domain  string
	rooms   map[string]Room
	tokens  *TokenIssuer
	roomTTL time.Duration
	now     func() time.Time
}

func NewLocalProvisioner(domain string, tokens *TokenIssuer, roomTTL time.Duration, now func() time.Time) *LocalProvisioner {
	if now == nil {
		now = time.Now
	}
	return &LocalProvisioner{
		domain:  strings.TrimRight(domain, "/"),
		rooms:   make(map[string]Room),
		tokens:  tokens,
		roomTTL: roomTTL,
		now:     now,
	}
}

func (p *LocalProvisioner) CreateRoom(ctx context.Context, sessionID string) (Room, error) {
	if err := ctx.Err(); err != nil {
		return Room{}, err
	}
	id := "s-" + sessionID
	if sessionID == "" {
		id = uuid.NewString()
	}
	room := Room{ID: id, URL: p.domain + "/" + id, ExpiresAt: p.now().Add(p.roomTTL)}

	p.mu.Lock()
	p.rooms[id] = room
	p.mu.Unlock()
	return room, nil
}

func (p *LocalProvisioner) DeleteRoom(_ context.Context, roomID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.rooms, roomID)
	return nil
}

func (p *LocalProvisioner) GenerateToken(_ context.Context, roomID, userID string, ttl time.Duration) (Credential, error) {
	p.mu.Lock()
	_, ok := p.rooms[roomID]
	p.mu.Unlock()
	if !ok {
		return Credential{}, errors.New("video: unknown room " + roomID)
	}
	return p.tokens.Issue(roomID, userID, ttl)
}

// RoomCount reports how many rooms are currently open.
func (p *LocalProvisioner) RoomCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.rooms)
}
