package matchhub_test

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"vibecall/backend/internal/apperror"
	"vibecall/backend/internal/models"
	"vibecall/backend/internal/video"
)

// MockStorage implements every persistence port of the engine.
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) GetProfile(ctx context.Context, userID string) (models.Profile, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(models.Profile), args.Error(1)
}

func (m *MockStorage) SaveSessionRecord(ctx context.Context, rec *models.SessionRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockStorage) SaveMatch(ctx context.Context, match *models.Match) error {
	args := m.Called(ctx, match)
	return args.Error(0)
}

func (m *MockStorage) GetSessionRecord(ctx context.Context, sessionID string) (*models.SessionRecord, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SessionRecord), args.Error(1)
}

func (m *MockStorage) RecordSession(ctx context.Context, userID string, in models.SessionStats) error {
	args := m.Called(ctx, userID, in)
	return args.Error(0)
}

func (m *MockStorage) FileReport(ctx context.Context, reporterID, targetID, sessionID, reason string) error {
	args := m.Called(ctx, reporterID, targetID, sessionID, reason)
	return args.Error(0)
}

// acceptAll stubs every write and treats every profile as unknown.
func (m *MockStorage) acceptAll() *MockStorage {
	m.On("GetProfile", mock.Anything, mock.Anything).Return(models.Profile{}, apperror.NotFound("user")).Maybe()
	m.On("SaveSessionRecord", mock.Anything, mock.Anything).Return(nil).Maybe()
	m.On("SaveMatch", mock.Anything, mock.Anything).Return(nil).Maybe()
	m.On("RecordSession", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	m.On("FileReport", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	return m
}

// MockProvisioner is a scripted video provider.
type MockProvisioner struct {
	mock.Mock
}

func (m *MockProvisioner) CreateRoom(ctx context.Context, sessionID string) (video.Room, error) {
	args := m.Called(ctx, sessionID)
	return args.Get(0).(video.Room), args.Error(1)
}

func (m *MockProvisioner) DeleteRoom(ctx context.Context, roomID string) error {
	args := m.Called(ctx, roomID)
	return args.Error(0)
}

func (m *MockProvisioner) GenerateToken(ctx context.Context, roomID, userID string, ttl time.Duration) (video.Credential, error) {
	args := m.Called(ctx, roomID, userID, ttl)
	return args.Get(0).(video.Credential), args.Error(1)
}

// recorder captures notifications.
type recorder struct {
	mu     sync.Mutex
	events []models.Event
}

func (r *recorder) Notify(evt models.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recorder) of(t models.EventType, userID string) []models.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Event
	for _, e := range r.events {
		if e.Type == t && e.UserID == userID {
			out = append(out, e)
		}
	}
	return out
}

type fixedIcebreaker struct{}

func (fixedIcebreaker) GetRandom() (models.Icebreaker, bool) {
	return models.Icebreaker{ID: 7, Text: "What made you smile today?"}, true
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type banList map[string]bool

func (b banList) IsUserBanned(_ context.Context, userID string) (bool, error) {
	return b[userID], nil
}
