package matchhub_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"vibecall/backend/internal/apperror"
	"vibecall/backend/internal/models"
	"vibecall/backend/internal/video"
)

func TestScenario_CompatibleUsersReachActiveSession(t *testing.T) {
	// Arrange
	h := newHarnessWith(t, nil, func(m *MockStorage) {
		m.On("GetProfile", mock.Anything, "A").Return(models.Profile{Age: 20, Gender: models.GenderMale}, nil)
		m.On("GetProfile", mock.Anything, "B").Return(models.Profile{Age: 21, Gender: models.GenderFemale}, nil)
	})
	ctx := context.Background()

	_, err := h.svc.JoinQueue(ctx, "A", models.Preferences{
		GenderPreference: models.GenderFemale, Interests: []string{"Jazz", "hiking"},
	})
	require.NoError(t, err)
	st, err := h.svc.JoinQueue(ctx, "B", models.Preferences{
		GenderPreference: models.GenderAny, AnonymousMode: true, Interests: []string{"jazz"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, st.QueueSize)

	// Act
	formed := h.svc.MatchOnce(ctx)

	// Assert
	assert.Equal(t, 1, formed)
	assert.Zero(t, h.svc.QueueStatus("outsider").Global.TotalInQueue)

	sess, err := h.svc.CurrentSession("A")
	require.NoError(t, err)
	assert.Equal(t, models.SessionActive, sess.State)
	assert.Empty(t, sess.OutcomeA)
	assert.Empty(t, sess.OutcomeB)
	assert.Equal(t, "What made you smile today?", sess.Icebreaker)
	assert.Equal(t, h.clock.Now().Add(3*time.Minute+15*time.Second), sess.DeadlineAt)
	assert.Equal(t, []string{"Jazz"}, sess.SharedInterests)
	assert.Equal(t, 1, h.rooms.RoomCount())

	evA := h.notifier.of(models.EventMatchFound, "A")
	require.Len(t, evA, 1)
	assert.Equal(t, sess.ID, evA[0].SessionID)
	assert.Equal(t, sess.RoomURL, evA[0].RoomURL)
	assert.NotEmpty(t, evA[0].RoomToken)
	assert.True(t, evA[0].PartnerAnonymous)
	assert.Equal(t, sess.DeadlineAt.UnixMilli(), evA[0].TokenExpiresAt, "credential expiry is bounded by duration plus grace")

	evB := h.notifier.of(models.EventMatchFound, "B")
	require.Len(t, evB, 1)
	assert.False(t, evB[0].PartnerAnonymous)
	assert.NotEqual(t, evA[0].RoomToken, evB[0].RoomToken)
}

func TestOnPairFormed_RoomFailureRollsBack(t *testing.T) {
	rooms := new(MockProvisioner)
	rooms.On("CreateRoom", mock.Anything, mock.Anything).Return(video.Room{}, errors.New("provider down"))
	h := newHarness(t, rooms)
	ctx := context.Background()

	_, err := h.svc.JoinQueue(ctx, "A", models.Preferences{})
	require.NoError(t, err)
	_, err = h.svc.JoinQueue(ctx, "B", models.Preferences{})
	require.NoError(t, err)

	assert.Zero(t, h.svc.MatchOnce(ctx))

	for _, uid := range []string{"A", "B"} {
		assert.False(t, h.svc.InSession(uid))
		assert.False(t, h.svc.QueueStatus(uid).InQueue)
		failed := h.notifier.of(models.EventPairingFailed, uid)
		require.Len(t, failed, 1)
		assert.True(t, failed[0].Retryable)
		assert.Empty(t, h.notifier.of(models.EventMatchFound, uid))
	}
	rooms.AssertNumberOfCalls(t, "CreateRoom", 2)
	rooms.AssertNotCalled(t, "DeleteRoom", mock.Anything, mock.Anything)

	_, err = h.svc.JoinQueue(ctx, "A", models.Preferences{})
	assert.NoError(t, err, "a rolled back user can queue again")
}

func TestOnPairFormed_TokenFailureDeletesRoom(t *testing.T) {
	rooms := new(MockProvisioner)
	rooms.On("CreateRoom", mock.Anything, mock.Anything).Return(video.Room{ID: "room-1", URL: "https://v/room-1"}, nil)
	rooms.On("GenerateToken", mock.Anything, "room-1", mock.Anything, mock.Anything).Return(video.Credential{}, errors.New("signing failed"))
	rooms.On("DeleteRoom", mock.Anything, "room-1").Return(nil)
	h := newHarness(t, rooms)
	ctx := context.Background()

	_, _ = h.svc.JoinQueue(ctx, "A", models.Preferences{})
	_, _ = h.svc.JoinQueue(ctx, "B", models.Preferences{})

	assert.Zero(t, h.svc.MatchOnce(ctx))
	h.svc.Shutdown()

	rooms.AssertCalled(t, "DeleteRoom", mock.Anything, "room-1")
	_, err := h.svc.CurrentSession("A")
	assert.True(t, apperror.Is(err, apperror.CodeNotFound))
}

func TestOnPairFormed_TransientFailureIsRetried(t *testing.T) {
	rooms := new(MockProvisioner)
	rooms.On("CreateRoom", mock.Anything, mock.Anything).Return(video.Room{}, errors.New("timeout")).Once()
	rooms.On("CreateRoom", mock.Anything, mock.Anything).Return(video.Room{ID: "room-1", URL: "https://v/room-1"}, nil)
	rooms.On("GenerateToken", mock.Anything, "room-1", mock.Anything, mock.Anything).
		Return(video.Credential{Token: "tok", ExpiresAt: time.Now().Add(time.Minute)}, nil)
	h := newHarness(t, rooms)
	ctx := context.Background()

	_, _ = h.svc.JoinQueue(ctx, "A", models.Preferences{})
	_, _ = h.svc.JoinQueue(ctx, "B", models.Preferences{})

	assert.Equal(t, 1, h.svc.MatchOnce(ctx))
	rooms.AssertNumberOfCalls(t, "CreateRoom", 2)
}

func TestOnPairFormed_HungProviderIsBoundedAndReleased(t *testing.T) {
	// Arrange
	rooms := new(MockProvisioner)
	rooms.On("CreateRoom", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { <-args.Get(0).(context.Context).Done() }).
		Return(video.Room{}, context.DeadlineExceeded)
	cfg := testConfig()
	cfg.ProvisionTimeout = 20 * time.Millisecond
	h := newHarnessOpts(t, harnessOpts{cfg: &cfg, rooms: rooms})
	ctx := context.Background()
	_, _ = h.svc.JoinQueue(ctx, "A", models.Preferences{})
	_, _ = h.svc.JoinQueue(ctx, "B", models.Preferences{})

	// Act
	started := time.Now()
	formed := h.svc.MatchOnce(ctx)

	// Assert
	assert.Zero(t, formed)
	assert.Less(t, time.Since(started), 2*time.Second)
	rooms.AssertNumberOfCalls(t, "CreateRoom", cfg.ProvisionAttempts)
	for _, uid := range []string{"A", "B"} {
		assert.False(t, h.svc.InSession(uid))
		assert.False(t, h.svc.QueueStatus(uid).InQueue)
		failed := h.notifier.of(models.EventPairingFailed, uid)
		require.Len(t, failed, 1)
		assert.True(t, failed[0].Retryable)
	}
}

type noIcebreakers struct{}

func (noIcebreakers) GetRandom() (models.Icebreaker, bool) { return models.Icebreaker{}, false }

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestOnPairFormed_EmptyPromptSetIsLogged(t *testing.T) {
	// Arrange
	out := &lockedBuffer{}
	prev := log.Logger
	log.Logger = zerolog.New(out)
	t.Cleanup(func() { log.Logger = prev })
	h := newHarnessOpts(t, harnessOpts{icebreakers: noIcebreakers{}})

	// Act
	sess := h.pair(t, "A", "B")

	// Assert
	assert.Equal(t, models.SessionActive, sess.State)
	assert.Empty(t, sess.Icebreaker)
	assert.Contains(t, out.String(), "no active icebreakers")
}

func TestScenario_SkipAndVibeResolvesWithoutMatch(t *testing.T) {
	h := newHarness(t, nil)
	sess := h.pair(t, "A", "B")
	ctx := context.Background()

	res, err := h.svc.SessionAction(ctx, "A", sess.ID, models.ActionSkip, "")
	require.NoError(t, err)
	assert.False(t, res.Resolved)
	pending, _ := h.svc.Session(ctx, "B", sess.ID)
	assert.Equal(t, models.SessionActionPending, pending.State)

	res, err = h.svc.SessionAction(ctx, "B", sess.ID, models.ActionVibe, "")
	require.NoError(t, err)
	assert.True(t, res.Resolved)
	assert.False(t, res.IsMatch)

	h.svc.Shutdown()
	h.storage.AssertNotCalled(t, "SaveMatch", mock.Anything, mock.Anything)
	h.storage.AssertCalled(t, "SaveSessionRecord", mock.Anything, mock.MatchedBy(func(r *models.SessionRecord) bool {
		return r.SessionID == sess.ID && r.OutcomeA == "skip" && r.OutcomeB == "vibe" && !r.IsMatch
	}))
	h.storage.AssertCalled(t, "RecordSession", mock.Anything, "A", mock.MatchedBy(func(in models.SessionStats) bool {
		return in.Sent == models.ActionSkip && in.ReceivedVibe && !in.Mutual
	}))
	assert.False(t, h.svc.InSession("A"))
	assert.False(t, h.svc.InSession("B"))

	resolved := h.notifier.of(models.EventSessionResolved, "B")
	require.Len(t, resolved, 1)
	require.NotNil(t, resolved[0].IsMatch)
	assert.False(t, *resolved[0].IsMatch)
	assert.Zero(t, h.rooms.RoomCount(), "room is torn down")
}

func TestConcurrentVibes_ResolveMatchExactlyOnce(t *testing.T) {
	for i := 0; i < 20; i++ {
		h := newHarness(t, nil)
		sess := h.pair(t, "A", "B")
		ctx := context.Background()

		results := make([]bool, 2)
		matches := make([]bool, 2)
		var wg sync.WaitGroup
		for j, uid := range []string{"A", "B"} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				res, err := h.svc.SessionAction(ctx, uid, sess.ID, models.ActionVibe, "")
				assert.NoError(t, err)
				results[j] = res.Resolved
				matches[j] = res.IsMatch
			}()
		}
		wg.Wait()
		h.svc.Shutdown()

		assert.NotEqual(t, results[0], results[1], "exactly one action commits the resolution")
		assert.True(t, matches[0] || matches[1])
		h.storage.AssertNumberOfCalls(t, "SaveSessionRecord", 1)
		h.storage.AssertNumberOfCalls(t, "SaveMatch", 1)
		h.storage.AssertCalled(t, "SaveMatch", mock.Anything, mock.MatchedBy(func(m *models.Match) bool {
			return m.SessionID == sess.ID
		}))
		assert.Len(t, h.notifier.of(models.EventSessionResolved, "A"), 1)
	}
}

func TestDeadline_AutoResolvesWithSkips(t *testing.T) {
	h := newHarness(t, nil)
	sess := h.pair(t, "A", "B")
	ctx := context.Background()

	// Both participants stay alive so only the deadline applies.
	h.clock.Advance(3 * time.Minute)
	h.svc.Heartbeat("A", time.Time{})
	h.svc.Heartbeat("B", time.Time{})
	_, expired := h.svc.SweepOnce(ctx)
	assert.Zero(t, expired, "deadline includes the grace period")

	h.clock.Advance(16 * time.Second)
	h.svc.Heartbeat("A", time.Time{})
	h.svc.Heartbeat("B", time.Time{})
	_, expired = h.svc.SweepOnce(ctx)
	assert.Equal(t, 1, expired)

	h.svc.Shutdown()
	h.storage.AssertCalled(t, "SaveSessionRecord", mock.Anything, mock.MatchedBy(func(r *models.SessionRecord) bool {
		return r.SessionID == sess.ID && r.OutcomeA == "skip" && r.OutcomeB == "skip" && !r.IsMatch
	}))

	_, err := h.svc.SessionAction(ctx, "A", sess.ID, models.ActionVibe, "")
	assert.True(t, apperror.Is(err, apperror.CodeNotFound), "closed sessions take no actions")
}

func TestDeadline_PendingOutcomeKeepsRecordedAction(t *testing.T) {
	h := newHarness(t, nil)
	sess := h.pair(t, "A", "B")
	ctx := context.Background()

	_, err := h.svc.SessionAction(ctx, "A", sess.ID, models.ActionVibe, "")
	require.NoError(t, err)

	h.clock.Advance(3*time.Minute + 16*time.Second)
	h.svc.Heartbeat("A", time.Time{})
	h.svc.Heartbeat("B", time.Time{})
	h.svc.SweepOnce(ctx)
	h.svc.Shutdown()

	h.storage.AssertCalled(t, "SaveSessionRecord", mock.Anything, mock.MatchedBy(func(r *models.SessionRecord) bool {
		return r.OutcomeA == "vibe" && r.OutcomeB == "skip" && !r.IsMatch
	}))
}

func TestSessionAction_Rejections(t *testing.T) {
	h := newHarness(t, nil)
	sess := h.pair(t, "A", "B")
	ctx := context.Background()

	_, err := h.svc.SessionAction(ctx, "A", "missing", models.ActionVibe, "")
	assert.True(t, apperror.Is(err, apperror.CodeNotFound))

	_, err = h.svc.SessionAction(ctx, "intruder", sess.ID, models.ActionVibe, "")
	assert.True(t, apperror.Is(err, apperror.CodeUnauthorized))

	_, err = h.svc.SessionAction(ctx, "A", sess.ID, "wave", "")
	assert.True(t, apperror.Is(err, apperror.CodeValidation))

	_, err = h.svc.SessionAction(ctx, "A", sess.ID, models.ActionReport, "   ")
	var ae *apperror.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "reportReason", ae.Field)
	h.storage.AssertNotCalled(t, "FileReport", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	_, err = h.svc.SessionAction(ctx, "A", sess.ID, models.ActionSkip, "")
	require.NoError(t, err)
	_, err = h.svc.SessionAction(ctx, "A", sess.ID, models.ActionVibe, "")
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "action", ae.Field, "a participant acts once")
}

func TestSessionAction_ReportFilesComplaint(t *testing.T) {
	h := newHarness(t, nil)
	sess := h.pair(t, "A", "B")
	ctx := context.Background()

	res, err := h.svc.SessionAction(ctx, "A", sess.ID, models.ActionReport, "rude language")
	require.NoError(t, err)
	assert.True(t, res.Success)

	h.storage.AssertCalled(t, "FileReport", mock.Anything, "A", "B", sess.ID, "rude language")
	live, err := h.svc.Session(ctx, "A", sess.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ActionReport, live.OutcomeA)
}

func TestSession_ArchivedRecordAfterClose(t *testing.T) {
	h := newHarnessWith(t, nil, func(m *MockStorage) {
		m.On("GetSessionRecord", mock.Anything, "old").Return(&models.SessionRecord{
			SessionID: "old", ParticipantA: "A", ParticipantB: "B", OutcomeA: "vibe", OutcomeB: "vibe", IsMatch: true,
		}, nil)
		m.On("GetSessionRecord", mock.Anything, mock.Anything).Return(nil, apperror.NotFound("session"))
	})
	ctx := context.Background()

	sess, err := h.svc.Session(ctx, "B", "old")
	require.NoError(t, err)
	assert.Equal(t, models.SessionClosed, sess.State)
	assert.True(t, sess.IsMatch)

	_, err = h.svc.Session(ctx, "C", "old")
	assert.True(t, apperror.Is(err, apperror.CodeUnauthorized))

	_, err = h.svc.Session(ctx, "A", "never")
	assert.True(t, apperror.Is(err, apperror.CodeNotFound))
}

func TestFinalize_PersistenceFailureDoesNotBlockClose(t *testing.T) {
	h := newHarnessWith(t, nil, func(m *MockStorage) {
		m.On("SaveSessionRecord", mock.Anything, mock.Anything).Return(errors.New("db down"))
	})
	sess := h.pair(t, "A", "B")
	ctx := context.Background()

	_, _ = h.svc.SessionAction(ctx, "A", sess.ID, models.ActionSkip, "")
	res, err := h.svc.SessionAction(ctx, "B", sess.ID, models.ActionSkip, "")

	require.NoError(t, err)
	assert.True(t, res.Resolved)
	h.svc.Shutdown()
	h.storage.AssertNumberOfCalls(t, "SaveSessionRecord", 3)
	assert.False(t, h.svc.InSession("A"))
}
