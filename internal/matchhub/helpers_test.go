package matchhub_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"vibecall/backend/internal/config"
	"vibecall/backend/internal/matchhub"
	"vibecall/backend/internal/models"
	"vibecall/backend/internal/video"
)

type harness struct {
	svc      *matchhub.Service
	storage  *MockStorage
	notifier *recorder
	clock    *fakeClock
	rooms    *video.LocalProvisioner
}

func testConfig() config.Session {
	cfg := config.DefaultSession()
	cfg.ProvisionAttempts = 2
	cfg.ProvisionTimeout = time.Second
	return cfg
}

type harnessOpts struct {
	cfg         *config.Session
	rooms       video.Provisioner
	icebreakers matchhub.IcebreakerSource
	// setup registers specific expectations ahead of the catch-all stubs.
	setup func(*MockStorage)
}

func newHarness(t *testing.T, rooms video.Provisioner) *harness {
	return newHarnessOpts(t, harnessOpts{rooms: rooms})
}

func newHarnessWith(t *testing.T, rooms video.Provisioner, setup func(*MockStorage)) *harness {
	return newHarnessOpts(t, harnessOpts{rooms: rooms, setup: setup})
}

func newHarnessOpts(t *testing.T, o harnessOpts) *harness {
	t.Helper()
	storage := new(MockStorage)
	if o.setup != nil {
		o.setup(storage)
	}
	cfg := testConfig()
	if o.cfg != nil {
		cfg = *o.cfg
	}
	var icebreakers matchhub.IcebreakerSource = fixedIcebreaker{}
	if o.icebreakers != nil {
		icebreakers = o.icebreakers
	}
	rooms := o.rooms
	h := &harness{storage: storage.acceptAll(), notifier: &recorder{}, clock: newFakeClock()}
	if rooms == nil {
		h.rooms = video.NewLocalProvisioner("https://video.test", video.NewTokenIssuer("secret", h.clock.Now), time.Hour, h.clock.Now)
		rooms = h.rooms
	}
	h.svc = matchhub.NewService(cfg, matchhub.Deps{
		Rooms:         rooms,
		Icebreakers:   icebreakers,
		Notifier:      h.notifier,
		Results:       h.storage,
		Archive:       h.storage,
		Stats:         h.storage,
		Reports:       h.storage,
		Profiles:      h.storage,
		Clock:         h.clock.Now,
		RetryInterval: time.Millisecond,
	})
	t.Cleanup(h.svc.Shutdown)
	return h
}

// pair queues two compatible users and runs a matching pass.
func (h *harness) pair(t *testing.T, a, b string) models.Session {
	t.Helper()
	ctx := context.Background()
	_, err := h.svc.JoinQueue(ctx, a, models.Preferences{})
	require.NoError(t, err)
	h.clock.Advance(time.Second)
	_, err = h.svc.JoinQueue(ctx, b, models.Preferences{})
	require.NoError(t, err)

	require.Equal(t, 1, h.svc.MatchOnce(ctx))
	sess, err := h.svc.CurrentSession(a)
	require.NoError(t, err)
	return sess
}
