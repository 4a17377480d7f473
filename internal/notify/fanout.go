package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"vibecall/backend/internal/metrics"
	"vibecall/backend/internal/models"
)

const (
	outboxSize     = 1024
	publishTimeout = 2 * time.Second
)

// Client is one live push connection of a user.
type Client interface {
	// GetUserID returns the user the connection belongs to.
	GetUserID() string
	// GetSendChannel is the buffered channel the fanout writes events to.
	GetSendChannel() chan<- models.Event
	// Run starts the connection's pumps.
	Run()
	// Close stops the connection. The fanout calls it exactly once.
	Close()
}

// Broker carries events between instances so a user connected to another node still
// receives them.
type Broker interface {
	PublishEvent(ctx context.Context, evt models.Event) error
	SubscribeEvents(ctx context.Context) (<-chan models.Event, error)
}

// Fanout delivers engine events to connected clients. Delivery is at-most-once: Notify
// never blocks, and events for slow or absent clients are dropped. Clients that miss an
// event poll queue status or session state instead.
type Fanout struct {
	broker Broker

	RegisterCh   chan Client
	UnregisterCh chan Client

	outbox  chan models.Event
	clients map[string]map[Client]bool
	done    chan struct{}
	once    sync.Once
}

// NewFanout creates a fanout. broker may be nil for a single-instance deployment.
func NewFanout(broker Broker) *Fanout {
	return &Fanout{
		broker:       broker,
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		outbox:       make(chan models.Event, outboxSize),
		clients:      make(map[string]map[Client]bool),
		done:         make(chan struct{}),
	}
}

// Notify queues evt for delivery without blocking.
func (f *Fanout) Notify(evt models.Event) {
	select {
	case f.outbox <- evt:
	default:
		metrics.NotificationsDropped.Inc()
		log.Warn().Str("module", "notify").Str("user_id", evt.UserID).Str("type", string(evt.Type)).
			Msg("outbox full, event dropped")
	}
}

// Register attaches c. It returns false once the fanout has stopped.
func (f *Fanout) Register(c Client) bool {
	select {
	case f.RegisterCh <- c:
		return true
	case <-f.done:
		return false
	}
}

// Unregister detaches and closes c.
func (f *Fanout) Unregister(c Client) {
	select {
	case f.UnregisterCh <- c:
	case <-f.done:
	}
}

// Run owns the client registry until ctx is cancelled. With a broker, outgoing events go
// through it and delivery happens on the way back in.
func (f *Fanout) Run(ctx context.Context) error {
	defer f.shutdown()

	local := f.outbox
	var inbound <-chan models.Event
	if f.broker != nil {
		ch, err := f.broker.SubscribeEvents(ctx)
		if err != nil {
			return err
		}
		inbound = ch
		local = nil
		go f.publishLoop(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case c := <-f.RegisterCh:
			uid := c.GetUserID()
			if f.clients[uid] == nil {
				f.clients[uid] = make(map[Client]bool)
			}
			f.clients[uid][c] = true
			log.Debug().Str("module", "notify").Str("user_id", uid).Msg("client registered")

		case c := <-f.UnregisterCh:
			uid := c.GetUserID()
			if f.clients[uid][c] {
				delete(f.clients[uid], c)
				if len(f.clients[uid]) == 0 {
					delete(f.clients, uid)
				}
				c.Close()
				log.Debug().Str("module", "notify").Str("user_id", uid).Msg("client unregistered")
			}

		case evt := <-local:
			f.deliver(evt)

		case evt, ok := <-inbound:
			if !ok {
				log.Warn().Str("module", "notify").Msg("broker subscription closed, delivering locally")
				inbound = nil
				local = f.outbox
				continue
			}
			f.deliver(evt)
		}
	}
}

func (f *Fanout) publishLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-f.outbox:
			pctx, cancel := context.WithTimeout(ctx, publishTimeout)
			err := f.broker.PublishEvent(pctx, evt)
			cancel()
			if err != nil {
				metrics.NotificationsDropped.Inc()
				log.Warn().Str("module", "notify").Str("user_id", evt.UserID).Err(err).Msg("publish failed, event dropped")
			}
		}
	}
}

func (f *Fanout) deliver(evt models.Event) {
	for c := range f.clients[evt.UserID] {
		select {
		case c.GetSendChannel() <- evt:
		default:
			metrics.NotificationsDropped.Inc()
			log.Warn().Str("module", "notify").Str("user_id", evt.UserID).Str("type", string(evt.Type)).
				Msg("client buffer full, event dropped")
		}
	}
}

// shutdown closes every remaining client.
func (f *Fanout) shutdown() {
	f.once.Do(func() {
		close(f.done)
		for uid, set := range f.clients {
			for c := range set {
				c.Close()
			}
			delete(f.clients, uid)
		}
	})
}
