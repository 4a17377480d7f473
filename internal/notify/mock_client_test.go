package notify_test

import (
	"sync/atomic"

	"vibecall/backend/internal/models"
)

type MockClient struct {
	userID      string
	RecvChannel chan models.Event
	closed      atomic.Bool
}

func newMockClient(userID string, buffer int) *MockClient {
	return &MockClient{userID: userID, RecvChannel: make(chan models.Event, buffer)}
}

func (c *MockClient) GetUserID() string                    { return c.userID }
func (c *MockClient) GetSendChannel() chan<- models.Event { return c.RecvChannel }
func (c *MockClient) Run()                                 {}
func (c *MockClient) Close()                               { c.closed.Store(true) }

// chanBroker loops published events straight back to the subscriber.
type chanBroker struct {
	ch        chan models.Event
	published atomic.Int32
}

func newChanBroker() *chanBroker {
	return &chanBroker{ch: make(chan models.Event, 16)}
}
