/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu       sync.Mutex
	messages [][]byte
	fail     bool
	block    chan struct{}

	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{closed: make(chan struct{})}
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	if c.block != nil {
		<-c.block
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.fail {
		return errors.New("connection reset")
	}
	if messageType == websocket.TextMessage {
		c.messages = append(c.messages, data)
	}

	return nil
}

func (c *fakeConn) SetWriteDeadline(time.Time) error {
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) received() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()

	events := make([]Event, 0, len(c.messages))
	for _, m := range c.messages {
		var e Event
		if err := json.Unmarshal(m, &e); err == nil {
			events = append(events, e)
		}
	}

	return events
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func startTestHub(t *testing.T) (*BroadcastHub, context.CancelFunc) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	hub := newBroadcastHub(&Config{})
	go hub.run(ctx)

	t.Cleanup(func() {
		cancel()
		<-hub.done
	})

	return hub, cancel
}

func wishEvent(id string) Event {
	return Event{Type: eventNewWish, Wish: PublicWish{ID: id, Name: "Ada", Text: "wish " + id}}
}

func TestBroadcastHub_PublishReachesEverySubscriber(t *testing.T) {
	hub, _ := startTestHub(t)

	a, b := newFakeConn(), newFakeConn()
	require.NotNil(t, hub.Subscribe(a))
	require.NotNil(t, hub.Subscribe(b))

	require.Eventually(t, func() bool { return hub.Count() == 2 }, time.Second, 5*time.Millisecond)

	for _, id := range []string{"1", "2", "3"} {
		require.NoError(t, hub.Publish(wishEvent(id)))
	}

	for _, c := range []*fakeConn{a, b} {
		require.Eventually(t, func() bool { return len(c.received()) == 3 }, time.Second, 5*time.Millisecond)

		got := c.received()
		assert.Equal(t, eventNewWish, got[0].Type)
		assert.Equal(t, "1", got[0].Wish.ID)
		assert.Equal(t, "2", got[1].Wish.ID)
		assert.Equal(t, "3", got[2].Wish.ID)
	}
}

func TestBroadcastHub_EventOmitsSource(t *testing.T) {
	hub, _ := startTestHub(t)

	c := newFakeConn()
	require.NotNil(t, hub.Subscribe(c))

	wish := Wish{ID: "1", Name: "Ada", Text: "hi", CreatedAt: testEpoch, Source: "10.0.0.1"}
	require.NoError(t, hub.Publish(Event{Type: eventNewWish, Wish: wish.Public()}))

	require.Eventually(t, func() bool { return len(c.received()) == 1 }, time.Second, 5*time.Millisecond)

	c.mu.Lock()
	raw := string(c.messages[0])
	c.mu.Unlock()

	assert.JSONEq(t, `{"type":"new_wish","wish":{"id":"1","name":"Ada","wish":"hi","timestamp":"2026-10-14T09:00:00Z"}}`, raw)
}

func TestBroadcastHub_FailingSubscriberIsDropped(t *testing.T) {
	hub, _ := startTestHub(t)

	good, bad := newFakeConn(), newFakeConn()
	bad.fail = true

	require.NotNil(t, hub.Subscribe(good))
	require.NotNil(t, hub.Subscribe(bad))

	require.NoError(t, hub.Publish(wishEvent("1")))

	require.Eventually(t, bad.isClosed, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, hub.Publish(wishEvent("2")))
	require.Eventually(t, func() bool { return len(good.received()) == 2 }, time.Second, 5*time.Millisecond)
}

func TestBroadcastHub_SlowSubscriberIsDropped(t *testing.T) {
	hub, _ := startTestHub(t)

	slow := newFakeConn()
	slow.block = make(chan struct{})
	defer close(slow.block)

	fast := newFakeConn()

	require.NotNil(t, hub.Subscribe(slow))
	require.NotNil(t, hub.Subscribe(fast))

	for i := range sendBuffer + 2 {
		require.NoError(t, hub.Publish(wishEvent(string(rune('a' + i)))))
		require.Eventually(t, func() bool { return len(fast.received()) == i+1 }, time.Second, time.Millisecond)
	}

	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestBroadcastHub_UnsubscribeIsIdempotent(t *testing.T) {
	hub, _ := startTestHub(t)

	c := newFakeConn()
	s := hub.Subscribe(c)
	require.NotNil(t, s)

	hub.Unsubscribe(s)
	hub.Unsubscribe(s)
	hub.Unsubscribe(nil)

	require.Eventually(t, c.isClosed, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, hub.Count())
}

func TestBroadcastHub_PublishWithoutSubscribers(t *testing.T) {
	hub, _ := startTestHub(t)

	assert.NoError(t, hub.Publish(wishEvent("1")))
	assert.Equal(t, 0, hub.Count())
}

func TestBroadcastHub_StopClosesSubscribers(t *testing.T) {
	hub, cancel := startTestHub(t)

	c := newFakeConn()
	require.NotNil(t, hub.Subscribe(c))

	cancel()
	<-hub.done

	require.Eventually(t, c.isClosed, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, hub.Count())

	late := newFakeConn()
	assert.Nil(t, hub.Subscribe(late))
	assert.True(t, late.isClosed())

	assert.NoError(t, hub.Publish(wishEvent("1")))
}
