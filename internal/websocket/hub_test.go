package websocket

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopHubLogger struct{}

func (nopHubLogger) Debug(module, message string, details map[string]interface{}) {}
func (nopHubLogger) Info(module, message string, details map[string]interface{})  {}
func (nopHubLogger) Warn(module, message string, details map[string]interface{})  {}
func (nopHubLogger) Error(module, message string, details map[string]interface{}) {}
func (nopHubLogger) Sync() error                                                  { return nil }

// A listener that never drains its Send channel gets dropped, and the hub
// keeps running: only the unregister arm may close the channel, so a slow
// client must not take the process down with a double close.
func TestHubDropsSlowListenerWithoutPanic(t *testing.T) {
	hub := NewHub(nil, nopHubLogger{})
	go hub.Run()

	sessionID := uuid.New()
	client := &Client{Hub: hub, SessionID: sessionID, Send: make(chan []byte)}
	hub.register <- client

	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		return len(hub.clients[sessionID]) == 1
	}, time.Second, 5*time.Millisecond)

	// Nobody reads Send, so delivery hits the full-buffer branch.
	hub.Send(sessionID, "insight", map[string]interface{}{"id": uuid.NewString()})

	require.Eventually(t, func() bool {
		select {
		case _, ok := <-client.Send:
			return !ok
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)

	// The session has no listeners left; further sends are a no-op.
	hub.Send(sessionID, "insight", map[string]interface{}{"id": uuid.NewString()})

	hub.mu.RLock()
	_, stillThere := hub.clients[sessionID]
	hub.mu.RUnlock()
	assert.False(t, stillThere)
}

func TestHubDeliversToHealthyListeners(t *testing.T) {
	hub := NewHub(nil, nopHubLogger{})
	go hub.Run()

	sessionID := uuid.New()
	client := &Client{Hub: hub, SessionID: sessionID, Send: make(chan []byte, 4)}
	other := &Client{Hub: hub, SessionID: uuid.New(), Send: make(chan []byte, 4)}
	hub.register <- client
	hub.register <- other

	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		return len(hub.clients[sessionID]) == 1 && len(hub.clients[other.SessionID]) == 1
	}, time.Second, 5*time.Millisecond)

	hub.Send(sessionID, "insight", map[string]interface{}{"status": "resolved"})

	select {
	case raw := <-client.Send:
		assert.Contains(t, string(raw), `"type":"insight"`)
	case <-time.After(time.Second):
		t.Fatal("client never received the message")
	}

	select {
	case <-other.Send:
		t.Fatal("message leaked across sessions")
	default:
	}
}
