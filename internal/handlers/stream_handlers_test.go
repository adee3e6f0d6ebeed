package handlers_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/01moynul/projecthub-golang/internal/models"
)

const handshake = `{"type":"connection","message":"Connected to notification stream"}`

func waitConnected(t *testing.T, a *testApp, email string, want bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		return a.registry.Connected(email) == want
	}, 3*time.Second, 10*time.Millisecond)
}

func TestStreamHandshakeAndHeaders(t *testing.T) {
	a := newTestApp(t)
	c := a.openStream(t, "alice@x.com")

	assert.Equal(t, "text/event-stream", c.resp.Header.Get("Content-Type"))
	assert.Equal(t, "no-cache", c.resp.Header.Get("Cache-Control"))
	assert.Equal(t, handshake, c.next(t))
	waitConnected(t, a, "alice@x.com", true)
}

func TestStreamAcceptsQueryToken(t *testing.T) {
	a := newTestApp(t)
	resp, err := http.Get(a.server.URL + "/v1/notifications/stream?token=" + a.token(t, "alice@x.com"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	waitConnected(t, a, "alice@x.com", true)
}

func TestStreamRejectsMissingToken(t *testing.T) {
	a := newTestApp(t)
	resp, err := http.Get(a.server.URL + "/v1/notifications/stream")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Zero(t, a.registry.Len())
}

// A push observed on the stream is always backed by a stored record, and the
// unread count reflects it.
func TestPushedNotificationIsPersisted(t *testing.T) {
	a := newTestApp(t)
	c := a.openStream(t, "alice@x.com")
	require.Equal(t, handshake, c.next(t))
	waitConnected(t, a, "alice@x.com", true)

	n, err := a.h.Dispatcher.Notify(context.Background(), "alice@x.com", models.NotificationTaskApproved,
		"Task approved", "Your task was approved", nil)
	require.NoError(t, err)

	var pushed models.Notification
	require.NoError(t, json.Unmarshal([]byte(c.next(t)), &pushed))
	assert.Equal(t, n.ID, pushed.ID)
	assert.Equal(t, "Task approved", pushed.Title)
	assert.False(t, pushed.IsRead)

	list := decode[listResponse](t, a.do(t, http.MethodGet, "/v1/notifications", "alice@x.com", nil))
	require.Len(t, list.Notifications, 1)
	assert.Equal(t, pushed.ID, list.Notifications[0].ID)

	stats := decode[models.NotificationStats](t, a.do(t, http.MethodGet, "/v1/notifications/stats", "alice@x.com", nil))
	assert.Equal(t, 1, stats.Unread)
}

func TestNotifyWithoutStreamPersistsUnread(t *testing.T) {
	a := newTestApp(t)

	n, err := a.h.Dispatcher.Notify(context.Background(), "alice@x.com", models.NotificationTaskApproved,
		"Task approved", "Your task was approved", nil)
	require.NoError(t, err)

	list := decode[listResponse](t, a.do(t, http.MethodGet, "/v1/notifications", "alice@x.com", nil))
	require.Len(t, list.Notifications, 1)
	assert.Equal(t, n.ID, list.Notifications[0].ID)
	assert.False(t, list.Notifications[0].IsRead)
}

func TestPushesOnlyReachTheirRecipient(t *testing.T) {
	a := newTestApp(t)
	alice := a.openStream(t, "alice@x.com")
	bob := a.openStream(t, "bob@x.com")
	alice.next(t)
	bob.next(t)
	waitConnected(t, a, "alice@x.com", true)
	waitConnected(t, a, "bob@x.com", true)

	for i := 0; i < 3; i++ {
		_, err := a.h.Dispatcher.Notify(context.Background(), "bob@x.com", models.NotificationTaskStarted,
			fmt.Sprintf("Started %d", i), "m", nil)
		require.NoError(t, err)
	}
	for i := 0; i < 3; i++ {
		var n models.Notification
		require.NoError(t, json.Unmarshal([]byte(bob.next(t)), &n))
		assert.Equal(t, fmt.Sprintf("Started %d", i), n.Title)
	}

	select {
	case f := <-alice.frames:
		t.Fatalf("alice received a foreign frame: %s", f)
	case <-time.After(100 * time.Millisecond):
	}
}

// After a disconnect, notify keeps working and a new stream receives pushes.
func TestReconnectAfterDisconnect(t *testing.T) {
	a := newTestApp(t)
	first := a.openStream(t, "alice@x.com")
	first.next(t)
	waitConnected(t, a, "alice@x.com", true)

	first.close()
	waitConnected(t, a, "alice@x.com", false)

	_, err := a.h.Dispatcher.Notify(context.Background(), "alice@x.com", models.NotificationTaskOverdue,
		"While away", "m", nil)
	require.NoError(t, err)

	second := a.openStream(t, "alice@x.com")
	require.Equal(t, handshake, second.next(t))
	waitConnected(t, a, "alice@x.com", true)

	_, err = a.h.Dispatcher.Notify(context.Background(), "alice@x.com", models.NotificationTaskOverdue,
		"Back online", "m", nil)
	require.NoError(t, err)

	var n models.Notification
	require.NoError(t, json.Unmarshal([]byte(second.next(t)), &n))
	assert.Equal(t, "Back online", n.Title)
}

func TestSecondStreamReplacesFirst(t *testing.T) {
	a := newTestApp(t)
	first := a.openStream(t, "alice@x.com")
	first.next(t)
	waitConnected(t, a, "alice@x.com", true)

	second := a.openStream(t, "alice@x.com")
	second.next(t)

	first.waitClosed(t)
	assert.Equal(t, 1, a.registry.Len())
	assert.True(t, a.registry.Connected("alice@x.com"))

	_, err := a.h.Dispatcher.Notify(context.Background(), "alice@x.com", models.NotificationMemberAdded, "Hi", "m", nil)
	require.NoError(t, err)
	var n models.Notification
	require.NoError(t, json.Unmarshal([]byte(second.next(t)), &n))
	assert.Equal(t, "Hi", n.Title)
}
