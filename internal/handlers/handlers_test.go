package handlers_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/01moynul/projecthub-golang/internal/auth"
	"github.com/01moynul/projecthub-golang/internal/handlers"
	"github.com/01moynul/projecthub-golang/internal/models"
	"github.com/01moynul/projecthub-golang/internal/notify"
	"github.com/01moynul/projecthub-golang/internal/routes"
	"github.com/01moynul/projecthub-golang/internal/store"
	"github.com/01moynul/projecthub-golang/internal/stream"
	"github.com/01moynul/projecthub-golang/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testApp struct {
	h        *handlers.Handlers
	store    *store.SQLStore
	registry *stream.Registry
	tokens   *auth.TokenManager
	router   *gin.Engine
	server   *httptest.Server
}

// brokenCreates fails every notification insert but keeps reads working.
type brokenCreates struct {
	store.NotificationStore
}

func (brokenCreates) Create(context.Context, *models.Notification) error {
	return errors.New("notifications table is locked")
}

func newTestApp(t *testing.T) *testApp {
	return newTestAppWith(t, nil)
}

func newTestAppWith(t *testing.T, wrap func(store.NotificationStore) store.NotificationStore) *testApp {
	t.Helper()

	db := testutil.NewTestDB(t)
	s := store.New(db)
	log := zap.NewNop()
	registry := stream.NewRegistry(log)

	var notifications store.NotificationStore = s
	if wrap != nil {
		notifications = wrap(s)
	}

	tokens, err := auth.NewTokenManager("test-secret", time.Hour)
	require.NoError(t, err)

	h := &handlers.Handlers{
		DB:            db,
		Notifications: s,
		Projects:      s,
		Tasks:         s,
		Dispatcher:    notify.NewDispatcher(notifications, registry, log),
		Registry:      registry,
		Log:           log,
		Heartbeat:     50 * time.Millisecond,
		BrokerMode:    "local",
	}
	router := routes.SetupRouter(h, routes.Options{
		AllowedOrigin: "http://localhost:5173",
		Tokens:        tokens,
		Log:           log,
	})

	server := httptest.NewServer(router)
	t.Cleanup(func() {
		registry.CloseAll()
		server.Close()
	})

	return &testApp{h: h, store: s, registry: registry, tokens: tokens, router: router, server: server}
}

func (a *testApp) token(t *testing.T, email string) string {
	t.Helper()
	tok, err := a.tokens.GenerateToken(email)
	require.NoError(t, err)
	return tok
}

// do runs one request through the router and returns the recorder.
func (a *testApp) do(t *testing.T, method, path, email string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if email != "" {
		req.Header.Set("Authorization", "Bearer "+a.token(t, email))
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

// sseClient reads data frames from a live stream.
type sseClient struct {
	resp   *http.Response
	frames chan string
	cancel context.CancelFunc
}

func (a *testApp) openStream(t *testing.T, email string) *sseClient {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.server.URL+"/v1/notifications/stream", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+a.token(t, email))

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	c := &sseClient{resp: resp, frames: make(chan string, 32), cancel: cancel}
	go func() {
		defer close(c.frames)
		reader := bufio.NewReader(resp.Body)
		var data string
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				return
			}
			line = strings.TrimSuffix(line, "\n")
			switch {
			case line == "":
				if data != "" {
					c.frames <- data
					data = ""
				}
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			}
		}
	}()

	t.Cleanup(c.close)
	return c
}

func (c *sseClient) close() {
	c.cancel()
	c.resp.Body.Close()
}

func (c *sseClient) next(t *testing.T) string {
	t.Helper()
	select {
	case f, ok := <-c.frames:
		require.True(t, ok, "stream ended")
		return f
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for a frame")
		return ""
	}
}

// waitClosed waits until the server ends the stream.
func (c *sseClient) waitClosed(t *testing.T) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case _, ok := <-c.frames:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("stream was not closed by the server")
		}
	}
}
