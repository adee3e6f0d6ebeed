package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/01moynul/projecthub-golang/internal/models"
)

func TestReadFrames(t *testing.T) {
	input := ": ping\n\n" +
		"data: {\"a\":1}\n\n" +
		"event: x\ndata: line1\ndata: line2\n\n" +
		"data:nospace\r\n\r\n" +
		"data: trailing-without-blank"

	var got []string
	err := readFrames(strings.NewReader(input), func(d string) bool {
		got = append(got, d)
		return true
	})
	assert.Error(t, err)
	assert.Equal(t, []string{`{"a":1}`, "line1\nline2", "nospace"}, got)
}

func writePage(w http.ResponseWriter, items []*models.Notification, stats models.NotificationStats) {
	_ = json.NewEncoder(w).Encode(map[string]any{
		"notifications": items,
		"pagination":    map[string]int{"page": 1, "limit": 20, "total": len(items), "totalPages": 1},
		"unreadCount":   stats.Unread,
		"stats":         stats,
	})
}

// A slow, older fetch must not overwrite the result of a newer one.
func TestLastLoadWins(t *testing.T) {
	release := make(chan struct{})
	calls := make(chan struct{}, 2)
	var count atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := count.Add(1)
		calls <- struct{}{}
		if n == 1 {
			<-release
			writePage(w, []*models.Notification{{ID: 1, Title: "stale"}}, models.NotificationStats{Total: 1, Unread: 1})
			return
		}
		writePage(w, []*models.Notification{{ID: 2, Title: "fresh"}}, models.NotificationStats{Total: 1, Unread: 1})
	}))
	defer srv.Close()

	f := New(Options{BaseURL: srv.URL})

	slow := make(chan error, 1)
	go func() { slow <- f.Load(context.Background()) }()
	<-calls

	require.NoError(t, f.Load(context.Background()))
	close(release)
	require.NoError(t, <-slow)

	snap := f.Snapshot()
	require.Len(t, snap.Items, 1)
	assert.Equal(t, "fresh", snap.Items[0].Title)
}

// A push that arrives while Load is in flight is counted exactly once,
// whether or not the server's snapshot already contains it.
func TestPushDuringLoadCountedOnce(t *testing.T) {
	pushed := &models.Notification{ID: 5, Title: "pushed"}
	older := &models.Notification{ID: 4, Title: "older", IsRead: true}

	cases := []struct {
		name  string
		items []*models.Notification
		stats models.NotificationStats
	}{
		{"stored after snapshot", []*models.Notification{older}, models.NotificationStats{Total: 1, Read: 1}},
		{"stored before snapshot", []*models.Notification{pushed, older}, models.NotificationStats{Total: 2, Unread: 1, Read: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			arrived := make(chan struct{})
			release := make(chan struct{})
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				close(arrived)
				<-release
				writePage(w, tc.items, tc.stats)
			}))
			defer srv.Close()

			f := New(Options{BaseURL: srv.URL})
			errc := make(chan error, 1)
			go func() { errc <- f.Load(context.Background()) }()

			<-arrived
			p := *pushed
			f.merge(&p)
			close(release)
			require.NoError(t, <-errc)

			snap := f.Snapshot()
			require.Len(t, snap.Items, 2)
			assert.Equal(t, int64(5), snap.Items[0].ID)
			assert.Equal(t, models.NotificationStats{Total: 2, Unread: 1, Read: 1}, snap.Stats)
		})
	}
}

func TestPushDuringLoadSurvivesReplace(t *testing.T) {
	f := New(Options{BaseURL: "http://unused"})

	f.mu.Lock()
	f.seq++
	seq := f.seq
	f.pushed = make(map[int64]*models.Notification)
	f.mu.Unlock()

	f.merge(&models.Notification{ID: 9, Title: "pushed mid-fetch"})

	f.update(func() bool {
		require.Equal(t, seq, f.seq)
		page := &listPage{Notifications: []*models.Notification{{ID: 8, Title: "older", IsRead: true}}}
		page.Pagination.TotalPages = 1
		f.replaceLocked(page, models.NotificationStats{Total: 1, Read: 1})
		return true
	})

	snap := f.Snapshot()
	require.Len(t, snap.Items, 2)
	assert.Equal(t, int64(9), snap.Items[0].ID)
	assert.Equal(t, int64(8), snap.Items[1].ID)
	assert.Equal(t, models.NotificationStats{Total: 2, Unread: 1, Read: 1}, snap.Stats)
}

func TestBackoffOptionsDefaults(t *testing.T) {
	f := New(Options{BaseURL: "http://x/v1/"})
	assert.Equal(t, "http://x/v1", f.api.baseURL)
	assert.Equal(t, time.Second, f.opts.MinBackoff)
	assert.Equal(t, 30*time.Second, f.opts.MaxBackoff)
	assert.Equal(t, 20, f.opts.PageSize)
}
