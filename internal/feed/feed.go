// Package feed keeps a live, merged view of one user's notifications: an
// initial REST load, pushes from the event stream, polling while the stream
// is down and optimistic read/delete updates.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/01moynul/projecthub-golang/internal/models"
)

// Options configures a Feed. BaseURL points at the versioned API root, e.g.
// "http://localhost:8080/v1".
type Options struct {
	BaseURL string
	Token   string

	PageSize     int
	PollInterval time.Duration
	MinBackoff   time.Duration
	MaxBackoff   time.Duration

	HTTPClient *http.Client
	Log        *zap.Logger

	// OnChange receives a snapshot after every state change. It is called
	// without locks held and must not block for long.
	OnChange func(Snapshot)
}

// Snapshot is a copy of the feed state.
type Snapshot struct {
	Items     []models.Notification
	Stats     models.NotificationStats
	Connected bool
	HasMore   bool
}

// Feed is safe for concurrent use.
type Feed struct {
	opts Options
	api  *api
	log  *zap.Logger

	mu        sync.Mutex
	items     []*models.Notification
	stats     models.NotificationStats
	connected bool
	page      int
	pages     int

	// seq identifies the latest list replacement; older results are dropped.
	seq uint64
	// pushed holds items pushed since the latest replacement was issued.
	pushed map[int64]*models.Notification
}

func New(opts Options) *Feed {
	if opts.PageSize <= 0 {
		opts.PageSize = 20
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 30 * time.Second
	}
	if opts.MinBackoff <= 0 {
		opts.MinBackoff = time.Second
	}
	if opts.MaxBackoff < opts.MinBackoff {
		opts.MaxBackoff = 30 * opts.MinBackoff
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	return &Feed{
		opts:   opts,
		api:    &api{baseURL: strings.TrimSuffix(opts.BaseURL, "/"), token: opts.Token, http: opts.HTTPClient},
		log:    opts.Log,
		pushed: make(map[int64]*models.Notification),
	}
}

// Snapshot returns a copy of the current state.
func (f *Feed) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotLocked()
}

func (f *Feed) snapshotLocked() Snapshot {
	items := make([]models.Notification, len(f.items))
	for i, n := range f.items {
		items[i] = *n
	}
	return Snapshot{
		Items:     items,
		Stats:     f.stats,
		Connected: f.connected,
		HasMore:   f.page < f.pages,
	}
}

// Connected reports whether the event stream is currently open.
func (f *Feed) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

// update runs fn under the lock and then publishes a snapshot.
func (f *Feed) update(fn func() bool) {
	f.mu.Lock()
	changed := fn()
	var snap Snapshot
	if changed && f.opts.OnChange != nil {
		snap = f.snapshotLocked()
	}
	f.mu.Unlock()

	if changed && f.opts.OnChange != nil {
		f.opts.OnChange(snap)
	}
}

func (f *Feed) indexOf(id int64) int {
	for i, n := range f.items {
		if n.ID == id {
			return i
		}
	}
	return -1
}

//
// --- Loading ---
//

// Load replaces the list with the first page and refreshes the counters.
// If another Load starts before this one finishes, this result is dropped.
func (f *Feed) Load(ctx context.Context) error {
	f.mu.Lock()
	f.seq++
	seq := f.seq
	f.pushed = make(map[int64]*models.Notification)
	f.mu.Unlock()

	// The counters arrive with the page and describe the same rows.
	page, err := f.api.list(ctx, 1, f.opts.PageSize)
	if err != nil {
		return err
	}

	f.update(func() bool {
		if seq != f.seq {
			return false
		}
		f.replaceLocked(page, page.Stats)
		return true
	})
	return nil
}

// replaceLocked installs a fetched first page and its counters. Items pushed
// after the fetch was issued and missing from it were stored after the
// snapshot, so they are kept on top and added to the counters.
func (f *Feed) replaceLocked(page *listPage, stats models.NotificationStats) {
	fetched := make(map[int64]bool, len(page.Notifications))
	for _, n := range page.Notifications {
		fetched[n.ID] = true
	}

	var items []*models.Notification
	for _, n := range f.items {
		p, ok := f.pushed[n.ID]
		if !ok || fetched[n.ID] {
			continue
		}
		items = append(items, p)
		stats.Total++
		if p.IsRead {
			stats.Read++
		} else {
			stats.Unread++
		}
	}
	items = appendUnique(items, page.Notifications)

	f.items = items
	f.stats = stats
	f.page = 1
	f.pages = page.Pagination.TotalPages
	f.pushed = make(map[int64]*models.Notification)
}

// LoadMore appends the next page, skipping ids already present.
func (f *Feed) LoadMore(ctx context.Context) error {
	f.mu.Lock()
	seq, next := f.seq, f.page+1
	if f.page > 0 && f.page >= f.pages {
		f.mu.Unlock()
		return nil
	}
	f.mu.Unlock()

	page, err := f.api.list(ctx, next, f.opts.PageSize)
	if err != nil {
		return err
	}

	f.update(func() bool {
		if seq != f.seq || next != f.page+1 {
			return false
		}
		f.items = appendUnique(f.items, page.Notifications)
		f.page = next
		f.pages = page.Pagination.TotalPages
		return true
	})
	return nil
}

func appendUnique(dst []*models.Notification, src []*models.Notification) []*models.Notification {
	seen := make(map[int64]bool, len(dst)+len(src))
	for _, n := range dst {
		seen[n.ID] = true
	}
	for _, n := range src {
		if seen[n.ID] {
			continue
		}
		seen[n.ID] = true
		dst = append(dst, n)
	}
	return dst
}

// merge applies one pushed notification. A known id is left as is.
func (f *Feed) merge(n *models.Notification) {
	f.update(func() bool {
		f.pushed[n.ID] = n
		if f.indexOf(n.ID) >= 0 {
			return false
		}
		f.items = append([]*models.Notification{n}, f.items...)
		f.stats.Total++
		if n.IsRead {
			f.stats.Read++
		} else {
			f.stats.Unread++
		}
		return true
	})
}

//
// --- Optimistic actions ---
//

// MarkAsRead marks id read locally, then on the server. The local change is
// rolled back if the request fails.
func (f *Feed) MarkAsRead(ctx context.Context, id int64) error {
	var flipped bool
	f.update(func() bool {
		if i := f.indexOf(id); i >= 0 && !f.items[i].IsRead {
			f.items[i].IsRead = true
			f.stats.Unread--
			f.stats.Read++
			flipped = true
		}
		return flipped
	})

	err := f.api.markAsRead(ctx, id)
	if err != nil && flipped {
		f.update(func() bool {
			i := f.indexOf(id)
			if i < 0 || !f.items[i].IsRead {
				return false
			}
			f.items[i].IsRead = false
			f.stats.Unread++
			f.stats.Read--
			return true
		})
	}
	return err
}

// MarkAllAsRead marks everything read locally, then on the server.
func (f *Feed) MarkAllAsRead(ctx context.Context) error {
	var (
		flipped   []int64
		prevStats models.NotificationStats
	)
	f.update(func() bool {
		prevStats = f.stats
		for _, n := range f.items {
			if !n.IsRead {
				n.IsRead = true
				flipped = append(flipped, n.ID)
			}
		}
		f.stats.Read = f.stats.Total
		f.stats.Unread = 0
		return true
	})

	err := f.api.markAllAsRead(ctx)
	if err != nil {
		f.update(func() bool {
			for _, id := range flipped {
				if i := f.indexOf(id); i >= 0 {
					f.items[i].IsRead = false
				}
			}
			f.stats = prevStats
			return true
		})
	}
	return err
}

// Delete removes id locally, then on the server, and restores it on failure.
func (f *Feed) Delete(ctx context.Context, id int64) error {
	var (
		removed *models.Notification
		at      int
	)
	f.update(func() bool {
		at = f.indexOf(id)
		if at < 0 {
			return false
		}
		removed = f.items[at]
		f.items = append(f.items[:at:at], f.items[at+1:]...)
		f.stats.Total--
		if removed.IsRead {
			f.stats.Read--
		} else {
			f.stats.Unread--
		}
		return true
	})

	err := f.api.delete(ctx, id)
	if err != nil && removed != nil {
		f.update(func() bool {
			if f.indexOf(id) >= 0 {
				return false
			}
			if at > len(f.items) {
				at = len(f.items)
			}
			f.items = append(f.items[:at:at], append([]*models.Notification{removed}, f.items[at:]...)...)
			f.stats.Total++
			if removed.IsRead {
				f.stats.Read++
			} else {
				f.stats.Unread++
			}
			return true
		})
	}
	return err
}

//
// --- Live stream ---
//

// Run keeps the event stream open until ctx is cancelled. While the stream
// is down the feed polls the REST API and reconnects with capped
// exponential backoff; each successful connect triggers a catch-up Load.
func (f *Feed) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	backoff := f.opts.MinBackoff
	for {
		err := f.listen(ctx, func() {
			backoff = f.opts.MinBackoff
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := f.Load(ctx); err != nil && ctx.Err() == nil {
					f.log.Warn("catch-up refresh failed", zap.Error(err))
				}
			}()
		})
		f.setConnected(false)
		if ctx.Err() != nil {
			return nil
		}
		f.log.Info("notification stream down, reconnecting",
			zap.Duration("backoff", backoff), zap.Error(err))

		if !f.pollFor(ctx, backoff) {
			return nil
		}
		backoff *= 2
		if backoff > f.opts.MaxBackoff {
			backoff = f.opts.MaxBackoff
		}
	}
}

func (f *Feed) setConnected(v bool) {
	f.update(func() bool {
		if f.connected == v {
			return false
		}
		f.connected = v
		return true
	})
}

// frame covers both the handshake and notification payloads.
type frame struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// listen reads one stream connection until it ends.
func (f *Feed) listen(ctx context.Context, onConnected func()) error {
	body, err := f.api.openStream(ctx)
	if err != nil {
		return err
	}
	defer body.Close()

	// Unblock the reader when ctx ends.
	stop := context.AfterFunc(ctx, func() { body.Close() })
	defer stop()

	return readFrames(body, func(data string) bool {
		var fr frame
		if err := json.Unmarshal([]byte(data), &fr); err != nil {
			f.log.Warn("ignoring malformed stream frame", zap.Error(err))
			return true
		}
		if fr.ID == 0 && fr.Type == "connection" {
			f.setConnected(true)
			onConnected()
			return true
		}

		var n models.Notification
		if err := json.Unmarshal([]byte(data), &n); err != nil || n.ID == 0 {
			f.log.Warn("ignoring unknown stream frame", zap.String("data", data))
			return true
		}
		f.merge(&n)
		return true
	})
}

// pollFor waits d, refreshing over REST right away and then every
// PollInterval. It returns false if ctx ends first.
func (f *Feed) pollFor(ctx context.Context, d time.Duration) bool {
	refresh := func() {
		if err := f.Load(ctx); err != nil && ctx.Err() == nil && !errors.Is(err, context.Canceled) {
			f.log.Debug("polling refresh failed", zap.Error(err))
		}
	}
	refresh()

	timer := time.NewTimer(d)
	defer timer.Stop()
	ticker := time.NewTicker(f.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-timer.C:
			return true
		case <-ticker.C:
			refresh()
		}
	}
}
