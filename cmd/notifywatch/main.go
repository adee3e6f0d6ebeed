// notifywatch follows one user's notifications from the terminal. It loads
// the latest page, keeps the event stream open and logs every new item and
// every connection change.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/01moynul/projecthub-golang/internal/auth"
	"github.com/01moynul/projecthub-golang/internal/config"
	"github.com/01moynul/projecthub-golang/internal/feed"
	"github.com/01moynul/projecthub-golang/internal/logger"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var (
		baseURL  string
		token    string
		secret   string
		email    string
		markRead bool
		pageSize int
		poll     time.Duration
		maxWait  time.Duration
		verbose  bool
	)

	flagSet := pflag.NewFlagSet("notifywatch", pflag.ContinueOnError)
	flagSet.StringVar(&baseURL, "url", "http://localhost:8080/v1", "API root")
	flagSet.StringVar(&token, "token", "", "bearer token")
	flagSet.StringVar(&secret, "jwt-secret", "", "mint a token with this secret instead of --token")
	flagSet.StringVar(&email, "email", "", "user to mint a token for (with --jwt-secret)")
	flagSet.BoolVar(&markRead, "mark-read", false, "mark notifications read as they arrive")
	flagSet.IntVar(&pageSize, "page-size", 20, "items fetched per page")
	flagSet.DurationVar(&poll, "poll", 30*time.Second, "REST polling interval while the stream is down")
	flagSet.DurationVar(&maxWait, "max-backoff", 30*time.Second, "longest wait between reconnects")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	if token == "" {
		if secret == "" || email == "" {
			return fmt.Errorf("either --token or both --jwt-secret and --email are required")
		}
		tm, err := auth.NewTokenManager(secret, 24*time.Hour)
		if err != nil {
			return err
		}
		if token, err = tm.GenerateToken(email); err != nil {
			return err
		}
	}

	level := "info"
	if verbose {
		level = "debug"
	}
	log, err := logger.New(config.LogConfig{Development: true, Level: level})
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w := &watcher{log: log, seen: make(map[int64]bool)}
	f := feed.New(feed.Options{
		BaseURL:      baseURL,
		Token:        token,
		PageSize:     pageSize,
		PollInterval: poll,
		MaxBackoff:   maxWait,
		Log:          log.Named("feed"),
		OnChange:     w.onChange,
	})

	if err := f.Load(ctx); err != nil {
		log.Warn("initial load failed, waiting for the stream", zap.Error(err))
	}
	snap := f.Snapshot()
	log.Info("notifications loaded",
		zap.Int("total", snap.Stats.Total),
		zap.Int("unread", snap.Stats.Unread))

	if markRead {
		go w.markRead(ctx, f)
	}
	return f.Run(ctx)
}

// watcher turns snapshots into log lines.
type watcher struct {
	log *zap.Logger

	mu        sync.Mutex
	seen      map[int64]bool
	primed    bool
	connected bool
	unread    []int64
	wake      chan struct{}
}

func (w *watcher) onChange(s feed.Snapshot) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if s.Connected != w.connected {
		w.connected = s.Connected
		if s.Connected {
			w.log.Info("stream connected")
		} else {
			w.log.Warn("stream disconnected")
		}
	}

	for i := len(s.Items) - 1; i >= 0; i-- {
		n := s.Items[i]
		if w.seen[n.ID] {
			continue
		}
		w.seen[n.ID] = true
		if !w.primed {
			continue
		}
		w.log.Info("notification",
			zap.Int64("id", n.ID),
			zap.String("type", string(n.Type)),
			zap.String("title", n.Title),
			zap.String("message", n.Message))
		if !n.IsRead {
			w.unread = append(w.unread, n.ID)
		}
	}
	w.primed = true

	if len(w.unread) > 0 && w.wake != nil {
		select {
		case w.wake <- struct{}{}:
		default:
		}
	}
}

// markRead marks every newly logged notification as read.
func (w *watcher) markRead(ctx context.Context, f *feed.Feed) {
	w.mu.Lock()
	w.wake = make(chan struct{}, 1)
	wake := w.wake
	w.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return
		case <-wake:
		}

		w.mu.Lock()
		ids := w.unread
		w.unread = nil
		w.mu.Unlock()

		for _, id := range ids {
			if err := f.MarkAsRead(ctx, id); err != nil && ctx.Err() == nil {
				w.log.Warn("mark as read failed", zap.Int64("id", id), zap.Error(err))
			}
		}
	}
}
