// Package notify creates notifications and pushes them to live streams.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/01moynul/projecthub-golang/internal/auth"
	"github.com/01moynul/projecthub-golang/internal/models"
	"github.com/01moynul/projecthub-golang/internal/store"
	"github.com/01moynul/projecthub-golang/internal/stream"
)

// ErrInvalidArgument is wrapped by validation failures of Notify.
var ErrInvalidArgument = errors.New("invalid notification")

// Associations are the optional display references of a notification.
type Associations struct {
	Project *models.ProjectRef
	Task    *models.TaskRef
}

// Notifier is what background producers need from a Dispatcher.
type Notifier interface {
	Notify(ctx context.Context, recipientID string, typ models.NotificationType, title, message string, assoc *Associations) (*models.Notification, error)
}

// Dispatcher persists a notification and then pushes it to the recipient.
type Dispatcher struct {
	store  store.NotificationStore
	pusher stream.Pusher
	log    *zap.Logger
}

func NewDispatcher(s store.NotificationStore, p stream.Pusher, log *zap.Logger) *Dispatcher {
	return &Dispatcher{store: s, pusher: p, log: log}
}

// Notify validates, persists and pushes one notification and returns the
// stored record. A push is only attempted once the record exists; an offline
// recipient is not an error.
func (d *Dispatcher) Notify(ctx context.Context, recipientID string, typ models.NotificationType, title, message string, assoc *Associations) (*models.Notification, error) {
	// 1. --- Validate ---
	recipientID = auth.NormalizeEmail(recipientID)
	if recipientID == "" {
		return nil, fmt.Errorf("%w: recipient is required", ErrInvalidArgument)
	}
	if !typ.Valid() {
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidArgument, typ)
	}
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidArgument)
	}

	n := &models.Notification{
		RecipientID: recipientID,
		Type:        typ,
		Title:       title,
		Message:     message,
	}
	if assoc != nil {
		n.Project = assoc.Project
		n.Task = assoc.Task
	}

	// 2. --- Persist ---
	if err := d.store.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("persisting notification: %w", err)
	}

	// 3. --- Push ---
	if !d.pusher.Send(recipientID, n) {
		d.log.Debug("notification stored but not pushed",
			zap.Int64("id", n.ID),
			zap.String("recipient", recipientID))
	}

	return n, nil
}

// NotifyMany sends the same notification to each recipient. It keeps going
// after a failure and returns the joined errors.
func (d *Dispatcher) NotifyMany(ctx context.Context, recipientIDs []string, typ models.NotificationType, title, message string, assoc *Associations) ([]*models.Notification, error) {
	var (
		sent []*models.Notification
		errs []error
	)
	for _, id := range recipientIDs {
		n, err := d.Notify(ctx, id, typ, title, message, assoc)
		if err != nil {
			errs = append(errs, fmt.Errorf("notify %s: %w", id, err))
			continue
		}
		sent = append(sent, n)
	}
	return sent, errors.Join(errs...)
}
