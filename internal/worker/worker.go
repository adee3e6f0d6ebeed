// Package worker runs the background due-date checks.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/01moynul/projecthub-golang/internal/models"
	"github.com/01moynul/projecthub-golang/internal/notify"
	"github.com/01moynul/projecthub-golang/internal/store"
)

// DueDateWorker sends TASK_DUE_REMINDER once per task entering the reminder
// window and TASK_OVERDUE once per task past its due date. Done tasks are
// ignored.
type DueDateWorker struct {
	tasks    store.TaskStore
	notifier notify.Notifier
	log      *zap.Logger

	interval time.Duration
	window   time.Duration
	now      func() time.Time
}

func NewDueDateWorker(tasks store.TaskStore, notifier notify.Notifier, interval, window time.Duration, log *zap.Logger) *DueDateWorker {
	return &DueDateWorker{
		tasks:    tasks,
		notifier: notifier,
		log:      log,
		interval: interval,
		window:   window,
		now:      time.Now,
	}
}

// Run checks once immediately, then on every tick until ctx is cancelled.
func (w *DueDateWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.Info("due-date worker started",
		zap.Duration("interval", w.interval),
		zap.Duration("reminder_window", w.window))

	for {
		if err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
			w.log.Error("due-date check failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			w.log.Info("due-date worker stopped")
			return
		case <-ticker.C:
		}
	}
}

// RunOnce performs a single reminder and overdue pass.
func (w *DueDateWorker) RunOnce(ctx context.Context) error {
	now := w.now().UTC()
	return errors.Join(w.sendReminders(ctx, now), w.sendOverdue(ctx, now))
}

func (w *DueDateWorker) sendReminders(ctx context.Context, now time.Time) error {
	tasks, err := w.tasks.TasksDueBetween(ctx, now, now.Add(w.window))
	if err != nil {
		return err
	}

	var errs []error
	for _, t := range tasks {
		msg := fmt.Sprintf("%q in %s is due %s", t.Title, t.ProjectName, t.DueDate.Format("Mon Jan 2 15:04 MST"))
		if _, err := w.notifier.Notify(ctx, t.AssigneeEmail, models.NotificationTaskDueReminder,
			"Task due soon", msg, &notify.Associations{Project: t.ProjectRef(), Task: t.Ref()}); err != nil {
			errs = append(errs, fmt.Errorf("reminder for task %d: %w", t.ID, err))
			continue
		}
		if err := w.tasks.MarkReminderSent(ctx, t.ID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (w *DueDateWorker) sendOverdue(ctx context.Context, now time.Time) error {
	tasks, err := w.tasks.TasksOverdue(ctx, now)
	if err != nil {
		return err
	}

	var errs []error
	for _, t := range tasks {
		assoc := &notify.Associations{Project: t.ProjectRef(), Task: t.Ref()}
		msg := fmt.Sprintf("%q in %s is overdue", t.Title, t.ProjectName)

		if _, err := w.notifier.Notify(ctx, t.AssigneeEmail, models.NotificationTaskOverdue, "Task overdue", msg, assoc); err != nil {
			errs = append(errs, fmt.Errorf("overdue notice for task %d: %w", t.ID, err))
			continue
		}
		if t.OwnerEmail != "" && t.OwnerEmail != t.AssigneeEmail {
			if _, err := w.notifier.Notify(ctx, t.OwnerEmail, models.NotificationTaskOverdue, "Task overdue",
				fmt.Sprintf("%q assigned to %s is overdue", t.Title, t.AssigneeEmail), assoc); err != nil {
				w.log.Warn("overdue notice to owner failed", zap.Int64("task", t.ID), zap.Error(err))
			}
		}
		if err := w.tasks.MarkOverdueNotified(ctx, t.ID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
