package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/01moynul/projecthub-golang/internal/models"
	"github.com/01moynul/projecthub-golang/internal/notify"
	"github.com/01moynul/projecthub-golang/internal/store"
	"github.com/01moynul/projecthub-golang/internal/stream"
	"github.com/01moynul/projecthub-golang/internal/testutil"
)

func setup(t *testing.T) (*DueDateWorker, *store.SQLStore, *models.Project) {
	t.Helper()
	s := store.New(testutil.NewTestDB(t))
	d := notify.NewDispatcher(s, stream.NewRegistry(zap.NewNop()), zap.NewNop())
	w := NewDueDateWorker(s, d, time.Minute, 24*time.Hour, zap.NewNop())

	p := &models.Project{Name: "Apollo", Slug: "apollo", OwnerEmail: "owner@x.com"}
	require.NoError(t, s.CreateProject(context.Background(), p))
	return w, s, p
}

func addTask(t *testing.T, s *store.SQLStore, projectID int64, title string, due time.Time) *models.Task {
	t.Helper()
	task := &models.Task{ProjectID: projectID, Title: title, AssigneeEmail: "bob@x.com", DueDate: &due}
	require.NoError(t, s.CreateTask(context.Background(), task))
	return task
}

func types(t *testing.T, s *store.SQLStore, email string) []models.NotificationType {
	t.Helper()
	items, _, err := s.List(context.Background(), email, store.ListOptions{Limit: 100})
	require.NoError(t, err)
	var out []models.NotificationType
	for _, n := range items {
		out = append(out, n.Type)
	}
	return out
}

func TestRunOnceSendsEachNoticeOnce(t *testing.T) {
	w, s, p := setup(t)
	ctx := context.Background()
	now := time.Now().UTC()

	soon := addTask(t, s, p.ID, "soon", now.Add(3*time.Hour))
	addTask(t, s, p.ID, "later", now.Add(5*24*time.Hour))
	late := addTask(t, s, p.ID, "late", now.Add(-3*time.Hour))

	require.NoError(t, w.RunOnce(ctx))
	require.NoError(t, w.RunOnce(ctx))

	bob := types(t, s, "bob@x.com")
	assert.ElementsMatch(t, []models.NotificationType{
		models.NotificationTaskDueReminder,
		models.NotificationTaskOverdue,
	}, bob)
	assert.Equal(t, []models.NotificationType{models.NotificationTaskOverdue}, types(t, s, "owner@x.com"))

	got, err := s.GetTask(ctx, soon.ID)
	require.NoError(t, err)
	assert.True(t, got.ReminderSent)
	got, err = s.GetTask(ctx, late.ID)
	require.NoError(t, err)
	assert.True(t, got.OverdueNotified)
}

func TestReminderThenOverdueAsTimePasses(t *testing.T) {
	w, s, p := setup(t)
	ctx := context.Background()
	start := time.Now().UTC()
	addTask(t, s, p.ID, "soon", start.Add(time.Hour))

	w.now = func() time.Time { return start }
	require.NoError(t, w.RunOnce(ctx))
	assert.Equal(t, []models.NotificationType{models.NotificationTaskDueReminder}, types(t, s, "bob@x.com"))

	w.now = func() time.Time { return start.Add(2 * time.Hour) }
	require.NoError(t, w.RunOnce(ctx))
	assert.Equal(t, []models.NotificationType{
		models.NotificationTaskOverdue,
		models.NotificationTaskDueReminder,
	}, types(t, s, "bob@x.com"))
}

func TestDoneTasksAreIgnored(t *testing.T) {
	w, s, p := setup(t)
	ctx := context.Background()
	task := addTask(t, s, p.ID, "finished", time.Now().Add(-time.Hour))
	require.NoError(t, s.TransitionTask(ctx, task.ID, []models.TaskStatus{models.TaskTodo}, models.TaskDone))

	require.NoError(t, w.RunOnce(ctx))
	assert.Empty(t, types(t, s, "bob@x.com"))
}

func TestRunStopsOnCancel(t *testing.T) {
	w, _, _ := setup(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}
