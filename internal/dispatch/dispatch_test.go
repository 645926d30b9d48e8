package dispatch

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Joseda-hg/taskflow/internal/api"
	"github.com/Joseda-hg/taskflow/internal/backendtest"
	"github.com/Joseda-hg/taskflow/internal/list"
	"github.com/Joseda-hg/taskflow/internal/model"
	"github.com/Joseda-hg/taskflow/internal/session"
)

const (
	adminEmail = "admin@example.com"
	userEmail  = "ana@example.com"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	mu       sync.Mutex
	success  []string
	failures []string
}

func (n *recordingNotifier) Success(message string) {
	n.mu.Lock()
	n.success = append(n.success, message)
	n.mu.Unlock()
}

func (n *recordingNotifier) Error(message string) {
	n.mu.Lock()
	n.failures = append(n.failures, message)
	n.mu.Unlock()
}

type memoryRecorder struct {
	entries []model.ActivityEntry
	err     error
}

func (r *memoryRecorder) AddActivity(_ context.Context, entry model.ActivityEntry) (model.ActivityEntry, error) {
	if r.err != nil {
		return model.ActivityEntry{}, r.err
	}
	r.entries = append(r.entries, entry)
	return entry, nil
}

type fixture struct {
	backend    *backendtest.Backend
	client     *api.Client
	list       *list.Coordinator
	notes      *recordingNotifier
	dispatcher *Dispatcher
}

func newFixture(t *testing.T, role model.Role, email string, opts ...Option) *fixture {
	t.Helper()
	backend := backendtest.New()
	t.Cleanup(backend.Close)

	groups := []string{string(role)}
	client := api.NewClient(backend.URL, backend.Client(), session.StaticProvider{Token: backendtest.Token(email, groups...)}, nil)
	notes := &recordingNotifier{}
	coordinator := list.New(client, notes)
	t.Cleanup(coordinator.Close)

	opts = append([]Option{WithClock(func() time.Time { return now })}, opts...)
	return &fixture{
		backend:    backend,
		client:     client,
		list:       coordinator,
		notes:      notes,
		dispatcher: New(client, coordinator, notes, role, email, opts...),
	}
}

func validInput() model.TaskInput {
	return model.TaskInput{
		Name:           " Prepare demo ",
		Description:    "Slides and script",
		Responsibility: userEmail,
		Deadline:       now.Add(48 * time.Hour),
	}
}

func TestAddRefreshesFromPageOne(t *testing.T) {
	f := newFixture(t, model.RoleAdmin, adminEmail)
	f.backend.SetPageSize(2)
	f.backend.AddTasks(
		model.Task{Name: "a", Responsibility: userEmail, Deadline: now.Add(time.Hour)},
		model.Task{Name: "b", Responsibility: userEmail, Deadline: now.Add(2 * time.Hour)},
		model.Task{Name: "c", Responsibility: userEmail, Deadline: now.Add(3 * time.Hour)},
	)
	f.list.LoadInitial(model.RoleAdmin)
	f.list.Wait()
	require.NoError(t, f.list.LoadMore())
	f.list.Wait()
	require.Len(t, f.list.Snapshot().Tasks, 3)

	created, err := f.dispatcher.Add(context.Background(), validInput())
	require.NoError(t, err)
	assert.Equal(t, "Prepare demo", created.Name)
	f.list.Wait()

	state := f.list.Snapshot()
	assert.Len(t, state.Tasks, 2)
	assert.Equal(t, []string{"Task added successfully"}, f.notes.success)

	requests := f.backend.Requests()
	last := requests[len(requests)-1]
	assert.Equal(t, "/tasks/all", last.Path)
	assert.NotContains(t, last.Query, "next_token")
}

func TestAddRejectsPastDeadlineWithoutNetwork(t *testing.T) {
	f := newFixture(t, model.RoleAdmin, adminEmail)
	input := validInput()
	input.Deadline = now.Add(-2 * time.Minute)

	_, err := f.dispatcher.Add(context.Background(), input)
	require.ErrorIs(t, err, model.ErrInvalid)
	assert.Zero(t, f.backend.Count(http.MethodPost, "/tasks"))
	require.Len(t, f.notes.failures, 1)
	assert.Contains(t, f.notes.failures[0], "deadline")
}

func TestAddAcceptsDeadlineWithinCurrentMinute(t *testing.T) {
	f := newFixture(t, model.RoleAdmin, adminEmail)
	input := validInput()
	input.Deadline = now.Truncate(time.Minute)

	_, err := f.dispatcher.Add(context.Background(), input)
	require.NoError(t, err)
	f.list.Wait()
}

func TestRegularUserCannotMutate(t *testing.T) {
	f := newFixture(t, model.RoleRegular, userEmail)
	ctx := context.Background()

	_, err := f.dispatcher.Add(ctx, validInput())
	assert.ErrorIs(t, err, ErrAccessDenied)
	assert.ErrorIs(t, f.dispatcher.Update(ctx, model.Task{ID: "1", Name: "x"}), ErrAccessDenied)
	assert.ErrorIs(t, f.dispatcher.Remove(ctx, "1"), ErrAccessDenied)

	assert.Empty(t, f.backend.Requests())
	assert.Equal(t, []string{adminOnlyMessage, adminOnlyMessage, adminOnlyMessage}, f.notes.failures)
}

func TestCompleteByResponsibleParty(t *testing.T) {
	f := newFixture(t, model.RoleRegular, userEmail)
	f.backend.AddTasks(model.Task{ID: "7", Name: "Mine", Responsibility: userEmail, Deadline: now.Add(time.Hour)})

	task := f.backend.Tasks()[0]
	require.True(t, f.dispatcher.CanComplete(task))
	require.NoError(t, f.dispatcher.Complete(context.Background(), task))
	f.list.Wait()

	assert.Equal(t, model.StatusCompleted, f.backend.Tasks()[0].Status)
	assert.Equal(t, []string{"Task completed successfully"}, f.notes.success)
	assert.Equal(t, 1, f.backend.Count(http.MethodGet, "/tasks"))
}

func TestCompleteRejectedForOtherUsers(t *testing.T) {
	f := newFixture(t, model.RoleRegular, userEmail)
	task := model.Task{ID: "8", Name: "Theirs", Responsibility: "ben@example.com", Status: model.StatusOpen}

	err := f.dispatcher.Complete(context.Background(), task)
	require.ErrorIs(t, err, ErrAccessDenied)
	assert.Zero(t, f.backend.Count(http.MethodPut, "/tasks"))
	assert.Equal(t, []string{notOwnerMessage}, f.notes.failures)
}

func TestUpdateRequiresID(t *testing.T) {
	f := newFixture(t, model.RoleAdmin, adminEmail)
	err := f.dispatcher.Update(context.Background(), model.Task{Name: "no id"})
	require.ErrorIs(t, err, model.ErrInvalid)
	assert.Empty(t, f.backend.Requests())
}

func TestRemoveFailureMessages(t *testing.T) {
	f := newFixture(t, model.RoleAdmin, adminEmail)
	ctx := context.Background()

	err := f.dispatcher.Remove(ctx, "404")
	var apiErr *api.APIError
	require.ErrorAs(t, err, &apiErr)

	f.backend.Fail(http.MethodDelete, "/tasks", http.StatusForbidden, "token revoked")
	require.Error(t, f.dispatcher.Remove(ctx, "1"))

	assert.Equal(t, []string{"task 404 not found", "failed to delete task"}, f.notes.failures)
	assert.Empty(t, f.notes.success)
	assert.Zero(t, f.backend.Count(http.MethodGet, "/tasks/all"))
}

func TestUpdateSuccess(t *testing.T) {
	f := newFixture(t, model.RoleAdmin, adminEmail)
	f.backend.AddTasks(model.Task{ID: "3", Name: "Old", Responsibility: userEmail, Deadline: now.Add(time.Hour)})

	task := f.backend.Tasks()[0]
	task.Name = "New"
	task.Comment = "renamed"
	require.NoError(t, f.dispatcher.Update(context.Background(), task))
	f.list.Wait()

	assert.Equal(t, "New", f.backend.Tasks()[0].Name)
	assert.Equal(t, []string{"Task updated successfully"}, f.notes.success)
}

func TestActivityRecorded(t *testing.T) {
	recorder := &memoryRecorder{}
	f := newFixture(t, model.RoleAdmin, adminEmail, WithRecorder(recorder))
	ctx := context.Background()

	created, err := f.dispatcher.Add(ctx, validInput())
	require.NoError(t, err)
	require.Error(t, f.dispatcher.Remove(ctx, "missing"))
	f.list.Wait()

	require.Len(t, recorder.entries, 2)
	assert.Equal(t, ActionAdd, recorder.entries[0].Action)
	assert.Equal(t, created.ID, recorder.entries[0].TaskID)
	assert.Equal(t, OutcomeSuccess, recorder.entries[0].Outcome)
	assert.Equal(t, ActionDelete, recorder.entries[1].Action)
	assert.Equal(t, OutcomeFailed, recorder.entries[1].Outcome)
	assert.True(t, strings.Contains(recorder.entries[1].Message, "missing"))
}

func TestRecorderFailureIsNotSurfaced(t *testing.T) {
	recorder := &memoryRecorder{err: errors.New("disk full")}
	f := newFixture(t, model.RoleAdmin, adminEmail, WithRecorder(recorder))

	_, err := f.dispatcher.Add(context.Background(), validInput())
	require.NoError(t, err)
	f.list.Wait()
	assert.Empty(t, f.notes.failures)
}
