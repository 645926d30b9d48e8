package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Joseda-hg/taskflow/internal/backendtest"
	"github.com/Joseda-hg/taskflow/internal/model"
	"github.com/Joseda-hg/taskflow/internal/session"
)

const adminEmail = "admin@example.com"

func newTestClient(t *testing.T, token string) (*Client, *backendtest.Backend) {
	t.Helper()
	backend := backendtest.New()
	t.Cleanup(backend.Close)
	return NewClient(backend.URL+"/", backend.Client(), session.StaticProvider{Token: token}, nil), backend
}

func TestListTasksSendsOnlySetQueryValues(t *testing.T) {
	client, backend := newTestClient(t, backendtest.Token(adminEmail, "admin"))
	backend.AddTasks(
		model.Task{Name: "Write report", Responsibility: "a@example.com", Deadline: time.Now().Add(time.Hour)},
		model.Task{Name: "Review report", Responsibility: "b@example.com", Deadline: time.Now().Add(2 * time.Hour)},
	)

	page, err := client.ListTasks(context.Background(), ScopeAll, Query{
		Filter: model.Filter{model.FilterName: "write", model.FilterStatus: "  "},
		Sort:   model.DefaultSort,
	})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Write report", page.Items[0].Name)
	assert.Nil(t, page.NextToken)

	requests := backend.Requests()
	require.Len(t, requests, 1)
	values, err := url.ParseQuery(requests[0].Query)
	require.NoError(t, err)
	assert.Equal(t, url.Values{"name": {"write"}, "sort": {"deadline:asc"}}, values)
}

func TestListTasksFollowsCursor(t *testing.T) {
	client, backend := newTestClient(t, backendtest.Token(adminEmail, "admin"))
	backend.SetPageSize(2)
	for i := 0; i < 3; i++ {
		backend.AddTasks(model.Task{Name: "task", Responsibility: adminEmail, Deadline: time.Now().Add(time.Duration(i+1) * time.Hour)})
	}

	first, err := client.ListTasks(context.Background(), ScopeOwn, Query{})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	require.NotNil(t, first.NextToken)

	second, err := client.ListTasks(context.Background(), ScopeOwn, Query{NextToken: first.NextToken})
	require.NoError(t, err)
	assert.Len(t, second.Items, 1)
	assert.Nil(t, second.NextToken)
}

func TestDecodePageAcceptsBareArray(t *testing.T) {
	page, err := decodePage([]byte(`[{"TaskId":"1","name":"a","status":"open"}]`))
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "1", page.Items[0].ID)
	assert.Nil(t, page.NextToken)

	page, err = decodePage([]byte(`{"items":[],"next_token":""}`))
	require.NoError(t, err)
	assert.Nil(t, page.NextToken)

	_, err = decodePage([]byte(`{"items":`))
	assert.Error(t, err)
	_, err = decodePage([]byte(" "))
	assert.Error(t, err)
}

func TestRequestHeaders(t *testing.T) {
	token := backendtest.Token(adminEmail, "admin")
	var got http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		_, _ = w.Write([]byte(`{"items":[]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client(), session.StaticProvider{Token: token}, nil)
	_, err := client.ListTasks(context.Background(), ScopeOwn, Query{})
	require.NoError(t, err)
	assert.Equal(t, "Bearer "+token, got.Get("Authorization"))
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.NotEmpty(t, got.Get("X-Request-Id"))
}

func TestServerMessageSurfaces(t *testing.T) {
	client, backend := newTestClient(t, backendtest.Token(adminEmail, "admin"))
	backend.Fail(http.MethodPost, "/tasks", http.StatusBadRequest, "deadline must be in the future")

	_, err := client.CreateTask(context.Background(), model.TaskInput{Name: "x"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "deadline must be in the future", MessageOf(err, "failed to add task"))
}

func TestUnauthorizedUsesFallback(t *testing.T) {
	client, _ := newTestClient(t, backendtest.Token("someone@example.com", "regular"))

	_, err := client.ListTasks(context.Background(), ScopeAll, Query{})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.Unauthorized())
	assert.Equal(t, "failed to fetch tasks", MessageOf(err, "failed to fetch tasks"))
}

func TestMessageOfTransportError(t *testing.T) {
	err := errors.New("dial tcp: connection refused")
	assert.Equal(t, "failed to delete task", MessageOf(err, "failed to delete task"))
}

func TestMissingSessionFailsBeforeNetwork(t *testing.T) {
	client, backend := newTestClient(t, "")
	_, err := client.ListUsers(context.Background())
	require.ErrorIs(t, err, session.ErrNotAuthenticated)
	assert.Empty(t, backend.Requests())
}

func TestCreateUpdateDelete(t *testing.T) {
	client, backend := newTestClient(t, backendtest.Token(adminEmail, "admin"))
	ctx := context.Background()

	created, err := client.CreateTask(ctx, model.TaskInput{
		Name:           "Ship release",
		Description:    "Tag and publish",
		Responsibility: "dev@example.com",
		Deadline:       time.Now().Add(24 * time.Hour).UTC(),
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, model.StatusOpen, created.Status)

	created.Status = model.StatusCompleted
	require.NoError(t, client.UpdateTask(ctx, created))
	assert.Equal(t, model.StatusCompleted, backend.Tasks()[0].Status)

	require.NoError(t, client.DeleteTask(ctx, created.ID))
	assert.Empty(t, backend.Tasks())

	requests := backend.Requests()
	last := requests[len(requests)-1]
	assert.Equal(t, http.MethodDelete, last.Method)
	assert.JSONEq(t, `{"TaskId":"`+created.ID+`"}`, last.Body)
}

func TestUsersListAndInvite(t *testing.T) {
	client, backend := newTestClient(t, backendtest.Token(adminEmail, "admin"))
	backend.AddUsers(model.User{Username: "ana", Email: "ana@example.com", Status: "CONFIRMED"})
	ctx := context.Background()

	require.NoError(t, client.InviteUser(ctx, model.Invitation{Username: "ben", Email: "ben@example.com", Role: model.RoleRegular, Password: "Secret123!"}))

	users, err := client.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "ana@example.com", users[0].Email)
	assert.Equal(t, "ben@example.com", users[1].Email)

	err = client.InviteUser(ctx, model.Invitation{Username: "ben", Email: "ben@example.com", Role: model.RoleRegular, Password: "x"})
	assert.Equal(t, "user already exists", MessageOf(err, "failed to add user"))
}

func TestMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"username":`))
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client(), session.StaticProvider{Token: backendtest.Token(adminEmail, "admin")}, nil)
	_, err := client.ListUsers(context.Background())
	require.Error(t, err)
	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}
