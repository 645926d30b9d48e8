// Package backendtest serves an in-memory stand-in for the task backend so
// client code can be exercised end to end under net/http/httptest.
package backendtest

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Joseda-hg/taskflow/internal/model"
	"github.com/Joseda-hg/taskflow/internal/session"
)

type Request struct {
	Method string
	Path   string
	Query  string
	Body   string
}

type failure struct {
	status  int
	message string
}

type Backend struct {
	*httptest.Server

	mu       sync.Mutex
	tasks    []model.Task
	users    []model.User
	pageSize int
	nextID   int
	requests []Request
	failures map[string]failure
}

func New() *Backend {
	b := &Backend{pageSize: 50, nextID: 1, failures: map[string]failure{}}
	router := chi.NewRouter()
	router.Use(b.record)
	router.Use(b.inject)
	router.Use(authenticate)
	router.Get("/tasks", b.listTasks(false))
	router.With(requireAdmin).Get("/tasks/all", b.listTasks(true))
	router.With(requireAdmin).Post("/tasks", b.createTask)
	router.Put("/tasks", b.updateTask)
	router.With(requireAdmin).Delete("/tasks", b.deleteTask)
	router.With(requireAdmin).Get("/users", b.listUsers)
	router.With(requireAdmin).Post("/users", b.inviteUser)
	b.Server = httptest.NewServer(router)
	return b
}

// Token builds an unsigned id token carrying email and groups.
func Token(email string, groups ...string) string {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
	payload, _ := json.Marshal(map[string]any{
		"sub":            email,
		"email":          email,
		"cognito:groups": groups,
		"exp":            time.Now().Add(time.Hour).Unix(),
	})
	return header + "." + base64.RawURLEncoding.EncodeToString(payload) + ".sig"
}

func (b *Backend) SetPageSize(n int) {
	b.mu.Lock()
	b.pageSize = n
	b.mu.Unlock()
}

func (b *Backend) AddTasks(tasks ...model.Task) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, task := range tasks {
		if task.ID == "" {
			task.ID = strconv.Itoa(b.nextID)
		}
		b.nextID++
		if task.Status == "" {
			task.Status = model.StatusOpen
		}
		b.tasks = append(b.tasks, task)
	}
}

func (b *Backend) AddUsers(users ...model.User) {
	b.mu.Lock()
	b.users = append(b.users, users...)
	b.mu.Unlock()
}

func (b *Backend) Tasks() []model.Task {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]model.Task(nil), b.tasks...)
}

func (b *Backend) Users() []model.User {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]model.User(nil), b.users...)
}

// Fail makes the next request to method+path answer with status and an
// {"error": message} body.
func (b *Backend) Fail(method, path string, status int, message string) {
	b.mu.Lock()
	b.failures[method+" "+path] = failure{status: status, message: message}
	b.mu.Unlock()
}

func (b *Backend) Requests() []Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Request(nil), b.requests...)
}

// Count returns how many requests matched method and path.
func (b *Backend) Count(method, path string) int {
	n := 0
	for _, req := range b.Requests() {
		if req.Method == method && req.Path == path {
			n++
		}
	}
	return n
}

func (b *Backend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body []byte
		if r.Body != nil {
			body, _ = readAll(r)
		}
		b.mu.Lock()
		b.requests = append(b.requests, Request{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Body: string(body)})
		b.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) inject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		b.mu.Lock()
		f, ok := b.failures[key]
		delete(b.failures, key)
		b.mu.Unlock()
		if ok {
			writeError(w, f.status, f.message)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		s, err := session.New(raw)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(withSession(r.Context(), s)))
	})
}

func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !sessionFrom(r.Context()).Role.IsAdmin() {
			writeError(w, http.StatusForbidden, "admin only")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) listTasks(all bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := sessionFrom(r.Context())
		query := r.URL.Query()

		b.mu.Lock()
		matched := make([]model.Task, 0, len(b.tasks))
		for _, task := range b.tasks {
			if !all && task.Responsibility != s.Claims.Email {
				continue
			}
			if !matches(task, query) {
				continue
			}
			matched = append(matched, task)
		}
		pageSize := b.pageSize
		b.mu.Unlock()

		if value := query.Get("sort"); value != "" {
			directive, err := model.ParseSort(value)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			sortTasks(matched, directive)
		}

		start := 0
		if token := query.Get("next_token"); token != "" {
			parsed, err := strconv.Atoi(token)
			if err != nil || parsed < 0 || parsed > len(matched) {
				writeError(w, http.StatusBadRequest, "invalid next_token")
				return
			}
			start = parsed
		}
		end := min(start+pageSize, len(matched))
		page := model.Page{Items: matched[start:end]}
		if end < len(matched) {
			next := strconv.Itoa(end)
			page.NextToken = &next
		}
		writeJSON(w, http.StatusOK, page)
	}
}

func matches(task model.Task, query map[string][]string) bool {
	get := func(key string) string {
		if values := query[key]; len(values) > 0 {
			return values[0]
		}
		return ""
	}
	if status := get("status"); status != "" && string(task.Status) != status {
		return false
	}
	if name := get("name"); name != "" && !strings.Contains(strings.ToLower(task.Name), strings.ToLower(name)) {
		return false
	}
	if owner := get("responsibility"); owner != "" && task.Responsibility != owner {
		return false
	}
	return true
}

func sortTasks(tasks []model.Task, directive model.Sort) {
	less := func(a, b model.Task) bool {
		switch directive.Field {
		case model.SortName:
			return a.Name < b.Name
		case model.SortStatus:
			return a.Status < b.Status
		default:
			return a.Deadline.Before(b.Deadline)
		}
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		if directive.Direction == model.Desc {
			return less(tasks[j], tasks[i])
		}
		return less(tasks[i], tasks[j])
	})
}

func (b *Backend) createTask(w http.ResponseWriter, r *http.Request) {
	var input model.TaskInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	b.mu.Lock()
	task := model.Task{
		ID:             strconv.Itoa(b.nextID),
		Name:           input.Name,
		Description:    input.Description,
		Responsibility: input.Responsibility,
		Deadline:       input.Deadline,
		Status:         model.StatusOpen,
		Comment:        input.Comment,
	}
	b.nextID++
	b.tasks = append(b.tasks, task)
	b.mu.Unlock()
	writeJSON(w, http.StatusCreated, task)
}

func (b *Backend) updateTask(w http.ResponseWriter, r *http.Request) {
	var task model.Task
	if err := json.NewDecoder(r.Body).Decode(&task); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	s := sessionFrom(r.Context())

	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.tasks {
		if b.tasks[i].ID != task.ID {
			continue
		}
		if !s.Role.IsAdmin() && b.tasks[i].Responsibility != s.Claims.Email {
			writeError(w, http.StatusForbidden, "not your task")
			return
		}
		b.tasks[i] = task
		writeJSON(w, http.StatusOK, task)
		return
	}
	writeError(w, http.StatusNotFound, fmt.Sprintf("task %s not found", task.ID))
}

func (b *Backend) deleteTask(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TaskID string `json:"TaskId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.tasks {
		if b.tasks[i].ID == body.TaskID {
			b.tasks = append(b.tasks[:i], b.tasks[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeError(w, http.StatusNotFound, fmt.Sprintf("task %s not found", body.TaskID))
}

func (b *Backend) listUsers(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	type wireUser struct {
		Username   string            `json:"username"`
		Attributes map[string]string `json:"attributes"`
		Status     string            `json:"status"`
	}
	users := make([]wireUser, 0, len(b.users))
	for _, user := range b.users {
		users = append(users, wireUser{Username: user.Username, Attributes: map[string]string{"email": user.Email}, Status: user.Status})
	}
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, users)
}

func (b *Backend) inviteUser(w http.ResponseWriter, r *http.Request) {
	var inv model.Invitation
	if err := json.NewDecoder(r.Body).Decode(&inv); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, user := range b.users {
		if user.Username == inv.Username {
			writeError(w, http.StatusConflict, "user already exists")
			return
		}
	}
	b.users = append(b.users, model.User{Username: inv.Username, Email: inv.Email, Role: inv.Role, Status: "FORCE_CHANGE_PASSWORD"})
	writeJSON(w, http.StatusCreated, map[string]string{"username": inv.Username})
}
