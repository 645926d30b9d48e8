// Package dispatch issues task mutations, reports their outcome and asks the
// list to reload afterwards.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Joseda-hg/taskflow/internal/api"
	"github.com/Joseda-hg/taskflow/internal/model"
)

var ErrAccessDenied = errors.New("access denied")

const (
	ActionAdd      = "add"
	ActionUpdate   = "update"
	ActionComplete = "complete"
	ActionDelete   = "delete"

	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
	OutcomeDenied  = "denied"
)

const (
	adminOnlyMessage = "Access Denied. Admins Only."
	notOwnerMessage  = "Access Denied. Task belongs to another user."
)

type Mutator interface {
	CreateTask(ctx context.Context, input model.TaskInput) (model.Task, error)
	UpdateTask(ctx context.Context, task model.Task) error
	DeleteTask(ctx context.Context, taskID string) error
}

type Refresher interface {
	Refresh()
}

type Notifier interface {
	Success(message string)
	Error(message string)
}

// Recorder keeps a local trail of mutations.
type Recorder interface {
	AddActivity(ctx context.Context, entry model.ActivityEntry) (model.ActivityEntry, error)
}

type Dispatcher struct {
	mutator   Mutator
	refresher Refresher
	notes     Notifier
	role      model.Role
	email     string
	recorder  Recorder
	logger    *zap.Logger
	now       func() time.Time
}

type Option func(*Dispatcher)

func WithRecorder(recorder Recorder) Option {
	return func(d *Dispatcher) { d.recorder = recorder }
}

func WithLogger(logger *zap.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// New builds a dispatcher acting for a caller with role and email.
func New(mutator Mutator, refresher Refresher, notes Notifier, role model.Role, email string, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		mutator:   mutator,
		refresher: refresher,
		notes:     notes,
		role:      role,
		email:     email,
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.Named("dispatch")
	return d
}

// CanComplete reports whether the caller may mark task completed.
func (d *Dispatcher) CanComplete(task model.Task) bool {
	if d.role.IsAdmin() {
		return true
	}
	return d.email != "" && strings.EqualFold(strings.TrimSpace(task.Responsibility), d.email)
}

func (d *Dispatcher) Add(ctx context.Context, input model.TaskInput) (model.Task, error) {
	input = input.Normalize()
	entry := model.ActivityEntry{Action: ActionAdd, TaskName: input.Name}
	if !d.role.IsAdmin() {
		return model.Task{}, d.deny(ctx, entry, adminOnlyMessage)
	}
	if err := input.Validate(d.now()); err != nil {
		return model.Task{}, d.fail(ctx, entry, err, err.Error())
	}

	created, err := d.mutator.CreateTask(ctx, input)
	if err != nil {
		return model.Task{}, d.fail(ctx, entry, err, api.MessageOf(err, "failed to add task"))
	}
	entry.TaskID = created.ID
	d.succeed(ctx, entry, "Task added successfully")
	return created, nil
}

func (d *Dispatcher) Update(ctx context.Context, task model.Task) error {
	entry := model.ActivityEntry{Action: ActionUpdate, TaskID: task.ID, TaskName: task.Name}
	if !d.role.IsAdmin() {
		return d.deny(ctx, entry, adminOnlyMessage)
	}
	if err := task.Validate(); err != nil {
		return d.fail(ctx, entry, err, err.Error())
	}
	if err := d.mutator.UpdateTask(ctx, task); err != nil {
		return d.fail(ctx, entry, err, api.MessageOf(err, "failed to update task"))
	}
	d.succeed(ctx, entry, "Task updated successfully")
	return nil
}

// Complete moves task to completed. The responsible party may do this as
// well as an admin.
func (d *Dispatcher) Complete(ctx context.Context, task model.Task) error {
	entry := model.ActivityEntry{Action: ActionComplete, TaskID: task.ID, TaskName: task.Name}
	if !d.CanComplete(task) {
		return d.deny(ctx, entry, notOwnerMessage)
	}
	task.Status = model.StatusCompleted
	if err := task.Validate(); err != nil {
		return d.fail(ctx, entry, err, err.Error())
	}
	if err := d.mutator.UpdateTask(ctx, task); err != nil {
		return d.fail(ctx, entry, err, api.MessageOf(err, "failed to complete task"))
	}
	d.succeed(ctx, entry, "Task completed successfully")
	return nil
}

func (d *Dispatcher) Remove(ctx context.Context, taskID string) error {
	taskID = strings.TrimSpace(taskID)
	entry := model.ActivityEntry{Action: ActionDelete, TaskID: taskID}
	if !d.role.IsAdmin() {
		return d.deny(ctx, entry, adminOnlyMessage)
	}
	if taskID == "" {
		err := fmt.Errorf("%w: task id is required", model.ErrInvalid)
		return d.fail(ctx, entry, err, err.Error())
	}
	if err := d.mutator.DeleteTask(ctx, taskID); err != nil {
		return d.fail(ctx, entry, err, api.MessageOf(err, "failed to delete task"))
	}
	d.succeed(ctx, entry, "Task deleted successfully")
	return nil
}

func (d *Dispatcher) succeed(ctx context.Context, entry model.ActivityEntry, message string) {
	entry.Outcome = OutcomeSuccess
	entry.Message = message
	d.record(ctx, entry)
	d.logger.Info("task mutation", zap.String("action", entry.Action), zap.String("task_id", entry.TaskID))
	d.notes.Success(message)
	if d.refresher != nil {
		d.refresher.Refresh()
	}
}

func (d *Dispatcher) fail(ctx context.Context, entry model.ActivityEntry, err error, message string) error {
	entry.Outcome = OutcomeFailed
	entry.Message = message
	d.record(ctx, entry)
	d.logger.Warn("task mutation failed", zap.String("action", entry.Action), zap.String("task_id", entry.TaskID), zap.Error(err))
	d.notes.Error(message)
	return fmt.Errorf("%s task: %w", entry.Action, err)
}

func (d *Dispatcher) deny(ctx context.Context, entry model.ActivityEntry, message string) error {
	entry.Outcome = OutcomeDenied
	entry.Message = message
	d.record(ctx, entry)
	d.notes.Error(message)
	return fmt.Errorf("%s task: %w", entry.Action, ErrAccessDenied)
}

func (d *Dispatcher) record(ctx context.Context, entry model.ActivityEntry) {
	if d.recorder == nil {
		return
	}
	if _, err := d.recorder.AddActivity(ctx, entry); err != nil {
		d.logger.Warn("record activity", zap.Error(err))
	}
}
