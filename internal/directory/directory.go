// Package directory lists and invites users. Every operation is limited to
// admins and is refused locally for anyone else.
package directory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/Joseda-hg/taskflow/internal/api"
	"github.com/Joseda-hg/taskflow/internal/model"
)

var ErrAccessDenied = errors.New("access denied")

// DeniedMessage is the only thing a non-admin sees of the directory.
const DeniedMessage = "Access Denied. Admins Only."

const (
	fetchFailedMessage  = "Failed to fetch users"
	inviteFailedMessage = "failed to add user"
	invitedMessage      = "User invited successfully"
)

type Client interface {
	ListUsers(ctx context.Context) ([]model.User, error)
	InviteUser(ctx context.Context, inv model.Invitation) error
}

type Notifier interface {
	Success(message string)
	Error(message string)
}

type Directory struct {
	client Client
	notes  Notifier
	role   model.Role
	logger *zap.Logger

	mu    sync.Mutex
	users []model.User
}

func New(client Client, notes Notifier, role model.Role, logger *zap.Logger) *Directory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Directory{client: client, notes: notes, role: role, logger: logger.Named("directory")}
}

func (d *Directory) Allowed() bool {
	return d.role.IsAdmin()
}

// List fetches the directory and keeps it for Users and Emails.
func (d *Directory) List(ctx context.Context) ([]model.User, error) {
	if !d.Allowed() {
		return nil, ErrAccessDenied
	}
	users, err := d.client.ListUsers(ctx)
	if err != nil {
		d.logger.Warn("list users failed", zap.Error(err))
		d.notes.Error(api.MessageOf(err, fetchFailedMessage))
		return nil, fmt.Errorf("list users: %w", err)
	}
	d.mu.Lock()
	d.users = append([]model.User(nil), users...)
	d.mu.Unlock()
	return users, nil
}

// Invite creates a user and reloads the listing whatever the outcome.
func (d *Directory) Invite(ctx context.Context, inv model.Invitation) error {
	if !d.Allowed() {
		d.notes.Error(DeniedMessage)
		return ErrAccessDenied
	}
	inv.Username = strings.TrimSpace(inv.Username)
	inv.Email = strings.TrimSpace(inv.Email)
	if err := inv.Validate(); err != nil {
		d.notes.Error(err.Error())
		return err
	}

	err := d.client.InviteUser(ctx, inv)
	if err != nil {
		d.logger.Warn("invite user failed", zap.String("username", inv.Username), zap.Error(err))
		d.notes.Error(api.MessageOf(err, inviteFailedMessage))
	} else {
		d.logger.Info("invited user", zap.String("username", inv.Username))
		d.notes.Success(invitedMessage)
	}
	// List reports its own failure.
	_, _ = d.List(ctx)
	if err != nil {
		return fmt.Errorf("invite user: %w", err)
	}
	return nil
}

func (d *Directory) Users() []model.User {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]model.User(nil), d.users...)
}

// Emails returns the distinct addresses of the last listing, sorted, for
// picking a responsible party.
func (d *Directory) Emails() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	seen := make(map[string]struct{}, len(d.users))
	out := make([]string, 0, len(d.users))
	for _, user := range d.users {
		if user.Email == "" {
			continue
		}
		if _, ok := seen[user.Email]; ok {
			continue
		}
		seen[user.Email] = struct{}{}
		out = append(out, user.Email)
	}
	sort.Strings(out)
	return out
}
