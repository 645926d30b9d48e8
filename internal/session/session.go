// Package session adapts the hosted identity provider: it turns an id token
// into claims and a role that the rest of the client reads but never mutates.
package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Joseda-hg/taskflow/internal/model"
)

var ErrNotAuthenticated = errors.New("not authenticated")

type Claims struct {
	Subject  string
	Email    string
	Username string
	Groups   []string
	Expiry   time.Time
}

type Session struct {
	IDToken string
	Claims  Claims
	Role    model.Role
}

func (s Session) IsAuthenticated(now time.Time) bool {
	if s.IDToken == "" {
		return false
	}
	return s.Claims.Expiry.IsZero() || now.Before(s.Claims.Expiry)
}

// Provider yields the current session. Implementations refresh credentials on
// their own; callers only read the result.
type Provider interface {
	Session(ctx context.Context) (Session, error)
}

// New resolves the role once from the token's group claim.
func New(idToken string) (Session, error) {
	claims, err := ParseIDToken(idToken)
	if err != nil {
		return Session{}, err
	}
	return Session{IDToken: idToken, Claims: claims, Role: model.RoleFromGroups(claims.Groups)}, nil
}

// ParseIDToken decodes the JWT payload. The signature is not checked here; the
// backend verifies every bearer token it receives.
func ParseIDToken(raw string) (Claims, error) {
	parts := strings.Split(strings.TrimSpace(raw), ".")
	if len(parts) != 3 {
		return Claims{}, fmt.Errorf("parse id token: expected 3 segments, got %d", len(parts))
	}
	payload, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return Claims{}, fmt.Errorf("parse id token: decode payload: %w", err)
	}

	var body struct {
		Subject  string   `json:"sub"`
		Email    string   `json:"email"`
		Username string   `json:"cognito:username"`
		Groups   []string `json:"cognito:groups"`
		Expiry   int64    `json:"exp"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return Claims{}, fmt.Errorf("parse id token: %w", err)
	}

	claims := Claims{
		Subject:  body.Subject,
		Email:    body.Email,
		Username: body.Username,
		Groups:   body.Groups,
	}
	if body.Expiry > 0 {
		claims.Expiry = time.Unix(body.Expiry, 0).UTC()
	}
	return claims, nil
}

// StaticProvider serves a fixed id token, e.g. one passed on the command line.
type StaticProvider struct {
	Token string
	Now   func() time.Time
}

func (p StaticProvider) Session(_ context.Context) (Session, error) {
	if strings.TrimSpace(p.Token) == "" {
		return Session{}, ErrNotAuthenticated
	}
	s, err := New(p.Token)
	if err != nil {
		return Session{}, err
	}
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	if !s.IsAuthenticated(now()) {
		return Session{}, fmt.Errorf("%w: id token expired at %s", ErrNotAuthenticated, s.Claims.Expiry.Format(time.RFC3339))
	}
	return s, nil
}
