package model

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
)

var ErrInvalid = errors.New("invalid input")

// Normalize trims text fields and converts the deadline to UTC.
func (in TaskInput) Normalize() TaskInput {
	return TaskInput{
		Name:           strings.TrimSpace(in.Name),
		Description:    strings.TrimSpace(in.Description),
		Responsibility: strings.TrimSpace(in.Responsibility),
		Deadline:       in.Deadline.UTC(),
		Comment:        strings.TrimSpace(in.Comment),
	}
}

// Validate checks a new task against the add-flow rules. The deadline may not
// be earlier than now.
func (in TaskInput) Validate(now time.Time) error {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalid)
	case strings.TrimSpace(in.Description) == "":
		return fmt.Errorf("%w: description is required", ErrInvalid)
	case strings.TrimSpace(in.Responsibility) == "":
		return fmt.Errorf("%w: responsibility is required", ErrInvalid)
	case in.Deadline.IsZero():
		return fmt.Errorf("%w: deadline is required", ErrInvalid)
	case in.Deadline.Before(now.Truncate(time.Minute)):
		return fmt.Errorf("%w: deadline is in the past", ErrInvalid)
	}
	return nil
}

func (t Task) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("%w: task id is required", ErrInvalid)
	}
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if t.Status != "" && !t.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalid, t.Status)
	}
	return nil
}

func (in Invitation) Validate() error {
	switch {
	case strings.TrimSpace(in.Username) == "":
		return fmt.Errorf("%w: username is required", ErrInvalid)
	case strings.TrimSpace(in.Email) == "":
		return fmt.Errorf("%w: email is required", ErrInvalid)
	case strings.TrimSpace(in.Password) == "":
		return fmt.Errorf("%w: password is required", ErrInvalid)
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return fmt.Errorf("%w: email %q is not valid", ErrInvalid, in.Email)
	}
	if in.Role != RoleAdmin && in.Role != RoleRegular {
		return fmt.Errorf("%w: unknown role %q", ErrInvalid, in.Role)
	}
	return nil
}

const (
	DeadlineLayout = "2006-01-02 15:04"
	DateLayout     = "2006-01-02"
)

// ParseDeadline accepts a date and time, a bare date (the end of that day) or
// RFC 3339.
func ParseDeadline(value string, loc *time.Location) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, fmt.Errorf("%w: deadline is required", ErrInvalid)
	}
	if parsed, err := time.ParseInLocation(DeadlineLayout, trimmed, loc); err == nil {
		return parsed, nil
	}
	if parsed, err := time.ParseInLocation(DateLayout, trimmed, loc); err == nil {
		return parsed.Add(23*time.Hour + 59*time.Minute), nil
	}
	if parsed, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return parsed, nil
	}
	return time.Time{}, fmt.Errorf("%w: invalid deadline %q", ErrInvalid, trimmed)
}
