package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

type Status string

const (
	StatusOpen      Status = "open"
	StatusCompleted Status = "completed"
	StatusExpired   Status = "expired"
)

var Statuses = []Status{StatusOpen, StatusCompleted, StatusExpired}

func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusCompleted, StatusExpired:
		return true
	}
	return false
}

type Task struct {
	ID             string    `json:"TaskId,omitempty"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	Responsibility string    `json:"responsibility"`
	Deadline       time.Time `json:"deadline"`
	Status         Status    `json:"status,omitempty"`
	Comment        string    `json:"comment,omitempty"`
}

// TaskInput carries the fields of a task that does not exist yet.
type TaskInput struct {
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	Responsibility string    `json:"responsibility"`
	Deadline       time.Time `json:"deadline"`
	Comment        string    `json:"comment,omitempty"`
}

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleRegular Role = "regular"
)

func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

// RoleFromGroups resolves the role claim. Only the first group counts.
func RoleFromGroups(groups []string) Role {
	if len(groups) > 0 && groups[0] == string(RoleAdmin) {
		return RoleAdmin
	}
	return RoleRegular
}

func ParseRole(value string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(value))) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleRegular, "":
		return RoleRegular, nil
	}
	return "", fmt.Errorf("unknown role %q", value)
}

type User struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     Role   `json:"role,omitempty"`
	Status   string `json:"status"`
}

// UnmarshalJSON accepts the email either at the top level or nested under
// attributes, which is how the directory endpoint reports it.
func (u *User) UnmarshalJSON(data []byte) error {
	var raw struct {
		Username   string            `json:"username"`
		Email      string            `json:"email"`
		Role       Role              `json:"role"`
		Status     string            `json:"status"`
		Attributes map[string]string `json:"attributes"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*u = User{Username: raw.Username, Email: raw.Email, Role: raw.Role, Status: raw.Status}
	if u.Email == "" && raw.Attributes != nil {
		u.Email = raw.Attributes["email"]
	}
	return nil
}

type Invitation struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
	Password string `json:"password"`
}

type FilterField string

const (
	FilterStatus         FilterField = "status"
	FilterName           FilterField = "name"
	FilterResponsibility FilterField = "responsibility"
)

var FilterFields = []FilterField{FilterStatus, FilterName, FilterResponsibility}

func ParseFilterField(value string) (FilterField, error) {
	for _, field := range FilterFields {
		if string(field) == value {
			return field, nil
		}
	}
	return "", fmt.Errorf("unknown filter field %q", value)
}

// Filter maps a field to its match value. A missing key leaves the field
// unconstrained.
type Filter map[FilterField]string

func (f Filter) Clone() Filter {
	out := make(Filter, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// With returns a copy with field set to value, or removed when value is blank.
func (f Filter) With(field FilterField, value string) Filter {
	out := f.Clone()
	value = strings.TrimSpace(value)
	if value == "" {
		delete(out, field)
		return out
	}
	out[field] = value
	return out
}

func (f Filter) String() string {
	if len(f) == 0 {
		return "none"
	}
	parts := make([]string, 0, len(f))
	for k, v := range f {
		parts = append(parts, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(parts)
	return strings.Join(parts, " ")
}

type SortField string

const (
	SortDeadline SortField = "deadline"
	SortName     SortField = "name"
	SortStatus   SortField = "status"
)

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

type Sort struct {
	Field     SortField
	Direction Direction
}

var DefaultSort = Sort{Field: SortDeadline, Direction: Asc}

// Sorts is the fixed set of directives the backend understands.
var Sorts = []Sort{
	{SortDeadline, Asc},
	{SortDeadline, Desc},
	{SortName, Asc},
	{SortName, Desc},
	{SortStatus, Asc},
	{SortStatus, Desc},
}

func (s Sort) String() string {
	return fmt.Sprintf("%s:%s", s.Field, s.Direction)
}

func ParseSort(value string) (Sort, error) {
	for _, candidate := range Sorts {
		if candidate.String() == strings.ToLower(strings.TrimSpace(value)) {
			return candidate, nil
		}
	}
	return Sort{}, fmt.Errorf("unknown sort %q", value)
}

// NextSort cycles through Sorts.
func NextSort(current Sort) Sort {
	for i, candidate := range Sorts {
		if candidate == current {
			return Sorts[(i+1)%len(Sorts)]
		}
	}
	return DefaultSort
}

type Page struct {
	Items     []Task  `json:"items"`
	NextToken *string `json:"next_token"`
}

type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

type Notification struct {
	Message  string
	Severity Severity
	Visible  bool
}

type View struct {
	ID        int64
	Name      string
	Filter    Filter
	Sort      Sort
	CreatedAt time.Time
	UpdatedAt time.Time
}

type ActivityEntry struct {
	ID        int64
	Action    string
	TaskID    string
	TaskName  string
	Outcome   string
	Message   string
	CreatedAt time.Time
}
