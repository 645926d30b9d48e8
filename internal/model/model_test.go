package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestRoleFromGroupsUsesFirstElementOnly(t *testing.T) {
	cases := []struct {
		groups []string
		want   Role
	}{
		{nil, RoleRegular},
		{[]string{}, RoleRegular},
		{[]string{"admin"}, RoleAdmin},
		{[]string{"regular", "admin"}, RoleRegular},
		{[]string{"Admin"}, RoleRegular},
	}
	for _, tc := range cases {
		if got := RoleFromGroups(tc.groups); got != tc.want {
			t.Fatalf("RoleFromGroups(%v) = %q, want %q", tc.groups, got, tc.want)
		}
	}
}

func TestFilterWithRemovesBlankValues(t *testing.T) {
	base := Filter{FilterStatus: "open"}
	next := base.With(FilterName, "report")
	if len(base) != 1 {
		t.Fatalf("expected original filter to stay untouched, got %v", base)
	}
	if next[FilterName] != "report" || next[FilterStatus] != "open" {
		t.Fatalf("unexpected filter %v", next)
	}
	cleared := next.With(FilterStatus, "  ")
	if _, ok := cleared[FilterStatus]; ok {
		t.Fatalf("expected status to be removed, got %v", cleared)
	}
	if cleared.String() != "name=report" {
		t.Fatalf("unexpected string %q", cleared.String())
	}
}

func TestSortCycleAndParse(t *testing.T) {
	seen := map[string]struct{}{}
	current := DefaultSort
	for range Sorts {
		seen[current.String()] = struct{}{}
		current = NextSort(current)
	}
	if len(seen) != len(Sorts) {
		t.Fatalf("expected to visit %d sorts, visited %d", len(Sorts), len(seen))
	}
	if current != DefaultSort {
		t.Fatalf("expected cycle to wrap to default, got %s", current)
	}

	parsed, err := ParseSort("name:desc")
	if err != nil {
		t.Fatalf("parse sort: %v", err)
	}
	if parsed != (Sort{SortName, Desc}) {
		t.Fatalf("unexpected sort %v", parsed)
	}
	if _, err := ParseSort("priority:asc"); err == nil {
		t.Fatalf("expected unknown sort to fail")
	}
}

func TestUserDecodesNestedEmail(t *testing.T) {
	var users []User
	payload := `[{"username":"ana","attributes":{"email":"ana@example.com"},"status":"CONFIRMED"},
		{"username":"bo","email":"bo@example.com","role":"admin","status":"FORCE_CHANGE_PASSWORD"}]`
	if err := json.Unmarshal([]byte(payload), &users); err != nil {
		t.Fatalf("decode users: %v", err)
	}
	if users[0].Email != "ana@example.com" || users[0].Status != "CONFIRMED" {
		t.Fatalf("unexpected first user %+v", users[0])
	}
	if users[1].Email != "bo@example.com" || users[1].Role != RoleAdmin {
		t.Fatalf("unexpected second user %+v", users[1])
	}
}

func TestTaskInputValidate(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	valid := TaskInput{
		Name:           "Write report",
		Description:    "Quarterly numbers",
		Responsibility: "ana@example.com",
		Deadline:       now.Add(time.Hour),
	}
	if err := valid.Validate(now); err != nil {
		t.Fatalf("expected valid input, got %v", err)
	}

	past := valid
	past.Deadline = now.Add(-2 * time.Minute)
	if err := past.Validate(now); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected past deadline to be rejected, got %v", err)
	}

	missing := valid
	missing.Responsibility = " "
	if err := missing.Validate(now); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected missing responsibility to be rejected, got %v", err)
	}

	local := time.FixedZone("CET", 3600)
	normalized := TaskInput{Name: " a ", Deadline: time.Date(2025, 1, 2, 10, 0, 0, 0, local)}.Normalize()
	if normalized.Name != "a" || normalized.Deadline.Location() != time.UTC || normalized.Deadline.Hour() != 9 {
		t.Fatalf("unexpected normalized input %+v", normalized)
	}
}

func TestInvitationValidate(t *testing.T) {
	inv := Invitation{Username: "ana", Email: "ana@example.com", Role: RoleRegular, Password: "Temp#1234"}
	if err := inv.Validate(); err != nil {
		t.Fatalf("expected valid invitation, got %v", err)
	}
	inv.Email = "not-an-email"
	if err := inv.Validate(); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected invalid email to be rejected, got %v", err)
	}
	inv.Email = "ana@example.com"
	inv.Role = "owner"
	if err := inv.Validate(); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected unknown role to be rejected, got %v", err)
	}
}

func TestParseDeadline(t *testing.T) {
	loc := time.UTC
	cases := []struct {
		value string
		want  time.Time
	}{
		{"2026-05-01 09:30", time.Date(2026, 5, 1, 9, 30, 0, 0, loc)},
		{"2026-05-01", time.Date(2026, 5, 1, 23, 59, 0, 0, loc)},
		{"2026-05-01T09:30:00Z", time.Date(2026, 5, 1, 9, 30, 0, 0, loc)},
	}
	for _, tc := range cases {
		got, err := ParseDeadline(tc.value, loc)
		if err != nil {
			t.Fatalf("parse %q: %v", tc.value, err)
		}
		if !got.Equal(tc.want) {
			t.Fatalf("parse %q: expected %s, got %s", tc.value, tc.want, got)
		}
	}

	for _, value := range []string{"", "tomorrow", "01/05/2026"} {
		if _, err := ParseDeadline(value, loc); !errors.Is(err, ErrInvalid) {
			t.Fatalf("parse %q: expected ErrInvalid, got %v", value, err)
		}
	}
}
