package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/Joseda-hg/taskflow/internal/model"
)

const (
	ansiReset = "\x1b[0m"
	ansiRed   = "\x1b[31m"
	ansiGreen = "\x1b[32m"
	ansiDim   = "\x1b[2m"
)

func formatDeadline(deadline time.Time) string {
	if deadline.IsZero() {
		return "n/a"
	}
	return deadline.Local().Format(model.DeadlineLayout)
}

func formatTaskSummary(task model.Task) string {
	return fmt.Sprintf("%s | %s | %s | %s", task.Name, coloredStatus(task.Status), task.Responsibility, formatDeadline(task.Deadline))
}

func statusLabel(status model.Status) string {
	if status == "" {
		return string(model.StatusOpen)
	}
	return string(status)
}

// coloredStatus marks expired tasks red and completed ones green.
func coloredStatus(status model.Status) string {
	label := statusLabel(status)
	switch status {
	case model.StatusExpired:
		return ansiRed + label + ansiReset
	case model.StatusCompleted:
		return ansiGreen + label + ansiReset
	}
	return label
}

func taskDetailLines(task model.Task) []string {
	lines := []string{
		task.Name,
		fmt.Sprintf("ID: %s", task.ID),
		fmt.Sprintf("Status: %s", coloredStatus(task.Status)),
		fmt.Sprintf("Responsible: %s", task.Responsibility),
		fmt.Sprintf("Deadline: %s", formatDeadline(task.Deadline)),
		"",
		task.Description,
	}
	if comment := strings.TrimSpace(task.Comment); comment != "" {
		lines = append(lines, "", "Comment:", comment)
	}
	return lines
}

func userDetailLines(user model.User) []string {
	role := string(user.Role)
	if role == "" {
		role = "n/a"
	}
	return []string{
		user.Username,
		fmt.Sprintf("Email: %s", valueOrNone(user.Email)),
		fmt.Sprintf("Role: %s", role),
		fmt.Sprintf("Status: %s", valueOrNone(user.Status)),
	}
}

func formatActivity(entry model.ActivityEntry) string {
	subject := entry.TaskName
	if subject == "" {
		subject = entry.TaskID
	}
	return fmt.Sprintf("%s | %s %s | %s", entry.CreatedAt.Local().Format("01-02 15:04"), entry.Action, valueOrNone(subject), entry.Outcome)
}

func formatNotification(note model.Notification) string {
	if note.Severity == model.SeverityError {
		return ansiRed + note.Message + ansiReset
	}
	return ansiGreen + note.Message + ansiReset
}

func valueOrNone(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "none"
	}
	return trimmed
}

// nextStatusFilter cycles any -> open -> completed -> expired -> any.
func nextStatusFilter(current string) string {
	order := append([]string{""}, statusNames()...)
	return cycleValue(order, current, 1)
}

func statusNames() []string {
	names := make([]string, 0, len(model.Statuses))
	for _, status := range model.Statuses {
		names = append(names, string(status))
	}
	return names
}

func cycleValue(order []string, current string, delta int) string {
	if len(order) == 0 {
		return ""
	}
	value := strings.TrimSpace(strings.ToLower(current))
	index := 0
	for i, option := range order {
		if strings.ToLower(option) == value {
			index = i
			break
		}
	}
	index = (index + delta + len(order)) % len(order)
	return order[index]
}
