package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/jesseduffield/gocui"

	"github.com/Joseda-hg/taskflow/internal/model"
)

type formKind int

const (
	formAddTask formKind = iota
	formEditTask
	formInvite
)

type fieldKind int

const (
	fieldText fieldKind = iota
	fieldSecret
	// fieldChoice cycles through options with space or the arrow keys.
	fieldChoice
	// fieldPick accepts free text and also cycles through options.
	fieldPick
)

type formField struct {
	Label string
	Value string
	Kind  fieldKind
}

type formState struct {
	kind   formKind
	task   model.Task
	fields []formField
	index  int
}

const (
	fieldName = iota
	fieldDescription
	fieldResponsibility
	fieldDeadline
	fieldComment
	fieldStatus
)

const (
	fieldUsername = iota
	fieldEmail
	fieldRole
	fieldPassword
)

func newTaskForm(task *model.Task) *formState {
	fields := []formField{
		{Label: "Name"},
		{Label: "Description"},
		{Label: "Responsible (←→ pick)", Kind: fieldPick},
		{Label: "Deadline (YYYY-MM-DD HH:MM)"},
		{Label: "Comment"},
	}
	if task == nil {
		return &formState{kind: formAddTask, fields: fields}
	}

	fields = append(fields, formField{Label: "Status (space/←→)", Kind: fieldChoice})
	fields[fieldName].Value = task.Name
	fields[fieldDescription].Value = task.Description
	fields[fieldResponsibility].Value = task.Responsibility
	if !task.Deadline.IsZero() {
		fields[fieldDeadline].Value = task.Deadline.Local().Format(model.DeadlineLayout)
	}
	fields[fieldComment].Value = task.Comment
	fields[fieldStatus].Value = statusLabel(task.Status)
	return &formState{kind: formEditTask, task: *task, fields: fields}
}

func newInviteForm() *formState {
	return &formState{kind: formInvite, fields: []formField{
		{Label: "Username"},
		{Label: "Email"},
		{Label: "Role (space/←→)", Value: string(model.RoleRegular), Kind: fieldChoice},
		{Label: "Temporary password", Kind: fieldSecret},
	}}
}

func (f *formState) title() string {
	switch f.kind {
	case formEditTask:
		return "Edit Task"
	case formInvite:
		return "Invite User"
	default:
		return "New Task"
	}
}

func (f *formState) value(index int) string {
	return strings.TrimSpace(f.fields[index].Value)
}

func (f *formState) taskInput() (model.TaskInput, error) {
	deadline, err := model.ParseDeadline(f.value(fieldDeadline), time.Local)
	if err != nil {
		return model.TaskInput{}, err
	}
	return model.TaskInput{
		Name:           f.value(fieldName),
		Description:    f.value(fieldDescription),
		Responsibility: f.value(fieldResponsibility),
		Deadline:       deadline,
		Comment:        f.value(fieldComment),
	}.Normalize(), nil
}

// editedTask applies the form to the task being edited, keeping its ID.
func (f *formState) editedTask() (model.Task, error) {
	input, err := f.taskInput()
	if err != nil {
		return model.Task{}, err
	}
	task := f.task
	task.Name = input.Name
	task.Description = input.Description
	task.Responsibility = input.Responsibility
	task.Deadline = input.Deadline
	task.Comment = input.Comment
	task.Status = model.Status(f.value(fieldStatus))
	return task, nil
}

func (f *formState) invitation() model.Invitation {
	return model.Invitation{
		Username: f.value(fieldUsername),
		Email:    f.value(fieldEmail),
		Role:     model.Role(f.value(fieldRole)),
		Password: f.fields[fieldPassword].Value,
	}
}

func (u *UI) fieldOptions(field *formField) []string {
	if u.form == nil {
		return nil
	}
	switch {
	case u.form.kind == formInvite && field == &u.form.fields[fieldRole]:
		return []string{string(model.RoleRegular), string(model.RoleAdmin)}
	case u.form.kind != formInvite && field == &u.form.fields[fieldResponsibility]:
		if u.directory == nil {
			return nil
		}
		return u.directory.Emails()
	case u.form.kind == formEditTask && field == &u.form.fields[fieldStatus]:
		return statusNames()
	}
	return nil
}

func cycleOption(options []string, current string, delta int) string {
	if len(options) == 0 {
		return current
	}
	for i, option := range options {
		if strings.EqualFold(option, strings.TrimSpace(current)) {
			return options[(i+delta+len(options))%len(options)]
		}
	}
	if delta < 0 {
		return options[len(options)-1]
	}
	return options[0]
}

type formEditor struct {
	ui *UI
}

func (e *formEditor) Edit(view *gocui.View, key gocui.Key, ch rune, mod gocui.Modifier) bool {
	ui := e.ui
	if ui == nil || ui.form == nil || view == nil {
		return false
	}
	field := &ui.form.fields[ui.form.index]

	if field.Kind == fieldChoice {
		switch key {
		case gocui.KeyArrowRight, gocui.KeySpace:
			field.Value = cycleOption(ui.fieldOptions(field), field.Value, 1)
		case gocui.KeyArrowLeft:
			field.Value = cycleOption(ui.fieldOptions(field), field.Value, -1)
		}
		ui.renderForm(view)
		return true
	}

	if field.Kind == fieldPick {
		switch key {
		case gocui.KeyArrowRight:
			field.Value = cycleOption(ui.fieldOptions(field), field.Value, 1)
			ui.renderForm(view)
			return true
		case gocui.KeyArrowLeft:
			field.Value = cycleOption(ui.fieldOptions(field), field.Value, -1)
			ui.renderForm(view)
			return true
		}
	}

	switch key {
	case gocui.KeyBackspace, gocui.KeyBackspace2:
		runes := []rune(field.Value)
		if len(runes) > 0 {
			field.Value = string(runes[:len(runes)-1])
		}
	case gocui.KeySpace:
		field.Value += " "
	case gocui.KeyCtrlU:
		field.Value = ""
	}

	if ch != 0 && ch != '\n' && ch != '\r' && mod == 0 {
		field.Value += string(ch)
	}

	ui.renderForm(view)
	return true
}

func (u *UI) formLines() []string {
	if u.form == nil {
		return nil
	}
	lines := make([]string, 0, len(u.form.fields)+2)
	for index, field := range u.form.fields {
		prefix := "  "
		if index == u.form.index {
			prefix = "> "
		}
		value := field.Value
		if field.Kind == fieldSecret {
			value = strings.Repeat("*", len([]rune(value)))
		}
		lines = append(lines, fmt.Sprintf("%s%s: %s", prefix, field.Label, value))
	}
	lines = append(lines, "", ansiDim+"enter save | tab next field | esc cancel"+ansiReset)
	return lines
}

func (u *UI) renderForm(view *gocui.View) {
	if u.form == nil || view == nil {
		return
	}
	view.Clear()
	fmt.Fprint(view, strings.Join(u.formLines(), "\n"))
	field := u.form.fields[u.form.index]
	label := field.Label + ": "
	cursorX := len([]rune(label)) + len([]rune(field.Value)) + 2
	view.SetCursor(cursorX, u.form.index)
}
