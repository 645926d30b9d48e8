package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	goerrors "github.com/go-errors/errors"
	"github.com/jesseduffield/gocui"
	"go.uber.org/zap"

	"github.com/Joseda-hg/taskflow/internal/api"
	"github.com/Joseda-hg/taskflow/internal/db"
	"github.com/Joseda-hg/taskflow/internal/directory"
	"github.com/Joseda-hg/taskflow/internal/dispatch"
	"github.com/Joseda-hg/taskflow/internal/list"
	"github.com/Joseda-hg/taskflow/internal/model"
	"github.com/Joseda-hg/taskflow/internal/notify"
	"github.com/Joseda-hg/taskflow/internal/session"
)

const (
	viewHeader   = "header"
	viewFooter   = "footer"
	viewTasks    = "tasks"
	viewDetail   = "detail"
	viewActivity = "activity"
	viewPrompt   = "prompt"
	viewForm     = "form"
	viewHelp     = "help"
)

const activityLimit = 50

type page int

const (
	pageTasks page = iota
	pageUsers
)

type promptKind int

const (
	promptName promptKind = iota
	promptResponsibility
	promptSaveView
)

type promptState struct {
	kind  promptKind
	title string
	value string
}

// Deps are the collaborators the terminal UI drives. Store may be nil, in
// which case saved views and the activity pane are disabled.
type Deps struct {
	Session    session.Session
	List       *list.Coordinator
	Dispatcher *dispatch.Dispatcher
	Directory  *directory.Directory
	Notes      *notify.Queue
	Store      *db.Store
	Logger     *zap.Logger
}

type UI struct {
	ctx context.Context
	gui *gocui.Gui

	session    session.Session
	list       *list.Coordinator
	dispatcher *dispatch.Dispatcher
	directory  *directory.Directory
	notes      *notify.Queue
	store      *db.Store
	logger     *zap.Logger

	wg sync.WaitGroup

	page             page
	focus            string
	selectedTask     int
	selectedUser     int
	selectedActivity int

	views      []model.View
	viewIndex  int
	activeView *model.View

	activity     []model.ActivityEntry
	usersLoading bool

	form       *formState
	formEditor *formEditor
	prompt     *promptState
	helpActive bool
}

func Run(ctx context.Context, deps Deps) error {
	gui, err := gocui.NewGui(gocui.NewGuiOpts{OutputMode: gocui.OutputNormal})
	if err != nil {
		return err
	}
	defer gui.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ui := newUI(ctx, deps)
	ui.gui = gui
	gui.Mouse = true

	gui.SetManagerFunc(ui.layout)
	if err := ui.bindKeys(gui); err != nil {
		return err
	}
	ui.list.OnChange(ui.redraw)
	ui.notes.OnChange(ui.redraw)
	ui.start()

	err = gui.MainLoop()
	cancel()
	ui.wg.Wait()
	if err != nil && !goerrors.Is(err, gocui.ErrQuit) {
		return err
	}

	return nil
}

func newUI(ctx context.Context, deps Deps) *UI {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ui := &UI{
		ctx:        ctx,
		session:    deps.Session,
		list:       deps.List,
		dispatcher: deps.Dispatcher,
		directory:  deps.Directory,
		notes:      deps.Notes,
		store:      deps.Store,
		logger:     logger.Named("tui"),
		focus:      viewTasks,
		viewIndex:  -1,
	}
	ui.formEditor = &formEditor{ui: ui}
	return ui
}

func (u *UI) start() {
	u.list.LoadInitial(u.session.Role)
	u.loadViews()
	u.background(u.loadActivity)
	if u.directory.Allowed() {
		u.background(func(ctx context.Context) {
			_, _ = u.directory.List(ctx)
		})
	}
}

// background runs fn off the UI loop and schedules a redraw when it returns.
func (u *UI) background(fn func(ctx context.Context)) {
	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		fn(u.ctx)
		u.redraw()
	}()
}

// update runs fn on the UI loop.
func (u *UI) update(fn func()) {
	if u.gui == nil {
		fn()
		return
	}
	if u.ctx.Err() != nil {
		return
	}
	u.gui.Update(func(*gocui.Gui) error {
		fn()
		return nil
	})
}

func (u *UI) redraw() {
	u.update(func() {})
}

func (u *UI) wait() {
	u.wg.Wait()
}

func (u *UI) bindKeys(gui *gocui.Gui) error {
	global := []struct {
		key     any
		handler func(*gocui.Gui, *gocui.View) error
	}{
		{gocui.KeyCtrlC, u.quit},
		{'q', u.quit},
		{'/', u.startNameFilter},
		{'f', u.cycleStatusFilter},
		{'o', u.startResponsibilityFilter},
		{'s', u.cycleSort},
		{'g', u.clearFilters},
		{'m', u.loadMore},
		{'r', u.refresh},
		{'a', u.addTask},
		{'e', u.editTask},
		{'x', u.completeTask},
		{'d', u.deleteTask},
		{'u', u.toggleUsers},
		{'i', u.inviteUser},
		{'w', u.startSaveView},
		{'v', u.cycleViews},
		{'?', u.toggleHelp},
		{gocui.KeyEsc, u.dismissNotification},
		{gocui.KeyTab, u.switchFocus},
	}
	for _, binding := range global {
		if err := gui.SetKeybinding("", binding.key, gocui.ModNone, binding.handler); err != nil {
			return err
		}
	}

	for _, name := range []string{viewTasks, viewActivity} {
		for _, key := range []any{gocui.KeyArrowDown, 'j'} {
			if err := gui.SetKeybinding(name, key, gocui.ModNone, u.moveDown); err != nil {
				return err
			}
		}
		for _, key := range []any{gocui.KeyArrowUp, 'k'} {
			if err := gui.SetKeybinding(name, key, gocui.ModNone, u.moveUp); err != nil {
				return err
			}
		}
		if err := gui.SetKeybinding(name, gocui.MouseWheelUp, gocui.ModNone, u.moveUp); err != nil {
			return err
		}
		if err := gui.SetKeybinding(name, gocui.MouseWheelDown, gocui.ModNone, u.moveDown); err != nil {
			return err
		}
	}

	if err := gui.SetKeybinding(viewPrompt, gocui.KeyEnter, gocui.ModNone, u.submitPrompt); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewPrompt, gocui.KeyEsc, gocui.ModNone, u.cancelPrompt); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyEnter, gocui.ModNone, u.submitForm); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyTab, gocui.ModNone, u.nextFormField); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyBacktab, gocui.ModNone, u.prevFormField); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyArrowDown, gocui.ModNone, u.nextFormField); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyArrowUp, gocui.ModNone, u.prevFormField); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyEsc, gocui.ModNone, u.cancelForm); err != nil {
		return err
	}
	for _, key := range []any{gocui.KeyEsc, 'q', '?'} {
		if err := gui.SetKeybinding(viewHelp, key, gocui.ModNone, u.closeHelp); err != nil {
			return err
		}
	}

	if err := gui.SetViewClickBinding(&gocui.ViewMouseBinding{ViewName: viewTasks, Key: gocui.MouseLeft, Handler: func(opts gocui.ViewMouseBindingOpts) error {
		return u.onListClick(gui, viewTasks, opts)
	}}); err != nil {
		return err
	}
	if err := gui.SetViewClickBinding(&gocui.ViewMouseBinding{ViewName: viewActivity, Key: gocui.MouseLeft, Handler: func(opts gocui.ViewMouseBindingOpts) error {
		return u.onListClick(gui, viewActivity, opts)
	}}); err != nil {
		return err
	}
	return nil
}

func (u *UI) layout(gui *gocui.Gui) error {
	maxX, maxY := gui.Size()
	if maxX <= 0 || maxY <= 0 {
		return nil
	}
	state := u.list.Snapshot()

	headerView, err := gui.SetView(viewHeader, 0, 0, maxX-1, 0, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	headerView.Frame = false
	headerView.Wrap = true
	headerView.FgColor = gocui.ColorDefault
	headerView.Clear()
	fmt.Fprint(headerView, u.headerText(state))

	footerY1 := max(maxY-1, 1)
	footerY0 := max(footerY1-3, 1)
	footerView, err := gui.SetView(viewFooter, 0, footerY0, maxX-1, footerY1, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	footerView.Frame = false
	footerView.Wrap = true
	footerView.FgColor = gocui.ColorDefault
	footerView.Clear()
	fmt.Fprint(footerView, strings.Join(u.footerLines(), "\n"))

	bodyTop := 1
	bodyBottom := footerY0 - 1
	if bodyBottom < bodyTop {
		return nil
	}

	sizes := computeLayout(maxX, bodyBottom-bodyTop+1)
	leftX1 := sizes.leftWidth - 1
	rightX0 := min(leftX1+1, maxX-1)
	detailY1 := bodyTop + sizes.detailHeight - 1

	tasksView, err := gui.SetView(viewTasks, 0, bodyTop, leftX1, bodyBottom, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	tasksView.Title = "1 Tasks"
	if u.page == pageUsers {
		tasksView.Title = "1 Users"
	}
	applyViewStyle(tasksView, u.focus == viewTasks, true)
	u.renderList(tasksView, u.mainLines(state), u.mainSelection(), u.focus == viewTasks)

	detailView, err := gui.SetView(viewDetail, rightX0, bodyTop, maxX-1, detailY1, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		detailView.Title = "Detail"
	}
	applyViewStyle(detailView, false, false)
	detailView.Wrap = true
	detailView.Clear()
	fmt.Fprint(detailView, strings.Join(u.detailLines(state), "\n"))

	activityView, err := gui.SetView(viewActivity, rightX0, detailY1+1, maxX-1, bodyBottom, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		activityView.Title = "2 Activity"
	}
	applyViewStyle(activityView, u.focus == viewActivity, true)
	u.renderList(activityView, u.activityLines(), u.selectedActivity, u.focus == viewActivity)

	_, _ = gui.SetViewOnTop(viewHeader)
	_, _ = gui.SetViewOnTop(viewFooter)

	if u.prompt != nil {
		if err := u.showPrompt(gui); err != nil {
			return err
		}
	} else {
		_ = gui.DeleteView(viewPrompt)
	}

	if u.form != nil {
		if err := u.showForm(gui); err != nil {
			return err
		}
	} else {
		_ = gui.DeleteView(viewForm)
	}

	if u.helpActive {
		if err := u.showHelp(gui); err != nil {
			return err
		}
	} else {
		_ = gui.DeleteView(viewHelp)
	}

	if gui.CurrentView() == nil || !u.inputActive() {
		_, _ = gui.SetCurrentView(u.focus)
	}

	gui.Cursor = u.prompt != nil || u.form != nil

	return nil
}

type layout struct {
	leftWidth    int
	detailHeight int
}

func computeLayout(width, height int) layout {
	safeWidth := max(width, 40)
	safeHeight := max(height, 8)

	leftWidth := safeWidth * 55 / 100
	if leftWidth < 30 {
		leftWidth = min(30, safeWidth-10)
	}

	detailHeight := int(float64(safeHeight) * 0.6)
	if detailHeight < 4 {
		detailHeight = 4
	}
	if safeHeight-detailHeight < 3 {
		detailHeight = max(safeHeight-3, 1)
	}

	return layout{leftWidth: leftWidth, detailHeight: detailHeight}
}

func (u *UI) headerText(state list.State) string {
	scope := "my tasks"
	if state.Scope == api.ScopeAll {
		scope = "all tasks"
	}
	viewLabel := "none"
	if u.activeView != nil {
		viewLabel = u.activeView.Name
	}

	progress := fmt.Sprintf("%d loaded", len(state.Tasks))
	switch {
	case state.Loading:
		progress = "loading..."
	case state.HasMore():
		progress += ", m for more"
	}

	return fmt.Sprintf("%s (%s) | %s | Filter: %s | Sort: %s | View: %s | %s",
		valueOrNone(u.session.Claims.Email), u.session.Role, scope, state.Filter, state.Sort, viewLabel, progress)
}

func (u *UI) footerLines() []string {
	lines := []string{
		ansiDim + "/ name | f status | o responsible | s sort | g clear | m more | r refresh | w save view | v views" + ansiReset,
		ansiDim + "a add | e edit | x complete | d delete | u users | i invite | esc dismiss | ? help | q quit" + ansiReset,
	}
	if note, ok := u.notes.Current(); ok {
		lines = append(lines, formatNotification(note))
	}
	return lines
}

func (u *UI) mainLines(state list.State) []string {
	if u.page == pageUsers {
		return u.userLines()
	}
	switch {
	case len(state.Tasks) == 0 && state.Loading:
		return []string{"Loading tasks..."}
	case len(state.Tasks) == 0:
		return []string{"No tasks"}
	}
	lines := make([]string, 0, len(state.Tasks)+1)
	for _, task := range state.Tasks {
		lines = append(lines, formatTaskSummary(task))
	}
	if state.HasMore() {
		lines = append(lines, ansiDim+"... more available (m)"+ansiReset)
	}
	return lines
}

func (u *UI) userLines() []string {
	if !u.directory.Allowed() {
		return []string{directory.DeniedMessage}
	}
	users := u.directory.Users()
	if len(users) == 0 {
		if u.usersLoading {
			return []string{"Loading users..."}
		}
		return []string{"No users"}
	}
	lines := make([]string, 0, len(users))
	for _, user := range users {
		lines = append(lines, fmt.Sprintf("%s | %s | %s", user.Username, valueOrNone(user.Email), valueOrNone(user.Status)))
	}
	return lines
}

func (u *UI) mainSelection() int {
	if u.page == pageUsers {
		return u.selectedUser
	}
	return u.selectedTask
}

func (u *UI) detailLines(state list.State) []string {
	if u.page == pageUsers {
		if !u.directory.Allowed() {
			return nil
		}
		if user := u.currentUser(); user != nil {
			return userDetailLines(*user)
		}
		return []string{"No user selected"}
	}
	if task := u.currentTask(state); task != nil {
		return taskDetailLines(*task)
	}
	return []string{"No task selected"}
}

func (u *UI) activityLines() []string {
	if u.store == nil {
		return []string{"Activity log disabled"}
	}
	lines := make([]string, 0, len(u.activity))
	for _, entry := range u.activity {
		lines = append(lines, formatActivity(entry))
	}
	return lines
}

func (u *UI) renderList(view *gocui.View, lines []string, selected int, focused bool) {
	view.Clear()
	for i, line := range lines {
		prefix := " "
		if i == selected {
			if focused {
				prefix = ">"
			} else {
				prefix = "*"
			}
		}
		fmt.Fprintf(view, "%s %s\n", prefix, line)
	}
	if focused && len(lines) > 0 {
		view.SetCursor(0, min(selected, len(lines)-1))
	}
}

func (u *UI) currentTask(state list.State) *model.Task {
	if u.selectedTask >= len(state.Tasks) {
		u.selectedTask = max(len(state.Tasks)-1, 0)
	}
	if u.selectedTask >= 0 && u.selectedTask < len(state.Tasks) {
		task := state.Tasks[u.selectedTask]
		return &task
	}
	return nil
}

func (u *UI) currentUser() *model.User {
	users := u.directory.Users()
	if u.selectedUser >= len(users) {
		u.selectedUser = max(len(users)-1, 0)
	}
	if u.selectedUser >= 0 && u.selectedUser < len(users) {
		return &users[u.selectedUser]
	}
	return nil
}

func (u *UI) onListClick(gui *gocui.Gui, viewName string, opts gocui.ViewMouseBindingOpts) error {
	if u.inputActive() {
		return nil
	}
	view, err := gui.View(viewName)
	if err != nil {
		return nil
	}

	_, y0, _, _ := view.Dimensions()
	_, oy := view.Origin()
	row := max(opts.Y-y0-1+oy, 0)

	switch viewName {
	case viewTasks:
		if u.page == pageUsers {
			u.selectedUser = row
		} else {
			u.selectedTask = row
		}
	case viewActivity:
		u.selectedActivity = min(row, max(len(u.activity)-1, 0))
	}
	u.focus = viewName
	_, _ = gui.SetCurrentView(viewName)
	return nil
}

func (u *UI) moveDown(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	switch {
	case u.focus == viewActivity:
		if u.selectedActivity < len(u.activity)-1 {
			u.selectedActivity++
		}
	case u.page == pageUsers:
		if u.selectedUser < len(u.directory.Users())-1 {
			u.selectedUser++
		}
	default:
		if u.selectedTask < len(u.list.Snapshot().Tasks)-1 {
			u.selectedTask++
		}
	}
	return nil
}

func (u *UI) moveUp(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	switch {
	case u.focus == viewActivity:
		if u.selectedActivity > 0 {
			u.selectedActivity--
		}
	case u.page == pageUsers:
		if u.selectedUser > 0 {
			u.selectedUser--
		}
	default:
		if u.selectedTask > 0 {
			u.selectedTask--
		}
	}
	return nil
}

func (u *UI) switchFocus(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	if u.focus == viewTasks {
		u.focus = viewActivity
	} else {
		u.focus = viewTasks
	}
	if gui != nil {
		_, _ = gui.SetCurrentView(u.focus)
	}
	return nil
}

func (u *UI) startNameFilter(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() || u.page != pageTasks {
		return nil
	}
	u.prompt = &promptState{kind: promptName, title: "Filter by name", value: u.list.Snapshot().Filter[model.FilterName]}
	return nil
}

func (u *UI) startResponsibilityFilter(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() || u.page != pageTasks {
		return nil
	}
	u.prompt = &promptState{kind: promptResponsibility, title: "Filter by responsible email", value: u.list.Snapshot().Filter[model.FilterResponsibility]}
	return nil
}

func (u *UI) startSaveView(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	if u.store == nil {
		u.notes.Error("Saved views are unavailable")
		return nil
	}
	name := ""
	if u.activeView != nil {
		name = u.activeView.Name
	}
	u.prompt = &promptState{kind: promptSaveView, title: "Save view as", value: name}
	return nil
}

func (u *UI) cycleStatusFilter(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() || u.page != pageTasks {
		return nil
	}
	current := u.list.Snapshot().Filter[model.FilterStatus]
	u.list.SetFilter(model.FilterStatus, nextStatusFilter(current))
	u.criteriaChanged()
	return nil
}

func (u *UI) cycleSort(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() || u.page != pageTasks {
		return nil
	}
	u.list.SetSort(model.NextSort(u.list.Snapshot().Sort))
	u.criteriaChanged()
	return nil
}

func (u *UI) clearFilters(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() || u.page != pageTasks {
		return nil
	}
	u.list.ClearFilters()
	u.criteriaChanged()
	return nil
}

func (u *UI) criteriaChanged() {
	u.activeView = nil
	u.viewIndex = -1
	u.selectedTask = 0
}

func (u *UI) loadMore(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() || u.page != pageTasks {
		return nil
	}
	if err := u.list.LoadMore(); err != nil && !errors.Is(err, list.ErrNoMorePages) {
		u.logger.Debug("load more", zap.Error(err))
	}
	return nil
}

func (u *UI) refresh(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	if u.page == pageUsers {
		u.loadUsers()
	} else {
		u.list.Refresh()
	}
	u.background(u.loadActivity)
	return nil
}

func (u *UI) toggleUsers(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	if u.page == pageUsers {
		u.page = pageTasks
		return nil
	}
	u.page = pageUsers
	u.focus = viewTasks
	u.selectedUser = 0
	u.loadUsers()
	return nil
}

// loadUsers fetches the directory for admins. Nothing is requested for other
// roles; the page shows the denial text instead.
func (u *UI) loadUsers() {
	if !u.directory.Allowed() {
		return
	}
	u.usersLoading = true
	u.background(func(ctx context.Context) {
		_, _ = u.directory.List(ctx)
		u.update(func() { u.usersLoading = false })
	})
}

func (u *UI) addTask(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	if !u.session.Role.IsAdmin() {
		u.notes.Error(directory.DeniedMessage)
		return nil
	}
	u.form = newTaskForm(nil)
	return nil
}

func (u *UI) editTask(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() || u.page != pageTasks {
		return nil
	}
	if !u.session.Role.IsAdmin() {
		u.notes.Error(directory.DeniedMessage)
		return nil
	}
	task := u.currentTask(u.list.Snapshot())
	if task == nil {
		return nil
	}
	u.form = newTaskForm(task)
	return nil
}

func (u *UI) completeTask(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() || u.page != pageTasks {
		return nil
	}
	task := u.currentTask(u.list.Snapshot())
	if task == nil {
		return nil
	}
	if task.Status == model.StatusCompleted {
		u.notes.Error("Task is already completed")
		return nil
	}
	selected := *task
	u.background(func(ctx context.Context) {
		_ = u.dispatcher.Complete(ctx, selected)
		u.loadActivity(ctx)
	})
	return nil
}

func (u *UI) deleteTask(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() || u.page != pageTasks {
		return nil
	}
	task := u.currentTask(u.list.Snapshot())
	if task == nil {
		return nil
	}
	taskID := task.ID
	u.background(func(ctx context.Context) {
		_ = u.dispatcher.Remove(ctx, taskID)
		u.loadActivity(ctx)
	})
	return nil
}

func (u *UI) inviteUser(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	if !u.directory.Allowed() {
		u.notes.Error(directory.DeniedMessage)
		return nil
	}
	u.form = newInviteForm()
	return nil
}

func (u *UI) cycleViews(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() || u.page != pageTasks {
		return nil
	}
	if u.store == nil {
		u.notes.Error("Saved views are unavailable")
		return nil
	}
	u.loadViews()
	if len(u.views) == 0 {
		u.notes.Error("No saved views")
		return nil
	}
	u.viewIndex = (u.viewIndex + 1) % len(u.views)
	view := u.views[u.viewIndex]
	u.activeView = &view
	u.selectedTask = 0
	u.list.Apply(view.Filter, view.Sort)
	u.notes.Success(fmt.Sprintf("View %q applied", view.Name))
	return nil
}

func (u *UI) loadViews() {
	if u.store == nil {
		return
	}
	views, err := u.store.ListViews(u.ctx)
	if err != nil {
		u.logger.Warn("list views", zap.Error(err))
		u.notes.Error("failed to load saved views")
		return
	}
	u.views = views
	if u.viewIndex >= len(u.views) {
		u.viewIndex = -1
	}
}

func (u *UI) saveCurrentView(name string) {
	state := u.list.Snapshot()
	saved, err := u.store.SaveView(u.ctx, model.View{Name: name, Filter: state.Filter, Sort: state.Sort})
	if err != nil {
		u.notes.Error(err.Error())
		return
	}
	u.activeView = &saved
	u.loadViews()
	for i, view := range u.views {
		if view.ID == saved.ID {
			u.viewIndex = i
		}
	}
	u.notes.Success(fmt.Sprintf("View %q saved", saved.Name))
}

func (u *UI) loadActivity(ctx context.Context) {
	if u.store == nil {
		return
	}
	entries, err := u.store.ListActivity(ctx, activityLimit)
	if err != nil {
		u.logger.Warn("list activity", zap.Error(err))
		return
	}
	u.update(func() {
		u.activity = entries
		if u.selectedActivity >= len(u.activity) {
			u.selectedActivity = max(len(u.activity)-1, 0)
		}
	})
}

func (u *UI) dismissNotification(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	u.notes.Dismiss()
	return nil
}

func (u *UI) toggleHelp(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() && !u.helpActive {
		return nil
	}
	u.helpActive = !u.helpActive
	return nil
}

func (u *UI) closeHelp(gui *gocui.Gui, _ *gocui.View) error {
	u.helpActive = false
	if gui != nil {
		_ = gui.DeleteView(viewHelp)
		_, _ = gui.SetCurrentView(u.focus)
	}
	return nil
}

func (u *UI) showHelp(gui *gocui.Gui) error {
	maxX, maxY := gui.Size()
	width := max(60, maxX/2)
	height := 20
	x0 := (maxX - width) / 2
	y0 := (maxY - height) / 2

	view, err := gui.SetView(viewHelp, x0, y0, x0+width, y0+height, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		view.Title = "Help"
		view.Wrap = true
	}
	view.Clear()
	fmt.Fprint(view, helpText())
	_, _ = gui.SetCurrentView(viewHelp)
	return nil
}

func (u *UI) showPrompt(gui *gocui.Gui) error {
	maxX, maxY := gui.Size()
	width := max(30, maxX/2)
	height := 2
	x0 := (maxX - width) / 2
	y0 := (maxY - height) / 2

	view, err := gui.SetView(viewPrompt, x0, y0, x0+width, y0+height, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		view.Wrap = true
		view.Clear()
		fmt.Fprint(view, u.prompt.value)
		view.SetCursor(len([]rune(u.prompt.value)), 0)
	}
	view.Title = u.prompt.title
	view.Editable = true
	view.Editor = gocui.DefaultEditor
	_, _ = gui.SetCurrentView(viewPrompt)
	return nil
}

func (u *UI) submitPrompt(gui *gocui.Gui, view *gocui.View) error {
	value := ""
	if view != nil {
		value = view.Buffer()
	}
	u.applyPrompt(value)
	return u.closePrompt(gui)
}

func (u *UI) applyPrompt(value string) {
	if u.prompt == nil {
		return
	}
	value = strings.TrimSpace(value)
	switch u.prompt.kind {
	case promptName:
		u.list.SetFilter(model.FilterName, value)
		u.criteriaChanged()
	case promptResponsibility:
		u.list.SetFilter(model.FilterResponsibility, value)
		u.criteriaChanged()
	case promptSaveView:
		u.saveCurrentView(value)
	}
	u.prompt = nil
}

func (u *UI) cancelPrompt(gui *gocui.Gui, _ *gocui.View) error {
	return u.closePrompt(gui)
}

func (u *UI) closePrompt(gui *gocui.Gui) error {
	u.prompt = nil
	if gui != nil {
		_ = gui.DeleteView(viewPrompt)
		_, _ = gui.SetCurrentView(u.focus)
	}
	return nil
}

func (u *UI) showForm(gui *gocui.Gui) error {
	if u.form == nil {
		return nil
	}

	maxX, maxY := gui.Size()
	width := max(60, maxX/2)
	height := min(12, max(9, maxY/2))
	x0 := (maxX - width) / 2
	y0 := (maxY - height) / 2

	view, err := gui.SetView(viewForm, x0, y0, x0+width, y0+height, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		view.Wrap = true
	}
	view.Title = u.form.title()
	view.Editable = true
	view.KeybindOnEdit = true
	view.Editor = u.formEditor
	u.renderForm(view)
	_, _ = gui.SetCurrentView(viewForm)
	return nil
}

// submitForm validates locally, closes the form and sends the request in
// the background. Outcomes arrive as notifications.
func (u *UI) submitForm(gui *gocui.Gui, _ *gocui.View) error {
	if u.form == nil {
		return nil
	}

	switch u.form.kind {
	case formAddTask:
		input, err := u.form.taskInput()
		if err == nil {
			err = input.Validate(time.Now())
		}
		if err != nil {
			u.notes.Error(err.Error())
			return nil
		}
		u.background(func(ctx context.Context) {
			_, _ = u.dispatcher.Add(ctx, input)
			u.loadActivity(ctx)
		})
	case formEditTask:
		task, err := u.form.editedTask()
		if err == nil {
			err = task.Validate()
		}
		if err != nil {
			u.notes.Error(err.Error())
			return nil
		}
		u.background(func(ctx context.Context) {
			_ = u.dispatcher.Update(ctx, task)
			u.loadActivity(ctx)
		})
	case formInvite:
		inv := u.form.invitation()
		if err := inv.Validate(); err != nil {
			u.notes.Error(err.Error())
			return nil
		}
		u.usersLoading = true
		u.background(func(ctx context.Context) {
			_ = u.directory.Invite(ctx, inv)
			u.update(func() { u.usersLoading = false })
		})
	}

	return u.closeForm(gui)
}

func (u *UI) cancelForm(gui *gocui.Gui, _ *gocui.View) error {
	return u.closeForm(gui)
}

func (u *UI) closeForm(gui *gocui.Gui) error {
	u.form = nil
	if gui != nil {
		_ = gui.DeleteView(viewForm)
		_, _ = gui.SetCurrentView(u.focus)
	}
	return nil
}

func (u *UI) nextFormField(_ *gocui.Gui, view *gocui.View) error {
	if u.form == nil {
		return nil
	}
	if u.form.index < len(u.form.fields)-1 {
		u.form.index++
	}
	u.renderForm(view)
	return nil
}

func (u *UI) prevFormField(_ *gocui.Gui, view *gocui.View) error {
	if u.form == nil {
		return nil
	}
	if u.form.index > 0 {
		u.form.index--
	}
	u.renderForm(view)
	return nil
}

func (u *UI) inputActive() bool {
	return u.prompt != nil || u.form != nil || u.helpActive
}

func (u *UI) quit(_ *gocui.Gui, _ *gocui.View) error {
	return gocui.ErrQuit
}

func helpText() string {
	return strings.Join([]string{
		"Navigation:",
		"  Tab switch tasks/activity | j/k or arrows move selection",
		"  mouse click to select | mouse wheel scrolls",
		"",
		"Tasks:",
		"  a add | e edit | x complete | d delete (admins: a/e/d)",
		"  m load more | r refresh",
		"",
		"Filter/Sort:",
		"  / name | f cycle status | o responsible | s cycle sort | g clear",
		"  w save current view | v cycle saved views",
		"",
		"Users (admins):",
		"  u toggle users page | i invite user",
		"",
		"Forms:",
		"  tab next field | enter save | esc cancel",
		"  left/right pick responsible, role or status",
		"",
		"Other:",
		"  esc dismiss notification | ? help | q quit",
	}, "\n")
}

func applyViewStyle(view *gocui.View, focused bool, highlight bool) {
	view.Frame = true
	view.Highlight = focused && highlight
	view.HighlightInactive = false
	view.SelBgColor = gocui.ColorBlue
	view.SelFgColor = gocui.ColorBlack
	view.InactiveViewSelBgColor = gocui.ColorDefault
	if focused {
		view.FrameColor = gocui.ColorCyan
		view.TitleColor = gocui.ColorCyan
	} else {
		view.FrameColor = gocui.ColorDefault
		view.TitleColor = gocui.ColorDefault
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
