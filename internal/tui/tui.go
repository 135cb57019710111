package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Joseda-hg/lazytodo/internal/db"
	"github.com/Joseda-hg/lazytodo/internal/model"
	goerrors "github.com/go-errors/errors"
	"github.com/jesseduffield/gocui"
)

const (
	viewHeader = "header"
	viewFooter = "footer"
	viewTasks  = "tasks"
	viewDetail = "detail"
	viewSearch = "search"
	viewForm   = "form"
	viewHelp   = "help"
)

type UI struct {
	store  *db.Store
	gui    *gocui.Gui
	logger *slog.Logger
	now    func() time.Time

	filter   model.Filter
	tasks    []model.Task
	stats    model.Stats
	selected int
	focus    string
	darkMode bool

	form         *formState
	formEditor   *formEditor
	searchActive bool
	helpActive   bool
	status       string
}

type Options struct {
	Logger *slog.Logger
	// DarkDefault is the theme used when the store holds no preference.
	DarkDefault bool
}

func newUI(store *db.Store, opts Options) *UI {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dark, ok := store.DarkMode()
	if !ok {
		dark = opts.DarkDefault
	}
	ui := &UI{
		store:    store,
		logger:   logger,
		now:      time.Now,
		focus:    viewTasks,
		darkMode: dark,
		filter: model.Filter{
			Status:   model.StatusAll,
			Priority: model.PriorityFilterAll,
			Sort:     model.SortCreatedAt,
		},
	}
	ui.formEditor = &formEditor{ui: ui}
	return ui
}

func Run(store *db.Store, opts Options) error {
	gui, err := gocui.NewGui(gocui.NewGuiOpts{OutputMode: gocui.OutputNormal})
	if err != nil {
		return err
	}
	defer gui.Close()

	ui := newUI(store, opts)
	ui.gui = gui
	gui.Mouse = true

	gui.SetManagerFunc(ui.layout)
	if err := ui.bindKeys(gui); err != nil {
		return err
	}
	if err := ui.loadTasks(); err != nil {
		return err
	}

	ui.logger.Info("terminal ui started", "tasks", len(ui.tasks))
	if err := gui.MainLoop(); err != nil && err != gocui.ErrQuit {
		return err
	}

	return nil
}

type binding struct {
	view    string
	key     any
	handler func(*gocui.Gui, *gocui.View) error
}

func (u *UI) bindKeys(gui *gocui.Gui) error {
	bindings := []binding{
		{"", gocui.KeyCtrlC, u.quit},
		{"", 'q', u.quit},
		{"", 'r', u.reload},
		{"", 'g', u.clearFilters},
		{"", 'a', u.addTask},
		{"", 'e', u.editTask},
		{"", 'd', u.deleteTask},
		{"", 'x', u.toggleTask},
		{"", 'f', u.cycleStatusFilter},
		{"", 'p', u.cyclePriorityFilter},
		{"", 'o', u.cycleSort},
		{"", 't', u.toggleTheme},
		{"", '/', u.startSearch},
		{"", '?', u.toggleHelp},
		{"", gocui.KeyTab, u.switchFocus},
		{"", '1', u.focusTasks},
		{"", '2', u.focusDetail},
		{viewTasks, gocui.KeySpace, u.toggleTask},
		{viewTasks, gocui.KeyArrowDown, u.moveDown},
		{viewTasks, 'j', u.moveDown},
		{viewTasks, gocui.KeyArrowUp, u.moveUp},
		{viewTasks, 'k', u.moveUp},
		{viewTasks, gocui.KeyEnter, u.editTask},
		{viewSearch, gocui.KeyEnter, u.submitSearch},
		{viewSearch, gocui.KeyEsc, u.cancelSearch},
		{viewForm, gocui.KeyEnter, u.submitFormNow},
		{viewForm, gocui.KeyCtrlJ, u.submitFormNow},
		{viewForm, gocui.KeyTab, u.nextFormField},
		{viewForm, gocui.KeyBacktab, u.prevFormField},
		{viewForm, gocui.KeyArrowDown, u.nextFormField},
		{viewForm, gocui.KeyArrowUp, u.prevFormField},
		{viewForm, gocui.KeyEsc, u.cancelForm},
		{viewHelp, gocui.KeyEsc, u.closeHelp},
		{viewHelp, 'q', u.closeHelp},
		{viewHelp, '?', u.closeHelp},
	}
	for _, b := range bindings {
		if err := gui.SetKeybinding(b.view, b.key, gocui.ModNone, b.handler); err != nil {
			return err
		}
	}

	if err := gui.SetViewClickBinding(&gocui.ViewMouseBinding{ViewName: viewTasks, Key: gocui.MouseLeft, Handler: func(opts gocui.ViewMouseBindingOpts) error {
		return u.onListClick(gui, opts)
	}}); err != nil {
		return err
	}
	for _, name := range []string{viewTasks, viewDetail} {
		if err := gui.SetKeybinding(name, gocui.MouseWheelUp, gocui.ModNone, u.scrollUp); err != nil {
			return err
		}
		if err := gui.SetKeybinding(name, gocui.MouseWheelDown, gocui.ModNone, u.scrollDown); err != nil {
			return err
		}
	}
	return nil
}

func (u *UI) layout(gui *gocui.Gui) error {
	maxX, maxY := gui.Size()
	if maxX <= 0 || maxY <= 0 {
		return nil
	}
	colors := paletteFor(u.darkMode)

	headerView, err := gui.SetView(viewHeader, -1, -1, maxX, 2, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	headerView.Frame = false
	headerView.Wrap = true
	headerView.FgColor = colors.fg
	headerView.BgColor = colors.bg
	u.renderHeader(headerView)

	footerY0 := max(maxY-4, 2)
	footerView, err := gui.SetView(viewFooter, -1, footerY0, maxX, maxY, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	footerView.Frame = false
	footerView.Wrap = true
	footerView.FgColor = colors.dim
	footerView.BgColor = colors.bg
	u.renderFooter(footerView)

	bodyTop := 2
	bodyBottom := footerY0
	if bodyBottom-bodyTop < 2 {
		return nil
	}

	leftWidth := computeLeftWidth(maxX)
	tasksView, err := gui.SetView(viewTasks, 0, bodyTop, leftWidth-1, bodyBottom, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	tasksView.Title = fmt.Sprintf("1 Todos (%d)", len(u.tasks))
	applyViewStyle(tasksView, u.focus == viewTasks, true, colors)
	u.renderTaskList(tasksView)

	detailView, err := gui.SetView(viewDetail, leftWidth, bodyTop, maxX-1, bodyBottom, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		detailView.Title = "2 Details"
		detailView.Wrap = true
	}
	applyViewStyle(detailView, u.focus == viewDetail, false, colors)
	u.renderDetail(detailView)

	_, _ = gui.SetViewOnTop(viewHeader)
	_, _ = gui.SetViewOnTop(viewFooter)

	if u.searchActive {
		if err := u.showSearch(gui, colors); err != nil {
			return err
		}
	} else {
		_ = gui.DeleteView(viewSearch)
	}

	if u.form != nil {
		if err := u.showForm(gui, colors); err != nil {
			return err
		}
	} else {
		_ = gui.DeleteView(viewForm)
	}

	if u.helpActive {
		if err := u.showHelp(gui, colors); err != nil {
			return err
		}
	} else {
		_ = gui.DeleteView(viewHelp)
	}

	if gui.CurrentView() == nil {
		_, _ = gui.SetCurrentView(u.focus)
	}

	gui.Cursor = u.searchActive || u.form != nil

	return nil
}

func computeLeftWidth(width int) int {
	safeWidth := max(width, 40)
	left := safeWidth * 55 / 100
	if left < 30 {
		left = 30
	}
	if left > safeWidth-20 {
		left = safeWidth / 2
	}
	return left
}

func (u *UI) loadTasks() error {
	tasks, err := u.store.ListTasks(context.Background(), u.filter)
	if err != nil {
		return err
	}
	u.tasks = tasks
	u.stats = u.store.Stats(u.now())

	if u.selected >= len(u.tasks) {
		u.selected = max(len(u.tasks)-1, 0)
	}
	return nil
}

func (u *UI) renderHeader(view *gocui.View) {
	view.Clear()
	query := strings.TrimSpace(u.filter.Query)
	if query == "" {
		query = "type / to search"
	}
	fmt.Fprintln(view, formatStats(u.stats))
	fmt.Fprintf(view, "Search: %s | Status: %s | Priority: %s | Sort: %s | Theme: %s",
		query, u.filter.Status, u.filter.Priority, u.filter.Sort.Label(), themeName(u.darkMode))
}

func (u *UI) renderFooter(view *gocui.View) {
	view.Clear()
	view.SetOrigin(0, 0)

	fmt.Fprintln(view, "a add | e/enter edit | d delete | x/space toggle | f status | p priority | o sort")
	fmt.Fprintln(view, "/ search | g clear | t theme | r reload | tab/1-2 panes | ? help | q quit")
	if u.status != "" {
		fmt.Fprint(view, u.status)
	}
}

func (u *UI) renderTaskList(view *gocui.View) {
	view.Clear()
	if len(u.tasks) == 0 {
		fmt.Fprint(view, emptyListText)
		return
	}
	focused := u.focus == viewTasks
	now := u.now()
	for i, task := range u.tasks {
		prefix := " "
		if i == u.selected {
			if focused {
				prefix = ">"
			} else {
				prefix = "*"
			}
		}
		fmt.Fprintf(view, "%s %s\n", prefix, formatTaskSummary(task, now))
	}
	if focused {
		view.SetCursor(0, min(u.selected, len(u.tasks)-1))
	}
}

func (u *UI) renderDetail(view *gocui.View) {
	view.Clear()
	selected := u.selectedTask()
	if selected == nil {
		fmt.Fprint(view, "No task selected")
		return
	}
	fmt.Fprint(view, strings.Join(detailLines(*selected, u.now()), "\n"))
}

func detailLines(task model.Task, now time.Time) []string {
	state := "active"
	if task.Completed {
		state = "completed"
	}

	lines := []string{
		task.Title,
		fmt.Sprintf("Status: %s", state),
		fmt.Sprintf("Priority: %s", task.Priority),
		fmt.Sprintf("Due: %s", formatDue(task.DueAt, now)),
		fmt.Sprintf("Created: %s", task.CreatedAt.Local().Format("2006-01-02 15:04")),
		fmt.Sprintf("Tags: %s", formatTags(task.Tags)),
		fmt.Sprintf("ID: %s", task.ID),
	}
	if task.Description != "" {
		lines = append(lines, "", task.Description)
	}
	if len(task.Subtasks) > 0 {
		lines = append(lines, "", fmt.Sprintf("Subtasks (%d/%d):", task.CompletedSubtasks(), len(task.Subtasks)))
		for _, subtask := range task.Subtasks {
			lines = append(lines, fmt.Sprintf("  %s %s", checkbox(subtask.Completed), subtask.Title))
		}
	}
	return lines
}

func (u *UI) selectedTask() *model.Task {
	if u.selected >= 0 && u.selected < len(u.tasks) {
		return &u.tasks[u.selected]
	}
	return nil
}

func (u *UI) onListClick(gui *gocui.Gui, opts gocui.ViewMouseBindingOpts) error {
	if u.inputActive() {
		return nil
	}
	view, err := gui.View(viewTasks)
	if err != nil {
		return nil
	}

	_, oy := view.Origin()
	row := max(opts.Y+oy, 0)
	u.selected = min(row, max(len(u.tasks)-1, 0))
	return u.setFocus(gui, viewTasks)
}

func (u *UI) scrollUp(gui *gocui.Gui, view *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	if view == nil {
		view = gui.CurrentView()
	}
	if view == nil {
		return nil
	}
	view.ScrollUp(1)
	return nil
}

func (u *UI) scrollDown(gui *gocui.Gui, view *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	if view == nil {
		view = gui.CurrentView()
	}
	if view == nil {
		return nil
	}
	view.ScrollDown(1)
	return nil
}

func (u *UI) switchFocus(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	if u.focus == viewTasks {
		return u.setFocus(gui, viewDetail)
	}
	return u.setFocus(gui, viewTasks)
}

func (u *UI) focusTasks(gui *gocui.Gui, _ *gocui.View) error {
	return u.setFocus(gui, viewTasks)
}

func (u *UI) focusDetail(gui *gocui.Gui, _ *gocui.View) error {
	return u.setFocus(gui, viewDetail)
}

func (u *UI) setFocus(gui *gocui.Gui, name string) error {
	if u.inputActive() {
		return nil
	}
	u.focus = name
	if gui != nil {
		_, _ = gui.SetCurrentView(name)
	}
	return nil
}

func (u *UI) moveDown(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	if u.selected < len(u.tasks)-1 {
		u.selected++
	}
	return nil
}

func (u *UI) moveUp(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	if u.selected > 0 {
		u.selected--
	}
	return nil
}

func (u *UI) reload(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	u.status = ""
	return u.loadTasks()
}

func (u *UI) clearFilters(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	u.filter.Query = ""
	u.filter.Status = model.StatusAll
	u.filter.Priority = model.PriorityFilterAll
	return u.reload(gui, nil)
}

func (u *UI) cycleStatusFilter(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	u.filter.Status = u.filter.Status.Next()
	return u.reload(gui, nil)
}

func (u *UI) cyclePriorityFilter(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	u.filter.Priority = u.filter.Priority.Next()
	return u.reload(gui, nil)
}

func (u *UI) cycleSort(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	u.filter.Sort = u.filter.Sort.Next()
	return u.reload(gui, nil)
}

func (u *UI) toggleTheme(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	next := !u.darkMode
	if err := u.store.SetDarkMode(context.Background(), next); err != nil {
		u.setError("save theme", err)
		return nil
	}
	u.darkMode = next
	return nil
}

func (u *UI) startSearch(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	u.searchActive = true
	return nil
}

func (u *UI) showSearch(gui *gocui.Gui, colors palette) error {
	maxX, maxY := gui.Size()
	width := max(30, maxX/2)
	height := 2
	x0 := (maxX - width) / 2
	y0 := (maxY - height) / 2

	view, err := gui.SetView(viewSearch, x0, y0, x0+width, y0+height, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		view.Title = "Search todos..."
		view.Clear()
		fmt.Fprint(view, u.filter.Query)
	}
	view.FgColor = colors.fg
	view.BgColor = colors.bg
	view.Editable = true
	view.Editor = gocui.DefaultEditor
	_, _ = gui.SetCurrentView(viewSearch)
	return nil
}

func (u *UI) submitSearch(gui *gocui.Gui, view *gocui.View) error {
	value := ""
	if view != nil {
		value = view.Buffer()
	}
	u.filter.Query = strings.TrimSpace(value)
	u.searchActive = false
	u.status = ""
	u.closeOverlay(gui, viewSearch)
	return u.loadTasks()
}

func (u *UI) cancelSearch(gui *gocui.Gui, _ *gocui.View) error {
	u.searchActive = false
	u.closeOverlay(gui, viewSearch)
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
	u.closeOverlay(gui, viewHelp)
	return nil
}

func (u *UI) showHelp(gui *gocui.Gui, colors palette) error {
	maxX, maxY := gui.Size()
	width := max(60, maxX/2)
	height := min(24, maxY-2)
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
	view.FgColor = colors.fg
	view.BgColor = colors.bg
	view.Clear()
	fmt.Fprint(view, helpText())
	_, _ = gui.SetCurrentView(viewHelp)
	return nil
}

func (u *UI) addTask(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	u.form = newFormState(nil)
	return nil
}

func (u *UI) editTask(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	selected := u.selectedTask()
	if selected == nil {
		return nil
	}
	u.form = newFormState(selected)
	return nil
}

func (u *UI) showForm(gui *gocui.Gui, colors palette) error {
	if u.form == nil {
		return nil
	}

	maxX, maxY := gui.Size()
	width := max(70, maxX*2/3)
	height := min(len(u.form.fields)+len(u.form.subtasks)+2, max(8, maxY-2))
	x0 := (maxX - width) / 2
	y0 := (maxY - height) / 2

	view, err := gui.SetView(viewForm, x0, y0, x0+width, y0+height, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		view.Wrap = true
	}
	if u.form.taskID != "" {
		view.Title = "Edit Todo"
	} else {
		view.Title = "New Todo"
	}
	view.FgColor = colors.fg
	view.BgColor = colors.bg
	view.Editable = true
	view.KeybindOnEdit = true
	view.Editor = u.formEditor
	u.renderForm(view)
	_, _ = gui.SetCurrentView(viewForm)
	return nil
}

func (u *UI) submitFormNow(gui *gocui.Gui, _ *gocui.View) error {
	if u.form == nil {
		return nil
	}

	input, err := u.form.input()
	if err != nil {
		u.status = err.Error()
		return nil
	}

	if u.form.taskID == "" {
		if _, err := u.store.CreateTask(context.Background(), input); err != nil {
			u.setError("create task", err)
			return nil
		}
	} else {
		if _, err := u.store.UpdateTask(context.Background(), u.form.taskID, input); err != nil {
			u.setError("update task", err)
			return nil
		}
	}

	u.form = nil
	u.status = ""
	u.closeOverlay(gui, viewForm)
	return u.loadTasks()
}

func (u *UI) cancelForm(gui *gocui.Gui, _ *gocui.View) error {
	u.form = nil
	u.closeOverlay(gui, viewForm)
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

func (u *UI) deleteTask(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	selected := u.selectedTask()
	if selected == nil {
		return nil
	}
	if err := u.store.DeleteTask(context.Background(), selected.ID); err != nil {
		u.setError("delete task", err)
		return nil
	}
	u.status = ""
	return u.loadTasks()
}

func (u *UI) toggleTask(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	selected := u.selectedTask()
	if selected == nil {
		return nil
	}
	if _, err := u.store.ToggleTask(context.Background(), selected.ID); err != nil {
		u.setError("toggle task", err)
		return nil
	}
	u.status = ""
	return u.loadTasks()
}

// setError shows err in the footer and logs it; the UI keeps running.
func (u *UI) setError(action string, err error) {
	u.status = err.Error()
	u.logger.Error(action, "error", err)
}

func (u *UI) closeOverlay(gui *gocui.Gui, name string) {
	if gui == nil {
		return
	}
	_ = gui.DeleteView(name)
	_, _ = gui.SetCurrentView(u.focus)
}

func (u *UI) inputActive() bool {
	return u.searchActive || u.form != nil || u.helpActive
}

func (u *UI) quit(_ *gocui.Gui, _ *gocui.View) error {
	return gocui.ErrQuit
}

func helpText() string {
	return strings.Join([]string{
		"Navigation:",
		"  Tab or 1/2 switch panes (todos/details)",
		"  j/k or arrows move selection",
		"  mouse click selects, wheel scrolls",
		"",
		"Actions:",
		"  a add todo | e or enter edit | d delete",
		"  x or space toggle completed",
		"",
		"View:",
		"  f cycle status (all/active/completed)",
		"  p cycle priority (all/high/medium/low)",
		"  o cycle sort (created/priority/due)",
		"  / search title, description and tags | g clear filters",
		"",
		"Form:",
		"  tab/arrows next field | enter save | esc cancel",
		"  space/left/right cycle priority",
		"  subtask: type a title, ctrl-n add, left/right select, ctrl-t toggle, ctrl-x remove",
		"",
		"Other:",
		"  t toggle dark/light theme | r reload | ? help | q quit",
	}, "\n")
}

func applyViewStyle(view *gocui.View, focused bool, highlight bool, colors palette) {
	view.Frame = true
	view.FgColor = colors.fg
	view.BgColor = colors.bg
	view.Highlight = focused && highlight
	view.HighlightInactive = false
	view.SelBgColor = colors.selBg
	view.SelFgColor = colors.selFg
	view.InactiveViewSelBgColor = colors.bg
	if focused {
		view.FrameColor = colors.focusFrame
		view.TitleColor = colors.focusFrame
	} else {
		view.FrameColor = colors.frame
		view.TitleColor = colors.fg
	}
}
