package tui

import (
	"fmt"
	"strings"

	"github.com/Joseda-hg/lazytodo/internal/db"
	"github.com/Joseda-hg/lazytodo/internal/model"
	"github.com/jesseduffield/gocui"
)

type formField struct {
	Label string
	Value string
}

const (
	fieldTitle = iota
	fieldDescription
	fieldPriority
	fieldDue
	fieldTags
	fieldSubtasks
)

type formState struct {
	taskID       string
	completed    bool
	fields       []formField
	index        int
	subtasks     []model.Subtask
	subtaskIndex int
}

type formEditor struct {
	ui *UI
}

func newFormState(task *model.Task) *formState {
	fields := []formField{
		{Label: "Title"},
		{Label: "Description"},
		{Label: "Priority (space/←→)"},
		{Label: "Due (YYYY-MM-DD)"},
		{Label: "Tags (comma separated)"},
		{Label: "Subtask (ctrl-n add, ctrl-t toggle, ctrl-x remove)"},
	}

	if task == nil {
		fields[fieldPriority].Value = string(model.PriorityMedium)
		return &formState{fields: fields}
	}

	fields[fieldTitle].Value = task.Title
	fields[fieldDescription].Value = task.Description
	fields[fieldPriority].Value = string(task.Priority)
	if task.DueAt != nil {
		fields[fieldDue].Value = task.DueAt.Format(model.DueDateLayout)
	}
	fields[fieldTags].Value = strings.Join(task.Tags, ", ")

	return &formState{
		taskID:    task.ID,
		completed: task.Completed,
		fields:    fields,
		subtasks:  append([]model.Subtask(nil), task.Subtasks...),
	}
}

func (f *formState) input() (db.TaskInput, error) {
	priority, err := model.ParsePriority(f.fields[fieldPriority].Value)
	if err != nil {
		return db.TaskInput{}, err
	}

	dueAt, err := model.ParseDue(f.fields[fieldDue].Value)
	if err != nil {
		return db.TaskInput{}, err
	}

	return db.TaskInput{
		Title:       strings.TrimSpace(f.fields[fieldTitle].Value),
		Description: strings.TrimSpace(f.fields[fieldDescription].Value),
		Completed:   f.completed,
		Priority:    priority,
		DueAt:       dueAt,
		Tags:        parseTags(f.fields[fieldTags].Value),
		Subtasks:    append([]model.Subtask(nil), f.subtasks...),
	}, nil
}

func (f *formState) addSubtask() {
	title := strings.TrimSpace(f.fields[fieldSubtasks].Value)
	if title == "" {
		return
	}
	f.subtasks = append(f.subtasks, model.Subtask{Title: title})
	f.subtaskIndex = len(f.subtasks) - 1
	f.fields[fieldSubtasks].Value = ""
}

func (f *formState) toggleSubtask() {
	if f.subtaskIndex < 0 || f.subtaskIndex >= len(f.subtasks) {
		return
	}
	f.subtasks[f.subtaskIndex].Completed = !f.subtasks[f.subtaskIndex].Completed
}

func (f *formState) removeSubtask() {
	if f.subtaskIndex < 0 || f.subtaskIndex >= len(f.subtasks) {
		return
	}
	f.subtasks = append(f.subtasks[:f.subtaskIndex], f.subtasks[f.subtaskIndex+1:]...)
	if f.subtaskIndex >= len(f.subtasks) {
		f.subtaskIndex = max(len(f.subtasks)-1, 0)
	}
}

func parseTags(value string) []string {
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		result = append(result, trimmed)
	}
	return result
}

func (e *formEditor) Edit(view *gocui.View, key gocui.Key, ch rune, mod gocui.Modifier) bool {
	ui := e.ui
	if ui == nil || ui.form == nil {
		return false
	}
	form := ui.form
	field := &form.fields[form.index]

	switch form.index {
	case fieldPriority:
		switch key {
		case gocui.KeyArrowRight, gocui.KeySpace:
			field.Value = string(model.Priority(field.Value).Next())
		case gocui.KeyArrowLeft:
			field.Value = string(model.Priority(field.Value).Prev())
		}
		ui.renderForm(view)
		return true
	case fieldSubtasks:
		switch key {
		case gocui.KeyCtrlN:
			form.addSubtask()
			ui.renderForm(view)
			return true
		case gocui.KeyCtrlT:
			form.toggleSubtask()
			ui.renderForm(view)
			return true
		case gocui.KeyCtrlX:
			form.removeSubtask()
			ui.renderForm(view)
			return true
		case gocui.KeyArrowRight:
			form.subtaskIndex = min(form.subtaskIndex+1, max(len(form.subtasks)-1, 0))
			ui.renderForm(view)
			return true
		case gocui.KeyArrowLeft:
			form.subtaskIndex = max(form.subtaskIndex-1, 0)
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

func (u *UI) renderForm(view *gocui.View) {
	if u.form == nil || view == nil {
		return
	}
	view.Clear()
	for index, field := range u.form.fields {
		prefix := "  "
		if index == u.form.index {
			prefix = "> "
		}
		fmt.Fprintf(view, "%s%s: %s\n", prefix, field.Label, field.Value)
	}
	for index, subtask := range u.form.subtasks {
		marker := " "
		if u.form.index == fieldSubtasks && index == u.form.subtaskIndex {
			marker = "*"
		}
		fmt.Fprintf(view, "    %s %s %s\n", marker, checkbox(subtask.Completed), subtask.Title)
	}
	current := u.form.fields[u.form.index]
	label := current.Label + ": "
	cursorX := len([]rune(label)) + len([]rune(current.Value)) + 2
	view.SetCursor(cursorX, u.form.index)
}
