package model

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrTitleRequired   = errors.New("title is required")
	ErrNotFound        = errors.New("task not found")
	ErrInvalidPriority = errors.New("invalid priority")
	ErrInvalidDueDate  = errors.New("invalid due date")
)

// DueDateLayout is the calendar form due dates are entered in.
const DueDateLayout = "2006-01-02"

// ParseDue accepts a calendar date or a full RFC 3339 timestamp. Blank
// input means no due date.
func ParseDue(value string) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	if parsed, err := time.Parse(DueDateLayout, trimmed); err == nil {
		return &parsed, nil
	}
	parsed, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return nil, ErrInvalidDueDate
	}
	return &parsed, nil
}

type Task struct {
	ID          string     `json:"id" yaml:"id"`
	Title       string     `json:"title" yaml:"title"`
	Description string     `json:"description" yaml:"description"`
	Completed   bool       `json:"completed" yaml:"completed"`
	Priority    Priority   `json:"priority" yaml:"priority"`
	DueAt       *time.Time `json:"dueDate,omitempty" yaml:"dueDate,omitempty"`
	Tags        []string   `json:"tags" yaml:"tags"`
	Subtasks    []Subtask  `json:"subtasks" yaml:"subtasks"`
	CreatedAt   time.Time  `json:"createdAt" yaml:"createdAt"`
}

type Subtask struct {
	ID        string `json:"id" yaml:"id"`
	Title     string `json:"title" yaml:"title"`
	Completed bool   `json:"completed" yaml:"completed"`
}

// Clone returns a copy that shares no slices or pointers with t. Tags and
// Subtasks are never nil in the copy, so they encode as empty arrays.
func (t Task) Clone() Task {
	out := t
	if t.DueAt != nil {
		due := *t.DueAt
		out.DueAt = &due
	}
	out.Tags = append(make([]string, 0, len(t.Tags)), t.Tags...)
	out.Subtasks = append(make([]Subtask, 0, len(t.Subtasks)), t.Subtasks...)
	return out
}

func (t Task) CompletedSubtasks() int {
	count := 0
	for _, subtask := range t.Subtasks {
		if subtask.Completed {
			count++
		}
	}
	return count
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

var priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

// ParsePriority maps user input to a Priority. Empty input means medium.
func ParsePriority(value string) (Priority, error) {
	trimmed := Priority(strings.ToLower(strings.TrimSpace(value)))
	if trimmed == "" {
		return PriorityMedium, nil
	}
	if !trimmed.Valid() {
		return "", ErrInvalidPriority
	}
	return trimmed, nil
}

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}

// Rank orders priorities for sorting; higher is more urgent.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

func (p Priority) Next() Priority {
	return cycle(priorities, p, 1)
}

func (p Priority) Prev() Priority {
	return cycle(priorities, p, -1)
}

type StatusFilter string

const (
	StatusAll       StatusFilter = "all"
	StatusActive    StatusFilter = "active"
	StatusCompleted StatusFilter = "completed"
)

var statusFilters = []StatusFilter{StatusAll, StatusActive, StatusCompleted}

func ParseStatusFilter(value string) (StatusFilter, error) {
	parsed := StatusFilter(strings.ToLower(strings.TrimSpace(value)))
	if parsed == "" {
		return StatusAll, nil
	}
	for _, candidate := range statusFilters {
		if parsed == candidate {
			return parsed, nil
		}
	}
	return "", errors.New("invalid status filter")
}

func (s StatusFilter) Next() StatusFilter {
	return cycle(statusFilters, s, 1)
}

type PriorityFilter string

const PriorityFilterAll PriorityFilter = "all"

var priorityFilters = []PriorityFilter{
	PriorityFilterAll,
	PriorityFilter(PriorityHigh),
	PriorityFilter(PriorityMedium),
	PriorityFilter(PriorityLow),
}

func ParsePriorityFilter(value string) (PriorityFilter, error) {
	parsed := PriorityFilter(strings.ToLower(strings.TrimSpace(value)))
	if parsed == "" {
		return PriorityFilterAll, nil
	}
	for _, candidate := range priorityFilters {
		if parsed == candidate {
			return parsed, nil
		}
	}
	return "", ErrInvalidPriority
}

func (p PriorityFilter) Next() PriorityFilter {
	return cycle(priorityFilters, p, 1)
}

type SortOption string

const (
	SortCreatedAt SortOption = "createdAt"
	SortPriority  SortOption = "priority"
	SortDueDate   SortOption = "dueDate"
)

var sortOptions = []SortOption{SortCreatedAt, SortPriority, SortDueDate}

func ParseSortOption(value string) (SortOption, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return SortCreatedAt, nil
	}
	for _, candidate := range sortOptions {
		if strings.EqualFold(trimmed, string(candidate)) {
			return candidate, nil
		}
	}
	switch strings.ToLower(trimmed) {
	case "created", "created_at":
		return SortCreatedAt, nil
	case "due", "due_date":
		return SortDueDate, nil
	}
	return "", errors.New("invalid sort option")
}

func (s SortOption) Next() SortOption {
	return cycle(sortOptions, s, 1)
}

func (s SortOption) Label() string {
	switch s {
	case SortPriority:
		return "Priority"
	case SortDueDate:
		return "Due Date"
	default:
		return "Created Date"
	}
}

// Filter describes a derived view over the task collection.
type Filter struct {
	Query    string         `json:"query"`
	Status   StatusFilter   `json:"status"`
	Priority PriorityFilter `json:"priority"`
	Sort     SortOption     `json:"sort"`
}

type Stats struct {
	Total        int `json:"total"`
	Completed    int `json:"completed"`
	Upcoming     int `json:"upcoming"`
	HighPriority int `json:"highPriority"`
}

func cycle[T comparable](order []T, current T, delta int) T {
	index := 0
	for i, value := range order {
		if value == current {
			index = i
			break
		}
	}
	index = (index + delta + len(order)) % len(order)
	return order[index]
}
