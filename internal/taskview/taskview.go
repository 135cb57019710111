// Package taskview computes the filtered and sorted view of a task collection.
package taskview

import (
	"sort"
	"strings"
	"time"

	"github.com/Joseda-hg/lazytodo/internal/model"
	"golang.org/x/text/cases"
)

// Apply returns the tasks matching filter in the order filter.Sort selects.
// The input slice is left untouched.
func Apply(tasks []model.Task, filter model.Filter) []model.Task {
	folder := cases.Fold()
	query := folder.String(strings.TrimSpace(filter.Query))

	result := make([]model.Task, 0, len(tasks))
	for _, task := range tasks {
		if !matchesStatus(task, filter.Status) {
			continue
		}
		if !matchesPriority(task, filter.Priority) {
			continue
		}
		if query != "" && !matchesFolded(folder, task, query) {
			continue
		}
		result = append(result, task)
	}

	Sort(result, filter.Sort)
	return result
}

// Sort orders tasks in place. Equal elements keep their relative order.
func Sort(tasks []model.Task, option model.SortOption) {
	switch option {
	case model.SortPriority:
		sort.SliceStable(tasks, func(i, j int) bool {
			return tasks[i].Priority.Rank() > tasks[j].Priority.Rank()
		})
	case model.SortDueDate:
		sort.SliceStable(tasks, func(i, j int) bool {
			a, b := tasks[i].DueAt, tasks[j].DueAt
			switch {
			case a == nil:
				return false
			case b == nil:
				return true
			default:
				return a.Before(*b)
			}
		})
	default:
		sort.SliceStable(tasks, func(i, j int) bool {
			return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
		})
	}
}

// Matches reports whether query is a case-insensitive substring of the
// task's title, description or any of its tags. An empty query matches.
func Matches(task model.Task, query string) bool {
	folder := cases.Fold()
	folded := folder.String(strings.TrimSpace(query))
	if folded == "" {
		return true
	}
	return matchesFolded(folder, task, folded)
}

func ComputeStats(tasks []model.Task, now time.Time) model.Stats {
	stats := model.Stats{Total: len(tasks)}
	for _, task := range tasks {
		if task.Completed {
			stats.Completed++
		}
		if task.DueAt != nil && task.DueAt.After(now) {
			stats.Upcoming++
		}
		if task.Priority == model.PriorityHigh {
			stats.HighPriority++
		}
	}
	return stats
}

func matchesStatus(task model.Task, status model.StatusFilter) bool {
	switch status {
	case model.StatusActive:
		return !task.Completed
	case model.StatusCompleted:
		return task.Completed
	default:
		return true
	}
}

func matchesPriority(task model.Task, priority model.PriorityFilter) bool {
	if priority == "" || priority == model.PriorityFilterAll {
		return true
	}
	return string(task.Priority) == string(priority)
}

// matchesFolded expects query already folded. A Caser is stateful, so each
// caller passes its own.
func matchesFolded(folder cases.Caser, task model.Task, query string) bool {
	if strings.Contains(folder.String(task.Title), query) {
		return true
	}
	if strings.Contains(folder.String(task.Description), query) {
		return true
	}
	for _, tag := range task.Tags {
		if strings.Contains(folder.String(tag), query) {
			return true
		}
	}
	return false
}
