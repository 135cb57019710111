package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/Joseda-hg/lazytodo/internal/model"
	"github.com/dustin/go-humanize"
	"github.com/jesseduffield/gocui"
)

const emptyListText = "No todos found. Add some tasks to get started!"

func formatTags(tags []string) string {
	if len(tags) == 0 {
		return "no tags"
	}
	return strings.Join(tags, ",")
}

func checkbox(done bool) string {
	if done {
		return "[x]"
	}
	return "[ ]"
}

func formatDue(due *time.Time, now time.Time) string {
	if due == nil {
		return "n/a"
	}
	return fmt.Sprintf("%s (%s)", due.Format("2006-01-02"), humanize.RelTime(*due, now, "ago", "from now"))
}

func formatTaskSummary(task model.Task, now time.Time) string {
	parts := []string{checkbox(task.Completed), task.Title, string(task.Priority)}
	if task.DueAt != nil {
		parts = append(parts, "due "+humanize.RelTime(*task.DueAt, now, "ago", "from now"))
	}
	if len(task.Subtasks) > 0 {
		parts = append(parts, fmt.Sprintf("%d/%d", task.CompletedSubtasks(), len(task.Subtasks)))
	}
	if len(task.Tags) > 0 {
		parts = append(parts, formatTags(task.Tags))
	}
	return strings.Join(parts, " | ")
}

func formatStats(stats model.Stats) string {
	return fmt.Sprintf("Total Tasks: %d | Upcoming: %d | Completed: %d | High Priority: %d",
		stats.Total, stats.Upcoming, stats.Completed, stats.HighPriority)
}

// palette is one colour scheme for every pane.
type palette struct {
	fg         gocui.Attribute
	bg         gocui.Attribute
	dim        gocui.Attribute
	frame      gocui.Attribute
	focusFrame gocui.Attribute
	selFg      gocui.Attribute
	selBg      gocui.Attribute
}

var (
	darkPalette = palette{
		fg:         gocui.ColorWhite,
		bg:         gocui.ColorBlack,
		dim:        gocui.ColorWhite | gocui.AttrDim,
		frame:      gocui.ColorDefault,
		focusFrame: gocui.ColorCyan,
		selFg:      gocui.ColorBlack,
		selBg:      gocui.ColorCyan,
	}
	lightPalette = palette{
		fg:         gocui.ColorBlack,
		bg:         gocui.ColorWhite,
		dim:        gocui.ColorBlack | gocui.AttrDim,
		frame:      gocui.ColorBlack,
		focusFrame: gocui.ColorBlue,
		selFg:      gocui.ColorWhite,
		selBg:      gocui.ColorBlue,
	}
)

func paletteFor(dark bool) palette {
	if dark {
		return darkPalette
	}
	return lightPalette
}

func themeName(dark bool) string {
	if dark {
		return "dark"
	}
	return "light"
}
