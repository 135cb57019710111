package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/Joseda-hg/lazytodo/internal/db"
	"github.com/Joseda-hg/lazytodo/internal/logging"
	"github.com/Joseda-hg/lazytodo/internal/model"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const shortIDLength = 8

// withStore opens the configured store for a subcommand, logging to stderr.
func withStore(cmd *cobra.Command, globals *globalFlags, fn func(ctx context.Context, store *db.Store) error) error {
	cfg, _, err := loadConfig(*globals)
	if err != nil {
		return err
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := logging.New(cmd.ErrOrStderr(), level)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	store, closeStore, err := openStore(ctx, cfg.DBPath, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	return fn(ctx, store)
}

func listCmd(globals *globalFlags) *cobra.Command {
	var status, priority, sortBy, search string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List todos",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			statusFilter, err := model.ParseStatusFilter(status)
			if err != nil {
				return err
			}
			priorityFilter, err := model.ParsePriorityFilter(priority)
			if err != nil {
				return err
			}
			sortOption, err := model.ParseSortOption(sortBy)
			if err != nil {
				return err
			}
			filter := model.Filter{Query: search, Status: statusFilter, Priority: priorityFilter, Sort: sortOption}

			return withStore(cmd, globals, func(ctx context.Context, store *db.Store) error {
				tasks, err := store.ListTasks(ctx, filter)
				if err != nil {
					return err
				}
				return writeTaskTable(cmd.OutOrStdout(), tasks, time.Now())
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", "all", "status filter (all, active, completed)")
	cmd.Flags().StringVar(&priority, "priority", "all", "priority filter (all, high, medium, low)")
	cmd.Flags().StringVar(&sortBy, "sort", "createdAt", "sort order (createdAt, priority, dueDate)")
	cmd.Flags().StringVar(&search, "search", "", "match title, description or tags")
	return cmd
}

func writeTaskTable(out io.Writer, tasks []model.Task, now time.Time) error {
	if len(tasks) == 0 {
		_, err := fmt.Fprintln(out, "No todos found. Add some tasks to get started!")
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDONE\tPRIORITY\tDUE\tTITLE\tTAGS")
	for _, task := range tasks {
		done := "[ ]"
		if task.Completed {
			done = "[x]"
		}
		due := "-"
		if task.DueAt != nil {
			due = humanize.RelTime(*task.DueAt, now, "ago", "from now")
		}
		title := task.Title
		if len(task.Subtasks) > 0 {
			title = fmt.Sprintf("%s (%d/%d)", title, task.CompletedSubtasks(), len(task.Subtasks))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			shortID(task.ID), done, task.Priority, due, title, strings.Join(task.Tags, ","))
	}
	return w.Flush()
}

func shortID(id string) string {
	if len(id) > shortIDLength {
		return id[:shortIDLength]
	}
	return id
}

func addCmd(globals *globalFlags) *cobra.Command {
	var (
		description string
		priority    string
		due         string
		tags        []string
		subtasks    []string
	)

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a todo",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsedPriority, err := model.ParsePriority(priority)
			if err != nil {
				return err
			}
			input := db.TaskInput{
				Title:       strings.Join(args, " "),
				Description: description,
				Priority:    parsedPriority,
				Tags:        tags,
			}
			dueAt, err := model.ParseDue(due)
			if err != nil {
				return err
			}
			input.DueAt = dueAt
			for _, title := range subtasks {
				input.Subtasks = append(input.Subtasks, model.Subtask{Title: title})
			}

			return withStore(cmd, globals, func(ctx context.Context, store *db.Store) error {
				task, err := store.CreateTask(ctx, input)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created %s %s\n", shortID(task.ID), task.Title)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&description, "description", "", "longer description")
	cmd.Flags().StringVar(&priority, "priority", "medium", "priority (low, medium, high)")
	cmd.Flags().StringVar(&due, "due", "", "due date (YYYY-MM-DD)")
	cmd.Flags().StringArrayVar(&tags, "tag", nil, "tag (repeatable)")
	cmd.Flags().StringArrayVar(&subtasks, "subtask", nil, "subtask title (repeatable)")
	return cmd
}

func toggleCmd(globals *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <id>",
		Short: "Toggle a todo between active and completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, globals, func(ctx context.Context, store *db.Store) error {
				id, err := store.ResolveID(args[0])
				if err != nil {
					return err
				}
				task, err := store.ToggleTask(ctx, id)
				if err != nil {
					return err
				}
				state := "active"
				if task.Completed {
					state = "completed"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s is now %s\n", shortID(task.ID), task.Title, state)
				return nil
			})
		},
	}
}

func removeCmd(globals *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a todo",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, globals, func(ctx context.Context, store *db.Store) error {
				id, err := store.ResolveID(args[0])
				if err != nil {
					return err
				}
				if err := store.DeleteTask(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", shortID(id))
				return nil
			})
		},
	}
}

func statsCmd(globals *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show todo counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, globals, func(_ context.Context, store *db.Store) error {
				stats := store.Stats(time.Now())
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintf(w, "Total Tasks\t%d\n", stats.Total)
				fmt.Fprintf(w, "Upcoming\t%d\n", stats.Upcoming)
				fmt.Fprintf(w, "Completed\t%d\n", stats.Completed)
				fmt.Fprintf(w, "High Priority\t%d\n", stats.HighPriority)
				return w.Flush()
			})
		},
	}
}

func exportCmd(globals *globalFlags) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every todo to stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, globals, func(_ context.Context, store *db.Store) error {
				return encodeTasks(cmd.OutOrStdout(), format, store.Tasks())
			})
		},
	}

	cmd.Flags().StringVar(&format, "format", "json", "output format (json, yaml)")
	return cmd
}

func encodeTasks(out io.Writer, format string, tasks []model.Task) error {
	switch strings.ToLower(format) {
	case "json":
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(tasks)
	case "yaml", "yml":
		encoder := yaml.NewEncoder(out)
		encoder.SetIndent(2)
		if err := encoder.Encode(tasks); err != nil {
			return err
		}
		return encoder.Close()
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func importCmd(globals *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Replace every todo with the contents of a json or yaml file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tasks, err := readTasksFile(args[0])
			if err != nil {
				return err
			}
			return withStore(cmd, globals, func(ctx context.Context, store *db.Store) error {
				if err := store.ReplaceTasks(ctx, tasks); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d todos\n", len(tasks))
				return nil
			})
		},
	}
}

func readTasksFile(path string) ([]model.Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var tasks []model.Task
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &tasks)
	default:
		err = json.Unmarshal(data, &tasks)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return tasks, nil
}
