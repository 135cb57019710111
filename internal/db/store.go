package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Joseda-hg/lazytodo/internal/model"
	"github.com/Joseda-hg/lazytodo/internal/taskview"
	"github.com/google/uuid"
)

var ErrAmbiguousID = errors.New("ambiguous task id")

// Store owns the in-memory task collection and mirrors it to the kv table
// after every mutation. The collection is always written whole.
type Store struct {
	kv     *KV
	logger *slog.Logger
	now    func() time.Time
	newID  func() string

	mu       sync.Mutex
	tasks    []model.Task
	darkMode *bool
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

type TaskInput struct {
	Title       string
	Description string
	Completed   bool
	Priority    model.Priority
	DueAt       *time.Time
	Tags        []string
	Subtasks    []model.Subtask
}

// NewStore loads the persisted collection and theme preference. It is the
// only place either key is read.
func NewStore(ctx context.Context, db *sql.DB, opts ...Option) (*Store, error) {
	s := &Store{
		kv:     NewKV(db),
		logger: slog.Default(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}

	raw, ok, err := s.kv.Get(ctx, keyTodos)
	if err != nil {
		return nil, err
	}
	if ok {
		if err := json.Unmarshal([]byte(raw), &s.tasks); err != nil {
			return nil, fmt.Errorf("decode %s: %w", keyTodos, err)
		}
		for i, task := range s.tasks {
			s.tasks[i] = task.Clone()
		}
	}

	raw, ok, err = s.kv.Get(ctx, keyDarkMode)
	if err != nil {
		return nil, err
	}
	if ok {
		var dark bool
		if err := json.Unmarshal([]byte(raw), &dark); err != nil {
			return nil, fmt.Errorf("decode %s: %w", keyDarkMode, err)
		}
		s.darkMode = &dark
	}

	s.logger.Debug("store loaded", "tasks", len(s.tasks))
	return s, nil
}

func (s *Store) CreateTask(ctx context.Context, input TaskInput) (model.Task, error) {
	normalized, err := s.normalizeInput(input)
	if err != nil {
		return model.Task{}, err
	}

	task := model.Task{
		ID:        s.newID(),
		CreatedAt: s.now(),
	}
	applyInput(&task, normalized)

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.copyTasks(len(s.tasks) + 1)
	next = append(next, task)
	if err := s.commit(ctx, next); err != nil {
		return model.Task{}, err
	}

	s.logger.Debug("task created", "id", task.ID, "title", task.Title)
	return task.Clone(), nil
}

// UpdateTask replaces every editable field of the task. ID and CreatedAt
// are kept from the stored record.
func (s *Store) UpdateTask(ctx context.Context, taskID string, input TaskInput) (model.Task, error) {
	normalized, err := s.normalizeInput(input)
	if err != nil {
		return model.Task{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.indexOf(taskID)
	if err != nil {
		return model.Task{}, err
	}

	next := s.copyTasks(len(s.tasks))
	updated := model.Task{ID: next[index].ID, CreatedAt: next[index].CreatedAt}
	applyInput(&updated, normalized)
	next[index] = updated

	if err := s.commit(ctx, next); err != nil {
		return model.Task{}, err
	}

	s.logger.Debug("task updated", "id", taskID)
	return updated.Clone(), nil
}

func (s *Store) ToggleTask(ctx context.Context, taskID string) (model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.indexOf(taskID)
	if err != nil {
		return model.Task{}, err
	}

	next := s.copyTasks(len(s.tasks))
	next[index].Completed = !next[index].Completed
	if err := s.commit(ctx, next); err != nil {
		return model.Task{}, err
	}

	s.logger.Debug("task toggled", "id", taskID, "completed", next[index].Completed)
	return next[index].Clone(), nil
}

func (s *Store) ToggleSubtask(ctx context.Context, taskID, subtaskID string) (model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.indexOf(taskID)
	if err != nil {
		return model.Task{}, err
	}

	next := s.copyTasks(len(s.tasks))
	task := next[index].Clone()
	found := false
	for i := range task.Subtasks {
		if task.Subtasks[i].ID == subtaskID {
			task.Subtasks[i].Completed = !task.Subtasks[i].Completed
			found = true
			break
		}
	}
	if !found {
		return model.Task{}, fmt.Errorf("subtask %s: %w", subtaskID, model.ErrNotFound)
	}
	next[index] = task

	if err := s.commit(ctx, next); err != nil {
		return model.Task{}, err
	}

	s.logger.Debug("subtask toggled", "id", taskID, "subtask", subtaskID)
	return task.Clone(), nil
}

func (s *Store) DeleteTask(ctx context.Context, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.indexOf(taskID)
	if err != nil {
		return err
	}

	next := make([]model.Task, 0, len(s.tasks)-1)
	next = append(next, s.tasks[:index]...)
	next = append(next, s.tasks[index+1:]...)
	if err := s.commit(ctx, next); err != nil {
		return err
	}

	s.logger.Debug("task deleted", "id", taskID)
	return nil
}

func (s *Store) GetTask(_ context.Context, taskID string) (model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.indexOf(taskID)
	if err != nil {
		return model.Task{}, err
	}
	return s.tasks[index].Clone(), nil
}

// ResolveID expands a unique id prefix to the full task id.
func (s *Store) ResolveID(prefix string) (string, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return "", fmt.Errorf("empty id: %w", model.ErrNotFound)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	match := ""
	for _, task := range s.tasks {
		if task.ID == prefix {
			return task.ID, nil
		}
		if strings.HasPrefix(task.ID, prefix) {
			if match != "" {
				return "", fmt.Errorf("%s: %w", prefix, ErrAmbiguousID)
			}
			match = task.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("task %s: %w", prefix, model.ErrNotFound)
	}
	return match, nil
}

// Tasks returns a copy of the collection in insertion order.
func (s *Store) Tasks() []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyTasks(len(s.tasks))
}

func (s *Store) ListTasks(_ context.Context, filter model.Filter) ([]model.Task, error) {
	return taskview.Apply(s.Tasks(), filter), nil
}

func (s *Store) Stats(now time.Time) model.Stats {
	return taskview.ComputeStats(s.Tasks(), now)
}

// ReplaceTasks swaps the whole collection, as an import does. Records keep
// their ids and creation times; missing ones are filled in.
func (s *Store) ReplaceTasks(ctx context.Context, tasks []model.Task) error {
	next := make([]model.Task, 0, len(tasks))
	seen := make(map[string]struct{}, len(tasks))
	for i, task := range tasks {
		normalized, err := s.normalizeInput(TaskInput{
			Title:       task.Title,
			Description: task.Description,
			Completed:   task.Completed,
			Priority:    task.Priority,
			DueAt:       task.DueAt,
			Tags:        task.Tags,
			Subtasks:    task.Subtasks,
		})
		if err != nil {
			return fmt.Errorf("task %d: %w", i+1, err)
		}

		record := model.Task{ID: strings.TrimSpace(task.ID), CreatedAt: task.CreatedAt}
		if record.ID == "" {
			record.ID = s.newID()
		}
		if record.CreatedAt.IsZero() {
			record.CreatedAt = s.now()
		}
		if _, ok := seen[record.ID]; ok {
			return fmt.Errorf("task %d: duplicate id %s", i+1, record.ID)
		}
		seen[record.ID] = struct{}{}

		applyInput(&record, normalized)
		next = append(next, record)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.commit(ctx, next); err != nil {
		return err
	}

	s.logger.Debug("tasks replaced", "tasks", len(next))
	return nil
}

// DarkMode reports the stored theme preference; ok is false when none has
// been saved yet.
func (s *Store) DarkMode() (dark bool, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.darkMode == nil {
		return false, false
	}
	return *s.darkMode, true
}

func (s *Store) SetDarkMode(ctx context.Context, dark bool) error {
	payload, err := json.Marshal(dark)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.Put(ctx, keyDarkMode, string(payload)); err != nil {
		return err
	}
	s.darkMode = &dark

	s.logger.Debug("theme saved", "dark", dark)
	return nil
}

// commit persists next and only then makes it the live collection, so a
// failed write leaves memory matching storage. Callers hold mu.
func (s *Store) commit(ctx context.Context, next []model.Task) error {
	payload, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode %s: %w", keyTodos, err)
	}
	if err := s.kv.Put(ctx, keyTodos, string(payload)); err != nil {
		return err
	}
	s.tasks = next
	return nil
}

func (s *Store) indexOf(taskID string) (int, error) {
	for i, task := range s.tasks {
		if task.ID == taskID {
			return i, nil
		}
	}
	return -1, fmt.Errorf("task %s: %w", taskID, model.ErrNotFound)
}

func (s *Store) copyTasks(capacity int) []model.Task {
	out := make([]model.Task, 0, capacity)
	for _, task := range s.tasks {
		out = append(out, task.Clone())
	}
	return out
}

func (s *Store) normalizeInput(input TaskInput) (TaskInput, error) {
	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		return TaskInput{}, model.ErrTitleRequired
	}
	input.Description = strings.TrimSpace(input.Description)

	priority, err := model.ParsePriority(string(input.Priority))
	if err != nil {
		return TaskInput{}, err
	}
	input.Priority = priority

	if input.DueAt != nil {
		due := *input.DueAt
		input.DueAt = &due
	}
	input.Tags = normalizeTags(input.Tags)
	input.Subtasks = s.normalizeSubtasks(input.Subtasks)
	return input, nil
}

func (s *Store) normalizeSubtasks(subtasks []model.Subtask) []model.Subtask {
	result := make([]model.Subtask, 0, len(subtasks))
	for _, subtask := range subtasks {
		title := strings.TrimSpace(subtask.Title)
		if title == "" {
			continue
		}
		id := strings.TrimSpace(subtask.ID)
		if id == "" {
			id = s.newID()
		}
		result = append(result, model.Subtask{ID: id, Title: title, Completed: subtask.Completed})
	}
	return result
}

func applyInput(task *model.Task, input TaskInput) {
	task.Title = input.Title
	task.Description = input.Description
	task.Completed = input.Completed
	task.Priority = input.Priority
	task.DueAt = input.DueAt
	task.Tags = input.Tags
	task.Subtasks = input.Subtasks
}

// normalizeTags drops blanks and exact repeats. Tags that differ only in
// case are distinct.
func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{})
	result := make([]string, 0, len(tags))
	for _, tag := range tags {
		trimmed := strings.TrimSpace(tag)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	return result
}
