package web

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Joseda-hg/lazytodo/internal/db"
	"github.com/Joseda-hg/lazytodo/internal/model"
	"github.com/dustin/go-humanize"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var indexTemplate = template.Must(template.New("index.tmpl").Funcs(template.FuncMap{
	"date": func(value time.Time) string { return value.Format(model.DueDateLayout) },
	"due": func(value *time.Time) string {
		if value == nil {
			return ""
		}
		return value.Format(model.DueDateLayout) + " (" + humanize.Time(*value) + ")"
	},
}).ParseFS(templateFS, "templates/index.tmpl"))

type Server struct {
	store       *db.Store
	logger      *slog.Logger
	now         func() time.Time
	darkDefault bool

	registry *prometheus.Registry
	requests *prometheus.CounterVec
}

type Option func(*Server)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithDarkDefault sets the theme reported when no preference is stored.
func WithDarkDefault(dark bool) Option {
	return func(s *Server) { s.darkDefault = dark }
}

type taskRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Completed   bool            `json:"completed"`
	Priority    string          `json:"priority"`
	DueDate     string          `json:"dueDate"`
	Tags        []string        `json:"tags"`
	Subtasks    []model.Subtask `json:"subtasks"`
}

type themePayload struct {
	DarkMode bool `json:"darkMode"`
}

type errorPayload struct {
	Error string `json:"error"`
}

var errBadRequest = errors.New("bad request")

func NewServer(store *db.Store, opts ...Option) *Server {
	s := &Server{
		store:    store,
		logger:   slog.Default(),
		now:      time.Now,
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lazytodo_http_requests_total",
			Help: "HTTP requests served, by route template and status code.",
		}, []string{"route", "code"}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registry.MustRegister(s.requests, newTaskCollector(store, s.now))
	return s
}

func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.Use(s.instrument)

	router.HandleFunc("/", s.indexHandler).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/tasks", s.listTasksHandler).Methods(http.MethodGet)
	api.HandleFunc("/tasks", s.createTaskHandler).Methods(http.MethodPost)
	api.HandleFunc("/tasks/{id}", s.getTaskHandler).Methods(http.MethodGet)
	api.HandleFunc("/tasks/{id}", s.updateTaskHandler).Methods(http.MethodPut)
	api.HandleFunc("/tasks/{id}", s.deleteTaskHandler).Methods(http.MethodDelete)
	api.HandleFunc("/tasks/{id}/toggle", s.toggleTaskHandler).Methods(http.MethodPost)
	api.HandleFunc("/tasks/{id}/subtasks/{subtaskID}/toggle", s.toggleSubtaskHandler).Methods(http.MethodPost)
	api.HandleFunc("/stats", s.statsHandler).Methods(http.MethodGet)
	api.HandleFunc("/theme", s.getThemeHandler).Methods(http.MethodGet)
	api.HandleFunc("/theme", s.putThemeHandler).Methods(http.MethodPut)

	return router
}

func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	tasks, err := s.store.ListTasks(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	data := struct {
		Stats      model.Stats
		Tasks      []model.Task
		Filter     model.Filter
		DarkMode   bool
		Statuses   []model.StatusFilter
		Priorities []model.PriorityFilter
		Sorts      []model.SortOption
	}{
		Stats:      s.store.Stats(s.now()),
		Tasks:      tasks,
		Filter:     filter,
		DarkMode:   s.darkMode(),
		Statuses:   []model.StatusFilter{model.StatusAll, model.StatusActive, model.StatusCompleted},
		Priorities: []model.PriorityFilter{model.PriorityFilterAll, model.PriorityFilter(model.PriorityHigh), model.PriorityFilter(model.PriorityMedium), model.PriorityFilter(model.PriorityLow)},
		Sorts:      []model.SortOption{model.SortCreatedAt, model.SortPriority, model.SortDueDate},
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, data); err != nil {
		s.logger.Error("render index", "error", err)
	}
}

func (s *Server) listTasksHandler(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	tasks, err := s.store.ListTasks(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) createTaskHandler(w http.ResponseWriter, r *http.Request) {
	input, err := decodeTaskRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	task, err := s.store.CreateTask(r.Context(), input)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) getTaskHandler(w http.ResponseWriter, r *http.Request) {
	task, err := s.store.GetTask(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) updateTaskHandler(w http.ResponseWriter, r *http.Request) {
	input, err := decodeTaskRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	task, err := s.store.UpdateTask(r.Context(), mux.Vars(r)["id"], input)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) deleteTaskHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteTask(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) toggleTaskHandler(w http.ResponseWriter, r *http.Request) {
	task, err := s.store.ToggleTask(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) toggleSubtaskHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	task, err := s.store.ToggleSubtask(r.Context(), vars["id"], vars["subtaskID"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) statsHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Stats(s.now()))
}

func (s *Server) getThemeHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, themePayload{DarkMode: s.darkMode()})
}

func (s *Server) putThemeHandler(w http.ResponseWriter, r *http.Request) {
	var payload themePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, badRequest(err))
		return
	}
	if err := s.store.SetDarkMode(r.Context(), payload.DarkMode); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) darkMode() bool {
	if dark, ok := s.store.DarkMode(); ok {
		return dark
	}
	return s.darkDefault
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if path, err := current.GetPathTemplate(); err == nil {
				route = path
			}
		}
		s.requests.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		s.logger.Info("http request",
			"method", r.Method,
			"route", route,
			"status", recorder.status,
			"duration", time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func decodeTaskRequest(r *http.Request) (db.TaskInput, error) {
	var payload taskRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return db.TaskInput{}, badRequest(err)
	}

	priority, err := model.ParsePriority(payload.Priority)
	if err != nil {
		return db.TaskInput{}, err
	}

	dueAt, err := model.ParseDue(payload.DueDate)
	if err != nil {
		return db.TaskInput{}, err
	}

	return db.TaskInput{
		Title:       payload.Title,
		Description: payload.Description,
		Completed:   payload.Completed,
		Priority:    priority,
		DueAt:       dueAt,
		Tags:        payload.Tags,
		Subtasks:    payload.Subtasks,
	}, nil
}

func filterFromRequest(r *http.Request) (model.Filter, error) {
	values := r.URL.Query()

	status, err := model.ParseStatusFilter(values.Get("status"))
	if err != nil {
		return model.Filter{}, badRequest(err)
	}
	priority, err := model.ParsePriorityFilter(values.Get("priority"))
	if err != nil {
		return model.Filter{}, badRequest(err)
	}
	sortOption, err := model.ParseSortOption(values.Get("sort"))
	if err != nil {
		return model.Filter{}, badRequest(err)
	}

	return model.Filter{
		Query:    strings.TrimSpace(values.Get("q")),
		Status:   status,
		Priority: priority,
		Sort:     sortOption,
	}, nil
}

func badRequest(err error) error {
	return fmt.Errorf("%w: %w", errBadRequest, err)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, model.ErrTitleRequired), errors.Is(err, model.ErrInvalidPriority),
		errors.Is(err, model.ErrInvalidDueDate), errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, errorPayload{Error: err.Error()})
}
