package web

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Joseda-hg/lazytodo/internal/db"
	"github.com/Joseda-hg/lazytodo/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, time.April, 1, 8, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) (*db.Store, http.Handler) {
	t.Helper()
	sqlDB, err := db.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	store, err := db.NewStore(context.Background(), sqlDB, db.WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	server := NewServer(store, WithLogger(logger), WithClock(func() time.Time { return testNow }), WithDarkDefault(true))
	return store, server.Handler()
}

func do(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestCreateAndListTasks(t *testing.T) {
	_, handler := newTestServer(t)

	rec := do(t, handler, http.MethodPost, "/api/tasks", `{"title":"Ship it","priority":"high","dueDate":"2026-04-10","tags":["work"]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[model.Task](t, rec)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, model.PriorityHigh, created.Priority)
	require.NotNil(t, created.DueAt)
	assert.Equal(t, "2026-04-10", created.DueAt.Format("2006-01-02"))
	assert.True(t, created.CreatedAt.Equal(testNow))

	rec = do(t, handler, http.MethodPost, "/api/tasks", `{"title":"Read book","priority":"low"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, handler, http.MethodGet, "/api/tasks?sort=priority", "")
	require.Equal(t, http.StatusOK, rec.Code)
	tasks := decode[[]model.Task](t, rec)
	require.Len(t, tasks, 2)
	assert.Equal(t, "Ship it", tasks[0].Title)

	rec = do(t, handler, http.MethodGet, "/api/tasks?q=BOOK", "")
	tasks = decode[[]model.Task](t, rec)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Read book", tasks[0].Title)
}

func TestCreateValidation(t *testing.T) {
	_, handler := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{name: "empty title", body: `{"title":"  "}`},
		{name: "bad priority", body: `{"title":"x","priority":"urgent"}`},
		{name: "bad due", body: `{"title":"x","dueDate":"tomorrow"}`},
		{name: "bad json", body: `{"title":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, handler, http.MethodPost, "/api/tasks", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			payload := decode[errorPayload](t, rec)
			assert.NotEmpty(t, payload.Error)
		})
	}
}

func TestToggleUpdateDelete(t *testing.T) {
	store, handler := newTestServer(t)

	created, err := store.CreateTask(context.Background(), db.TaskInput{
		Title:    "Laundry",
		Subtasks: []model.Subtask{{Title: "wash"}, {Title: "dry"}},
	})
	require.NoError(t, err)

	rec := do(t, handler, http.MethodPost, "/api/tasks/"+created.ID+"/toggle", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[model.Task](t, rec).Completed)
	assert.Contains(t, rec.Body.String(), `"tags":[]`)

	rec = do(t, handler, http.MethodPost, "/api/tasks/"+created.ID+"/subtasks/"+created.Subtasks[0].ID+"/toggle", "")
	require.Equal(t, http.StatusOK, rec.Code)
	toggled := decode[model.Task](t, rec)
	assert.True(t, toggled.Subtasks[0].Completed)
	assert.False(t, toggled.Subtasks[1].Completed)

	rec = do(t, handler, http.MethodPut, "/api/tasks/"+created.ID, `{"title":"Laundry day","completed":true,"priority":"medium"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decode[model.Task](t, rec)
	assert.Equal(t, created.ID, updated.ID)
	assert.True(t, updated.CreatedAt.Equal(created.CreatedAt))
	assert.Equal(t, "Laundry day", updated.Title)

	rec = do(t, handler, http.MethodDelete, "/api/tasks/"+created.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, handler, http.MethodGet, "/api/tasks/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(t, handler, http.MethodPost, "/api/tasks/"+created.ID+"/toggle", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatsAndTheme(t *testing.T) {
	store, handler := newTestServer(t)

	due := testNow.Add(48 * time.Hour)
	_, err := store.CreateTask(context.Background(), db.TaskInput{Title: "Soon", Priority: model.PriorityHigh, DueAt: &due})
	require.NoError(t, err)

	rec := do(t, handler, http.MethodGet, "/api/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.Stats{Total: 1, Upcoming: 1, HighPriority: 1}, decode[model.Stats](t, rec))

	rec = do(t, handler, http.MethodGet, "/api/theme", "")
	assert.True(t, decode[themePayload](t, rec).DarkMode)

	rec = do(t, handler, http.MethodPut, "/api/theme", `{"darkMode":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	dark, ok := store.DarkMode()
	assert.True(t, ok)
	assert.False(t, dark)

	rec = do(t, handler, http.MethodGet, "/api/theme", "")
	assert.False(t, decode[themePayload](t, rec).DarkMode)
}

func TestIndexRendersTasks(t *testing.T) {
	store, handler := newTestServer(t)

	_, err := store.CreateTask(context.Background(), db.TaskInput{Title: "Render <me>", Tags: []string{"ui"}})
	require.NoError(t, err)

	rec := do(t, handler, http.MethodGet, "/?status=active", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Render &lt;me&gt;")
	assert.Contains(t, body, "Total Tasks: 1")

	rec = do(t, handler, http.MethodGet, "/?status=completed", "")
	assert.Contains(t, rec.Body.String(), "No todos found")

	rec = do(t, handler, http.MethodGet, "/?sort=random", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsExposeCounters(t *testing.T) {
	store, handler := newTestServer(t)
	_, err := store.CreateTask(context.Background(), db.TaskInput{Title: "Count me"})
	require.NoError(t, err)

	do(t, handler, http.MethodGet, "/api/tasks", "")

	rec := do(t, handler, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `lazytodo_http_requests_total{code="200",route="/api/tasks"} 1`)
	assert.Contains(t, body, `lazytodo_tasks{state="active"} 1`)
}
