package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Joseda-hg/lazytodo/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	cmd := rootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func exportJSON(t *testing.T, configPath string) []model.Task {
	t.Helper()
	out, err := execute(t, configPath, "export")
	require.NoError(t, err)
	var tasks []model.Task
	require.NoError(t, json.Unmarshal([]byte(out), &tasks))
	return tasks
}

func TestAddListToggleRemove(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.json")

	out, err := execute(t, configPath, "add", "Buy", "milk", "--priority", "high", "--tag", "errands", "--subtask", "oat")
	require.NoError(t, err)
	assert.Contains(t, out, "created")
	assert.Contains(t, out, "Buy milk")

	_, err = execute(t, configPath, "add", "Write report", "--due", "2030-01-15")
	require.NoError(t, err)

	out, err = execute(t, configPath, "list", "--sort", "priority")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "PRIORITY")
	assert.Contains(t, lines[1], "Buy milk (0/1)")
	assert.Contains(t, lines[2], "from now")

	tasks := exportJSON(t, configPath)
	require.Len(t, tasks, 2)
	var milk model.Task
	for _, task := range tasks {
		if task.Title == "Buy milk" {
			milk = task
		}
	}
	require.NotEmpty(t, milk.ID)

	out, err = execute(t, configPath, "toggle", milk.ID[:8])
	require.NoError(t, err)
	assert.Contains(t, out, "is now completed")

	out, err = execute(t, configPath, "list", "--status", "completed")
	require.NoError(t, err)
	assert.Contains(t, out, "Buy milk")
	assert.NotContains(t, out, "Write report")

	out, err = execute(t, configPath, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Completed")

	_, err = execute(t, configPath, "rm", milk.ID)
	require.NoError(t, err)
	assert.Len(t, exportJSON(t, configPath), 1)

	_, err = execute(t, configPath, "rm", milk.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestAddRejectsInvalidInput(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.json")

	_, err := execute(t, configPath, "add", "   ")
	assert.ErrorIs(t, err, model.ErrTitleRequired)

	_, err = execute(t, configPath, "add", "x", "--priority", "urgent")
	assert.ErrorIs(t, err, model.ErrInvalidPriority)

	_, err = execute(t, configPath, "add", "x", "--due", "soon")
	assert.ErrorIs(t, err, model.ErrInvalidDueDate)

	_, err = execute(t, configPath, "list", "--status", "someday")
	assert.Error(t, err)
}

func TestExportImportYAML(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.json")

	_, err := execute(t, configPath, "add", "Portable", "--tag", "a", "--subtask", "one", "--due", "2030-02-01")
	require.NoError(t, err)
	before := exportJSON(t, configPath)

	out, err := execute(t, configPath, "export", "--format", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "title: Portable")

	yamlPath := filepath.Join(dir, "todos.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(out), 0o644))

	otherConfig := filepath.Join(t.TempDir(), "config.json")
	out, err = execute(t, otherConfig, "import", yamlPath)
	require.NoError(t, err)
	assert.Contains(t, out, "imported 1 todos")

	after := exportJSON(t, otherConfig)
	require.Len(t, after, 1)
	assert.Equal(t, before[0].ID, after[0].ID)
	assert.Equal(t, before[0].Subtasks, after[0].Subtasks)
	assert.True(t, before[0].CreatedAt.Equal(after[0].CreatedAt))
	require.NotNil(t, after[0].DueAt)
	assert.True(t, before[0].DueAt.Equal(*after[0].DueAt))
}

func TestImportRejectsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.json")
	badPath := filepath.Join(dir, "todos.json")
	require.NoError(t, os.WriteFile(badPath, []byte(`[{"title":`), 0o644))

	_, err := execute(t, configPath, "import", badPath)
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	out, err := execute(t, filepath.Join(t.TempDir(), "config.json"), "version")
	require.NoError(t, err)
	assert.Equal(t, "lazytodo version "+Version+"\n", out)
}

func TestLoadConfigDefaultsBesideConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfg, path, err := loadConfig(globalFlags{configPath: filepath.Join(dir, "config.json"), logLevel: "debug"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.json"), path)
	if os.Getenv("LAZYTODO_DB_PATH") == "" {
		assert.Equal(t, filepath.Join(dir, "lazytodo.db"), cfg.DBPath)
	}
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestRejectedOverridesAreNotSaved(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.json")
	original := []byte(`{"log_level": "info", "web_port": 8080}`)
	require.NoError(t, os.WriteFile(configPath, original, 0o644))

	_, err := execute(t, configPath, "--web-only", "--log-level", "bogus")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid log level "bogus"`)

	_, err = execute(t, configPath, "--web-only", "--port", "70000")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid web port 70000")

	saved, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.Equal(t, string(original), string(saved))

	_, err = execute(t, configPath, "list")
	require.NoError(t, err)
}
