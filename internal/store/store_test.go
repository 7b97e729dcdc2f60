package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "core.db")
	db, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestTaskIDReusesLowestFreeSlot(t *testing.T) {
	tasks := NewTasks(openTestDB(t))

	t1, err := tasks.Create("first", nil)
	require.NoError(t, err)
	t2, err := tasks.Create("second", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), t1.ID)
	assert.Equal(t, int64(2), t2.ID)

	_, err = tasks.Update(t1.ID, nil, statusPtr(TaskStatusDone), nil, false)
	require.NoError(t, err)

	t3, err := tasks.Create("third", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), t3.ID, "id 1 is free again once task 1 is no longer todo")
}

func TestTaskUpdateAndDelete(t *testing.T) {
	tasks := NewTasks(openTestDB(t))
	task, err := tasks.Create("write tests", nil)
	require.NoError(t, err)

	newTitle := "write more tests"
	updated, err := tasks.Update(task.ID, &newTitle, nil, nil, false)
	require.NoError(t, err)
	assert.Equal(t, newTitle, updated.Title)

	require.NoError(t, tasks.Delete(task.ID))
	_, err = tasks.Get(task.ID)
	assert.Error(t, err)
}

func TestTaskListExcludesDoneByDefault(t *testing.T) {
	tasks := NewTasks(openTestDB(t))
	open, err := tasks.Create("open", nil)
	require.NoError(t, err)
	done, err := tasks.Create("done", nil)
	require.NoError(t, err)
	_, err = tasks.Update(done.ID, nil, statusPtr(TaskStatusDone), nil, false)
	require.NoError(t, err)

	list, err := tasks.List(false)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, open.ID, list[0].ID)

	all, err := tasks.List(true)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func statusPtr(s TaskStatus) *TaskStatus { return &s }

func TestEventCreateGetDeleteWithRule(t *testing.T) {
	events := NewEvents(openTestDB(t))
	rule := &RecurrenceRule{Frequency: FrequencyWeekly, Interval: 1}
	ev, err := events.Create("standup", "2026-03-02T09:00:00Z", nil, nil, nil, rule)
	require.NoError(t, err)
	require.NotNil(t, ev.Rule)

	fetched, err := events.Get(ev.ID)
	require.NoError(t, err)
	require.NotNil(t, fetched.Rule)
	assert.Equal(t, FrequencyWeekly, fetched.Rule.Frequency)

	require.NoError(t, events.Delete(ev.ID))
	_, err = events.Get(ev.ID)
	assert.Error(t, err)
}

func TestEventIDReuse(t *testing.T) {
	events := NewEvents(openTestDB(t))
	e1, err := events.Create("a", "2026-01-01T00:00:00Z", nil, nil, nil, nil)
	require.NoError(t, err)
	_, err = events.Create("b", "2026-01-02T00:00:00Z", nil, nil, nil, nil)
	require.NoError(t, err)

	require.NoError(t, events.Delete(e1.ID))
	e3, err := events.Create("c", "2026-01-03T00:00:00Z", nil, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), e3.ID)
}

func TestArticleTagLifecycle(t *testing.T) {
	articles := NewArticles(openTestDB(t))
	art, err := articles.Create("attention is all you need", []string{"vaswani"}, nil, nil, nil, nil, nil, nil)
	require.NoError(t, err)

	require.NoError(t, articles.AddTag(art.ID, "transformers"))
	require.NoError(t, articles.AddTag(art.ID, "transformers")) // idempotent

	fetched, err := articles.Get(art.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"transformers"}, fetched.Tags)

	tags, err := articles.ListTags()
	require.NoError(t, err)
	assert.Equal(t, []string{"transformers"}, tags)

	require.NoError(t, articles.RemoveTag(art.ID, "transformers"))
	fetched, err = articles.Get(art.ID)
	require.NoError(t, err)
	assert.Empty(t, fetched.Tags)
}

func TestArticleListByTag(t *testing.T) {
	articles := NewArticles(openTestDB(t))
	a, err := articles.Create("a", nil, nil, nil, nil, nil, nil, nil)
	require.NoError(t, err)
	_, err = articles.Create("b", nil, nil, nil, nil, nil, nil, nil)
	require.NoError(t, err)
	require.NoError(t, articles.AddTag(a.ID, "nlp"))

	nlpOnly := "nlp"
	filtered, err := articles.List(&nlpOnly)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, a.ID, filtered[0].ID)

	all, err := articles.List(nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSettingsDefaultsAndOverride(t *testing.T) {
	settings := NewSettings(openTestDB(t))

	mode, err := settings.Get("agency_mode")
	require.NoError(t, err)
	assert.Equal(t, "suggest", mode)

	require.NoError(t, settings.Set("agency_mode", "off"))
	mode, err = settings.Get("agency_mode")
	require.NoError(t, err)
	assert.Equal(t, "off", mode)
}

func TestSettingsModelResolutionOrder(t *testing.T) {
	settings := NewSettings(openTestDB(t))
	require.NoError(t, settings.Set("model", "claude-haiku"))

	model, err := settings.GetModel("tasks")
	require.NoError(t, err)
	assert.Equal(t, "claude-haiku", model, "falls back to settings.model when no per-command override exists")

	require.NoError(t, settings.Set("model_tasks", "claude-sonnet"))
	model, err = settings.GetModel("tasks")
	require.NoError(t, err)
	assert.Equal(t, "claude-sonnet", model, "model_<command> overrides the general model setting")
}

func TestIsValidKey(t *testing.T) {
	assert.True(t, IsValidKey("agency_mode"))
	assert.True(t, IsValidKey("model_tasks"))
	assert.False(t, IsValidKey("model_nonexistent_command"))
	assert.False(t, IsValidKey("totally_unknown"))
}
