package store

import (
	"fmt"
	"sort"
	"strings"
)

// CommandTags enumerates the fixed set of command tags that
// model_<command> override keys are valid for, per §3. These mirror
// the admin's own command set plus the llm service action's "command"
// argument, since both are candidate model-override call sites.
var CommandTags = []string{"help", "status", "agents", "tasks", "events", "settings", "set", "reflect", "extract"}

// DefaultSettings are the values returned for keys nobody has set yet.
var DefaultSettings = map[string]string{
	"agency_mode":         "suggest",
	"context_tasks_days":  "7",
	"context_events_days": "3",
	"model":               "",
}

// Settings is the typed view over the shared DB for the settings map.
type Settings struct {
	db *DB
}

// NewSettings returns a Settings store bound to db.
func NewSettings(db *DB) *Settings { return &Settings{db: db} }

// Get returns the effective value of key: a persisted override if one
// exists, else the built-in default, else "" for unknown keys.
func (s *Settings) Get(key string) (string, error) {
	var value string
	err := s.db.conn.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == nil {
		return value, nil
	}
	if def, ok := DefaultSettings[key]; ok {
		return def, nil
	}
	return "", nil
}

// Set persists key=value, overwriting any existing value.
func (s *Settings) Set(key, value string) error {
	_, err := s.db.conn.Exec(
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("settings: set %s: %w", key, err)
	}
	return nil
}

// GetModel resolves the model to use for an LLM call: explicit
// argument (handled by the caller before this is reached) → settings
// model_<command> → settings model → "" (built-in default tag is the
// caller's concern per §4.4).
func (s *Settings) GetModel(command string) (string, error) {
	if command != "" {
		perCommand, err := s.Get("model_" + command)
		if err != nil {
			return "", err
		}
		if perCommand != "" {
			return perCommand, nil
		}
	}
	return s.Get("model")
}

// LoadAll returns the defaults merged with every stored key (including
// model_<command> overrides and keys IsValidKey does not recognise).
// The map is unordered; admin's "settings" command sorts it with
// SortedKeys before dumping it.
func (s *Settings) LoadAll() (map[string]string, error) {
	out := make(map[string]string, len(DefaultSettings))
	for k, v := range DefaultSettings {
		out[k] = v
	}

	rows, err := s.db.conn.Query(`SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("settings: load all: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

// SortedKeys returns the keys of m in ascending order, for callers
// that need LoadAll's result in a stable display order.
func SortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsValidKey reports whether key is one of the recognised defaults or
// a model_<command> override for a known command tag. Unknown keys
// are still accepted by Set per §3 — this only flags them.
func IsValidKey(key string) bool {
	if _, ok := DefaultSettings[key]; ok {
		return true
	}
	if rest, found := strings.CutPrefix(key, "model_"); found {
		for _, tag := range CommandTags {
			if tag == rest {
				return true
			}
		}
	}
	return false
}
