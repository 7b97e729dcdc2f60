// Package notestore is the per-agent, filesystem-backed half of the
// core's storage model (§3's "per-agent note tree"): raw input
// buffers, a topic index, per-topic note feeds and synthesis
// documents, unfiled drafts, and two high-water-mark timestamps.
//
// Grounded on the teacher's (tenzoki-agen/code/cellorg) convention of
// giving each owned resource its own directory rooted under a single
// injected data directory, generalized here to one root per agent so
// that cross-agent isolation falls out of using distinct path roots —
// no locking required, matching §5's resource-scope note.
//
// Called by: dispatcher, for every `storage` service action, scoped
// to the requesting agent's id.
package notestore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// NoteLogEntry mirrors §3's NoteLogEntry: one line of a noteBuffer.
type NoteLogEntry struct {
	Time   string `json:"time"`
	Source string `json:"source"`
	Text   string `json:"text"`
}

// TopicInfo mirrors §3's TopicInfo.
type TopicInfo struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Slug    string `json:"slug"`
	Created string `json:"created"`
}

// Store owns one agent's note tree, rooted at a directory exclusive
// to that agent.
type Store struct {
	root string
}

// New returns a Store rooted at root, creating the directory tree if
// it does not yet exist.
func New(root string) (*Store, error) {
	s := &Store{root: root}
	for _, dir := range []string{s.root, s.topicsDir(), s.draftsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("notestore: create %s: %w", dir, err)
		}
	}
	return s, nil
}

func (s *Store) bufferPath() string   { return filepath.Join(s.root, "buffer.jsonl") }
func (s *Store) topicsDir() string    { return filepath.Join(s.root, "topics") }
func (s *Store) topicsIndex() string  { return filepath.Join(s.root, "topics.json") }
func (s *Store) draftsDir() string    { return filepath.Join(s.root, "drafts") }
func (s *Store) statePath() string    { return filepath.Join(s.root, "state.json") }
func (s *Store) topicDir(slug string) string {
	return filepath.Join(s.topicsDir(), slug)
}

// SaveRawInput appends one NoteLogEntry to the agent's unfiled note
// buffer.
func (s *Store) SaveRawInput(source, text string) error {
	return appendEntry(s.bufferPath(), NoteLogEntry{Time: nowISO(), Source: source, Text: text})
}

// ParseBuffer returns every entry currently in the unfiled buffer.
func (s *Store) ParseBuffer() ([]NoteLogEntry, error) {
	return readEntries(s.bufferPath())
}

// ClearBuffer empties the unfiled buffer.
func (s *Store) ClearBuffer() error {
	return os.WriteFile(s.bufferPath(), nil, 0o644)
}

// WriteBuffer replaces the unfiled buffer's contents wholesale, used
// when re-filing entries that were parsed out, edited, and written
// back.
func (s *Store) WriteBuffer(entries []NoteLogEntry) error {
	return writeEntries(s.bufferPath(), entries)
}

// LoadTopicIndex returns every topic this agent owns.
func (s *Store) LoadTopicIndex() ([]TopicInfo, error) {
	data, err := os.ReadFile(s.topicsIndex())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("notestore: load topic index: %w", err)
	}
	var topics []TopicInfo
	if err := json.Unmarshal(data, &topics); err != nil {
		return nil, fmt.Errorf("notestore: load topic index: %w", err)
	}
	return topics, nil
}

// SaveTopicIndex overwrites the full topic index.
func (s *Store) SaveTopicIndex(topics []TopicInfo) error {
	data, err := json.MarshalIndent(topics, "", "  ")
	if err != nil {
		return fmt.Errorf("notestore: save topic index: %w", err)
	}
	return os.WriteFile(s.topicsIndex(), data, 0o644)
}

var slugCollapse = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify implements §3's slug rule: lowercase, non-alphanumeric runs
// collapsed to a single hyphen, hyphens trimmed from both ends.
func Slugify(name string) string {
	slug := slugCollapse.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(slug, "-")
}

// AddTopic creates a new topic directory and index entry, assigning
// the next per-agent auto-incrementing id starting at 1. Returns the
// existing TopicInfo unchanged if a topic with the same slug already
// exists.
func (s *Store) AddTopic(name string) (TopicInfo, error) {
	slug := Slugify(name)
	if slug == "" {
		return TopicInfo{}, fmt.Errorf("notestore: add topic: slug of %q is empty", name)
	}

	topics, err := s.LoadTopicIndex()
	if err != nil {
		return TopicInfo{}, err
	}
	for _, t := range topics {
		if t.Slug == slug {
			return t, nil
		}
	}

	maxID := 0
	for _, t := range topics {
		if t.ID > maxID {
			maxID = t.ID
		}
	}
	topic := TopicInfo{ID: maxID + 1, Name: name, Slug: slug, Created: nowISO()}
	topics = append(topics, topic)
	if err := s.SaveTopicIndex(topics); err != nil {
		return TopicInfo{}, err
	}

	for _, dir := range []string{s.topicDir(slug), filepath.Join(s.topicDir(slug), "notes")} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return TopicInfo{}, fmt.Errorf("notestore: add topic: %w", err)
		}
	}
	return topic, nil
}

// FindTopic looks a topic up by name or slug.
func (s *Store) FindTopic(nameOrSlug string) (TopicInfo, bool, error) {
	topics, err := s.LoadTopicIndex()
	if err != nil {
		return TopicInfo{}, false, err
	}
	slug := Slugify(nameOrSlug)
	for _, t := range topics {
		if t.Slug == slug || t.Name == nameOrSlug {
			return t, true, nil
		}
	}
	return TopicInfo{}, false, nil
}

// LoadTopicBuffer returns the topic-scoped noteBuffer entries.
func (s *Store) LoadTopicBuffer(slug string) ([]NoteLogEntry, error) {
	return readEntries(filepath.Join(s.topicDir(slug), "buffer.jsonl"))
}

// SaveTopicBuffer overwrites the topic-scoped noteBuffer.
func (s *Store) SaveTopicBuffer(slug string, entries []NoteLogEntry) error {
	return writeEntries(filepath.Join(s.topicDir(slug), "buffer.jsonl"), entries)
}

// LoadTopicNoteFeed returns the topic's long-form markdown feed.
func (s *Store) LoadTopicNoteFeed(slug string) (string, error) {
	return readFileOrEmpty(filepath.Join(s.topicDir(slug), "feed.md"))
}

// SaveTopicNoteFeed overwrites the topic's long-form markdown feed.
func (s *Store) SaveTopicNoteFeed(slug, content string) error {
	return os.WriteFile(filepath.Join(s.topicDir(slug), "feed.md"), []byte(content), 0o644)
}

// LoadTopicSynthesis returns the topic's LLM-generated synthesis document.
func (s *Store) LoadTopicSynthesis(slug string) (string, error) {
	return readFileOrEmpty(filepath.Join(s.topicDir(slug), "synthesis.md"))
}

// SaveTopicSynthesis overwrites the topic's synthesis document.
func (s *Store) SaveTopicSynthesis(slug, content string) error {
	return os.WriteFile(filepath.Join(s.topicDir(slug), "synthesis.md"), []byte(content), 0o644)
}

// ListTopicNotes returns the names of a topic's long-form note files.
func (s *Store) ListTopicNotes(slug string) ([]string, error) {
	return listMarkdownFiles(filepath.Join(s.topicDir(slug), "notes"))
}

// LoadTopicNote returns one topic note's content by name.
func (s *Store) LoadTopicNote(slug, name string) (string, error) {
	return readFileOrEmpty(filepath.Join(s.topicDir(slug), "notes", noteFilename(name)))
}

// SaveTopicNote overwrites one topic note's content by name.
func (s *Store) SaveTopicNote(slug, name, content string) error {
	return os.WriteFile(filepath.Join(s.topicDir(slug), "notes", noteFilename(name)), []byte(content), 0o644)
}

// CreateTopicNote creates a new, empty topic note, failing if a note
// with that name already exists.
func (s *Store) CreateTopicNote(slug, name string) error {
	path := filepath.Join(s.topicDir(slug), "notes", noteFilename(name))
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("notestore: topic note %s/%s already exists", slug, name)
	}
	return os.WriteFile(path, nil, 0o644)
}

// ListDrafts returns the names of unfiled drafts.
func (s *Store) ListDrafts() ([]string, error) {
	return listMarkdownFiles(s.draftsDir())
}

// LoadDraft returns one draft's content by name.
func (s *Store) LoadDraft(name string) (string, error) {
	return readFileOrEmpty(filepath.Join(s.draftsDir(), noteFilename(name)))
}

// SaveDraft overwrites one draft's content by name.
func (s *Store) SaveDraft(name, content string) error {
	return os.WriteFile(filepath.Join(s.draftsDir(), noteFilename(name)), []byte(content), 0o644)
}

// CreateDraft creates a new, empty draft, failing if a draft with that
// name already exists.
func (s *Store) CreateDraft(name string) error {
	path := filepath.Join(s.draftsDir(), noteFilename(name))
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("notestore: draft %s already exists", name)
	}
	return os.WriteFile(path, nil, 0o644)
}

// MergeTopics folds sourceSlug's buffer, feed, synthesis, and notes
// into targetSlug, then removes the source topic from the index and
// disk. Conflicting note filenames are suffixed with the source slug
// rather than overwritten.
func (s *Store) MergeTopics(sourceSlug, targetSlug string) error {
	if sourceSlug == targetSlug {
		return fmt.Errorf("notestore: merge topics: source and target are the same")
	}
	topics, err := s.LoadTopicIndex()
	if err != nil {
		return err
	}
	var source, target *TopicInfo
	kept := make([]TopicInfo, 0, len(topics))
	for i := range topics {
		switch topics[i].Slug {
		case sourceSlug:
			source = &topics[i]
		case targetSlug:
			target = &topics[i]
			kept = append(kept, topics[i])
		default:
			kept = append(kept, topics[i])
		}
	}
	if source == nil {
		return fmt.Errorf("notestore: merge topics: unknown source topic %q", sourceSlug)
	}
	if target == nil {
		return fmt.Errorf("notestore: merge topics: unknown target topic %q", targetSlug)
	}

	sourceEntries, err := s.LoadTopicBuffer(sourceSlug)
	if err != nil {
		return err
	}
	targetEntries, err := s.LoadTopicBuffer(targetSlug)
	if err != nil {
		return err
	}
	if err := s.SaveTopicBuffer(targetSlug, append(targetEntries, sourceEntries...)); err != nil {
		return err
	}

	if err := concatMarkdown(s, sourceSlug, targetSlug, "feed.md"); err != nil {
		return err
	}
	if err := concatMarkdown(s, sourceSlug, targetSlug, "synthesis.md"); err != nil {
		return err
	}

	names, err := s.ListTopicNotes(sourceSlug)
	if err != nil {
		return err
	}
	for _, name := range names {
		content, err := s.LoadTopicNote(sourceSlug, name)
		if err != nil {
			return err
		}
		destName := name
		if _, err := os.Stat(filepath.Join(s.topicDir(targetSlug), "notes", noteFilename(destName))); err == nil {
			destName = strings.TrimSuffix(name, ".md") + "-" + sourceSlug + ".md"
		}
		if err := s.SaveTopicNote(targetSlug, destName, content); err != nil {
			return err
		}
	}

	if err := os.RemoveAll(s.topicDir(sourceSlug)); err != nil {
		return fmt.Errorf("notestore: merge topics: remove source dir: %w", err)
	}
	return s.SaveTopicIndex(kept)
}

func concatMarkdown(s *Store, sourceSlug, targetSlug, filename string) error {
	sourcePath := filepath.Join(s.topicDir(sourceSlug), filename)
	targetPath := filepath.Join(s.topicDir(targetSlug), filename)
	sourceContent, err := readFileOrEmpty(sourcePath)
	if err != nil {
		return err
	}
	if sourceContent == "" {
		return nil
	}
	targetContent, err := readFileOrEmpty(targetPath)
	if err != nil {
		return err
	}
	merged := targetContent
	if merged != "" {
		merged += "\n\n"
	}
	merged += sourceContent
	return os.WriteFile(targetPath, []byte(merged), 0o644)
}

type state struct {
	LastAggregateTime string `json:"last_aggregate_time"`
	LastSyncTime      string `json:"last_sync_time"`
}

func (s *Store) loadState() (state, error) {
	data, err := os.ReadFile(s.statePath())
	if os.IsNotExist(err) {
		return state{}, nil
	}
	if err != nil {
		return state{}, fmt.Errorf("notestore: load state: %w", err)
	}
	var st state
	if err := json.Unmarshal(data, &st); err != nil {
		return state{}, fmt.Errorf("notestore: load state: %w", err)
	}
	return st, nil
}

func (s *Store) saveState(st state) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("notestore: save state: %w", err)
	}
	return os.WriteFile(s.statePath(), data, 0o644)
}

// GetLastAggregateTime returns the agent's last_aggregate high-water mark.
func (s *Store) GetLastAggregateTime() (string, error) {
	st, err := s.loadState()
	return st.LastAggregateTime, err
}

// SetLastAggregateTime updates the agent's last_aggregate high-water mark.
func (s *Store) SetLastAggregateTime(value string) error {
	st, err := s.loadState()
	if err != nil {
		return err
	}
	st.LastAggregateTime = value
	return s.saveState(st)
}

// GetLastSyncTime returns the agent's last_sync high-water mark.
func (s *Store) GetLastSyncTime() (string, error) {
	st, err := s.loadState()
	return st.LastSyncTime, err
}

// SetLastSyncTime updates the agent's last_sync high-water mark.
func (s *Store) SetLastSyncTime(value string) error {
	st, err := s.loadState()
	if err != nil {
		return err
	}
	st.LastSyncTime = value
	return s.saveState(st)
}

func noteFilename(name string) string {
	if strings.HasSuffix(name, ".md") {
		return name
	}
	return name + ".md"
}

func listMarkdownFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("notestore: list %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".md") {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func readFileOrEmpty(path string) (string, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("notestore: read %s: %w", path, err)
	}
	return string(data), nil
}

func appendEntry(path string, entry NoteLogEntry) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("notestore: append %s: %w", path, err)
	}
	defer f.Close()

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("notestore: append %s: %w", path, err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("notestore: append %s: %w", path, err)
	}
	return f.Sync()
}

func readEntries(path string) ([]NoteLogEntry, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("notestore: read %s: %w", path, err)
	}

	var out []NoteLogEntry
	for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		if line == "" {
			continue
		}
		var entry NoteLogEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, fmt.Errorf("notestore: read %s: decode line: %w", path, err)
		}
		out = append(out, entry)
	}
	return out, nil
}

func writeEntries(path string, entries []NoteLogEntry) error {
	var b strings.Builder
	for _, e := range entries {
		line, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("notestore: write %s: %w", path, err)
		}
		b.Write(line)
		b.WriteByte('\n')
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// AgentRoot derives the filesystem root for an agent's note tree from
// a shared notes directory and the agent's id. Agent ids may contain
// characters (like the registry's "-<n>" suffix) that are already
// filesystem-safe, so no further escaping is applied beyond rejecting
// path separators outright.
func AgentRoot(notesDir, agentID string) (string, error) {
	if strings.ContainsAny(agentID, "/\\") {
		return "", fmt.Errorf("notestore: agent id %q is not a valid path component", agentID)
	}
	return filepath.Join(notesDir, agentID), nil
}
