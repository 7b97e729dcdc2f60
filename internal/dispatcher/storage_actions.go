package dispatcher

import (
	"fmt"

	"github.com/inkwell/core/internal/notestore"
)

// dispatchStorage implements the `storage` service's actions (§4.3),
// every one of which is scoped to requester's own note tree — no
// storage action ever touches another agent's files.
func (d *Dispatcher) dispatchStorage(requester, action string, params map[string]any) (any, error) {
	if requester == "" {
		return nil, fmt.Errorf("storage actions require a requesting agent id")
	}
	notes, err := d.noteStoreFor(requester)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}

	switch action {
	case "save_raw_input":
		source, _ := paramString(params, "source")
		text, err := requireString(params, "text")
		if err != nil {
			return nil, err
		}
		return nil, notes.SaveRawInput(source, text)

	case "parse_buffer":
		return notes.ParseBuffer()

	case "clear_buffer":
		return nil, notes.ClearBuffer()

	case "write_buffer":
		return nil, notes.WriteBuffer(entriesFromParams(params))

	case "load_topic_index":
		return notes.LoadTopicIndex()

	case "save_topic_index":
		return nil, notes.SaveTopicIndex(topicsFromParams(params))

	case "add_topic":
		name, err := requireString(params, "name")
		if err != nil {
			return nil, err
		}
		return notes.AddTopic(name)

	case "find_topic":
		name, err := requireString(params, "name")
		if err != nil {
			return nil, err
		}
		topic, ok, err := notes.FindTopic(name)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		return topic, nil

	case "load_topic_buffer":
		slug, err := requireString(params, "slug")
		if err != nil {
			return nil, err
		}
		return notes.LoadTopicBuffer(slug)

	case "save_topic_buffer":
		slug, err := requireString(params, "slug")
		if err != nil {
			return nil, err
		}
		return nil, notes.SaveTopicBuffer(slug, entriesFromParams(params))

	case "load_topic_note_feed":
		slug, err := requireString(params, "slug")
		if err != nil {
			return nil, err
		}
		return notes.LoadTopicNoteFeed(slug)

	case "save_topic_note_feed":
		slug, err := requireString(params, "slug")
		if err != nil {
			return nil, err
		}
		content, _ := paramString(params, "content")
		return nil, notes.SaveTopicNoteFeed(slug, content)

	case "load_topic_synthesis":
		slug, err := requireString(params, "slug")
		if err != nil {
			return nil, err
		}
		return notes.LoadTopicSynthesis(slug)

	case "save_topic_synthesis":
		slug, err := requireString(params, "slug")
		if err != nil {
			return nil, err
		}
		content, _ := paramString(params, "content")
		return nil, notes.SaveTopicSynthesis(slug, content)

	case "list_topic_note":
		slug, err := requireString(params, "slug")
		if err != nil {
			return nil, err
		}
		return notes.ListTopicNotes(slug)

	case "load_topic_note":
		slug, err := requireString(params, "slug")
		if err != nil {
			return nil, err
		}
		name, err := requireString(params, "name")
		if err != nil {
			return nil, err
		}
		return notes.LoadTopicNote(slug, name)

	case "save_topic_note":
		slug, err := requireString(params, "slug")
		if err != nil {
			return nil, err
		}
		name, err := requireString(params, "name")
		if err != nil {
			return nil, err
		}
		content, _ := paramString(params, "content")
		return nil, notes.SaveTopicNote(slug, name, content)

	case "create_topic_note":
		slug, err := requireString(params, "slug")
		if err != nil {
			return nil, err
		}
		name, err := requireString(params, "name")
		if err != nil {
			return nil, err
		}
		return nil, notes.CreateTopicNote(slug, name)

	case "list_draft":
		return notes.ListDrafts()

	case "load_draft":
		name, err := requireString(params, "name")
		if err != nil {
			return nil, err
		}
		return notes.LoadDraft(name)

	case "save_draft":
		name, err := requireString(params, "name")
		if err != nil {
			return nil, err
		}
		content, _ := paramString(params, "content")
		return nil, notes.SaveDraft(name, content)

	case "create_draft":
		name, err := requireString(params, "name")
		if err != nil {
			return nil, err
		}
		return nil, notes.CreateDraft(name)

	case "merge_topics":
		source, err := requireString(params, "source_slug")
		if err != nil {
			return nil, err
		}
		target, err := requireString(params, "target_slug")
		if err != nil {
			return nil, err
		}
		return nil, notes.MergeTopics(source, target)

	case "get_last_aggregate_time":
		return notes.GetLastAggregateTime()

	case "set_last_aggregate_time":
		value, err := requireString(params, "value")
		if err != nil {
			return nil, err
		}
		return nil, notes.SetLastAggregateTime(value)

	case "get_last_sync_time":
		return notes.GetLastSyncTime()

	case "set_last_sync_time":
		value, err := requireString(params, "value")
		if err != nil {
			return nil, err
		}
		return nil, notes.SetLastSyncTime(value)

	default:
		return nil, fmt.Errorf("unknown storage action: %s", action)
	}
}

func entriesFromParams(params map[string]any) []notestore.NoteLogEntry {
	raw, ok := params["entries"].([]any)
	if !ok {
		return nil
	}
	out := make([]notestore.NoteLogEntry, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		entry := notestore.NoteLogEntry{}
		entry.Time, _ = m["time"].(string)
		entry.Source, _ = m["source"].(string)
		entry.Text, _ = m["text"].(string)
		out = append(out, entry)
	}
	return out
}

func topicsFromParams(params map[string]any) []notestore.TopicInfo {
	raw, ok := params["topics"].([]any)
	if !ok {
		return nil
	}
	out := make([]notestore.TopicInfo, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		var topic notestore.TopicInfo
		if id, ok := m["id"].(float64); ok {
			topic.ID = int(id)
		}
		topic.Name, _ = m["name"].(string)
		topic.Slug, _ = m["slug"].(string)
		topic.Created, _ = m["created"].(string)
		out = append(out, topic)
	}
	return out
}
