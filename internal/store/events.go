package store

import (
	"database/sql"
	"fmt"
)

// RecurrenceFrequency enumerates the valid values of RecurrenceRule.Frequency.
type RecurrenceFrequency string

const (
	FrequencyDaily   RecurrenceFrequency = "daily"
	FrequencyWeekly  RecurrenceFrequency = "weekly"
	FrequencyMonthly RecurrenceFrequency = "monthly"
	FrequencyYearly  RecurrenceFrequency = "yearly"
)

// RecurrenceRule mirrors §3's RecurrenceRule, owned 1:1 by an Event.
type RecurrenceRule struct {
	Frequency RecurrenceFrequency
	Interval  int
	EndDate   *string
}

// Event mirrors §3's Event record.
type Event struct {
	ID        int64
	Title     string
	StartTime string
	EndTime   *string
	Location  *string
	Notes     *string
	CreatedAt string
	UpdatedAt string
	Rule      *RecurrenceRule
}

// Events is the typed view over the shared DB for event operations.
type Events struct {
	db *DB
}

// NewEvents returns an Events store bound to db.
func NewEvents(db *DB) *Events { return &Events{db: db} }

// Create inserts a new event (with an optional recurrence rule),
// assigning the lowest id not currently in use.
func (e *Events) Create(title, startTime string, endTime, location, notes *string, rule *RecurrenceRule) (Event, error) {
	tx, err := e.db.conn.Begin()
	if err != nil {
		return Event{}, fmt.Errorf("events: create: %w", err)
	}
	defer tx.Rollback()

	id, err := lowestFreeID(tx, "events", "")
	if err != nil {
		return Event{}, fmt.Errorf("events: create: assign id: %w", err)
	}

	now := nowISO()
	_, err = tx.Exec(
		`INSERT INTO events (id, title, start_time, end_time, location, notes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, title, startTime, endTime, location, notes, now, now,
	)
	if err != nil {
		return Event{}, fmt.Errorf("events: create: %w", err)
	}

	if rule != nil {
		_, err = tx.Exec(
			`INSERT INTO recurrence_rules (event_id, frequency, interval, end_date) VALUES (?, ?, ?, ?)`,
			id, rule.Frequency, rule.Interval, rule.EndDate,
		)
		if err != nil {
			return Event{}, fmt.Errorf("events: create: rule: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Event{}, fmt.Errorf("events: create: %w", err)
	}

	return Event{
		ID: id, Title: title, StartTime: startTime, EndTime: endTime,
		Location: location, Notes: notes, CreatedAt: now, UpdatedAt: now, Rule: rule,
	}, nil
}

// Get fetches one event (with its recurrence rule, if any) by id.
func (e *Events) Get(id int64) (Event, error) {
	var ev Event
	var endTime, location, notes sql.NullString
	err := e.db.conn.QueryRow(
		`SELECT id, title, start_time, end_time, location, notes, created_at, updated_at
		 FROM events WHERE id = ?`, id,
	).Scan(&ev.ID, &ev.Title, &ev.StartTime, &endTime, &location, &notes, &ev.CreatedAt, &ev.UpdatedAt)
	if err == sql.ErrNoRows {
		return Event{}, fmt.Errorf("events: not found: %d", id)
	}
	if err != nil {
		return Event{}, fmt.Errorf("events: get %d: %w", id, err)
	}
	if endTime.Valid {
		ev.EndTime = &endTime.String
	}
	if location.Valid {
		ev.Location = &location.String
	}
	if notes.Valid {
		ev.Notes = &notes.String
	}

	ev.Rule, err = e.getRule(id)
	if err != nil {
		return Event{}, err
	}
	return ev, nil
}

func (e *Events) getRule(eventID int64) (*RecurrenceRule, error) {
	var rule RecurrenceRule
	var endDate sql.NullString
	err := e.db.conn.QueryRow(
		`SELECT frequency, interval, end_date FROM recurrence_rules WHERE event_id = ?`, eventID,
	).Scan(&rule.Frequency, &rule.Interval, &endDate)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("events: get rule %d: %w", eventID, err)
	}
	if endDate.Valid {
		rule.EndDate = &endDate.String
	}
	return &rule, nil
}

// List returns every event (without expanding recurrence).
func (e *Events) List() ([]Event, error) {
	rows, err := e.db.conn.Query(`SELECT id FROM events ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("events: list: %w", err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("events: list: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]Event, 0, len(ids))
	for _, id := range ids {
		ev, err := e.Get(id)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

// Update applies non-nil fields to the event with the given id. The
// event's recurrence rule is not changed by Update.
func (e *Events) Update(id int64, title, startTime, endTime, location, notes *string) (Event, error) {
	existing, err := e.Get(id)
	if err != nil {
		return Event{}, err
	}
	if title != nil {
		existing.Title = *title
	}
	if startTime != nil {
		existing.StartTime = *startTime
	}
	if endTime != nil {
		existing.EndTime = endTime
	}
	if location != nil {
		existing.Location = location
	}
	if notes != nil {
		existing.Notes = notes
	}
	existing.UpdatedAt = nowISO()

	_, err = e.db.conn.Exec(
		`UPDATE events SET title = ?, start_time = ?, end_time = ?, location = ?, notes = ?, updated_at = ?
		 WHERE id = ?`,
		existing.Title, existing.StartTime, existing.EndTime, existing.Location, existing.Notes, existing.UpdatedAt, existing.ID,
	)
	if err != nil {
		return Event{}, fmt.Errorf("events: update %d: %w", id, err)
	}
	return existing, nil
}

// Delete removes an event by id; its recurrence rule cascades via the
// foreign key declared in migrate().
func (e *Events) Delete(id int64) error {
	_, err := e.db.conn.Exec(`DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("events: delete %d: %w", id, err)
	}
	return nil
}

// Upcoming expands recurrence for every event against the window
// [now, now+days] and returns occurrences sorted by start time,
// truncated to limit (0 means unlimited).
func (e *Events) Upcoming(days, limit int) ([]Occurrence, error) {
	events, err := e.List()
	if err != nil {
		return nil, err
	}
	w0 := nowTime()
	w1 := w0.Add(daysDuration(days))

	var all []Occurrence
	for _, ev := range events {
		occs, err := ExpandRecurrence(ev, w0, w1)
		if err != nil {
			return nil, fmt.Errorf("events: upcoming: expand event %d: %w", ev.ID, err)
		}
		all = append(all, occs...)
	}
	sortOccurrences(all)
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}
