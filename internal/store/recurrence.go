package store

import (
	"fmt"
	"sort"
	"time"
)

// Occurrence is one expanded instance of an event within a query
// window: either the event itself (non-recurring) or one step of its
// recurrence rule.
type Occurrence struct {
	EventID   int64
	Title     string
	StartTime time.Time
	EndTime   *time.Time
}

const maxRecurrenceIterations = 1000

// ExpandRecurrence implements §4.3.1: given ev's start S, optional end
// E (duration D = E-S), its recurrence rule, and a query window
// [w0, w1], return every occurrence whose start falls in the window.
// A non-recurring event is emitted iff its start falls in the window.
func ExpandRecurrence(ev Event, w0, w1 time.Time) ([]Occurrence, error) {
	start, err := parseTimestamp(ev.StartTime)
	if err != nil {
		return nil, fmt.Errorf("recurrence: parse start_time: %w", err)
	}

	var duration time.Duration
	haveDuration := false
	if ev.EndTime != nil {
		end, err := parseTimestamp(*ev.EndTime)
		if err != nil {
			return nil, fmt.Errorf("recurrence: parse end_time: %w", err)
		}
		duration = end.Sub(start)
		haveDuration = true
	}

	if ev.Rule == nil {
		if inWindow(start, w0, w1) {
			return []Occurrence{occurrenceAt(ev, start, duration, haveDuration)}, nil
		}
		return nil, nil
	}

	var recEnd *time.Time
	if ev.Rule.EndDate != nil {
		t, err := parseTimestamp(*ev.Rule.EndDate)
		if err != nil {
			return nil, fmt.Errorf("recurrence: parse end_date: %w", err)
		}
		recEnd = &t
	}

	interval := ev.Rule.Interval
	if interval < 1 {
		interval = 1
	}

	var out []Occurrence
	current := start
	for step := 0; step < maxRecurrenceIterations; step++ {
		if current.After(w1) {
			break
		}
		if recEnd != nil && current.After(*recEnd) {
			break
		}
		if inWindow(current, w0, w1) {
			out = append(out, occurrenceAt(ev, current, duration, haveDuration))
		}
		current = advanceOnce(current, ev.Rule.Frequency, interval)
	}

	sortOccurrences(out)
	return out, nil
}

func occurrenceAt(ev Event, start time.Time, duration time.Duration, haveDuration bool) Occurrence {
	occ := Occurrence{EventID: ev.ID, Title: ev.Title, StartTime: start}
	if haveDuration {
		end := start.Add(duration)
		occ.EndTime = &end
	}
	return occ
}

func inWindow(t, w0, w1 time.Time) bool {
	return !t.Before(w0) && !t.After(w1)
}

// advanceOnce steps current forward by one occurrence, chained off the
// previous occurrence rather than recomputed from the event's original
// start — matching the original implementation's _add_months(current,
// interval) accumulation. Monthly and yearly steps clamp the
// day-of-month to the last valid day of the target month using
// whatever day the PREVIOUS (already clamped) occurrence landed on, so
// a clamp on one step carries into the next: "Jan 31 + 1 month" lands
// on Feb 28, and "Feb 28 + 1 month" lands on Mar 28, not back on the
// 31st.
func advanceOnce(current time.Time, freq RecurrenceFrequency, interval int) time.Time {
	switch freq {
	case FrequencyDaily:
		return current.AddDate(0, 0, interval)
	case FrequencyWeekly:
		return current.AddDate(0, 0, 7*interval)
	case FrequencyMonthly:
		return addMonthsClamped(current, interval)
	case FrequencyYearly:
		return addMonthsClamped(current, 12*interval)
	default:
		return current.AddDate(0, 0, interval)
	}
}

func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	targetMonthIndex := int(month) - 1 + months
	targetYear := year + targetMonthIndex/12
	targetMonth := time.Month(targetMonthIndex%12 + 1)
	if targetMonthIndex%12 < 0 {
		targetMonth += 12
		targetYear--
	}

	lastDay := lastDayOfMonth(targetYear, targetMonth)
	if day > lastDay {
		day = lastDay
	}

	return time.Date(targetYear, targetMonth, day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func lastDayOfMonth(year int, month time.Month) int {
	firstOfNext := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC)
	lastOfThis := firstOfNext.AddDate(0, 0, -1)
	return lastOfThis.Day()
}

func parseTimestamp(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

func nowTime() time.Time {
	return time.Now().UTC()
}

func daysDuration(days int) time.Duration {
	return time.Duration(days) * 24 * time.Hour
}

func sortOccurrences(occs []Occurrence) {
	sort.Slice(occs, func(i, j int) bool {
		return occs[i].StartTime.Before(occs[j].StartTime)
	})
}
