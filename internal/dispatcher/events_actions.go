package dispatcher

import (
	"fmt"

	"github.com/inkwell/core/internal/store"
)

func (d *Dispatcher) dispatchEvents(action string, params map[string]any) (any, error) {
	switch action {
	case "create":
		title, err := requireString(params, "title")
		if err != nil {
			return nil, err
		}
		startTime, err := requireString(params, "start_time")
		if err != nil {
			return nil, err
		}
		return d.events.Create(
			title, startTime,
			optionalStringPtr(params, "end_time"),
			optionalStringPtr(params, "location"),
			optionalStringPtr(params, "notes"),
			recurrenceRuleFromParams(params),
		)

	case "list":
		return d.events.List()

	case "get":
		id, err := requireInt64(params, "id")
		if err != nil {
			return nil, err
		}
		return d.events.Get(id)

	case "update":
		id, err := requireInt64(params, "id")
		if err != nil {
			return nil, err
		}
		return d.events.Update(
			id,
			optionalStringPtr(params, "title"),
			optionalStringPtr(params, "start_time"),
			optionalStringPtr(params, "end_time"),
			optionalStringPtr(params, "location"),
			optionalStringPtr(params, "notes"),
		)

	case "delete":
		id, err := requireInt64(params, "id")
		if err != nil {
			return nil, err
		}
		return nil, d.events.Delete(id)

	case "upcoming":
		return d.events.Upcoming(paramInt(params, "days", 3), paramInt(params, "limit", 0))

	default:
		return nil, fmt.Errorf("unknown events action: %s", action)
	}
}

func recurrenceRuleFromParams(params map[string]any) *store.RecurrenceRule {
	freq, ok := paramString(params, "frequency")
	if !ok || freq == "" {
		return nil
	}
	return &store.RecurrenceRule{
		Frequency: store.RecurrenceFrequency(freq),
		Interval:  paramInt(params, "interval", 1),
		EndDate:   optionalStringPtr(params, "end_date"),
	}
}
