package dispatcher

import (
	"fmt"

	"github.com/inkwell/core/internal/store"
)

func (d *Dispatcher) dispatchTasks(action string, params map[string]any) (any, error) {
	switch action {
	case "create":
		title, err := requireString(params, "title")
		if err != nil {
			return nil, err
		}
		return d.tasks.Create(title, optionalStringPtr(params, "due_date"))

	case "list":
		return d.tasks.List(paramBool(params, "include_done", false))

	case "get":
		id, err := requireInt64(params, "id")
		if err != nil {
			return nil, err
		}
		return d.tasks.Get(id)

	case "update":
		id, err := requireInt64(params, "id")
		if err != nil {
			return nil, err
		}
		var status *store.TaskStatus
		if s, ok := paramString(params, "status"); ok {
			ts := store.TaskStatus(s)
			status = &ts
		}
		_, clearDue := params["clear_due_date"]
		return d.tasks.Update(id, optionalStringPtr(params, "title"), status, optionalStringPtr(params, "due_date"), clearDue && paramBool(params, "clear_due_date", false))

	case "delete":
		id, err := requireInt64(params, "id")
		if err != nil {
			return nil, err
		}
		return nil, d.tasks.Delete(id)

	case "upcoming":
		return d.tasks.Upcoming(paramInt(params, "days", 7), paramInt(params, "limit", 0))

	default:
		return nil, fmt.Errorf("unknown tasks action: %s", action)
	}
}
