package dispatcher

import (
	"fmt"

	"github.com/inkwell/core/internal/store"
)

func (d *Dispatcher) dispatchSettings(action string, params map[string]any) (any, error) {
	switch action {
	case "get":
		key, err := requireString(params, "key")
		if err != nil {
			return nil, err
		}
		return d.settings.Get(key)

	case "set":
		key, err := requireString(params, "key")
		if err != nil {
			return nil, err
		}
		value, err := requireString(params, "value")
		if err != nil {
			return nil, err
		}
		if err := d.settings.Set(key, value); err != nil {
			return nil, err
		}
		return map[string]any{"flagged": !store.IsValidKey(key)}, nil

	case "get_model":
		command, _ := paramString(params, "command")
		return d.settings.GetModel(command)

	case "load_all":
		return d.settings.LoadAll()

	case "is_valid_key":
		key, err := requireString(params, "key")
		if err != nil {
			return nil, err
		}
		return store.IsValidKey(key), nil

	default:
		return nil, fmt.Errorf("unknown settings action: %s", action)
	}
}
