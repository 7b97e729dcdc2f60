package dispatcher

import (
	"context"
	"fmt"

	"github.com/inkwell/core/internal/llmqueue"
)

// dispatchLLM implements the `llm` service's single action: chat. It
// resolves the model per §4.4's order (explicit argument → settings
// model_<command> → settings model → built-in default tag) and
// enqueues at AGENT priority — the admin agent bypasses this path
// entirely and submits to the queue directly at ADMIN priority.
func (d *Dispatcher) dispatchLLM(ctx context.Context, requester, action string, params map[string]any) (any, error) {
	if action != "chat" {
		return nil, fmt.Errorf("unknown llm action: %s", action)
	}

	prompt, err := requireString(params, "prompt")
	if err != nil {
		return nil, err
	}
	command, _ := paramString(params, "command")
	system, _ := paramString(params, "system")

	model, ok := paramString(params, "model")
	if !ok || model == "" {
		resolved, err := d.settings.GetModel(command)
		if err != nil {
			return nil, fmt.Errorf("llm: resolve model: %w", err)
		}
		model = resolved
	}
	if model == "" {
		model = defaultModelTag
	}

	resultCh := d.queue.Submit(llmqueue.Request{
		Priority: llmqueue.PriorityAgent,
		Prompt:   prompt,
		Model:    model,
		System:   system,
	})

	select {
	case result := <-resultCh:
		if result.Err != nil {
			return nil, result.Err
		}
		return map[string]any{"text": result.Text}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// defaultModelTag is the built-in fallback used when neither the
// caller nor settings name a model.
const defaultModelTag = "claude-3-5-haiku-latest"
