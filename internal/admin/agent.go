package admin

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/inkwell/core/internal/envelope"
	"github.com/inkwell/core/internal/llmqueue"
	"github.com/inkwell/core/internal/registry"
	"github.com/inkwell/core/internal/store"
)

// defaultModelTag mirrors the dispatcher's built-in fallback (§4.4's
// model resolution order ends here when nothing else names a model).
// Admin calls the queue directly rather than through the llm service
// action, so it carries its own copy of the same default.
const defaultModelTag = "claude-3-5-haiku-latest"

// Forwarder is the subset of *router.Router the admin agent needs:
// handing a command envelope off to another agent's connection while
// preserving the original envelope id, so the client's pending Future
// resolves against the downstream agent's reply. Satisfied
// structurally by *router.Router without an import — admin has no
// reason to depend on router's package beyond this one method.
type Forwarder interface {
	ForwardCommand(env envelope.Envelope, conn registry.Conn)
}

// Agent is the core's privileged, in-process default agent.
type Agent struct {
	registry  *registry.Registry
	forwarder Forwarder
	tasks     *store.Tasks
	events    *store.Events
	settings  *store.Settings
	queue     *llmqueue.Queue
	notesDir  string

	agentID string
}

// New builds an Agent. Register must be called before the agent can
// handle anything, since agentID is only assigned at registration.
func New(reg *registry.Registry, forwarder Forwarder, tasks *store.Tasks, events *store.Events, settings *store.Settings, queue *llmqueue.Queue, notesDir string) *Agent {
	return &Agent{
		registry:  reg,
		forwarder: forwarder,
		tasks:     tasks,
		events:    events,
		settings:  settings,
		queue:     queue,
		notesDir:  notesDir,
	}
}

// Register adds the admin to the registry as a privileged, connection-
// less agent and remembers the assigned id for AgentID/routing.
func (a *Agent) Register() string {
	entry := a.registry.Register(nil, Manifest(), true)
	a.agentID = entry.AgentID
	return a.agentID
}

// AgentID implements router.AdminHandler.
func (a *Agent) AgentID() string { return a.agentID }

// Handle implements router.AdminHandler: normalize the command
// envelope, then apply the routing priority from §4.5 — @mention,
// external command owner, admin's own commands, free text.
func (a *Agent) Handle(ctx context.Context, cmd envelope.Envelope, conn registry.Conn, respond func(envelope.Envelope)) {
	command, _ := cmd.Payload["command"].(string)
	text, _ := cmd.Payload["text"].(string)
	args, _ := cmd.Payload["args"].(map[string]any)
	if args == nil {
		args = map[string]any{}
	}

	if command == "" && text != "" {
		first, remainder, _ := strings.Cut(text, " ")
		first = strings.ToLower(first)
		if !ownCommands[first] && !strings.HasPrefix(first, "@") {
			a.handleFreeText(ctx, cmd, respond, text)
			return
		}
		command = first
		text = strings.TrimSpace(remainder)
	}

	if strings.HasPrefix(command, "@") {
		a.routeByMention(cmd, conn, respond, command[1:])
		return
	}

	if owner := a.registry.FindCommandOwner(command); owner != nil && owner.AgentID != a.agentID {
		forward := cmd
		forward.To = owner.AgentID
		a.forwarder.ForwardCommand(forward, conn)
		return
	}

	switch command {
	case "help":
		a.handleHelp(cmd, respond)
	case "status":
		a.handleStatus(cmd, respond)
	case "agents":
		a.handleAgents(cmd, respond)
	case "tasks":
		a.handleTasks(cmd, args, respond)
	case "events":
		a.handleEvents(cmd, args, respond)
	case "settings":
		a.handleSettings(cmd, respond)
	case "set":
		a.handleSet(cmd, args, text, respond)
	default:
		full := strings.TrimSpace(strings.TrimSpace(command + " " + text))
		if full != "" {
			a.handleFreeText(ctx, cmd, respond, full)
		} else {
			respond(respondError(cmd, a.agentID, "Unknown command: "+command))
		}
	}
}

// routeByMention implements priority 1 of §4.5's routing list:
// "@agent_name" forwards the whole command to the named agent, found
// by name or agent id.
func (a *Agent) routeByMention(cmd envelope.Envelope, conn registry.Conn, respond func(envelope.Envelope), name string) {
	for _, entry := range a.registry.AllAgents() {
		if entry.Name == name || entry.AgentID == name {
			forward := cmd
			forward.To = entry.AgentID
			a.forwarder.ForwardCommand(forward, conn)
			return
		}
	}
	respond(respondError(cmd, a.agentID, fmt.Sprintf("No agent named '%s'", name)))
}

// resolveModel applies the same order the dispatcher's llm service
// action uses (§4.4), minus the "explicit argument" step: admin's own
// commands never accept a model override from the caller.
func (a *Agent) resolveModel(command string) string {
	model, err := a.settings.GetModel(command)
	if err != nil || model == "" {
		return defaultModelTag
	}
	return model
}

func sortedAgents(entries []*registry.AgentEntry) []*registry.AgentEntry {
	sort.Slice(entries, func(i, j int) bool { return entries[i].AgentID < entries[j].AgentID })
	return entries
}

func (a *Agent) handleHelp(cmd envelope.Envelope, respond func(envelope.Envelope)) {
	var lines []string
	lines = append(lines, "Available commands:", "")
	lines = append(lines, "Admin:")
	for _, c := range Manifest().Commands {
		lines = append(lines, fmt.Sprintf("  %-16s %s", c.Name, c.Description))
	}

	for _, entry := range sortedAgents(a.registry.AllAgents()) {
		if entry.AgentID == a.agentID {
			continue
		}
		if len(entry.Manifest.Commands) == 0 {
			continue
		}
		lines = append(lines, "", fmt.Sprintf("%s (%s):", entry.Name, entry.AgentID))
		for _, c := range entry.Manifest.Commands {
			lines = append(lines, fmt.Sprintf("  %-16s %s", c.Name, c.Description))
		}
	}

	lines = append(lines, "", "Use @agent_name <text> to send directly to an agent.")
	respond(respondText(cmd, a.agentID, strings.Join(lines, "\n"), ""))
}

func (a *Agent) handleStatus(cmd envelope.Envelope, respond func(envelope.Envelope)) {
	agents := a.registry.AllAgents()
	openTasks, err := a.tasks.List(false)
	if err != nil {
		respond(respondError(cmd, a.agentID, err.Error()))
		return
	}
	upcoming, err := a.events.Upcoming(7, 0)
	if err != nil {
		respond(respondError(cmd, a.agentID, err.Error()))
		return
	}
	lines := []string{
		fmt.Sprintf("Agents: %d connected", len(agents)),
		fmt.Sprintf("Tasks:  %d open", len(openTasks)),
		fmt.Sprintf("Events: %d upcoming (7d)", len(upcoming)),
	}
	respond(respondText(cmd, a.agentID, strings.Join(lines, "\n"), ""))
}

func (a *Agent) handleAgents(cmd envelope.Envelope, respond func(envelope.Envelope)) {
	agents := sortedAgents(a.registry.AllAgents())
	if len(agents) == 0 {
		respond(respondText(cmd, a.agentID, "No agents connected.", ""))
		return
	}
	items := make([]string, 0, len(agents))
	for _, entry := range agents {
		priv := ""
		if entry.Privileged {
			priv = " (privileged)"
		}
		conn := "connected"
		if entry.Connection == nil {
			conn = "in-process"
		}
		items = append(items, fmt.Sprintf("%s: %s%s [%s]", entry.AgentID, entry.Name, priv, conn))
	}
	respond(respondList(cmd, a.agentID, items, "Connected Agents"))
}

func (a *Agent) handleTasks(cmd envelope.Envelope, args map[string]any, respond func(envelope.Envelope)) {
	includeDone, _ := args["all"].(bool)
	tasks, err := a.tasks.List(includeDone)
	if err != nil {
		respond(respondError(cmd, a.agentID, err.Error()))
		return
	}
	if len(tasks) == 0 {
		respond(respondText(cmd, a.agentID, "No tasks.", ""))
		return
	}
	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		due := ""
		if t.DueDate != nil {
			due = *t.DueDate
		}
		rows = append(rows, []string{strconv.FormatInt(t.ID, 10), t.Title, string(t.Status), due})
	}
	respond(respondTable(cmd, a.agentID, []string{"ID", "Title", "Status", "Due"}, rows, "Tasks"))
}

func (a *Agent) handleEvents(cmd envelope.Envelope, args map[string]any, respond func(envelope.Envelope)) {
	days := 7
	if d, ok := args["days"].(float64); ok {
		days = int(d)
	} else if d, ok := args["days"].(int); ok {
		days = d
	}

	occurrences, err := a.events.Upcoming(days, 0)
	if err != nil {
		respond(respondError(cmd, a.agentID, err.Error()))
		return
	}
	if len(occurrences) == 0 {
		respond(respondText(cmd, a.agentID, "No upcoming events.", ""))
		return
	}

	freqCache := make(map[int64]string)
	rows := make([][]string, 0, len(occurrences))
	for _, occ := range occurrences {
		freq, ok := freqCache[occ.EventID]
		if !ok {
			freq = ""
			if ev, err := a.events.Get(occ.EventID); err == nil && ev.Rule != nil {
				freq = string(ev.Rule.Frequency)
			}
			freqCache[occ.EventID] = freq
		}
		rows = append(rows, []string{
			strconv.FormatInt(occ.EventID, 10),
			occ.Title,
			occ.StartTime.Format("2006-01-02T15:04"),
			freq,
		})
	}
	respond(respondTable(cmd, a.agentID, []string{"ID", "Title", "Start", "Frequency"}, rows, "Upcoming Events"))
}

func (a *Agent) handleSettings(cmd envelope.Envelope, respond func(envelope.Envelope)) {
	all, err := a.settings.LoadAll()
	if err != nil {
		respond(respondError(cmd, a.agentID, err.Error()))
		return
	}
	if len(all) == 0 {
		respond(respondText(cmd, a.agentID, "No settings configured.", ""))
		return
	}
	lines := []string{"Current settings:"}
	for _, k := range store.SortedKeys(all) {
		lines = append(lines, fmt.Sprintf("  %s = %s", k, all[k]))
	}
	respond(respondText(cmd, a.agentID, strings.Join(lines, "\n"), ""))
}

func (a *Agent) handleSet(cmd envelope.Envelope, args map[string]any, text string, respond func(envelope.Envelope)) {
	key, _ := args["key"].(string)
	value := stringifyArg(args["value"])

	if key == "" && text != "" {
		parts := strings.SplitN(text, " ", 2)
		if len(parts) < 2 {
			respond(respondError(cmd, a.agentID, "Usage: set <key> <value>"))
			return
		}
		key, value = parts[0], parts[1]
	}
	if key == "" {
		respond(respondError(cmd, a.agentID, "Usage: set <key> <value>"))
		return
	}

	if !store.IsValidKey(key) {
		respond(respondText(cmd, a.agentID, fmt.Sprintf("Warning: '%s' is not a recognised setting key.", key), ""))
	}

	if err := a.settings.Set(key, value); err != nil {
		respond(respondError(cmd, a.agentID, err.Error()))
		return
	}
	respond(respondText(cmd, a.agentID, fmt.Sprintf("Setting '%s' set to '%s'.", key, value), ""))
}

// stringifyArg renders a structured-args "value" field (which may
// arrive as a JSON number, bool, or string) as the plain string the
// settings store persists.
func stringifyArg(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", val)
	}
}

// handleFreeText implements §4.5.3: reflect via the LLM at ADMIN
// priority, then — unless agency_mode is "off" — ask the LLM to
// extract tasks/events and create them via the shared stores.
func (a *Agent) handleFreeText(ctx context.Context, cmd envelope.Envelope, respond func(envelope.Envelope), text string) {
	persona := loadPersona(a.notesDir, a.agentID)
	system := fmt.Sprintf(systemPromptTemplate, persona, "", "")
	model := a.resolveModel("reflect")

	resultCh := a.queue.Submit(llmqueue.Request{
		Priority: llmqueue.PriorityAdmin,
		Prompt:   text,
		Model:    model,
		System:   system,
	})

	select {
	case result := <-resultCh:
		if result.Err != nil {
			respond(respondError(cmd, a.agentID, "LLM request failed"))
			return
		}
		respond(respondText(cmd, a.agentID, result.Text, ""))
	case <-ctx.Done():
		respond(respondError(cmd, a.agentID, "LLM request failed"))
		return
	}

	mode, err := a.settings.Get("agency_mode")
	if err != nil || mode == "off" {
		return
	}

	items := extractItems(ctx, a.queue, a.resolveModel("extract"), text)
	if len(items.Tasks) == 0 && len(items.Events) == 0 {
		return
	}
	created := applyExtractedItems(a.tasks, a.events, items)
	if len(created) > 0 {
		respond(respondText(cmd, a.agentID, "Auto-extracted:\n"+strings.Join(created, "\n"), ""))
	}
}
