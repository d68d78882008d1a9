// Package agents holds the conversational persona bundles. An agent is pure
// configuration — name, model choice, temperature, system prompt, welcome
// template — with no behavior of its own; the webhook pipeline resolves one
// per inbound payload and threads its settings into LLM calls.
package agents

import "strings"

// Agent is one persona configuration bundle.
type Agent struct {
	ID              string
	Name            string
	Model           string  // empty means "use the configured default model"
	Temperature     float64 // <0 means "use the configured default"
	SystemPrompt    string
	WelcomeTemplate string
}

// Registry resolves agent ids to configuration bundles. Lookups for unknown
// ids fall back to the default agent so a misconfigured payload still gets a
// working persona.
type Registry struct {
	agents    map[string]Agent
	defaultID string
}

// mandySystemPrompt is the house matchmaker persona used for the completed-
// interview conversational fallback and generic turns.
const mandySystemPrompt = `You are Mandy, a warm and upbeat matchmaker for friend groups.
You have already finished interviewing this group, so never re-ask interview
questions and never greet them as if the conversation just started. Keep
replies short, friendly, and focused on group matching. If asked something
outside group matching, answer briefly and steer back.`

const mandyWelcome = `Hey{{name}}! I'm Mandy 💫 I match friend groups with other friend groups.
I'll ask you ten quick questions about your crew, then find your group its
perfect counterpart. Ready? First up: what's your group's name?`

// NewRegistry builds the registry with the built-in personas. defaultID
// selects which persona answers when a payload omits or mislabels the agent;
// unknown defaultID values fall back to "mandy".
func NewRegistry(defaultID string) *Registry {
	builtin := []Agent{
		{
			ID:              "mandy",
			Name:            "Mandy",
			Temperature:     0.7,
			SystemPrompt:    mandySystemPrompt,
			WelcomeTemplate: mandyWelcome,
		},
	}

	m := make(map[string]Agent, len(builtin))
	for _, a := range builtin {
		m[a.ID] = a
	}

	defaultID = strings.TrimSpace(strings.ToLower(defaultID))
	if _, ok := m[defaultID]; !ok {
		defaultID = "mandy"
	}
	return &Registry{agents: m, defaultID: defaultID}
}

// Resolve returns the agent for id, or the default agent when id is empty
// or unknown.
func (r *Registry) Resolve(id string) Agent {
	id = strings.TrimSpace(strings.ToLower(id))
	if a, ok := r.agents[id]; ok {
		return a
	}
	return r.agents[r.defaultID]
}

// Welcome renders the agent's welcome template for an optional user name.
func (a Agent) Welcome(userName string) string {
	name := strings.TrimSpace(userName)
	if name != "" {
		name = " " + name
	}
	return strings.ReplaceAll(a.WelcomeTemplate, "{{name}}", name)
}
