// Package agents holds agent definitions and the name-keyed registry used
// by the dispatcher to resolve chat directives.
package agents

// Agent describes a registered agent identity. Agents are registered once
// at session initialization and are immutable thereafter.
type Agent struct {
	// Name is the human-readable agent name, e.g. "System Triage Agent".
	Name string `yaml:"name"`
	// Description is shown to sibling agents when deciding hand-offs.
	Description string `yaml:"description"`
	// Instructions is the system prompt for the agent's reasoning loop.
	Instructions string `yaml:"instructions"`
	// Team lists the names of agents this agent may hand off to. Only the
	// triage agent's team is used to populate the registry.
	Team []string `yaml:"team,omitempty"`
}
