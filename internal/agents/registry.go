package agents

import (
	"fmt"
	"sort"
	"strings"
)

// NormalizeName joins whitespace-separated name parts with underscores so
// agent names can appear as single chat tokens ("System Triage Agent" ->
// "System_Triage_Agent").
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(name), "_")
}

// Registry maps normalized agent names to their definitions. A registry is
// built once per session initialization and is read-only afterwards, so no
// locking is required.
type Registry struct {
	agents map[string]Agent
	triage string
}

// NewRegistry builds a registry from a triage agent and the roster it draws
// its team from. Every team member must exist in the roster.
func NewRegistry(triage Agent, roster []Agent) (*Registry, error) {
	byName := make(map[string]Agent, len(roster))
	for _, a := range roster {
		byName[a.Name] = a
	}

	r := &Registry{
		agents: make(map[string]Agent, len(triage.Team)+1),
		triage: NormalizeName(triage.Name),
	}
	r.agents[r.triage] = triage

	for _, member := range triage.Team {
		a, ok := byName[member]
		if !ok {
			return nil, fmt.Errorf("triage team references unknown agent %q", member)
		}
		r.agents[NormalizeName(a.Name)] = a
	}
	return r, nil
}

// Resolve looks up an agent by its normalized name. Callers must treat a
// miss as "keep the current active agent", never as a fatal error.
func (r *Registry) Resolve(name string) (Agent, bool) {
	a, ok := r.agents[name]
	return a, ok
}

// TriageName returns the normalized name of the root/triage agent.
func (r *Registry) TriageName() string {
	return r.triage
}

// Names returns all registered agent names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.agents))
	for name := range r.agents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
