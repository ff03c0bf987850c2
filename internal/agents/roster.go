package agents

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// rosterFile is the on-disk shape of an agents.yaml roster.
type rosterFile struct {
	Triage string  `yaml:"triage"`
	Agents []Agent `yaml:"agents"`
}

// LoadRoster reads an agent roster from a YAML file and returns the triage
// agent plus the full roster. The triage field must name one of the listed
// agents.
func LoadRoster(path string) (Agent, []Agent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Agent{}, nil, fmt.Errorf("read roster file: %w", err)
	}

	var rf rosterFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return Agent{}, nil, fmt.Errorf("parse roster file: %w", err)
	}
	if len(rf.Agents) == 0 {
		return Agent{}, nil, fmt.Errorf("roster file %s defines no agents", path)
	}

	triageName := rf.Triage
	if triageName == "" {
		triageName = rf.Agents[0].Name
	}
	for _, a := range rf.Agents {
		if a.Name == triageName {
			return a, rf.Agents, nil
		}
	}
	return Agent{}, nil, fmt.Errorf("roster file %s: triage agent %q not in agent list", path, triageName)
}

// DefaultRoster returns the built-in triage agent and its specialist team,
// used when no roster file is configured.
func DefaultRoster() (Agent, []Agent) {
	roster := []Agent{
		{
			Name:        "System Triage Agent",
			Description: "Routes operator requests to the specialist best suited to handle them.",
			Instructions: "You are the triage agent for a team of specialists sharing a sandboxed " +
				"workspace. Understand the operator's request, solve trivial questions yourself, " +
				"and hand off to a specialist for anything involving code, the web, or files. " +
				"When a task is fully solved, start your final reply with \"Case resolved\" and " +
				"put the answer between <solution> and </solution> tags.",
			Team: []string{"Coding Agent", "Web Surfer Agent", "File Surfer Agent"},
		},
		{
			Name:        "Coding Agent",
			Description: "Writes and executes code in the shared sandbox.",
			Instructions: "You write and run code inside the shared sandbox working directory. " +
				"Prefer small verifiable steps. When the task is fully solved, start your final " +
				"reply with \"Case resolved\" and put the answer between <solution> and </solution> tags.",
		},
		{
			Name:        "Web Surfer Agent",
			Description: "Fetches and summarizes web pages.",
			Instructions: "You browse the web on behalf of the operator and report back what you " +
				"find. When the task is fully solved, start your final reply with \"Case resolved\" " +
				"and put the answer between <solution> and </solution> tags.",
		},
		{
			Name:        "File Surfer Agent",
			Description: "Inspects documents and files in the shared workspace.",
			Instructions: "You read and summarize files in the shared working directory. When the " +
				"task is fully solved, start your final reply with \"Case resolved\" and put the " +
				"answer between <solution> and </solution> tags.",
		},
	}
	return roster[0], roster
}
