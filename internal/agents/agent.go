package agents

import (
	"fmt"
	"sort"

	"github.com/JGenereux/ai-interviewer/internal/prompts"
)

// Agent is the immutable definition handed to the realtime transport.
type Agent struct {
	Role         Role     `json:"role"`
	Instructions string   `json:"instructions"`
	Tools        []string `json:"tools"`
	Handoffs     []Role   `json:"handoffs"`
}

// instructionData is what the agent templates see.
type instructionData struct {
	CandidateName       string
	Mode                string
	Phases              []string
	ResumeText          string
	PreselectedLanguage string
}

// BuildAgents renders every agent once from cfg. Agents whose phase the mode skips are
// still built so the graph stays fixed; the coordinator never dispatches to them.
func BuildAgents(cfg SessionConfig, pm prompts.PromptProvider) (map[Role]*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	name := cfg.CandidateName
	if name == "" {
		name = "the candidate"
	}
	data := instructionData{
		CandidateName:       name,
		Mode:                string(cfg.Mode),
		ResumeText:          cfg.ResumeText,
		PreselectedLanguage: cfg.PreselectedLanguage,
	}
	for _, p := range Phases(cfg.Mode) {
		data.Phases = append(data.Phases, string(p))
	}

	out := make(map[Role]*Agent, 3)
	for _, role := range []Role{RoleCoordinator, RoleBehavioral, RoleTechnical} {
		instructions, err := pm.BuildPrompt("agents", string(role), data)
		if err != nil {
			return nil, fmt.Errorf("build %s instructions: %w", role, err)
		}
		out[role] = &Agent{
			Role:         role,
			Instructions: instructions,
			Tools:        toolsOf(role),
			Handoffs:     Handoffs(role),
		}
	}
	return out, nil
}

func toolsOf(role Role) []string {
	var out []string
	for tool, owner := range toolOwners {
		if owner == role {
			out = append(out, tool)
		}
	}
	sort.Strings(out)
	return out
}
