package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
)

// Tool is one capability an agent can call. Any implementation with the right name can
// stand in for another.
type Tool interface {
	Name() string
	// Call runs the tool for the session and returns text for the calling agent.
	Call(ctx context.Context, s *Session, args json.RawMessage) (string, error)
}

// Registry holds the tool implementations for a deployment.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry rejects tools with no owning agent and duplicate names.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		name := t.Name()
		if _, ok := toolOwners[name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
		}
		if _, dup := r.tools[name]; dup {
			return nil, fmt.Errorf("tool %s registered twice", name)
		}
		r.tools[name] = t
	}
	return r, nil
}

func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.tools))
	for name := range r.tools {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
