// Package scenario loads the YAML scenario files replayed by "veld trace".
package scenario

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario describes a set of components and the steps to drive them through.
type Scenario struct {
	Components []ComponentSpec `yaml:"components"`
	Steps      []Step          `yaml:"steps"`
}

// ComponentSpec declares one scripted component.
type ComponentSpec struct {
	Name          string `yaml:"name"`
	InitDelayMS   int    `yaml:"init_delay_ms,omitempty"`
	UpdateDelayMS int    `yaml:"update_delay_ms,omitempty"`
}

// Step is a single action in the scenario. Exactly one field is set per step.
type Step struct {
	Set       string         `yaml:"set,omitempty"`
	Params    map[string]any `yaml:"params,omitempty"`
	HotReload bool           `yaml:"hot_reload,omitempty"`
}

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}

	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if err := sc.validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return &sc, nil
}

func (sc *Scenario) validate() error {
	if len(sc.Components) == 0 {
		return fmt.Errorf("no components declared")
	}

	names := make(map[string]bool, len(sc.Components))
	for _, c := range sc.Components {
		if c.Name == "" {
			return fmt.Errorf("component with empty name")
		}
		if names[c.Name] {
			return fmt.Errorf("duplicate component name %q", c.Name)
		}
		if c.InitDelayMS < 0 || c.UpdateDelayMS < 0 {
			return fmt.Errorf("component %q has a negative delay", c.Name)
		}
		names[c.Name] = true
	}

	for i, s := range sc.Steps {
		switch {
		case s.Set != "":
			if !names[s.Set] {
				return fmt.Errorf("step %d targets unknown component %q", i+1, s.Set)
			}
		case s.HotReload:
		default:
			return fmt.Errorf("step %d has no action", i+1)
		}
	}
	return nil
}
