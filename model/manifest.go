package model

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FleetManifest is an operator-maintained YAML file naming the functions
// that make up a fleet. When FUNCTIONS_TO_DEPLOY is the sentinel "@fleet",
// the target list comes from here instead.
type FleetManifest struct {
	Fleet     string     `yaml:"fleet" json:"fleet"`
	Functions []Function `yaml:"functions" json:"functions"`
}

type Function struct {
	Name    string `yaml:"name" json:"name"`
	Runtime string `yaml:"runtime,omitempty" json:"runtime,omitempty"`
	Memory  int    `yaml:"memory,omitempty" json:"memory,omitempty"`
}

func LoadFleetManifest(path string) (*FleetManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m FleetManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse fleet manifest %s: %w", path, err)
	}
	return &m, nil
}

// TargetNames returns the fleet's function names in manifest order,
// skipping entries with no name.
func (m *FleetManifest) TargetNames() []string {
	var names []string
	for _, fn := range m.Functions {
		if fn.Name == "" {
			continue
		}
		names = append(names, fn.Name)
	}
	return names
}
