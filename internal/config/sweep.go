package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"simsweep/internal/params"
)

// Sweep describes one campaign request: the program to run and the
// parameter space to sweep. Parameter order in the file fixes the axis
// order of exported arrays, so params is kept as a YAML node rather
// than a Go map.
type Sweep struct {
	Program string    `yaml:"program"`
	Name    string    `yaml:"name"`
	Storage string    `yaml:"storage"`
	Runs    int       `yaml:"runs"`
	Params  yaml.Node `yaml:"params"`
}

// LoadSweep reads a sweep description from a YAML file.
func LoadSweep(path string) (*Sweep, error) {
	data, err := os.ReadFile(filepath.Clean(path)) // #nosec G304 -- path comes from a CLI argument
	if err != nil {
		return nil, fmt.Errorf("reading sweep file: %w", err)
	}

	var s Sweep
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing sweep file: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sweep file: %w", err)
	}
	return &s, nil
}

// Validate checks the sweep description.
func (s *Sweep) Validate() error {
	if s.Program == "" {
		return fmt.Errorf("program is required")
	}
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Storage == "" {
		return fmt.Errorf("storage is required")
	}
	if s.Runs < 1 {
		return fmt.Errorf("runs must be >= 1, got %d", s.Runs)
	}
	if s.Params.Kind != yaml.MappingNode {
		return fmt.Errorf("params must be a mapping of parameter name to value or list")
	}
	return nil
}

// Space converts the params node into an ordered parameter space,
// preserving the file's key order. Each value is a scalar or a list of
// scalars.
func (s *Sweep) Space() (*params.Space, error) {
	space := params.NewSpace()

	// A mapping node's content alternates key and value nodes.
	for i := 0; i+1 < len(s.Params.Content); i += 2 {
		keyNode := s.Params.Content[i]
		valNode := s.Params.Content[i+1]
		name := keyNode.Value

		var nodes []*yaml.Node
		if valNode.Kind == yaml.SequenceNode {
			nodes = valNode.Content
		} else {
			nodes = []*yaml.Node{valNode}
		}

		values := make([]params.Value, 0, len(nodes))
		for _, n := range nodes {
			var raw any
			if err := n.Decode(&raw); err != nil {
				return nil, fmt.Errorf("parameter %q: %w", name, err)
			}
			v, err := params.FromAny(raw)
			if err != nil {
				return nil, fmt.Errorf("parameter %q: %w", name, err)
			}
			values = append(values, v)
		}
		space.Add(name, values...)
	}
	return space, nil
}
