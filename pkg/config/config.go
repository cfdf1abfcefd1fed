// Package config provides configuration loading and management for crossmesh.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"crossmesh/internal/models"
)

// MeshSpec describes one synthetic mesh of the scene
type MeshSpec struct {
	// Kind is one of "rectilinear", "hexahedra", "tetrahedra" or "points"
	Kind string `yaml:"kind"`

	// Min and Max are the corners of the meshed box
	Min [3]float64 `yaml:"min"`
	Max [3]float64 `yaml:"max"`

	// Cells is the number of cells along each axis
	Cells [3]int `yaml:"cells"`

	// SplitAxis is the axis along which the mesh is cut into one slab per rank
	SplitAxis string `yaml:"splitAxis"`

	// GhostLayers flags this many cell layers on each side of a slab as ghost
	// zones duplicated from the neighbouring slab
	GhostLayers int `yaml:"ghostLayers"`
}

// Config represents the application configuration loaded from YAML
type Config struct {
	// Partition parameters
	Partition struct {
		// Pivots is the number of candidate cut positions tried per round
		Pivots int `yaml:"pivots"`

		// Tolerance is the accepted gap between the sample share and the rank share of a cut
		Tolerance float64 `yaml:"tolerance"`

		// MaxAttempts bounds the rounds spent on a single cut
		MaxAttempts int `yaml:"maxAttempts"`
	} `yaml:"partition"`

	// Lookup parameters
	Lookup struct {
		// Tolerance widens cell containment, relative to the cell size
		Tolerance float64 `yaml:"tolerance"`

		// MaxIterations caps the Newton steps when inverting a cell
		MaxIterations int `yaml:"maxIterations"`
	} `yaml:"lookup"`

	// Transport parameters
	Transport struct {
		// Mode is "local" for in-process ranks or "websocket" for ranks relayed by a hub
		Mode string `yaml:"mode"`

		// Ranks is the number of participating ranks
		Ranks int `yaml:"ranks"`

		// Address is the hub listen address, or its URL for ranks
		Address string `yaml:"address"`
	} `yaml:"transport"`

	// Output parameters
	Output struct {
		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`

		// LogLevel overrides the logging level (debug, info, warn, error)
		LogLevel string `yaml:"logLevel"`

		// SliceImage is the file a slice of rank 0's result is written to; empty disables it
		SliceImage string `yaml:"sliceImage"`

		// SliceAxis and SliceIndex select the slice
		SliceAxis  string `yaml:"sliceAxis"`
		SliceIndex int    `yaml:"sliceIndex"`
	} `yaml:"output"`

	// Scene parameters
	Scene struct {
		Source MeshSpec `yaml:"source"`
		Target MeshSpec `yaml:"target"`

		// SourceVar is the field sampled from the source mesh
		SourceVar string `yaml:"sourceVar"`

		// Nodal places the source field on points instead of cells
		Nodal bool `yaml:"nodal"`

		// Field is the expression in x, y and z defining the source field
		Field string `yaml:"field"`

		// TargetVar is the target array kept where no donor cell exists
		TargetVar string `yaml:"targetVar"`

		// Fallback is the value TargetVar is filled with
		Fallback float64 `yaml:"fallback"`

		// OutputVar names the sampled array; empty derives it from the variable names
		OutputVar string `yaml:"outputVar"`
	} `yaml:"scene"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default partition parameters
	cfg.Partition.Pivots = 5
	cfg.Partition.Tolerance = 0.02
	cfg.Partition.MaxAttempts = 3

	// Set default lookup parameters
	cfg.Lookup.Tolerance = 1e-6
	cfg.Lookup.MaxIterations = 20

	// Set default transport parameters
	cfg.Transport.Mode = "local"
	cfg.Transport.Ranks = 4
	cfg.Transport.Address = ":7400"

	// Set default output parameters
	cfg.Output.Verbose = true
	cfg.Output.LogLevel = "info"
	cfg.Output.SliceAxis = "z"

	// Set default scene: a sheared hexahedral source split along x sampled
	// onto a finer rectilinear grid split along y
	cfg.Scene.Source = MeshSpec{
		Kind:        "hexahedra",
		Max:         [3]float64{1, 1, 1},
		Cells:       [3]int{16, 16, 8},
		SplitAxis:   "x",
		GhostLayers: 1,
	}
	cfg.Scene.Target = MeshSpec{
		Kind:      "rectilinear",
		Min:       [3]float64{-0.1, 0, 0},
		Max:       [3]float64{1.1, 1, 1},
		Cells:     [3]int{48, 48, 4},
		SplitAxis: "y",
	}
	cfg.Scene.SourceVar = "temperature"
	cfg.Scene.Nodal = true
	cfg.Scene.Field = "x + 2*y + 3*z"
	cfg.Scene.TargetVar = "temperature"
	cfg.Scene.Fallback = -1

	return cfg
}

var meshKinds = map[string]bool{"rectilinear": true, "hexahedra": true, "tetrahedra": true, "points": true}

func (m MeshSpec) validate(name string) error {
	if !meshKinds[m.Kind] {
		return fmt.Errorf("scene.%s.kind: unknown mesh kind %q", name, m.Kind)
	}
	for a := 0; a < 3; a++ {
		if m.Cells[a] < 0 {
			return fmt.Errorf("scene.%s.cells: negative count on axis %d", name, a)
		}
		if m.Max[a] < m.Min[a] {
			return fmt.Errorf("scene.%s: max below min on axis %d", name, a)
		}
	}
	if _, err := models.ParseAxis(m.SplitAxis); err != nil {
		return fmt.Errorf("scene.%s.splitAxis: %w", name, err)
	}
	if m.GhostLayers < 0 {
		return fmt.Errorf("scene.%s.ghostLayers: must not be negative", name)
	}
	return nil
}

// Validate reports the first setting that cannot be run
func (c *Config) Validate() error {
	if c.Partition.Pivots < 2 {
		return fmt.Errorf("partition.pivots: need at least 2, got %d", c.Partition.Pivots)
	}
	if c.Partition.Tolerance <= 0 {
		return fmt.Errorf("partition.tolerance: must be positive")
	}
	if c.Partition.MaxAttempts < 1 {
		return fmt.Errorf("partition.maxAttempts: need at least 1, got %d", c.Partition.MaxAttempts)
	}
	if c.Lookup.Tolerance <= 0 {
		return fmt.Errorf("lookup.tolerance: must be positive")
	}
	if c.Lookup.MaxIterations < 1 {
		return fmt.Errorf("lookup.maxIterations: need at least 1, got %d", c.Lookup.MaxIterations)
	}
	switch c.Transport.Mode {
	case "local", "websocket":
	default:
		return fmt.Errorf("transport.mode: %q (must be local or websocket)", c.Transport.Mode)
	}
	if c.Transport.Ranks < 1 {
		return fmt.Errorf("transport.ranks: need at least 1, got %d", c.Transport.Ranks)
	}
	if c.Output.SliceImage != "" {
		if _, err := models.ParseAxis(c.Output.SliceAxis); err != nil {
			return fmt.Errorf("output.sliceAxis: %w", err)
		}
	}
	if err := c.Scene.Source.validate("source"); err != nil {
		return err
	}
	if err := c.Scene.Target.validate("target"); err != nil {
		return err
	}
	if c.Scene.SourceVar == "" || c.Scene.TargetVar == "" {
		return fmt.Errorf("scene: sourceVar and targetVar are required")
	}
	return nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
