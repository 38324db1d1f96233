// Package batch runs zoom assignment over the layers listed in a YAML
// manifest.
package batch

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/zoomtier/internal/decimate"
)

// Manifest lists the layers of one batch run.
type Manifest struct {
	Defaults JobDefaults `yaml:"defaults"`
	Layers   []Job       `yaml:"layers"`
}

// JobDefaults apply to every job that leaves the field empty.
type JobDefaults struct {
	XColumn string          `yaml:"x_column"`
	YColumn string          `yaml:"y_column"`
	Column  string          `yaml:"column"`
	Carry   string          `yaml:"carry"`
	Tiers   []decimate.Tier `yaml:"tiers"`
}

// Job is one input file to label.
type Job struct {
	Name    string          `yaml:"name"`
	Input   string          `yaml:"input"`
	Output  string          `yaml:"output"` // empty skips the file write
	XColumn string          `yaml:"x_column"`
	YColumn string          `yaml:"y_column"`
	Column  string          `yaml:"column"`
	Carry   string          `yaml:"carry"`
	Tiers   []decimate.Tier `yaml:"tiers"`
}

// LoadManifest reads a manifest from a YAML file. Relative input and output
// paths are resolved against the manifest's directory and manifest defaults
// are applied to each job.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "batch: read manifest %s", path)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)
	for i := range m.Layers {
		m.Layers[i].Input = resolve(dir, m.Layers[i].Input)
		m.Layers[i].Output = resolve(dir, m.Layers[i].Output)
	}
	return m, nil
}

// ParseManifest decodes and validates a manifest.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, eris.Wrap(err, "batch: parse manifest")
	}

	for i := range m.Layers {
		m.Layers[i] = m.Defaults.apply(m.Layers[i])
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks that every job is named uniquely, has an input and
// carries a valid tier list when it overrides one.
func (m *Manifest) Validate() error {
	if len(m.Layers) == 0 {
		return eris.New("batch: manifest lists no layers")
	}
	seen := make(map[string]bool, len(m.Layers))
	for i, j := range m.Layers {
		if j.Name == "" {
			return eris.Errorf("batch: layer %d: name is required", i)
		}
		if seen[j.Name] {
			return eris.Errorf("batch: layer %s: duplicate name", j.Name)
		}
		seen[j.Name] = true
		if j.Input == "" {
			return eris.Errorf("batch: layer %s: input is required", j.Name)
		}
		if j.Tiers != nil {
			if err := decimate.ValidateTiers(j.Tiers); err != nil {
				return eris.Wrapf(err, "batch: layer %s", j.Name)
			}
		}
		if j.Carry != "" {
			if _, err := decimate.ParseCarryPolicy(j.Carry); err != nil {
				return eris.Wrapf(err, "batch: layer %s", j.Name)
			}
		}
	}
	return nil
}

func (d JobDefaults) apply(j Job) Job {
	if j.XColumn == "" {
		j.XColumn = d.XColumn
	}
	if j.YColumn == "" {
		j.YColumn = d.YColumn
	}
	if j.Column == "" {
		j.Column = d.Column
	}
	if j.Carry == "" {
		j.Carry = d.Carry
	}
	if j.Tiers == nil {
		j.Tiers = d.Tiers
	}
	return j
}

func resolve(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}
