// Package components implements the component loader: manifest discovery,
// dependency-ordered loading, and the lifecycle (discovered -> loaded ->
// enabled -> disabled -> unloaded, or failed) that both in-process and
// out-of-process ("web") components go through.
package components

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Manifest is a component's static declaration, read from component.yaml
// or component.json in the component's own directory.
type Manifest struct {
	Name        string `yaml:"name" json:"name"`
	DisplayName string `yaml:"display_name" json:"display_name"`
	Version     string `yaml:"version" json:"version"`
	Author      string `yaml:"author" json:"author"`
	Website     string `yaml:"website" json:"website"`
	Description string `yaml:"description" json:"description"`

	HardDependencies []string `yaml:"-" json:"-"`
	SoftDependencies []string `yaml:"soft_depends" json:"soft_depends"`
	LoadBefore       []string `yaml:"load_before" json:"load_before"`
	LoadOrder        int      `yaml:"load_order" json:"load_order"`

	// EngineVersion is the required core-engine version constraint. It is
	// normally set directly, but a manifest using the original dict-form
	// "dependencies: {core_version: ..., <name>: ...}" shape has it lifted
	// out of that map instead — see rawManifest.coerce.
	EngineVersion string `yaml:"engine_version" json:"engine_version"`

	Category      string            `yaml:"category" json:"category"`
	Permissions   []string          `yaml:"permissions" json:"permissions"`
	Tags          []string          `yaml:"tags" json:"tags"`
	ConfigSchema  map[string]any    `yaml:"config_schema" json:"config_schema"`
	DefaultConfig map[string]any    `yaml:"default_config" json:"default_config"`

	// Web, when true, marks this as an out-of-process component started
	// via StartCommand rather than instantiated from the in-process
	// registry.
	Web                 bool     `yaml:"provides_web" json:"provides_web"`
	StartCommand        []string `yaml:"start_command" json:"start_command"`
	ReadyTimeoutSeconds  float64 `yaml:"ready_timeout_seconds" json:"ready_timeout_seconds"`

	// Dir is the directory the manifest was loaded from, filled in by the
	// loader rather than read from the file itself.
	Dir string `yaml:"-" json:"-"`
}

func (m *Manifest) readyTimeout() time.Duration {
	if m.ReadyTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(m.ReadyTimeoutSeconds * float64(time.Second))
}

// rawManifest mirrors Manifest but leaves "dependencies" untyped so it can
// hold either the modern flat-list form or the original's
// "{core_version: "...", <name>: "..."}" dict form.
type rawManifest struct {
	Manifest         `yaml:",inline" json:",inline"`
	Dependencies     any `yaml:"depends" json:"depends"`
	DependenciesAlt  any `yaml:"dependencies" json:"dependencies"`
}

// engineVersionKeys are dict-dependency keys that name a system/runtime
// requirement rather than a component, matching the original's
// _filter_component_info_data exclusion list.
var engineVersionKeys = map[string]bool{
	"core_version":      true,
	"python_version":    true,
	"aetherius_version": true,
	"nodejs_version":    true,
}

// coerce resolves r.Dependencies/r.DependenciesAlt into m.HardDependencies,
// lifting any "core_version"-shaped key into m.EngineVersion along the way.
func (r *rawManifest) coerce() {
	raw := r.Dependencies
	if raw == nil {
		raw = r.DependenciesAlt
	}
	switch v := raw.(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				r.HardDependencies = append(r.HardDependencies, s)
			}
		}
	case map[string]any:
		for key, val := range v {
			if engineVersionKeys[key] {
				if s, ok := val.(string); ok && r.EngineVersion == "" {
					r.EngineVersion = s
				}
				continue
			}
			r.HardDependencies = append(r.HardDependencies, key)
		}
	}
}

// LoadManifest reads and parses a single manifest file, dispatching on its
// extension.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("components: read manifest %s: %w", path, err)
	}

	var r rawManifest
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("components: parse yaml manifest %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("components: parse json manifest %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("components: unrecognized manifest extension for %s", path)
	}
	r.coerce()

	m := r.Manifest
	if m.Name == "" {
		return nil, fmt.Errorf("components: manifest %s missing required 'name'", path)
	}
	if m.DisplayName == "" {
		m.DisplayName = m.Name
	}
	if m.Category == "" {
		m.Category = "general"
	}
	m.Dir = filepath.Dir(path)
	return &m, nil
}

// manifestFilenames is the discovery order within each component directory;
// the first one found wins.
var manifestFilenames = []string{"component.yaml", "component.yml", "component.json"}

// Scan walks dir's immediate subdirectories looking for a manifest file in
// each, returning every manifest found. A subdirectory with no manifest is
// silently skipped (it's not a component).
func Scan(dir string) ([]*Manifest, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("components: scan %s: %w", dir, err)
	}

	var manifests []*Manifest
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		compDir := filepath.Join(dir, e.Name())
		for _, fname := range manifestFilenames {
			path := filepath.Join(compDir, fname)
			if _, err := os.Stat(path); err != nil {
				continue
			}
			m, err := LoadManifest(path)
			if err != nil {
				return nil, err
			}
			manifests = append(manifests, m)
			break
		}
	}
	return manifests, nil
}
