// Package topology loads topology definitions and resolves the code that
// starts and builds a topology's cluster.
package topology

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// GroupSpec is a node group and the hostnames it gets by default.
type GroupSpec struct {
	Name  string
	Nodes []string
}

// NodeGroups keeps the order groups are declared in.
type NodeGroups []GroupSpec

func (g *NodeGroups) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: node groups must be a mapping", value.Line)
	}
	for i := 0; i+1 < len(value.Content); i += 2 {
		var spec GroupSpec
		if err := value.Content[i].Decode(&spec.Name); err != nil {
			return err
		}
		if err := value.Content[i+1].Decode(&spec.Nodes); err != nil {
			return fmt.Errorf("node group %s: %w", spec.Name, err)
		}
		*g = append(*g, spec)
	}
	return nil
}

// ArgSpec describes one topology-specific command line argument.
type ArgSpec struct {
	Names   []string `yaml:"-"`
	Help    string   `yaml:"help"`
	Default any      `yaml:"default"`
	Type    string   `yaml:"type"`
	Metavar string   `yaml:"metavar"`
	Action  string   `yaml:"action"`
}

// Long returns the argument's long name without dashes.
func (a ArgSpec) Long() string {
	long := ""
	for _, n := range a.Names {
		trimmed := strings.TrimLeft(n, "-")
		if strings.HasPrefix(n, "--") || long == "" {
			long = trimmed
		}
	}
	return long
}

// Short returns the one-letter alias, if any.
func (a ArgSpec) Short() string {
	for _, n := range a.Names {
		if strings.HasPrefix(n, "-") && !strings.HasPrefix(n, "--") && len(n) == 2 {
			return n[1:]
		}
	}
	return ""
}

func (a ArgSpec) IsBool() bool {
	return a.Action == "store_true" || a.Type == "bool"
}

// Args keeps argument declaration order.
type Args []ArgSpec

func (args *Args) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: args must be a mapping", value.Line)
	}
	for i := 0; i+1 < len(value.Content); i += 2 {
		var key string
		if err := value.Content[i].Decode(&key); err != nil {
			return err
		}
		var spec ArgSpec
		if err := value.Content[i+1].Decode(&spec); err != nil {
			return fmt.Errorf("argument %s: %w", key, err)
		}
		for _, n := range strings.Split(strings.ReplaceAll(key, " ", ""), ",") {
			if n != "" {
				spec.Names = append(spec.Names, n)
			}
		}
		*args = append(*args, spec)
	}
	return nil
}

// Definition is the content of a topology's topology.yaml.
type Definition struct {
	Name       string              `yaml:"name"`
	NodeGroups NodeGroups          `yaml:"node groups"`
	StartArgs  Args                `yaml:"start args"`
	BuildArgs  Args                `yaml:"build args"`
	Images     map[string]string   `yaml:"images"`
	Ports      map[string][]string `yaml:"ports"`
	Volumes    map[string][]string `yaml:"volumes"`
	Build      map[string][]string `yaml:"build"`

	// Dir is the topology directory the definition was read from.
	Dir string `yaml:"-"`
}

// Load reads <dir>/<file>.
func Load(fs afero.Fs, dir, file string) (*Definition, error) {
	path := filepath.Join(dir, file)
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read topology definition: %w", err)
	}
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if def.Name == "" {
		def.Name = filepath.Base(dir)
	}
	def.Dir = dir
	return &def, nil
}

// Group returns the named group spec.
func (d *Definition) Group(name string) (GroupSpec, bool) {
	for _, g := range d.NodeGroups {
		if g.Name == name {
			return g, true
		}
	}
	return GroupSpec{}, false
}

// ArgsFor returns the argument schema of action ("start" or "build").
func (d *Definition) ArgsFor(action string) Args {
	if action == "build" {
		return d.BuildArgs
	}
	return d.StartArgs
}
