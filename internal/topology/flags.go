package topology

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

// FlagValues holds the parsed topology-specific flags.
type FlagValues struct {
	strs   map[string]*string
	bools  map[string]*bool
	groups []groupFlag
}

type groupFlag struct {
	name  string
	nodes *[]string
}

// BindFlags registers the definition's arguments for action on fs. For start,
// every node group also gets a --<group> flag listing its hostnames. Names
// already taken on fs are skipped.
func (d *Definition) BindFlags(fs *pflag.FlagSet, action string, logger zerolog.Logger) *FlagValues {
	v := &FlagValues{strs: map[string]*string{}, bools: map[string]*bool{}}

	for _, arg := range d.ArgsFor(action) {
		long := arg.Long()
		if long == "" || fs.Lookup(long) != nil {
			logger.Warn().Msgf("Skipping topology argument %v: name already in use", arg.Names)
			continue
		}
		short := arg.Short()
		if short != "" && fs.ShorthandLookup(short) != nil {
			short = ""
		}
		logger.Debug().Msgf("Adding argument (%s) ...", long)
		if arg.IsBool() {
			def, _ := arg.Default.(bool)
			v.bools[long] = fs.BoolP(long, short, def, arg.Help)
			continue
		}
		def := ""
		if arg.Default != nil {
			def = fmt.Sprint(arg.Default)
		}
		v.strs[long] = fs.StringP(long, short, def, arg.Help)
	}

	if action == "start" {
		for _, g := range d.NodeGroups {
			if fs.Lookup(g.Name) != nil {
				logger.Warn().Msgf("Skipping node group flag --%s: name already in use", g.Name)
				continue
			}
			logger.Debug().Msgf("Adding node group argument (%s) with default values (%v) ...", g.Name, g.Nodes)
			nodes := fs.StringSlice(g.Name, g.Nodes, fmt.Sprintf("Nodes of the %s group", g.Name))
			v.groups = append(v.groups, groupFlag{name: g.Name, nodes: nodes})
		}
	}
	return v
}

// String returns a string argument's value.
func (v *FlagValues) String(name string) string {
	if p, ok := v.strs[name]; ok {
		return *p
	}
	return ""
}

// Bool returns a boolean argument's value.
func (v *FlagValues) Bool(name string) bool {
	if p, ok := v.bools[name]; ok {
		return *p
	}
	return false
}

// Values returns every topology argument rendered as a string.
func (v *FlagValues) Values() map[string]string {
	out := map[string]string{}
	for k, p := range v.strs {
		out[k] = *p
	}
	for k, p := range v.bools {
		out[k] = fmt.Sprint(*p)
	}
	return out
}

// NodeGroups returns the requested hostnames per group in declaration order.
func (v *FlagValues) NodeGroups() []GroupSpec {
	out := make([]GroupSpec, 0, len(v.groups))
	for _, g := range v.groups {
		out = append(out, GroupSpec{Name: g.name, Nodes: append([]string(nil), (*g.nodes)...)})
	}
	return out
}
