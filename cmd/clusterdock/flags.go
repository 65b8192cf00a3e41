package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/clusterdock/clusterdock/internal/config"
	"github.com/clusterdock/clusterdock/internal/topology"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// topologyFS is where topology directories are read from.
var topologyFS afero.Fs = afero.NewOsFs()

// topologyCommand parses the arguments of a command whose flags depend on the
// topology directory named among them. base registers the fixed flags.
type topologyCommand struct {
	action string
	base   func(fs *pflag.FlagSet, cfg *config.Config)
}

type parsedTopology struct {
	def    *topology.Definition
	values *topology.FlagValues
}

// parse loads configuration, resolves the topology and parses args against
// the fixed and topology-defined flags. A nil result with a nil error means
// help was printed.
func (t topologyCommand) parse(cmd *cobra.Command, args []string) (*parsedTopology, error) {
	parseInherited(cmd, args)
	if err := setup(cmd); err != nil {
		return nil, err
	}
	cfg, logInstance := fromContext(cmd)

	fs := pflag.NewFlagSet(cmd.Name(), pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	t.base(fs, cfg)
	fs.AddFlagSet(cmd.InheritedFlags())

	dir := firstPositional(args, fs)
	if dir == "" {
		if helpRequested(args) {
			printUsage(cmd, fs)
			return nil, nil
		}
		return nil, errors.New("missing topology directory")
	}

	def, err := topology.Load(topologyFS, dir, cfg.App.TopologyFile)
	if err != nil {
		return nil, err
	}
	values := def.BindFlags(fs, t.action, logInstance)

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printUsage(cmd, fs)
			return nil, nil
		}
		return nil, err
	}
	if fs.NArg() != 1 {
		return nil, fmt.Errorf("expected exactly one topology directory, got %v", fs.Args())
	}
	return &parsedTopology{def: def, values: values}, nil
}

// parseInherited applies the root flags found in args so configuration and
// logging are set up before the topology is read.
func parseInherited(cmd *cobra.Command, args []string) {
	fs := pflag.NewFlagSet(cmd.Name(), pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.AddFlagSet(cmd.InheritedFlags())
	_ = fs.Parse(args)
}

// firstPositional returns the first argument that is neither a flag known to
// fs nor the value of one. Unknown flags are assumed to take no value.
func firstPositional(args []string, fs *pflag.FlagSet) string {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--":
			if i+1 < len(args) {
				return args[i+1]
			}
			return ""
		case strings.HasPrefix(arg, "--"):
			name, _, inline := strings.Cut(arg[2:], "=")
			if f := fs.Lookup(name); f != nil && !inline && f.NoOptDefVal == "" {
				i++
			}
		case strings.HasPrefix(arg, "-") && len(arg) > 1:
			if len(arg) == 2 {
				if f := fs.ShorthandLookup(arg[1:]); f != nil && f.NoOptDefVal == "" {
					i++
				}
			}
		default:
			return arg
		}
	}
	return ""
}

func helpRequested(args []string) bool {
	for _, arg := range args {
		if arg == "--" {
			return false
		}
		if arg == "-h" || arg == "--help" {
			return true
		}
	}
	return false
}

func printUsage(cmd *cobra.Command, fs *pflag.FlagSet) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s\n\nUsage:\n  %s\n\nFlags:\n%s", cmd.Short, cmd.UseLine(), fs.FlagUsages())
}
