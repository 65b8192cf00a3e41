package main

import (
	"context"

	"github.com/clusterdock/clusterdock/internal/config"
	"github.com/clusterdock/clusterdock/internal/domain"
	"github.com/clusterdock/clusterdock/internal/topology"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type startOptions struct {
	alwaysPull      bool
	clusterName     string
	namespace       string
	network         string
	operatingSystem string
	ports           []string
	registry        string
}

var startCmd = &cobra.Command{
	Use:                "start <topology> [flags]",
	Short:              "Start a cluster from a topology directory",
	Long:               "Start a cluster from a topology directory. Topologies add their own flags, listed by start <topology> --help.",
	DisableFlagParsing: true,
	RunE:               runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	opts := &startOptions{}
	parsed, err := topologyCommand{
		action: "start",
		base: func(fs *pflag.FlagSet, cfg *config.Config) {
			fs.BoolVar(&opts.alwaysPull, "always-pull", false, "Pull latest images, even if they're available locally")
			fs.StringVarP(&opts.clusterName, "cluster-name", "c", "", "Cluster name to use (default is a generated name)")
			fs.StringVar(&opts.namespace, "namespace", "", "Namespace to use when looking for images")
			fs.StringVarP(&opts.network, "network", "n", cfg.App.DefaultNetwork, "Docker network to use")
			fs.StringVarP(&opts.operatingSystem, "operating-system", "o", "", "Operating system to use for cluster nodes")
			fs.StringArrayVarP(&opts.ports, "port", "p", nil, "Publish node port to the host (<node>:<port> or <node>:<host port>-><port>)")
			fs.StringVarP(&opts.registry, "registry", "r", cfg.App.DefaultRegistry, "Docker Registry from which to pull images")
		},
	}.parse(cmd, args)
	if err != nil || parsed == nil {
		return err
	}

	startArgs := topology.StartArgs{
		ClusterName:     opts.clusterName,
		Namespace:       opts.namespace,
		Network:         opts.network,
		OperatingSystem: opts.operatingSystem,
		Registry:        opts.registry,
		AlwaysPull:      opts.alwaysPull,
		NodeGroups:      parsed.values.NodeGroups(),
		Flags:           parsed.values,
	}
	for _, p := range opts.ports {
		spec, err := domain.ParsePortSpec(p)
		if err != nil {
			return err
		}
		startArgs.Ports = append(startArgs.Ports, spec)
	}

	return withApplication(cmd, func(ctx context.Context, a application) error {
		_, err := a.Start(ctx, parsed.def, startArgs)
		return err
	})
}
