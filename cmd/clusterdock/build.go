package main

import (
	"context"

	"github.com/clusterdock/clusterdock/internal/config"
	"github.com/clusterdock/clusterdock/internal/topology"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type buildOptions struct {
	network         string
	operatingSystem string
	repository      string
	push            bool
}

var buildCmd = &cobra.Command{
	Use:                "build <topology> [flags]",
	Short:              "Build the images of a topology",
	DisableFlagParsing: true,
	RunE:               runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	opts := &buildOptions{}
	parsed, err := topologyCommand{
		action: "build",
		base: func(fs *pflag.FlagSet, cfg *config.Config) {
			fs.StringVarP(&opts.network, "network", "n", cfg.App.DefaultNetwork, "Docker network to use")
			fs.StringVarP(&opts.operatingSystem, "operating-system", "o", "", "Operating system to build images for")
			fs.StringVarP(&opts.repository, "repository", "r", cfg.App.DefaultRepository, "Repository to commit images to")
			fs.BoolVar(&opts.push, "push", false, "Push images after committing them")
		},
	}.parse(cmd, args)
	if err != nil || parsed == nil {
		return err
	}

	buildArgs := topology.BuildArgs{
		Network:         opts.network,
		OperatingSystem: opts.operatingSystem,
		Repository:      opts.repository,
		Push:            opts.push,
		Flags:           parsed.values,
	}
	return withApplication(cmd, func(ctx context.Context, a application) error {
		return a.Build(ctx, parsed.def, buildArgs)
	})
}
