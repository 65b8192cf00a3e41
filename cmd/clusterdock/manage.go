package main

import (
	"context"

	"github.com/spf13/cobra"
)

var (
	dryRun         bool
	nukeAll        bool
	removeNetworks bool
)

var manageCmd = &cobra.Command{
	Use:   "manage",
	Short: "Tear down clusters and their networks",
}

var nukeCmd = &cobra.Command{
	Use:   "nuke",
	Short: "Remove all clusterdock containers and unused networks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApplication(cmd, func(ctx context.Context, a application) error {
			_, err := a.Nuke(ctx, dryRun, nukeAll)
			return err
		})
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove <cluster>...",
	Short: "Remove the containers of the named clusters",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApplication(cmd, func(ctx context.Context, a application) error {
			_, err := a.Remove(ctx, dryRun, args, removeNetworks)
			return err
		})
	},
}

func init() {
	manageCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "Report what would be removed without removing it")
	nukeCmd.Flags().BoolVarP(&nukeAll, "all", "a", false, "Remove all containers, not only clusterdock ones")
	removeCmd.Flags().BoolVarP(&removeNetworks, "network", "n", false, "Also remove the networks the clusters were attached to")

	manageCmd.AddCommand(nukeCmd, removeCmd)
	rootCmd.AddCommand(manageCmd)
}
