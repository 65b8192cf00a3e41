package main

import (
	"context"

	"github.com/spf13/cobra"
)

var psCmd = &cobra.Command{
	Use:   "ps",
	Short: "List the nodes of running clusters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApplication(cmd, func(ctx context.Context, a application) error {
			return a.Ps(ctx)
		})
	},
}

var cpCmd = &cobra.Command{
	Use:   "cp <source> <destination>",
	Short: "Copy files between nodes and the local filesystem",
	Long:  "Copy files between nodes and the local filesystem. Node paths are written <hostname>:<path>.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApplication(cmd, func(ctx context.Context, a application) error {
			return a.Copy(ctx, args[0], args[1])
		})
	},
}

var sshCmd = &cobra.Command{
	Use:   "ssh <node>",
	Short: "Open a login shell on a node",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApplication(cmd, func(ctx context.Context, a application) error {
			code, err := a.SSH(ctx, args[0])
			if err != nil {
				return err
			}
			if code != 0 {
				return &exitCodeError{code: code}
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(psCmd, cpCmd, sshCmd)
}
