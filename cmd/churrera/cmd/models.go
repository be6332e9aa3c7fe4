package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models the remote service accepts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return listRemote(cmd, func(a *app, ctx context.Context) ([]string, error) {
			return a.client.ListModels(ctx)
		})
	},
}

var repositoriesCmd = &cobra.Command{
	Use:   "repositories",
	Short: "List the repositories the remote service can work on",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return listRemote(cmd, func(a *app, ctx context.Context) ([]string, error) {
			return a.client.ListRepositories(ctx)
		})
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd, repositoriesCmd)
}

func listRemote(cmd *cobra.Command, list func(*app, context.Context) ([]string, error)) error {
	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.close()

	items, err := list(a, cmd.Context())
	if err != nil {
		return err
	}
	for _, item := range items {
		fmt.Fprintln(cmd.OutOrStdout(), item)
	}
	return nil
}
