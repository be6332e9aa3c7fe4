package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/churrera-dev/churrera/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a churrera project",
	Long: `Initialize a churrera project in the current directory.
Writes a default .churrera/config.yaml.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

var initForce bool

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing configuration")
}

func runInit(cmd *cobra.Command, _ []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	path := filepath.Join(cwd, config.DefaultConfigPath)
	if err := config.WriteDefault(path, initForce); err != nil {
		if errors.Is(err, config.ErrConfigExists) {
			return fmt.Errorf("%w (use --force to overwrite)", err)
		}
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Initialized churrera project in", cwd)
	fmt.Fprintln(out, "Configuration file:", config.DefaultConfigPath)
	fmt.Fprintf(out, "Set %s before running workflows.\n", config.APIKeyEnv)
	return nil
}
