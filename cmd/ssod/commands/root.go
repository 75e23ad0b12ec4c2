// Package commands implements the ssod command line.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const defaultEnvFile = ".env"

var envFile string

// Execute runs the root command.
func Execute() error {
	return newRootCmd().ExecuteContext(context.Background())
}

func newRootCmd() *cobra.Command {
	serve := serveCmd()

	root := &cobra.Command{
		Use:           "ssod",
		Short:         "Device-local SSO account session service",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadEnvFile(envFile, cmd.Flags().Changed("env-file"))
		},
		RunE: serve.RunE,
	}

	root.PersistentFlags().StringVar(&envFile, "env-file", defaultEnvFile, "dotenv file loaded before reading SSO_* variables")

	root.AddCommand(serve, accountsCmd(), reconcileCmd(), callCmd())
	return root
}

// loadEnvFile loads path into the environment without overriding set variables.
// A missing file is an error only when the path was given explicitly.
func loadEnvFile(path string, explicit bool) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if err == nil {
		return nil
	}
	if errors.Is(err, fs.ErrNotExist) && !explicit {
		return nil
	}
	return fmt.Errorf("load env file %s: %w", path, err)
}
