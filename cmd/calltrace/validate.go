package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/calltrace/pkg/cli"
	"mercator-hq/calltrace/pkg/config"
)

var validateFlags struct {
	env bool
}

var validateCmd = &cobra.Command{
	Use:   "validate [config-file]",
	Short: "Validate a configuration file",
	Long: `Load a YAML or TOML configuration file and report every invalid field.

The file defaults to --config. With --env, CALLTRACE_* environment
overrides are applied before validation.

Examples:
  calltrace validate config.yaml
  calltrace validate --config config.toml --env`,
	Args: cobra.MaximumNArgs(1),
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateFlags.env, "env", false, "apply environment overrides")
}

func validateConfig(cmd *cobra.Command, args []string) error {
	path := cfgFile
	if len(args) == 1 {
		path = args[0]
	}
	if path == "" && !validateFlags.env {
		return fmt.Errorf("no configuration file given")
	}

	var err error
	if validateFlags.env {
		_, err = config.LoadConfigWithEnvOverrides(path)
	} else {
		_, err = config.LoadConfig(path)
	}

	out := cmd.OutOrStdout()
	if err != nil {
		var ve config.ValidationError
		if errors.As(err, &ve) {
			fmt.Fprintf(out, "✗ %s: %d invalid fields\n", path, len(ve.Errors))
			for _, fe := range ve.Errors {
				fmt.Fprintf(out, "  %s: %s\n", fe.Field, fe.Message)
			}
		}
		return cli.NewConfigError(path, err)
	}

	fmt.Fprintf(out, "✓ %s is valid\n", path)
	return nil
}
