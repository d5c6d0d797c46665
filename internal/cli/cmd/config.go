package cmd

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	show := &cobra.Command{
		Use:           "show",
		Short:         "Print the effective configuration as YAML",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appFrom(cmd)
			out, err := yaml.Marshal(a.loader.Settings())
			if err != nil {
				return &ExitError{Code: ExitCLIError, Err: err}
			}
			if f := a.loader.File(); f != "" {
				cmd.Printf("# %s\n", f)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	cmd.AddCommand(show)
	return cmd
}
