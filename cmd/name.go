package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var nameCmd = &cobra.Command{
	Use:   "name <code>...",
	Short: "Resolve fund display names",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("query"); err != nil {
			return err
		}

		res, err := newService(cfg).Names(cmd.Context(), args)
		if err != nil {
			return eris.Wrap(err, "name")
		}
		return printJSON(os.Stdout, map[string]any{
			"names":  res.Names,
			"errors": res.Errors,
		})
	},
}

func init() {
	rootCmd.AddCommand(nameCmd)
}
