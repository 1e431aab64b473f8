package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"difutil/internal/dif"
	"difutil/internal/output"
)

func newIDCmd(a *app) *cobra.Command {
	var (
		kind   dif.Kind
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:     "id PATH",
		Aliases: []string{"uuid"},
		Short:   "Print debug identifier(s) from a debug info file",
		Long: `Print the debug identifiers of a single debug info file, one per line.
Prefer "difutil check", which also reports what the file contains.`,
		Hidden: true,
		Args:   cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := openOne(cmd, args[0], &kind)
			if err != nil {
				return err
			}
			if !f.IsUsable() {
				fmt.Fprintf(a.stderr, "error: debug info file is not usable: %s\n", f.Problem())
				return quietExit(1)
			}
			if asJSON {
				return output.WriteJSON(a.stdout, f.IDs())
			}
			return output.WriteIDs(a.stdout, f.IDs())
		},
	}
	addTypeFlag(cmd, &kind)
	cmd.Flags().BoolVar(&asJSON, "json", false, "format output as JSON")
	return cmd
}

func addTypeFlag(cmd *cobra.Command, kind *dif.Kind) {
	cmd.Flags().VarP(kind, "type", "t",
		"explicitly set the file type (dsym, elf, proguard, breakpad); files are auto detected otherwise")
}

// openOne opens path, honoring --type when it was given.
func openOne(cmd *cobra.Command, path string, kind *dif.Kind) (*dif.File, error) {
	var hint *dif.Kind
	if cmd.Flags().Changed("type") {
		hint = kind
	}
	return dif.Open(path, hint)
}
