package main

import (
	"github.com/spf13/cobra"

	"difutil/internal/dif"
	"difutil/internal/output"
)

func newCheckCmd(a *app) *cobra.Command {
	var (
		kind   dif.Kind
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "check PATH",
		Short: "Check a debug info file and report what it contains",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := openOne(cmd, args[0], &kind)
			if err != nil {
				return err
			}
			a.log.Debug().
				Str("path", f.Path()).
				Str("kind", string(f.Kind())).
				Str("checksum", f.Checksum()).
				Msg("checked file")

			s := output.Summarize(f)
			if asJSON {
				err = output.WriteJSON(a.stdout, s)
			} else {
				err = output.WriteSummary(a.stdout, s)
			}
			if err != nil {
				return err
			}
			if !f.IsUsable() {
				return quietExit(1)
			}
			return nil
		},
	}
	addTypeFlag(cmd, &kind)
	cmd.Flags().BoolVar(&asJSON, "json", false, "format output as JSON")
	return cmd
}
