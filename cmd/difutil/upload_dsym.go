package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"difutil/internal/debugid"
	"difutil/internal/dif"
)

// newUploadDSYMCmd keeps the old dSYM upload flags working by mapping them
// onto find. Transport flags are accepted and ignored.
func newUploadDSYMCmd(a *app) *cobra.Command {
	var (
		o               findOptions
		infoPlist       string
		noReprocessing  bool
		forceForeground bool
	)
	cmd := &cobra.Command{
		Use:    "upload-dsym [PATH...]",
		Short:  "DEPRECATED: collect Mac debug symbols for upload",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.log.Warn().Msg(`upload-dsym is deprecated, use "difutil find --type dsym"`)
			for _, s := range o.ids {
				id, err := debugid.Parse(s)
				if err != nil || id.IsOpaque() {
					return fmt.Errorf("invalid --uuid %q: not a UUID", s)
				}
			}
			if infoPlist != "" || noReprocessing || forceForeground {
				a.log.Info().
					Str("info_plist", infoPlist).
					Bool("no_reprocessing", noReprocessing).
					Bool("force_foreground", forceForeground).
					Msg("upload options are handled by the uploader and ignored here")
			}
			o.paths = args
			o.kinds = dif.KindList{dif.KindDSYM}
			o.workers = a.cfg.Discovery.Workers
			return a.runFind(cmd.Context(), o)
		},
	}
	f := cmd.Flags()
	f.StringArrayVar(&o.ids, "uuid", nil, "search for specific UUIDs (repeatable)")
	f.BoolVar(&o.requireAll, "require-all", false, "fail unless every --uuid is found")
	f.StringVar(&o.symbolMaps, "symbol-maps", "", "directory of BCSymbolMap files used to resolve hidden symbols (requires dsymutil)")
	f.BoolVar(&o.derivedData, "derived-data", false, "search for debug symbols in derived data")
	f.BoolVar(&o.noZips, "no-zips", false, "do not search in zip files")
	f.StringVar(&infoPlist, "info-plist", "", "path to the Info.plist of the build")
	f.BoolVar(&noReprocessing, "no-reprocessing", false, "do not trigger reprocessing after uploading")
	f.BoolVar(&forceForeground, "force-foreground", false, "wait for the upload to finish")
	f.BoolVar(&o.asJSON, "json", false, "format output as JSON")
	return cmd
}
