package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"difutil/internal/debugid"
	"difutil/internal/diag"
	"difutil/internal/dif"
	"difutil/internal/discover"
	"difutil/internal/logging"
	"difutil/internal/output"
	"difutil/internal/selection"
	"difutil/internal/symbolmap"
)

// findOptions are the inputs of a bulk discovery run.
type findOptions struct {
	paths       []string
	ids         []string
	requireAll  bool
	noZips      bool
	derivedData bool
	kinds       dif.KindList
	symbolMaps  string
	strict      bool
	workers     int
	asJSON      bool
	out         string
}

func newFindCmd(a *app) *cobra.Command {
	var o findOptions
	cmd := &cobra.Command{
		Use:   "find [PATH...]",
		Short: "Find debug info files and list the ones selected for upload",
		Long: `Search paths recursively (and inside zip archives) for debug info files,
optionally restrict the result to specific debug identifiers, resolve hidden
symbols with BCSymbolMap files and print the upload manifest.

Without paths the current directory is searched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			o.paths = args
			if !cmd.Flags().Changed("workers") {
				o.workers = a.cfg.Discovery.Workers
			}
			return a.runFind(cmd.Context(), o)
		},
	}
	f := cmd.Flags()
	f.StringArrayVar(&o.ids, "id", nil, "only select files with this debug identifier (repeatable)")
	f.BoolVar(&o.requireAll, "require-all", false, "fail unless every --id is found")
	f.BoolVar(&o.noZips, "no-zips", false, "do not search in zip files")
	f.BoolVar(&o.derivedData, "derived-data", false, "also search Xcode's derived data directory")
	f.VarP(&o.kinds, "type", "t", "only consider these file types (repeatable or comma separated)")
	f.StringVar(&o.symbolMaps, "symbol-maps", "", "directory of BCSymbolMap files used to resolve hidden symbols (requires dsymutil)")
	f.BoolVar(&o.strict, "strict", false, "abort on the first unreadable entry")
	f.IntVar(&o.workers, "workers", 0, "number of files parsed in parallel")
	f.BoolVar(&o.asJSON, "json", false, "format output as JSON")
	f.StringVar(&o.out, "out", "", "also write the manifest as JSON to this file")
	return cmd
}

func (a *app) runFind(ctx context.Context, o findOptions) error {
	requested, err := debugid.ParseAll(o.ids)
	if err != nil {
		return fmt.Errorf("invalid --id: %w", err)
	}
	if o.requireAll && len(requested) == 0 {
		a.log.Warn().Msg("--require-all has no effect without --id")
	}

	paths := o.paths
	if len(paths) == 0 && !o.derivedData {
		paths = []string{"."}
	}

	cache, err := dif.NewCache(a.cfg.Discovery.CacheSize)
	if err != nil {
		return err
	}
	opts := discover.Options{
		SearchArchives: a.cfg.Discovery.SearchArchives && !o.noZips,
		DerivedData:    o.derivedData,
		Kinds:          o.kinds,
		Workers:        o.workers,
		TempDir:        a.cfg.Discovery.TempDir,
		Logger:         logging.NewWithComponent(a.logCfg, "discover"),
		Cache:          cache,
	}
	if o.strict || a.cfg.Discovery.Strict {
		opts.Policy = diag.ModeStrict
	}

	res, err := discover.Discover(ctx, paths, opts)
	if err != nil {
		a.log.Error().Err(err).Str("outcome", "discovery_failed").Msg("discovery aborted")
		return err
	}
	defer deferClose(a.log, res, "failed to clean up archive workspace")

	// With requested ids the constraint decides the outcome, so a missing id
	// is reported as such even when nothing usable was found.
	if len(requested) == 0 {
		if err := res.CheckUsable(); err != nil {
			a.log.Error().Str("outcome", "no_usable").Int("candidates", len(res.Files)).Msg("no usable debug information files found")
			return err
		}
	}

	sel, err := selection.Select(res.Files, selection.Constraint{IDs: requested, RequireAll: o.requireAll})
	var missing *selection.MissingIDsError
	if errors.As(err, &missing) {
		ids := make([]string, len(missing.IDs))
		for i, id := range missing.IDs {
			ids[i] = id.String()
		}
		a.log.Error().Str("outcome", "missing_ids").Strs("ids", ids).Msg("required identifiers missing")
		return err
	}
	if err != nil {
		return err
	}

	files := sel.Selected
	if o.symbolMaps != "" {
		resolver := &symbolmap.Resolver{
			Tool:    a.cfg.SymbolMap.Tool,
			WorkDir: a.cfg.SymbolMap.WorkDir,
			Logger:  logging.NewWithComponent(a.logCfg, "symbolmap"),
		}
		defer deferClose(a.log, resolver, "failed to clean up symbol map work dir")
		files, err = resolver.ResolveAll(ctx, sel.Selected, o.symbolMaps)
		if err != nil {
			a.log.Error().Err(err).Str("outcome", "tool_failed").Msg("symbol map resolution failed")
			return err
		}
	}

	m := output.NewManifest(sel, files, res.Skipped)
	if o.out != "" {
		if err := output.WriteJSONFile(o.out, m); err != nil {
			return err
		}
		a.log.Info().Str("path", o.out).Msg("wrote manifest")
	}
	if o.asJSON {
		return output.WriteJSON(a.stdout, m)
	}
	return output.WriteManifest(a.stdout, m)
}
