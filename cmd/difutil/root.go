package main

import (
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"difutil/internal/config"
	"difutil/internal/logging"
)

// app carries state shared by all commands.
type app struct {
	stdout, stderr io.Writer

	configPath string
	logLevel   string
	logFormat  string

	cfg    *config.Config
	logCfg logging.Config
	log    zerolog.Logger
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr, log: zerolog.Nop()}

	root := &cobra.Command{
		Use:   "difutil",
		Short: "Identify, check and collect debug information files",
		Long: `difutil classifies debug information files (dSYM bundles, ELF objects,
Proguard mappings and Breakpad symbols), prints their debug identifiers and
collects them from directory trees and zip archives for upload.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "config file (default $DIFUTIL_CONFIG or ~/.difutil/config.yaml)")
	pf.StringVar(&a.logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	pf.StringVar(&a.logFormat, "log-format", "", "log format: auto, console, json")

	root.AddCommand(newIDCmd(a))
	root.AddCommand(newCheckCmd(a))
	root.AddCommand(newFindCmd(a))
	root.AddCommand(newUploadDSYMCmd(a))
	root.AddCommand(newVersionCmd())
	return root
}

// setup loads the configuration, applies flag overrides and builds the logger.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	loader := config.NewLoader()
	if a.configPath != "" {
		loader.Path = a.configPath
	}
	cfg, err := loader.Load()
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = a.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a.cfg = cfg
	a.logCfg = logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: a.stderr,
	}
	a.log = logging.New(a.logCfg)
	return nil
}

// deferClose closes c and logs a failure.
func deferClose(log zerolog.Logger, c io.Closer, msg string) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		log.Warn().Err(err).Msg(msg)
	}
}
