// Package cmd provides the vecbench CLI commands.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/vecbench/internal/config"
	vberrors "github.com/Aman-CERP/vecbench/internal/errors"
	"github.com/Aman-CERP/vecbench/internal/llm"
	"github.com/Aman-CERP/vecbench/internal/logging"
	"github.com/Aman-CERP/vecbench/internal/profiling"
	"github.com/Aman-CERP/vecbench/pkg/version"
)

// app holds state shared by the persistent hooks and the commands.
type app struct {
	debug      bool
	profileDir string

	cfg            *config.Config
	loggingCleanup func()
	profile        *profiling.Session
}

// NewRootCmd creates the root command. Running it performs one comparison.
func NewRootCmd() *cobra.Command {
	cmd, _ := newRoot()
	return cmd
}

func newRoot() (*cobra.Command, *app) {
	a := &app{}
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "vecbench (--input-dir DIR | --files F...)",
		Short: "Compare an encoded-media retriever against a baseline vector index",
		Long: `vecbench builds two retrieval backends from the same documents and
compares them.

Backend A encodes chunks into a compressed media file with an HNSW
vector index and a keyword index. Backend B is an in-memory flat or
IVF index. Both use the same embedder. vecbench measures build time,
storage size, search latency and top-5 overlap, optionally asks an LLM
the same questions over each backend's context, and writes a Markdown
report and a JSON stats file.`,
		Example: `  vecbench --input-dir ./docs
  vecbench --files a.pdf --files b.md --test-queries "Who wrote it?"
  vecbench --input-dir ./docs --index-kind flat --embedder ollama --no-llm`,
		Version:       version.Version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCompare(cmd, a.cfg, opts, a.debug)
		},
	}
	cmd.SetVersionTemplate("vecbench version {{.Version}}\n")

	opts.bind(cmd)

	cmd.PersistentFlags().BoolVar(&a.debug, "debug", false, "Log debug detail and mirror the log to stderr")
	cmd.PersistentFlags().StringVar(&a.profileDir, "profile-dir", "", "Write CPU, heap and trace profiles to this directory")
	_ = cmd.PersistentFlags().MarkHidden("profile-dir")

	cmd.PersistentPreRunE = a.start
	cmd.PersistentPostRunE = a.stop

	cmd.AddCommand(newQueryCmd(a))
	cmd.AddCommand(newConfigCmd(a))
	cmd.AddCommand(newDoctorCmd(a))
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd, a
}

// start loads .env and the layered config, then sets up logging and
// profiling.
func (a *app) start(cmd *cobra.Command, _ []string) error {
	llm.LoadDotEnv()

	cfg, err := config.Load(".")
	if err != nil {
		return vberrors.ConfigError(err.Error(), err).
			WithSuggestion("Fix the config file or run 'vecbench config init --force'")
	}
	a.cfg = cfg

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	if !cfg.Logging.FileEnabled {
		logCfg.FilePath = ""
	}
	if a.debug {
		logCfg.Level = "debug"
		logCfg.Stderr = cmd.ErrOrStderr()
	}
	cleanup, err := logging.SetupDefault(logCfg)
	if err != nil {
		// A read-only home should not stop a comparison.
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "warning: file logging disabled: %v\n", err)
		logCfg.FilePath = ""
		cleanup, _ = logging.SetupDefault(logCfg)
	}
	a.loggingCleanup = cleanup
	slog.Debug("command_started",
		slog.String("command", cmd.CommandPath()),
		slog.String("version", version.Version))

	if a.profileDir != "" {
		a.profile, err = profiling.Start(a.profileDir)
		if err != nil {
			return err
		}
	}
	return nil
}

// stop is idempotent; Execute calls it again because cobra skips
// PersistentPostRunE when RunE fails.
func (a *app) stop(_ *cobra.Command, _ []string) error {
	var err error
	if a.profile != nil {
		var allocated uint64
		allocated, err = a.profile.Stop()
		slog.Info("profile_written",
			slog.String("dir", a.profile.Dir()),
			slog.String("allocated", profiling.FormatBytes(allocated)))
		a.profile = nil
	}
	if a.loggingCleanup != nil {
		a.loggingCleanup()
		a.loggingCleanup = nil
	}
	return err
}

// Execute runs the root command and prints a fatal error for the user.
func Execute() error {
	root, a := newRoot()
	err := root.Execute()
	_ = a.stop(nil, nil)
	if err != nil {
		_, _ = fmt.Fprint(os.Stderr, vberrors.FormatForCLI(err))
	}
	return err
}
