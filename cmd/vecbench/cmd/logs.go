package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"regexp"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/vecbench/internal/logging"
	"github.com/Aman-CERP/vecbench/internal/ui"
)

func newLogsCmd() *cobra.Command {
	var (
		lines   int
		follow  bool
		level   string
		pattern string
		runID   string
		file    string
		noColor bool
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the vecbench log",
		Long: `Print recent entries of ~/.vecbench/logs/vecbench.log.

Every record of a comparison carries its run ID, so --run shows one run
from start to finish.`,
		Example: `  vecbench logs -n 100
  vecbench logs --level warn
  vecbench logs --run 3f2a... -f`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := logging.FindLogFile(file)
			if err != nil {
				return err
			}

			var re *regexp.Regexp
			if pattern != "" {
				re, err = regexp.Compile(pattern)
				if err != nil {
					return fmt.Errorf("invalid --grep pattern: %w", err)
				}
			}

			out := cmd.OutOrStdout()
			viewer := logging.NewViewer(logging.ViewerConfig{
				Level:   level,
				Pattern: re,
				RunID:   runID,
				NoColor: noColor || ui.DetectNoColor() || !ui.IsTTY(out),
			}, out)

			entries, err := viewer.Tail(path, lines)
			if err != nil {
				return err
			}
			viewer.Print(entries)

			if !follow {
				return nil
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ch := make(chan logging.LogEntry, 64)
			errCh := make(chan error, 1)
			go func() {
				errCh <- viewer.Follow(ctx, path, ch)
				close(ch)
			}()
			for e := range ch {
				viewer.Print([]logging.LogEntry{e})
			}
			return <-errCh
		},
	}

	f := cmd.Flags()
	f.IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to read")
	f.BoolVarP(&follow, "follow", "f", false, "Keep printing new entries")
	f.StringVar(&level, "level", "", "Minimum level: debug, info, warn, error")
	f.StringVar(&pattern, "grep", "", "Only entries matching this regular expression")
	f.StringVar(&runID, "run", "", "Only entries of this run ID")
	f.StringVar(&file, "file", "", "Log file (default ~/.vecbench/logs/vecbench.log)")
	f.BoolVar(&noColor, "no-color", false, "Disable colors")
	return cmd
}
