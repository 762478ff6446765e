package cmd

import (
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/vecbench/internal/preflight"
)

func newDoctorCmd(a *app) *cobra.Command {
	var (
		jsonOut bool
		verbose bool
		noLLM   bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that a comparison can run",
		Long: `Check the output directory, the embedder and the LLM provider from the
effective configuration without building anything.

A failed LLM check is reported as a warning: the comparison still runs
and skips the response comparison.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			target := preflight.Target{
				OutputDir:   a.cfg.Output.Dir,
				Embedder:    a.cfg.Embeddings.Provider,
				EmbedHost:   a.cfg.Embeddings.OllamaHost,
				LLMProvider: a.cfg.LLM.Provider,
				LLMHost:     a.cfg.LLM.OllamaHost,
			}
			if noLLM || a.cfg.LLM.Queries <= 0 {
				target.LLMProvider = ""
			}

			checker := preflight.New(preflight.WithOutput(cmd.OutOrStdout()), preflight.WithVerbose(verbose))
			results := checker.RunAll(cmd.Context(), target)

			if jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(map[string]any{
					"status": checker.SummaryStatus(results),
					"checks": results,
				}); err != nil {
					return err
				}
			} else {
				checker.PrintResults(results)
			}

			if checker.HasCriticalFailures(results) {
				return errors.New("system check failed")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output results as JSON")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show details for each check")
	cmd.Flags().BoolVar(&noLLM, "no-llm", false, "Skip the LLM provider check")
	return cmd
}
