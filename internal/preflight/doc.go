// Package preflight checks that a comparison can run before any work
// starts.
//
// The checks cover:
//   - Free disk space where the artifacts are written (minimum 100MB)
//   - Write permissions in the output directory
//   - File descriptor limits (minimum 1024)
//   - Reachability of the configured embedder
//   - Credentials or reachability of the configured LLM provider
//
// Use the Checker type to run all validations:
//
//	checker := preflight.New()
//	results := checker.RunAll(ctx, preflight.Target{OutputDir: "results", Embedder: "ollama"})
//	if checker.HasCriticalFailures(results) {
//	    // Handle failures
//	}
package preflight
