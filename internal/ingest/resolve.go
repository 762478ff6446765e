package ingest

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	vberrors "github.com/Aman-CERP/vecbench/internal/errors"
)

// ResolveFiles returns the sorted list of input files. Exactly one of
// inputDir or files must be given. In directory mode every file below
// inputDir whose relative path matches one of patterns (DefaultInclude when
// empty) is returned; matching is case-insensitive. In explicit mode every
// file that exists is kept and missing ones produce warnings.
func ResolveFiles(inputDir string, files []string, patterns []string) ([]string, []Warning, error) {
	switch {
	case inputDir != "" && len(files) > 0:
		return nil, nil, vberrors.ValidationError("--input-dir and --files are mutually exclusive", nil)
	case inputDir == "" && len(files) == 0:
		return nil, nil, vberrors.ValidationError("one of --input-dir or --files is required", nil)
	}

	var (
		resolved []string
		warnings []Warning
		err      error
	)
	if inputDir != "" {
		resolved, err = walkDir(inputDir, patterns)
	} else {
		resolved, warnings = checkFiles(files)
	}
	if err != nil {
		return nil, warnings, err
	}

	if len(resolved) == 0 {
		return nil, warnings, vberrors.New(vberrors.ErrCodeNoInputFiles, "no input files found", nil).
			WithSuggestion("Supported formats: .txt, .md, .pdf, .html, .htm")
	}
	sort.Strings(resolved)
	return resolved, warnings, nil
}

func walkDir(root string, patterns []string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, vberrors.New(vberrors.ErrCodeFileNotFound,
			fmt.Sprintf("input directory %s not found", root), err).WithDetail("path", root)
	}
	if !info.IsDir() {
		return nil, vberrors.ValidationError(fmt.Sprintf("%s is not a directory", root), nil)
	}

	if len(patterns) == 0 {
		patterns = DefaultInclude
	}
	lowered := make([]string, len(patterns))
	for i, p := range patterns {
		lowered[i] = strings.ToLower(filepath.ToSlash(p))
		if !doublestar.ValidatePattern(lowered[i]) {
			return nil, vberrors.ConfigError(fmt.Sprintf("invalid include pattern %q", p), nil)
		}
	}

	var out []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			slog.Warn("walk_error", slog.String("path", path), slog.String("error", err.Error()))
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		if matchAny(lowered, strings.ToLower(filepath.ToSlash(rel))) {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, vberrors.New(vberrors.ErrCodeFileUnreadable, "failed to walk input directory", err)
	}
	return out, nil
}

func matchAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

func checkFiles(files []string) ([]string, []Warning) {
	var (
		out      []string
		warnings []Warning
	)
	seen := make(map[string]bool, len(files))
	for _, f := range files {
		f = filepath.Clean(f)
		if seen[f] {
			continue
		}
		seen[f] = true

		info, err := os.Stat(f)
		switch {
		case err != nil:
			warnings = append(warnings, Warning{Path: f, Reason: "file not found"})
			slog.Warn("file_skipped", slog.String("path", f), slog.String("reason", "file not found"))
		case info.IsDir():
			warnings = append(warnings, Warning{Path: f, Reason: "is a directory"})
			slog.Warn("file_skipped", slog.String("path", f), slog.String("reason", "is a directory"))
		default:
			out = append(out, f)
		}
	}
	return out, warnings
}
