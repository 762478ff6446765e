package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// ErrUnknownExtension is returned for files no provider is registered for.
var ErrUnknownExtension = errors.New("unsupported file extension")

// Registry maps lower-cased file extensions to providers in priority order.
type Registry struct {
	providers map[string][]Provider
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string][]Provider)}
}

// DefaultRegistry registers the built-in providers. pdfEnabled toggles PDF
// extraction.
func DefaultRegistry(pdfEnabled bool) *Registry {
	r := NewRegistry()
	r.Register(".txt", TextProvider{})
	r.Register(".md", TextProvider{})
	r.Register(".html", HTMLProvider{}, TextProvider{})
	r.Register(".htm", HTMLProvider{}, TextProvider{})
	r.Register(".pdf", PDFProvider{Enabled: pdfEnabled})
	return r
}

// Register appends providers for ext. The leading dot is optional.
func (r *Registry) Register(ext string, providers ...Provider) {
	ext = normalizeExt(ext)
	r.providers[ext] = append(r.providers[ext], providers...)
}

// Supports reports whether any provider is registered for path's extension.
func (r *Registry) Supports(path string) bool {
	return len(r.providers[normalizeExt(filepath.Ext(path))]) > 0
}

// Extensions lists the registered extensions in sorted order.
func (r *Registry) Extensions() []string {
	out := make([]string, 0, len(r.providers))
	for ext := range r.providers {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Extract runs the providers for path's extension in order and returns the
// first result. It falls through on ErrUnavailable and ErrUnsupportedContent;
// any other error stops the chain. If every provider falls through, the
// returned error wraps ErrUnavailable.
func (r *Registry) Extract(ctx context.Context, path string) (string, string, error) {
	ext := normalizeExt(filepath.Ext(path))
	chain := r.providers[ext]
	if len(chain) == 0 {
		return "", "", fmt.Errorf("%w: %q", ErrUnknownExtension, ext)
	}

	var tried []string
	for _, p := range chain {
		text, err := p.Extract(ctx, path)
		if err == nil {
			return text, p.Name(), nil
		}
		if errors.Is(err, ErrUnavailable) || errors.Is(err, ErrUnsupportedContent) {
			tried = append(tried, p.Name())
			continue
		}
		return "", p.Name(), err
	}
	return "", "", fmt.Errorf("%w: tried %s", ErrUnavailable, strings.Join(tried, ", "))
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
