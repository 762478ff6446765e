package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
)

// TextProvider reads a file as UTF-8. Invalid byte sequences are dropped.
type TextProvider struct{}

func (TextProvider) Name() string { return "text" }

func (TextProvider) Extract(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.ToValidUTF8(string(data), ""), nil
}

// HTMLProvider parses HTML with goquery and returns the visible text with
// whitespace collapsed. Parse failures are reported as ErrUnsupportedContent.
type HTMLProvider struct{}

func (HTMLProvider) Name() string { return "html" }

func (HTMLProvider) Extract(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return HTMLText(bytes.NewReader(data))
}

// HTMLText extracts the collapsed visible text of an HTML document.
func HTMLText(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("%w: failed to parse HTML: %v", ErrUnsupportedContent, err)
	}

	doc.Find("script, style, noscript, head").Remove()

	return collapseWhitespace(doc.Text()), nil
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// PDFProvider extracts plain text from PDF files. When disabled it reports
// ErrUnavailable so the file is skipped with a warning.
type PDFProvider struct {
	Enabled bool
}

func (PDFProvider) Name() string { return "pdf" }

func (p PDFProvider) Extract(ctx context.Context, path string) (text string, err error) {
	if !p.Enabled {
		return "", ErrUnavailable
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	// The PDF reader panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to extract PDF text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("failed to read PDF text: %w", err)
	}
	return strings.ToValidUTF8(buf.String(), ""), nil
}
