package chunk

import (
	"fmt"
	"strings"
	"unicode/utf8"

	vberrors "github.com/Aman-CERP/vecbench/internal/errors"
)

// Validate checks that a window configuration makes forward progress.
func Validate(size, overlap int) error {
	switch {
	case size <= 0:
		return vberrors.New(vberrors.ErrCodeInvalidChunking,
			fmt.Sprintf("chunk size must be positive, got %d", size), nil)
	case overlap < 0:
		return vberrors.New(vberrors.ErrCodeInvalidChunking,
			fmt.Sprintf("chunk overlap must not be negative, got %d", overlap), nil)
	case overlap >= size:
		return vberrors.New(vberrors.ErrCodeInvalidChunking,
			fmt.Sprintf("chunk overlap (%d) must be smaller than chunk size (%d)", overlap, size), nil).
			WithSuggestion("lower --overlap or raise --chunk-size")
	}
	return nil
}

// Split walks text with a window of size bytes, advancing by size-overlap,
// and returns every window that is not blank after trimming. Windows are
// returned untrimmed. The walk stops once a window reaches the end of the
// text, so the last chunk may be shorter than size but is never a suffix
// already covered by its predecessor.
//
// Window edges are pulled back to rune boundaries so multi-byte text never
// yields invalid UTF-8; for ASCII input the windows are exact.
func Split(text string, size, overlap int) ([]string, error) {
	if err := Validate(size, overlap); err != nil {
		return nil, err
	}

	var chunks []string
	start := 0
	for start < len(text) {
		end := alignBack(text, start+size)
		if end <= start {
			// A single rune wider than the window still has to move forward.
			_, w := utf8.DecodeRuneInString(text[start:])
			end = start + w
		}

		window := text[start:end]
		if strings.TrimSpace(window) != "" {
			chunks = append(chunks, window)
		}

		if end >= len(text) {
			break
		}

		next := alignBack(text, end-overlap)
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks, nil
}

// alignBack clamps i to len(s) and moves it back to the nearest rune start.
func alignBack(s string, i int) int {
	if i >= len(s) {
		return len(s)
	}
	if i < 0 {
		return 0
	}
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}
