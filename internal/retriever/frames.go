package retriever

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
)

// frameCodec names the frame encoding stored in the media header.
const frameCodec = "zlib"

// encodeFrame compresses one chunk into a frame payload.
func encodeFrame(text string) ([]byte, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := io.WriteString(w, text); err != nil {
		return nil, fmt.Errorf("compress frame: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("compress frame: %w", err)
	}
	return buf.Bytes(), nil
}

// decodeFrame restores the chunk text from a frame payload.
func decodeFrame(data []byte) (string, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decompress frame: %w", err)
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("decompress frame: %w", err)
	}
	return string(out), nil
}
