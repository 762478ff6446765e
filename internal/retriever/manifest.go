package retriever

import (
	"encoding/json"
	"fmt"
	"os"
)

// manifest describes an index artifact so Open can rebuild a matching
// retriever without the original configuration.
type manifest struct {
	Model          string         `json:"model"`
	Dimension      int            `json:"dimension"`
	Frames         int            `json:"frames"`
	KeywordBackend KeywordBackend `json:"keyword_backend"`
	Codec          string         `json:"codec"`
}

// manifestPath returns the manifest location for an index artifact.
func manifestPath(indexPath string) string {
	return indexPath + ".json"
}

func writeManifest(path string, m manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename manifest: %w", err)
	}
	return nil
}

func readManifest(path string) (manifest, error) {
	var m manifest
	data, err := os.ReadFile(path)
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("failed to decode manifest: %w", err)
	}
	return m, nil
}
