package preload

import (
	"encoding/json"
	"fmt"
	"os"
)

// ManifestEntry represents one key in the output manifest.
type ManifestEntry struct {
	Key    string `json:"key"`
	Status string `json:"status"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
	Error  string `json:"error,omitempty"`
}

// WriteManifest writes the results of a run as indented JSON.
func WriteManifest(path string, results []Result) error {
	entries := make([]ManifestEntry, len(results))
	for i, r := range results {
		e := ManifestEntry{Key: r.Key, Status: "missing", Error: r.Error}
		if r.Success {
			e.Status = "ready"
			e.Width, e.Height = r.Width, r.Height
		}
		entries[i] = e
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("preload: manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("preload: manifest: %w", err)
	}
	return nil
}

// ReadManifest reads a manifest written by WriteManifest.
func ReadManifest(path string) ([]ManifestEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("preload: manifest: %w", err)
	}
	var entries []ManifestEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("preload: manifest %s: %w", path, err)
	}
	return entries, nil
}

// Keys returns the keys of the entries with the given status, or all keys
// when status is empty.
func Keys(entries []ManifestEntry, status string) []string {
	var out []string
	for _, e := range entries {
		if status == "" || e.Status == status {
			out = append(out, e.Key)
		}
	}
	return out
}
