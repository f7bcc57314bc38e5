package batch

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// ManifestEntry represents one file in the output manifest.
type ManifestEntry struct {
	File       string   `json:"file"`
	Scene      string   `json:"scene,omitempty"`
	Status     string   `json:"status"`
	Cached     bool     `json:"cached,omitempty"`
	Models     int      `json:"models"`
	Bones      int      `json:"bones"`
	Meshes     int      `json:"meshes"`
	Animations int      `json:"animations"`
	Warnings   []string `json:"warnings,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// WriteManifest writes manifest.json to the output directory. Paths are
// written relative to the manifest where possible.
func WriteManifest(path string, results []Result) error {
	dir := filepath.Dir(path)
	rel := func(p string) string {
		if p == "" {
			return ""
		}
		if r, err := filepath.Rel(dir, p); err == nil {
			return filepath.ToSlash(r)
		}
		return p
	}

	entries := make([]ManifestEntry, len(results))
	for i, r := range results {
		status := "FINISHED"
		if !r.Success {
			status = "FAILED"
		}
		entries[i] = ManifestEntry{
			File:       r.File,
			Scene:      rel(r.Output),
			Status:     status,
			Cached:     r.Cached,
			Models:     r.Models,
			Bones:      r.Bones,
			Meshes:     r.Meshes,
			Animations: r.Animations,
			Warnings:   r.Warnings,
			Error:      r.Error,
		}
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
