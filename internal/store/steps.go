package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// StepName identifies a pipeline step for caching purposes.
type StepName string

const (
	StepFetched    StepName = "fetched"
	StepMatched    StepName = "matched"
	StepCandidates StepName = "candidates"
	StepReports    StepName = "reports"
)

// stepDir returns the cache directory for a given step.
func stepDir(cacheDir string, step StepName) string {
	return filepath.Join(cacheDir, "steps", string(step))
}

// generateFilename creates a timestamped filename with the given
// label and extension. Timestamps use dashes for filesystem compatibility.
func generateFilename(label, ext string) string {
	name := time.Now().Format("2006-01-02T15-04-05.000")
	if label != "" {
		name += "_" + label
	}
	return name + ext
}

// SaveStepOutput saves JSON-serializable data to the step's cache directory.
// Returns the path to the saved file.
func SaveStepOutput[T any](cacheDir string, step StepName, label string, data T) (string, error) {
	dir := stepDir(cacheDir, step)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create step cache dir: %w", err)
	}

	path := filepath.Join(dir, generateFilename(label, ".json"))

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal step output: %w", err)
	}

	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return "", fmt.Errorf("failed to write step output: %w", err)
	}

	return path, nil
}

// SaveTextOutput saves text content (e.g., HTML) to the step's cache directory.
// Returns the path to the saved file.
func SaveTextOutput(cacheDir string, step StepName, content string, ext string) (string, error) {
	dir := stepDir(cacheDir, step)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create step cache dir: %w", err)
	}

	path := filepath.Join(dir, generateFilename("", ext))

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write step output: %w", err)
	}

	return path, nil
}

// LatestStepFile returns the path to the most recent file in a step's cache directory.
func LatestStepFile(cacheDir string, step StepName) (string, error) {
	dir := stepDir(cacheDir, step)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("no cached output for step %s", step)
		}
		return "", err
	}

	// os.ReadDir sorts by name, which is chronological for our timestamps
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() {
			files = append(files, entry.Name())
		}
	}

	if len(files) == 0 {
		return "", fmt.Errorf("no cached output for step %s", step)
	}

	return filepath.Join(dir, files[len(files)-1]), nil
}
