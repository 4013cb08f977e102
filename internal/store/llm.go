package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// LLMExchange represents a prompt/response pair for caching
type LLMExchange struct {
	Timestamp time.Time `json:"timestamp"`
	Provider  string    `json:"provider"` // e.g. "anthropic"
	Model     string    `json:"model"`
	Prompt    string    `json:"prompt"`
	Response  string    `json:"response"`
	Error     string    `json:"error,omitempty"`
}

// LLMCacheDir returns the LLM exchange directory under cacheDir.
func LLMCacheDir(cacheDir string) string {
	return filepath.Join(cacheDir, "llm")
}

// SaveLLMExchange serializes an LLM exchange to JSON and writes it to a timestamped file.
// Returns the path to the saved file.
func SaveLLMExchange(cacheDir string, exchange LLMExchange) (string, error) {
	dir := LLMCacheDir(cacheDir)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	path := filepath.Join(dir, generateFilename("", ".json"))

	data, err := json.MarshalIndent(exchange, "", "  ")
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}

	return path, nil
}
