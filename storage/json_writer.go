package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"asin-insights/models"
	"asin-insights/utils"
)

// ResultJSON is the file name of the serialized run
const ResultJSON = "result.json"

// JSONWriter stores the full result object as indented JSON
type JSONWriter struct {
	dir    string
	logger *utils.Logger
}

// NewJSONWriter creates a new JSONWriter rooted at dir
func NewJSONWriter(dir string, logger *utils.Logger) *JSONWriter {
	return &JSONWriter{dir: dir, logger: logger}
}

func (w *JSONWriter) Name() string { return "json" }

func (w *JSONWriter) Export(_ context.Context, result *models.RunResult) error {
	runDir := RunDir(w.dir, result.RunID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return generationError(w.Name(), "failed to create output directory", err)
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return generationError(w.Name(), "failed to encode result", err)
	}
	path := filepath.Join(runDir, ResultJSON)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return generationError(w.Name(), "failed to write "+ResultJSON, err)
	}
	w.logger.Info("Result written to: %s", path)
	return nil
}
