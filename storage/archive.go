package storage

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"asin-insights/models"
	"asin-insights/utils"
)

// ArchiveZip holds every other artifact of a run
const ArchiveZip = "all.zip"

// ArchiveWriter zips the run directory. Register it after the other file
// exporters so it picks up what they wrote.
type ArchiveWriter struct {
	dir    string
	logger *utils.Logger
}

// NewArchiveWriter creates a new ArchiveWriter rooted at dir
func NewArchiveWriter(dir string, logger *utils.Logger) *ArchiveWriter {
	return &ArchiveWriter{dir: dir, logger: logger}
}

func (w *ArchiveWriter) Name() string { return "archive" }

func (w *ArchiveWriter) Export(_ context.Context, result *models.RunResult) error {
	runDir := RunDir(w.dir, result.RunID)
	entries, err := os.ReadDir(runDir)
	if err != nil {
		return generationError(w.Name(), "cannot list run directory", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || e.Name() == ArchiveZip {
			continue
		}
		files = append(files, filepath.Join(runDir, e.Name()))
	}
	if len(files) == 0 {
		return generationError(w.Name(), "nothing to archive in "+runDir, nil)
	}
	sort.Strings(files)

	if err := zipFiles(filepath.Join(runDir, ArchiveZip), files); err != nil {
		return generationError(w.Name(), "failed to build "+ArchiveZip, err)
	}
	w.logger.Info("Archive written to: %s (%d files)", filepath.Join(runDir, ArchiveZip), len(files))
	return nil
}
