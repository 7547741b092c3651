package storage

import (
	"context"
	"fmt"

	"asin-insights/models"
)

// Exporter writes a finished run somewhere. Failures are GenerationFailure
// errors and never affect the computed result.
type Exporter interface {
	Name() string
	Export(ctx context.Context, result *models.RunResult) error
}

func generationError(exporter, msg string, err error) error {
	return models.NewRunError(models.KindGenerationFailure, exporter, msg, err)
}

// ExportAll runs every exporter and returns the failures; a failing exporter
// does not stop the others.
func ExportAll(ctx context.Context, result *models.RunResult, exporters ...Exporter) []error {
	var errs []error
	for _, e := range exporters {
		if err := e.Export(ctx, result); err != nil {
			errs = append(errs, fmt.Errorf("%s export: %w", e.Name(), err))
		}
	}
	return errs
}
