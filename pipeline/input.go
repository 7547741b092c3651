package pipeline

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"asin-insights/models"
	"asin-insights/utils"
)

const (
	colURL                = "url"
	colLabel              = "label"
	colBrand              = "brand"
	colPriceFloor         = "price_floor"
	colTargetRating       = "target_rating"
	colTargetReviewsCount = "target_reviews_count"
)

// ParseInput reads the comma-delimited sheet. The header row must contain a
// url column (names are case-sensitive); rows with an empty url are skipped.
func ParseInput(r io.Reader, logger *utils.Logger) ([]models.InputRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, models.NewRunError(models.KindMalformedInput, StageParsing.String(), "input is empty", nil)
	}
	if err != nil {
		return nil, models.NewRunError(models.KindMalformedInput, StageParsing.String(), "cannot read header", err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.Trim(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")), `"`)
		if _, dup := index[h]; !dup {
			index[h] = i
		}
	}
	if _, ok := index[colURL]; !ok {
		return nil, models.NewRunError(models.KindMalformedInput, StageParsing.String(),
			fmt.Sprintf("CSV must contain a %q column", colURL), nil)
	}

	get := func(row []string, col string) string {
		i, ok := index[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.Trim(strings.TrimSpace(row[i]), `"`)
	}

	var records []models.InputRecord
	line := 1
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, models.NewRunError(models.KindMalformedInput, StageParsing.String(),
				fmt.Sprintf("line %d", line), err)
		}

		rec := models.InputRecord{
			URL:   get(row, colURL),
			Label: get(row, colLabel),
			Brand: get(row, colBrand),
		}
		if rec.URL == "" {
			logger.Debug("Skipping line %d: empty url", line)
			continue
		}
		rec.PriceFloor = parseFloatField(get(row, colPriceFloor), colPriceFloor, line, logger)
		rec.TargetRating = parseFloatField(get(row, colTargetRating), colTargetRating, line, logger)
		if v := parseFloatField(get(row, colTargetReviewsCount), colTargetReviewsCount, line, logger); v != nil {
			n := utils.RoundInt(*v)
			rec.TargetReviewsCount = &n
		}
		records = append(records, rec)
	}

	return records, nil
}

func parseFloatField(raw, col string, line int, logger *utils.Logger) *float64 {
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(strings.TrimPrefix(raw, "$"), 64)
	if err != nil || v < 0 {
		logger.Debug("Ignoring %s=%q on line %d", col, raw, line)
		return nil
	}
	return &v
}
