package importer

import (
	"context"
	"fmt"
	"strings"

	apperrors "github.com/urpt/student-rotation-service/internal/errors"
	"github.com/urpt/student-rotation-service/internal/models"
)

// LocationDirectory resolves location titles to records.
type LocationDirectory interface {
	FindLocationsByTitle(ctx context.Context, title string) ([]models.Location, error)
}

// Validator classifies parsed rows against the location reference data.
type Validator struct {
	directory LocationDirectory
}

func NewValidator(directory LocationDirectory) *Validator {
	return &Validator{directory: directory}
}

// Validate partitions rows into the valid, warnings and errors buckets,
// preserving input order inside each bucket. The caller sets the mode flag.
func (v *Validator) Validate(ctx context.Context, rows []Row) (*Batch, error) {
	batch := &Batch{
		TotalRows: len(rows),
		Valid:     []ValidatedRow{},
		Warnings:  []ValidatedRow{},
		Errors:    []ValidatedRow{},
	}

	lookups := make(map[string][]models.Location)
	for _, row := range rows {
		validated, err := v.validate(ctx, row, lookups)
		if err != nil {
			return nil, err
		}
		switch {
		case len(validated.Errors) > 0:
			batch.Errors = append(batch.Errors, validated)
		case len(validated.Warnings) > 0:
			batch.Warnings = append(batch.Warnings, validated)
		default:
			batch.Valid = append(batch.Valid, validated)
		}
	}

	return batch, nil
}

func (v *Validator) validate(ctx context.Context, row Row, lookups map[string][]models.Location) (ValidatedRow, error) {
	result := ValidatedRow{Row: row}

	title := strings.TrimSpace(row.LocationTitle)
	if title == "" {
		result.fail(apperrors.CodeMissingField, "Location Title is required")
		return result, nil
	}

	matches, err := v.lookup(ctx, title, lookups)
	if err != nil {
		return ValidatedRow{}, fmt.Errorf("resolve location %q: %w", title, err)
	}
	switch len(matches) {
	case 0:
		result.fail(apperrors.CodeNotFound, fmt.Sprintf("Location '%s' not found", title))
		return result, nil
	case 1:
	default:
		result.fail(apperrors.CodeNotFound, fmt.Sprintf("Location '%s' matches %d locations", title, len(matches)))
		return result, nil
	}
	location := matches[0]
	locationID := location.ID
	result.LocationID = &locationID

	csvBrand := strings.TrimSpace(row.Brand)
	if canonical, ok := location.CanonicalBrand(); ok {
		if canonical != csvBrand {
			result.warn(fmt.Sprintf("Brand mismatch: Location has '%s' but CSV says '%s'", canonical, csvBrand))
		}
	} else {
		result.warn("No brand found for this location")
	}

	start, ok := ParseDate(row.StartDate)
	if !ok {
		result.fail(apperrors.CodeInvalidFormat, "Invalid start date format. Use MM/DD/YYYY")
		return result, nil
	}
	result.Start = &start

	end, ok := ParseDate(row.EndDate)
	if !ok {
		result.fail(apperrors.CodeInvalidFormat, "Invalid end date format. Use MM/DD/YYYY")
		return result, nil
	}
	if !end.After(start) {
		result.fail(apperrors.CodeInvalidRange, "End date must be after start date")
		return result, nil
	}
	result.End = &end

	if strings.TrimSpace(row.Description) == "" {
		result.fail(apperrors.CodeMissingField, "Description is required")
		return result, nil
	}

	return result, nil
}

func (v *Validator) lookup(ctx context.Context, title string, lookups map[string][]models.Location) ([]models.Location, error) {
	if lookups != nil {
		if cached, ok := lookups[title]; ok {
			return cached, nil
		}
	}
	matches, err := v.directory.FindLocationsByTitle(ctx, title)
	if err != nil {
		return nil, err
	}
	if lookups != nil {
		lookups[title] = matches
	}
	return matches, nil
}
