package importer

import (
	"errors"
	"strings"
	"time"

	"github.com/urpt/student-rotation-service/internal/models"
)

const (
	// DateLayout accepts MM/DD/YYYY with optional leading zeros.
	DateLayout = "1/2/2006"
	// TitleDateLayout is the zero-padded MM/DD/YYYY used in titles.
	TitleDateLayout    = "01/02/2006"
	AvailabilityLayout = "January 2, 2006"
)

// ParseDate parses a trimmed MM/DD/YYYY value as a UTC calendar date.
func ParseDate(value string) (time.Time, bool) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(value), time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// RotationTitle is "<location title> - <start MM/DD/YYYY>".
func RotationTitle(locationTitle string, start time.Time) string {
	return strings.TrimSpace(locationTitle) + " - " + start.Format(TitleDateLayout)
}

// Availability is the human readable date range of a rotation.
func Availability(start, end time.Time) string {
	return start.Format(AvailabilityLayout) + " - " + end.Format(AvailabilityLayout)
}

// Attributes is the attribute set built from a row before derivation.
type Attributes struct {
	LocationID    uint
	LocationTitle string
	Start         time.Time
	End           time.Time
	Description   string
	Eligibility   *string
	Onboarding    *string
}

var errIncompleteRow = errors.New("row was not fully validated")

// BuildAttributes extracts the attribute set of a validated row.
func BuildAttributes(v ValidatedRow) (Attributes, error) {
	if !v.Importable() {
		return Attributes{}, errors.New("row has validation errors")
	}
	if v.LocationID == nil || v.Start == nil || v.End == nil {
		return Attributes{}, errIncompleteRow
	}
	return Attributes{
		LocationID:    *v.LocationID,
		LocationTitle: strings.TrimSpace(v.Row.LocationTitle),
		Start:         *v.Start,
		End:           *v.End,
		Description:   strings.TrimSpace(v.Row.Description),
		Eligibility:   optional(v.Row.Eligibility),
		Onboarding:    optional(v.Row.Onboarding),
	}, nil
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

// Derive builds the full rotation record from attrs. Brand comes from the
// location's canonical brand and availability from the two dates.
func Derive(attrs Attributes, location *models.Location) *models.Rotation {
	brand, _ := location.CanonicalBrand()
	return &models.Rotation{
		Title:        RotationTitle(attrs.LocationTitle, attrs.Start),
		LocationID:   attrs.LocationID,
		Brand:        brand,
		Availability: Availability(attrs.Start, attrs.End),
		StartDate:    attrs.Start,
		EndDate:      attrs.End,
		Description:  attrs.Description,
		Eligibility:  attrs.Eligibility,
		Onboarding:   attrs.Onboarding,
		Status:       models.RotationPublished,
	}
}
