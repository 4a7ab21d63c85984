package models

import "time"

type RotationStatus string

const (
	RotationPublished RotationStatus = "published"
	RotationDraft     RotationStatus = "draft"
)

// Rotation is a clinical rotation posting.
type Rotation struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	Title      string `json:"title" gorm:"not null;size:500;index"`
	LocationID uint   `json:"location_id" gorm:"not null;index"`

	// Brand and Availability are derived from the location and the dates
	// whenever the rotation is built; they are never taken from input.
	Brand        string `json:"brand" gorm:"size:255"`
	Availability string `json:"availability" gorm:"size:255"`

	StartDate time.Time `json:"start_date" gorm:"type:date;not null;index"`
	EndDate   time.Time `json:"end_date" gorm:"type:date;not null"`

	Description string  `json:"description" gorm:"type:text;not null"`
	Eligibility *string `json:"eligibility" gorm:"type:text"`
	Onboarding  *string `json:"onboarding" gorm:"type:text"`

	Status   RotationStatus `json:"status" gorm:"default:published;index;size:20"`
	AuthorID string         `json:"author_id" gorm:"size:255;index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Location *Location `json:"location,omitempty" gorm:"foreignKey:LocationID;constraint:OnDelete:CASCADE"`
}

func (Rotation) TableName() string {
	return "rotations"
}

// IsValid reports whether s is a known rotation status.
func (s RotationStatus) IsValid() bool {
	switch s {
	case RotationPublished, RotationDraft:
		return true
	}
	return false
}
