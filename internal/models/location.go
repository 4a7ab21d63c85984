package models

import (
	"sort"
	"time"
)

// Brand is a brand tag that can be attached to clinic locations.
type Brand struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"not null;size:255;uniqueIndex"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Brand) TableName() string {
	return "brands"
}

// Location is a clinic site that rotations reference.
type Location struct {
	ID        uint    `json:"id" gorm:"primaryKey"`
	Title     string  `json:"title" gorm:"not null;size:255;index"`
	Address   string  `json:"address" gorm:"size:500"`
	City      string  `json:"city" gorm:"size:100"`
	State     string  `json:"state" gorm:"size:50"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`

	Brands []LocationBrand `json:"brands,omitempty" gorm:"foreignKey:LocationID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Location) TableName() string {
	return "locations"
}

// LocationBrand attaches a brand to a location. Position orders the tags;
// the lowest position is the canonical brand.
type LocationBrand struct {
	LocationID uint  `json:"location_id" gorm:"primaryKey"`
	BrandID    uint  `json:"brand_id" gorm:"primaryKey;index"`
	Position   int   `json:"position" gorm:"not null;default:0"`
	Brand      Brand `json:"brand" gorm:"foreignKey:BrandID"`
}

func (LocationBrand) TableName() string {
	return "location_brands"
}

// CanonicalBrand returns the name of the location's first brand tag.
func (l *Location) CanonicalBrand() (string, bool) {
	if l == nil || len(l.Brands) == 0 {
		return "", false
	}
	tags := make([]LocationBrand, len(l.Brands))
	copy(tags, l.Brands)
	sort.SliceStable(tags, func(i, j int) bool {
		if tags[i].Position != tags[j].Position {
			return tags[i].Position < tags[j].Position
		}
		return tags[i].BrandID < tags[j].BrandID
	})
	return tags[0].Brand.Name, true
}
