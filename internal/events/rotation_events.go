package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the rotation lifecycle events this service emits
type EventType string

const (
	EventRotationsImported        EventType = "rotations.imported"
	EventRotationsPurged          EventType = "rotations.purged"
	EventRotationsExpired         EventType = "rotations.expired"
	EventRotationsLocationRemoved EventType = "rotations.location_removed"
)

const (
	eventSource  = "student-rotation-service"
	eventVersion = "1.0"
)

// RotationEvent is the envelope published for every rotation event
type RotationEvent struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	Data      interface{}            `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

type RotationsImportedEvent struct {
	RunID           string `json:"run_id"`
	UserID          string `json:"user_id"`
	FileName        string `json:"file_name"`
	Mode            string `json:"mode"`
	IncludeWarnings bool   `json:"include_warnings"`
	Created         int    `json:"created"`
	Failed          int    `json:"failed"`
	Purged          int    `json:"purged"`
	RotationIDs     []uint `json:"rotation_ids"`
}

type RotationsPurgedEvent struct {
	RunID  string `json:"run_id"`
	UserID string `json:"user_id"`
	Count  int    `json:"count"`
}

type RotationsExpiredEvent struct {
	Before time.Time `json:"before"`
	Count  int       `json:"count"`
}

type LocationRemovedEvent struct {
	LocationID    uint   `json:"location_id"`
	LocationTitle string `json:"location_title"`
	Rotations     int    `json:"rotations"`
	UserID        string `json:"user_id"`
}

// Event factory functions

func NewRotationsImportedEvent(data RotationsImportedEvent) *RotationEvent {
	return newEvent(EventRotationsImported, data)
}

func NewRotationsPurgedEvent(runID, userID string, count int) *RotationEvent {
	return newEvent(EventRotationsPurged, RotationsPurgedEvent{RunID: runID, UserID: userID, Count: count})
}

func NewRotationsExpiredEvent(before time.Time, count int) *RotationEvent {
	return newEvent(EventRotationsExpired, RotationsExpiredEvent{Before: before, Count: count})
}

func NewLocationRemovedEvent(locationID uint, title string, rotations int, userID string) *RotationEvent {
	return newEvent(EventRotationsLocationRemoved, LocationRemovedEvent{
		LocationID:    locationID,
		LocationTitle: title,
		Rotations:     rotations,
		UserID:        userID,
	})
}

func newEvent(eventType EventType, data interface{}) *RotationEvent {
	return &RotationEvent{
		ID:        GenerateEventID(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Source:    eventSource,
		Version:   eventVersion,
		Data:      data,
	}
}

// GenerateEventID returns a new random event id
func GenerateEventID() string {
	return uuid.NewString()
}
