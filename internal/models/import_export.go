package models

import (
	"time"

	"gorm.io/datatypes"
)

type ImportMode string

const (
	ImportModeAppend  ImportMode = "append"
	ImportModeReplace ImportMode = "replace"
)

type ImportRunStatus string

const (
	ImportCompleted ImportRunStatus = "completed"
	ImportPartial   ImportRunStatus = "partial"
	ImportFailed    ImportRunStatus = "failed"
)

// ImportRun is the audit record of one confirmed import.
type ImportRun struct {
	ID       string     `json:"id" gorm:"primaryKey;size:36"` // UUID
	Handle   string     `json:"handle" gorm:"size:36;index"`
	UserID   string     `json:"user_id" gorm:"not null;index;size:255"`
	FileName string     `json:"file_name" gorm:"size:255"`
	Mode     ImportMode `json:"mode" gorm:"not null;size:20"`

	Status          ImportRunStatus `json:"status" gorm:"not null;size:20;index"`
	IncludeWarnings bool            `json:"include_warnings"`

	TotalRows    int `json:"total_rows"`
	ImportedRows int `json:"imported_rows"`
	CreatedCount int `json:"created_count"`
	FailedCount  int `json:"failed_count"`
	PurgedCount  int `json:"purged_count"`

	Summary datatypes.JSON `json:"summary" gorm:"type:jsonb"` // created rows
	Errors  datatypes.JSON `json:"errors" gorm:"type:jsonb"`  // []ImportRowError

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (ImportRun) TableName() string {
	return "import_runs"
}

type ImportRowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}
