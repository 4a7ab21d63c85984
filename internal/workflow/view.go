package workflow

import (
	"github.com/urpt/student-rotation-service/internal/importer"
)

const (
	confirmLabel        = "Confirm Import"
	replaceConfirmLabel = "Delete All & Import"
	replaceNotice       = "All existing student rotations will be deleted before importing this CSV."
	nothingToImport     = "No valid rows to import. Please fix the errors and try again."
)

// Tokens holds the anti-forgery token of each action allowed in the current
// state. Actions not allowed are left empty.
type Tokens struct {
	Upload  string `json:"upload,omitempty"`
	Confirm string `json:"confirm,omitempty"`
	Finish  string `json:"finish,omitempty"`
}

type Notice struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// View is everything a client needs to render the import page.
type View struct {
	Handle     string      `json:"handle"`
	State      State       `json:"state"`
	Tokens     Tokens      `json:"tokens"`
	Notice     *Notice     `json:"notice,omitempty"`
	Preview    *Preview    `json:"preview,omitempty"`
	Result     *ResultView `json:"result,omitempty"`
	RedirectTo string      `json:"redirect_to,omitempty"`
}

type PreviewRow struct {
	Row           int      `json:"row"`
	LocationTitle string   `json:"location_title"`
	Brand         string   `json:"brand"`
	StartDate     string   `json:"start_date"`
	EndDate       string   `json:"end_date"`
	Description   string   `json:"description"`
	Errors        []string `json:"errors,omitempty"`
	Warnings      []string `json:"warnings,omitempty"`
}

type Preview struct {
	FileName        string `json:"file_name"`
	ReplaceExisting bool   `json:"replace_existing"`
	ModeNotice      string `json:"mode_notice,omitempty"`

	TotalRows    int `json:"total_rows"`
	ValidCount   int `json:"valid_count"`
	WarningCount int `json:"warning_count"`
	ErrorCount   int `json:"error_count"`
	DroppedCount int `json:"dropped_count"`

	Valid          []PreviewRow          `json:"valid"`
	Warnings       []PreviewRow          `json:"warnings"`
	Errors         []PreviewRow          `json:"errors"`
	Dropped        []importer.DroppedRow `json:"dropped,omitempty"`
	MissingColumns []string              `json:"missing_columns,omitempty"`

	CanConfirm             bool   `json:"can_confirm"`
	ConfirmLabel           string `json:"confirm_label,omitempty"`
	IncludeWarningsDefault bool   `json:"include_warnings_default"`
	Message                string `json:"message,omitempty"`
}

type ResultView struct {
	CreatedCount int                   `json:"created_count"`
	FailedCount  int                   `json:"failed_count"`
	Purged       int                   `json:"purged"`
	Created      []importer.CreatedRow `json:"created"`
	Failed       []importer.FailedRow  `json:"failed"`
}

func newPreview(batch *importer.Batch) *Preview {
	p := &Preview{
		FileName:        batch.FileName,
		ReplaceExisting: batch.ReplaceExisting,
		TotalRows:       batch.TotalRows,
		ValidCount:      len(batch.Valid),
		WarningCount:    len(batch.Warnings),
		ErrorCount:      len(batch.Errors),
		DroppedCount:    len(batch.Dropped),
		Valid:           previewRows(batch.Valid),
		Warnings:        previewRows(batch.Warnings),
		Errors:          previewRows(batch.Errors),
		Dropped:         batch.Dropped,
		MissingColumns:  batch.MissingColumns,
		CanConfirm:      batch.CanConfirm(),
		// The opt-in checkbox starts checked whenever there is something to opt into.
		IncludeWarningsDefault: len(batch.Warnings) > 0,
	}
	if batch.ReplaceExisting {
		p.ModeNotice = replaceNotice
	}
	switch {
	case !p.CanConfirm:
		p.Message = nothingToImport
	case batch.ReplaceExisting:
		p.ConfirmLabel = replaceConfirmLabel
	default:
		p.ConfirmLabel = confirmLabel
	}
	return p
}

func previewRows(rows []importer.ValidatedRow) []PreviewRow {
	out := make([]PreviewRow, 0, len(rows))
	for _, r := range rows {
		errs, warnings := r.Messages()
		out = append(out, PreviewRow{
			Row:           r.Row.Number,
			LocationTitle: r.Row.LocationTitle,
			Brand:         r.Row.Brand,
			StartDate:     r.Row.StartDate,
			EndDate:       r.Row.EndDate,
			Description:   r.Row.Description,
			Errors:        errs,
			Warnings:      warnings,
		})
	}
	return out
}

func newResultView(result *importer.Result) *ResultView {
	return &ResultView{
		CreatedCount: len(result.Created),
		FailedCount:  len(result.Failed),
		Purged:       result.Purged,
		Created:      result.Created,
		Failed:       result.Failed,
	}
}
