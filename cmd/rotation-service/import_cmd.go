package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/urpt/student-rotation-service/internal/importer"
	"github.com/urpt/student-rotation-service/internal/workflow"
)

type importSummary struct {
	File           string                `json:"file"`
	Mode           string                `json:"mode"`
	TotalRows      int                   `json:"total_rows"`
	Valid          int                   `json:"valid"`
	Warnings       int                   `json:"warnings"`
	Errors         int                   `json:"errors"`
	Dropped        int                   `json:"dropped"`
	MissingColumns []string              `json:"missing_columns,omitempty"`
	RejectedRows   []rejectedRow         `json:"rejected_rows,omitempty"`
	Submitted      int                   `json:"submitted"`
	Purged         int                   `json:"purged"`
	Created        []importer.CreatedRow `json:"created,omitempty"`
	Failed         []importer.FailedRow  `json:"failed,omitempty"`
	RunID          string                `json:"run_id,omitempty"`
	DryRun         bool                  `json:"dry_run"`
	DurationMS     int64                 `json:"duration_ms"`
}

type rejectedRow struct {
	Row    int      `json:"row"`
	Errors []string `json:"errors"`
}

func newImportCmd() *cobra.Command {
	var (
		file            string
		replace         bool
		includeWarnings bool
		userID          string
		dryRun          bool
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import rotations from a CSV or XLSX file without the HTTP workflow",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			start := time.Now()
			parsed, err := a.parser.ParseFile(file)
			if err != nil {
				return err
			}

			batch, err := a.services.Validator.Validate(ctx, parsed.Rows)
			if err != nil {
				return fmt.Errorf("validate %s: %w", file, err)
			}

			summary := importSummary{
				File:           file,
				Mode:           "append",
				TotalRows:      parsed.Total,
				Valid:          len(batch.Valid),
				Warnings:       len(batch.Warnings),
				Errors:         len(batch.Errors),
				Dropped:        len(parsed.Dropped),
				MissingColumns: parsed.MissingColumns(),
				DryRun:         dryRun,
			}
			if replace {
				summary.Mode = "replace"
			}
			for _, row := range batch.Errors {
				errs, _ := row.Messages()
				summary.RejectedRows = append(summary.RejectedRows, rejectedRow{Row: row.Row.Number, Errors: errs})
			}

			rows := batch.Importable(includeWarnings)
			summary.Submitted = len(rows)
			if dryRun || len(rows) == 0 {
				summary.DurationMS = time.Since(start).Milliseconds()
				return writeJSON(cmd.OutOrStdout(), summary)
			}

			result, err := a.services.Executor.Execute(ctx, rows, replace, userID)
			if err != nil {
				return fmt.Errorf("import %s: %w", file, err)
			}
			summary.Purged = result.Purged
			summary.Created = result.Created
			summary.Failed = result.Failed

			runID, err := a.services.Audit.RecordRun(ctx, workflow.RunRecord{
				UserID:          userID,
				FileName:        file,
				Replace:         replace,
				IncludeWarnings: includeWarnings,
				TotalRows:       parsed.Total,
				Submitted:       len(rows),
				Result:          result,
				StartedAt:       start,
				CompletedAt:     time.Now(),
			})
			if err != nil {
				a.logger.Error("Failed to record import run", "file", file, "error", err)
			}
			summary.RunID = runID
			summary.DurationMS = time.Since(start).Milliseconds()
			return writeJSON(cmd.OutOrStdout(), summary)
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "CSV or XLSX file to import (required)")
	cmd.Flags().BoolVar(&replace, "replace", false, "Delete all existing rotations before importing")
	cmd.Flags().BoolVar(&includeWarnings, "include-warnings", false, "Also import rows that only have warnings")
	cmd.Flags().StringVar(&userID, "user", "cli", "Author id recorded on created rotations")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Validate only; write nothing")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
