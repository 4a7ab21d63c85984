package importer

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const templateSheet = "Rotations"

// TemplateColumns is the column order of the downloadable template.
var TemplateColumns = append(append([]string{}, RequiredColumns...), OptionalColumns...)

var templateExample = []string{
	"Downtown Clinic",
	"Acme Health",
	"3/1/2025",
	"3/31/2025",
	"Four week orthopedic rotation.",
	"Third year students",
	"Background check",
}

// WriteTemplateCSV writes the import template with one example row.
func WriteTemplateCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(TemplateColumns); err != nil {
		return err
	}
	if err := cw.Write(templateExample); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// WriteTemplateXLSX writes the template as a spreadsheet. Cells are strings so
// dates survive in the M/D/YYYY form the parser expects.
func WriteTemplateXLSX(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(templateSheet)
	if err != nil {
		return fmt.Errorf("failed to create Excel sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to drop default sheet: %w", err)
	}

	for i, rowValues := range [][]string{TemplateColumns, templateExample} {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		row := make([]interface{}, len(rowValues))
		for j, v := range rowValues {
			row[j] = v
		}
		if err := f.SetSheetRow(templateSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write template row: %w", err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write Excel file: %w", err)
	}
	return nil
}
