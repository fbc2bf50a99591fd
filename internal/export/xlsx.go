package export

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

const vaultsSheet = "VAULTS"

// XLSXWriter implements ReportWriter by writing a local XLSX workbook.
type XLSXWriter struct {
	path string
}

// NewXLSXWriter creates a writer that saves the workbook at path.
func NewXLSXWriter(path string) *XLSXWriter {
	return &XLSXWriter{path: path}
}

// Write creates a fresh workbook with one VAULTS sheet and saves it,
// replacing any previous file at the same path.
func (w *XLSXWriter) Write(_ context.Context, generatedAt time.Time, rows []VaultRow) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(vaultsSheet)
	if err != nil {
		return fmt.Errorf("creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("removing default sheet: %w", err)
	}

	if err := f.SetSheetRow(vaultsSheet, "A1", &reportHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("computing cell for row %d: %w", i, err)
		}
		values := rowValues(generatedAt, row)
		if err := f.SetSheetRow(vaultsSheet, cell, &values); err != nil {
			return fmt.Errorf("writing row %d: %w", i, err)
		}
	}

	if err := f.SaveAs(w.path); err != nil {
		return fmt.Errorf("saving workbook: %w", err)
	}
	return nil
}
