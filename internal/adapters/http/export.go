package httpadapter

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"vanguard/internal/domain"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	jobsSheet       = "Jobs"
)

var jobsHeader = []any{"ID", "Target", "Cost", "Status", "Report", "Created"}

func writeJobsXLSX(w io.Writer, jobs []domain.Job) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", jobsSheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(jobsSheet, "A1", &jobsHeader); err != nil {
		return err
	}
	for i, j := range jobs {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{j.ID, j.Target, j.Cost, string(j.Status), j.PDF, j.CreatedAt.UTC().Format(time.RFC3339)}
		if err := f.SetSheetRow(jobsSheet, cell, &row); err != nil {
			return fmt.Errorf("row %d: %w", i+2, err)
		}
	}
	_, err := f.WriteTo(w)
	return err
}
