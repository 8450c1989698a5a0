package writer

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/insightdelivered/ideabank/internal/models"
)

// Sheet names used by XLSXWriter.
const (
	IdeasSheet   = "Ideas"
	SummarySheet = "Summary"
)

// XLSXWriter writes ideas and their summary into an Excel workbook.
type XLSXWriter struct{}

// WriteToFile writes the workbook to path.
func (w *XLSXWriter) WriteToFile(path string, ideas []models.Idea, summary models.Summary) error {
	f, err := w.build(ideas, summary)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook %q: %w", path, err)
	}
	return nil
}

// Write streams the workbook to out.
func (w *XLSXWriter) Write(out io.Writer, ideas []models.Idea, summary models.Summary) error {
	f, err := w.build(ideas, summary)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(out); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func (w *XLSXWriter) build(ideas []models.Idea, summary models.Summary) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", IdeasSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to name ideas sheet: %w", err)
	}
	if _, err := f.NewSheet(SummarySheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to add summary sheet: %w", err)
	}

	if err := writeIdeas(f, ideas); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeSummary(f, summary); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func writeIdeas(f *excelize.File, ideas []models.Idea) error {
	header := make([]interface{}, models.NumColumns)
	for i, h := range models.Headers() {
		header[i] = h
	}
	if err := setRow(f, IdeasSheet, 1, header); err != nil {
		return err
	}

	for i, idea := range ideas {
		row := make([]interface{}, models.NumColumns)
		row[models.ColumnID] = idea.ID
		row[models.ColumnTitle] = idea.Title
		row[models.ColumnSubsystem] = idea.Subsystem
		row[models.ColumnRegion] = idea.Region
		row[models.ColumnPlatform] = idea.Platform
		row[models.ColumnPlant] = idea.Plant
		row[models.ColumnStatus] = idea.Status
		row[models.ColumnDate] = FormatDate(idea.Date)
		row[models.ColumnSubmitter] = idea.Submitter
		row[models.ColumnScopingLeader] = idea.ScopingLeader
		row[models.ColumnSavings] = idea.Savings
		row[models.ColumnLink] = idea.Link
		if err := setRow(f, IdeasSheet, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func writeSummary(f *excelize.File, s models.Summary) error {
	rows := [][]interface{}{
		{"Ideas", s.Count},
		{"Total savings", s.TotalSavings},
		{"Mean savings", s.MeanSavings},
		{"Distinct submitters", s.DistinctSubmitters},
		{},
		{"Subsystem", "Savings"},
	}
	for _, g := range s.BySubsystem {
		rows = append(rows, []interface{}{g.Value, g.Savings})
	}
	rows = append(rows, []interface{}{}, []interface{}{"Status", "Ideas"})
	for _, g := range s.ByStatus {
		rows = append(rows, []interface{}{g.Value, g.Count})
	}

	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		if err := setRow(f, SummarySheet, i+1, row); err != nil {
			return err
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write %s row %d: %w", sheet, row, err)
	}
	return nil
}
