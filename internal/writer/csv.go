package writer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/ideabank/internal/models"
)

// CSVWriter writes ideas in the idea bank export layout, so the output can be
// loaded again.
type CSVWriter struct {
	// CurrencySymbol is prefixed to savings, e.g. "$". Empty writes plain numbers.
	CurrencySymbol string
}

// WriteToFile writes ideas to a CSV file at the given path.
func (w *CSVWriter) WriteToFile(path string, ideas []models.Idea) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file %q: %w", path, err)
	}
	defer f.Close()

	if err := w.Write(f, ideas); err != nil {
		return err
	}
	return f.Close()
}

// Write writes ideas in CSV format to the given writer.
func (w *CSVWriter) Write(out io.Writer, ideas []models.Idea) error {
	writer := csv.NewWriter(out)

	if err := writer.Write(models.Headers()); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, idea := range ideas {
		if err := writer.Write(w.record(idea)); err != nil {
			return fmt.Errorf("failed to write CSV row %q: %w", idea.ID, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func (w *CSVWriter) record(idea models.Idea) []string {
	row := make([]string, models.NumColumns)
	row[models.ColumnID] = flatten(idea.ID)
	row[models.ColumnTitle] = flatten(idea.Title)
	row[models.ColumnSubsystem] = idea.Subsystem
	row[models.ColumnRegion] = idea.Region
	row[models.ColumnPlatform] = idea.Platform
	row[models.ColumnPlant] = idea.Plant
	row[models.ColumnStatus] = idea.Status
	row[models.ColumnDate] = FormatDate(idea.Date)
	row[models.ColumnSubmitter] = flatten(idea.Submitter)
	row[models.ColumnScopingLeader] = idea.ScopingLeader
	row[models.ColumnSavings] = w.CurrencySymbol + ExactAmount(idea.Savings)
	row[models.ColumnLink] = flatten(idea.Link)
	return row
}

// FormatAmount renders a savings value with two decimals for display.
func FormatAmount(amount float64) string {
	return decimal.NewFromFloat(amount).StringFixed(2)
}

// ExactAmount renders the shortest decimal that reads back as amount.
// Exports use it so sub-cent savings survive a reload.
func ExactAmount(amount float64) string {
	return decimal.NewFromFloat(amount).String()
}

// FormatDate renders date-only values as 2006-01-02 and anything with a time
// of day as RFC 3339.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	if h, m, s := t.Clock(); h == 0 && m == 0 && s == 0 && t.Nanosecond() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format(time.RFC3339)
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// flatten replaces line breaks; the reader splits rows on them.
func flatten(s string) string {
	return lineBreaks.Replace(s)
}
