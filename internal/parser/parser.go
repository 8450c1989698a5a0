package parser

import (
	"errors"
	"regexp"
	"strings"

	"github.com/insightdelivered/ideabank/internal/models"
)

// ErrNoValidData is returned by Load when no row survives validation.
var ErrNoValidData = errors.New("no valid data found")

// RejectReason says why a data row produced no idea.
type RejectReason string

const (
	RejectMissingID      RejectReason = "missing_id"
	RejectMissingDate    RejectReason = "missing_date"
	RejectMissingSavings RejectReason = "missing_savings"
	RejectInvalidSavings RejectReason = "invalid_savings"
	RejectInvalidDate    RejectReason = "invalid_date"
)

// Report is the outcome of parsing one export.
type Report struct {
	Ideas    []models.Idea        `json:"-"`
	Rows     int                  `json:"rows"`
	Accepted int                  `json:"accepted"`
	Rejected map[RejectReason]int `json:"rejected"`
}

// RejectedTotal sums the rejections over all reasons.
func (r Report) RejectedTotal() int {
	n := 0
	for _, c := range r.Rejected {
		n += c
	}
	return n
}

// Parse converts the full export text into ideas, in input order. It never
// fails: rows that do not validate are dropped and unusable input yields an
// empty slice.
func Parse(text string) []models.Idea {
	return ParseReport(text).Ideas
}

// Load is Parse for callers that need to know the dataset is unusable.
func Load(text string) ([]models.Idea, error) {
	ideas := Parse(text)
	if len(ideas) == 0 {
		return ideas, ErrNoValidData
	}
	return ideas, nil
}

var lineBreak = regexp.MustCompile(`\r?\n`)

// ParseReport parses the export and also counts what happened to each row.
func ParseReport(text string) Report {
	report := Report{
		Ideas:    []models.Idea{},
		Rejected: map[RejectReason]int{},
	}

	text = strings.TrimPrefix(text, "\uFEFF")
	var lines []string
	for _, line := range lineBreak.Split(text, -1) {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) < 2 {
		return report
	}

	layout := newHeaderLayout(splitHeader(lines[0]))
	for _, line := range lines[1:] {
		report.Rows++
		idea, reason := buildIdea(layout.row(splitLine(line)))
		if reason != "" {
			report.Rejected[reason]++
			continue
		}
		report.Ideas = append(report.Ideas, idea)
		report.Accepted++
	}
	return report
}

// headerLayout maps header positions to known columns.
type headerLayout struct {
	columns []models.Column
	known   []bool
}

func newHeaderLayout(headers []string) headerLayout {
	l := headerLayout{
		columns: make([]models.Column, len(headers)),
		known:   make([]bool, len(headers)),
	}
	for i, h := range headers {
		l.columns[i], l.known[i] = models.ColumnForHeader(h)
	}
	return l
}

// rawRow is one data line keyed by column. A column is absent when the
// header is missing or the line ran out of values before reaching it.
type rawRow struct {
	values  [models.NumColumns]string
	present [models.NumColumns]bool
}

// row zips values to headers by position. A repeated header takes the value
// of its last occurrence.
func (l headerLayout) row(values []string) rawRow {
	var r rawRow
	for i, col := range l.columns {
		if !l.known[i] {
			continue
		}
		if i < len(values) {
			r.values[col], r.present[col] = values[i], true
		} else {
			r.values[col], r.present[col] = "", false
		}
	}
	return r
}

// get returns the trimmed value, or "" when the column is absent.
func (r rawRow) get(c models.Column) string {
	if !r.present[c] {
		return ""
	}
	return strings.TrimSpace(r.values[c])
}

func (r rawRow) getOr(c models.Column, fallback string) string {
	if v := r.get(c); v != "" {
		return v
	}
	return fallback
}

func buildIdea(r rawRow) (models.Idea, RejectReason) {
	id := r.get(models.ColumnID)
	rawDate := r.get(models.ColumnDate)
	rawSavings := r.get(models.ColumnSavings)

	switch {
	case id == "":
		return models.Idea{}, RejectMissingID
	case rawDate == "":
		return models.Idea{}, RejectMissingDate
	case rawSavings == "":
		return models.Idea{}, RejectMissingSavings
	}

	savings, err := parseSavings(rawSavings)
	if err != nil {
		return models.Idea{}, RejectInvalidSavings
	}
	date, err := parseDate(rawDate)
	if err != nil {
		return models.Idea{}, RejectInvalidDate
	}

	return models.Idea{
		ID:            id,
		Title:         r.getOr(models.ColumnTitle, models.UntitledProject),
		Subsystem:     Normalize(r.get(models.ColumnSubsystem)),
		Region:        Normalize(r.get(models.ColumnRegion)),
		Platform:      Normalize(r.get(models.ColumnPlatform)),
		Plant:         Normalize(r.get(models.ColumnPlant)),
		Status:        Normalize(r.get(models.ColumnStatus)),
		ScopingLeader: Normalize(r.get(models.ColumnScopingLeader)),
		Date:          date,
		Submitter:     r.getOr(models.ColumnSubmitter, models.UnknownSubmitter),
		Savings:       savings,
		Link:          r.get(models.ColumnLink),
	}, ""
}
