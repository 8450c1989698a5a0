package models

import (
	"fmt"
	"strings"
	"time"
)

// Defaults applied when an optional column is blank.
const (
	UnknownValue     = "Unknown"
	UntitledProject  = "Untitled Project"
	UnknownSubmitter = "unknown@unknown.com"
)

// Idea represents a single validated, normalized improvement idea.
type Idea struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Subsystem     string    `json:"subsystem"`
	Region        string    `json:"region"`
	Platform      string    `json:"platform"`
	Plant         string    `json:"plant"`
	Status        string    `json:"status"`
	ScopingLeader string    `json:"scopingLeader"`
	Date          time.Time `json:"date"`
	Submitter     string    `json:"submitter"`
	Savings       float64   `json:"savings"`
	Link          string    `json:"link"`
}

// Column identifies one of the fixed columns of the idea bank export.
type Column int

const (
	ColumnID Column = iota
	ColumnTitle
	ColumnSubsystem
	ColumnRegion
	ColumnPlatform
	ColumnPlant
	ColumnStatus
	ColumnDate
	ColumnSubmitter
	ColumnScopingLeader
	ColumnSavings
	ColumnLink

	NumColumns = int(ColumnLink) + 1
)

var columnHeaders = [NumColumns]string{
	ColumnID:            "IDEA BANK ID",
	ColumnTitle:         "PROJECT TITLE",
	ColumnSubsystem:     "SUBSYSTEM",
	ColumnRegion:        "REGION",
	ColumnPlatform:      "PLATFORM",
	ColumnPlant:         "PLANT",
	ColumnStatus:        "FINAL STATUS",
	ColumnDate:          "SUBMIT DATE",
	ColumnSubmitter:     "REQUESTER EMAIL",
	ColumnScopingLeader: "SCOPING LEADER",
	ColumnSavings:       "TOTAL SAVINGS",
	ColumnLink:          "LINK",
}

// Header returns the exact spreadsheet column title.
func (c Column) Header() string {
	if c < 0 || int(c) >= NumColumns {
		return ""
	}
	return columnHeaders[c]
}

func (c Column) String() string { return c.Header() }

// ColumnForHeader looks up a column by its exact, case-sensitive title.
func ColumnForHeader(header string) (Column, bool) {
	for i, h := range columnHeaders {
		if h == header {
			return Column(i), true
		}
	}
	return 0, false
}

// Headers returns the column titles in export order.
func Headers() []string {
	out := make([]string, NumColumns)
	copy(out, columnHeaders[:])
	return out
}

// Field names a categorical Idea attribute that can be grouped or enumerated.
type Field string

const (
	FieldSubsystem     Field = "subsystem"
	FieldRegion        Field = "region"
	FieldPlatform      Field = "platform"
	FieldPlant         Field = "plant"
	FieldStatus        Field = "status"
	FieldScopingLeader Field = "scopingLeader"
	FieldSubmitter     Field = "submitter"
)

// Fields lists every groupable field.
var Fields = []Field{
	FieldSubsystem, FieldRegion, FieldPlatform, FieldPlant,
	FieldStatus, FieldScopingLeader, FieldSubmitter,
}

// ParseField resolves a field name case-insensitively.
func ParseField(name string) (Field, error) {
	name = strings.TrimSpace(name)
	for _, f := range Fields {
		if strings.EqualFold(string(f), name) {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown field %q", name)
}

// Value returns the idea's value for the given field.
func (i Idea) Value(f Field) string {
	switch f {
	case FieldSubsystem:
		return i.Subsystem
	case FieldRegion:
		return i.Region
	case FieldPlatform:
		return i.Platform
	case FieldPlant:
		return i.Plant
	case FieldStatus:
		return i.Status
	case FieldScopingLeader:
		return i.ScopingLeader
	case FieldSubmitter:
		return i.Submitter
	}
	return ""
}
