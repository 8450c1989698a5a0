// Package source fetches the raw idea bank export text. It is the only part
// of the pipeline that performs I/O; everything downstream works on the
// returned string.
package source

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// ErrUnsupported is returned for locations no source can read.
var ErrUnsupported = errors.New("unsupported source")

// Source loads an export as CSV text.
type Source interface {
	// Load returns the full export text.
	Load(ctx context.Context) (string, error)
	// Name describes where the text comes from.
	Name() string
}

// Kind identifies a source implementation.
type Kind string

const (
	KindCSV      Kind = "csv"
	KindWorkbook Kind = "xlsx"
	KindHTTP     Kind = "http"
)

// Options tune the sources built by New and Detect.
type Options struct {
	// Sheet selects the workbook sheet; empty means the first one.
	Sheet string
	// HTTP configures remote fetches.
	HTTP HTTPOptions
}

// New returns the source of the given kind for location.
func New(kind Kind, location string, opts Options) (Source, error) {
	switch kind {
	case KindCSV:
		return &FileSource{Path: location}, nil
	case KindWorkbook:
		return &WorkbookSource{Path: location, Sheet: opts.Sheet}, nil
	case KindHTTP:
		return NewHTTPSource(location, opts.HTTP), nil
	default:
		return nil, fmt.Errorf("%w: kind %q", ErrUnsupported, kind)
	}
}

// Detect picks the source kind from the location: http(s) URLs are fetched,
// .xlsx/.xlsm files are read as workbooks, and .csv/.txt files as text.
func Detect(location string) (Kind, error) {
	if u, err := url.Parse(location); err == nil {
		switch strings.ToLower(u.Scheme) {
		case "http", "https":
			return KindHTTP, nil
		}
	}

	switch strings.ToLower(filepath.Ext(location)) {
	case ".csv", ".txt":
		return KindCSV, nil
	case ".xlsx", ".xlsm":
		return KindWorkbook, nil
	}
	return "", fmt.Errorf("%w: cannot tell how to read %q", ErrUnsupported, location)
}

// Open detects the kind of location and builds its source.
func Open(location string, opts Options) (Source, error) {
	kind, err := Detect(location)
	if err != nil {
		return nil, err
	}
	return New(kind, location, opts)
}
