package series

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// IngestOptions controls CSV parsing.
type IngestOptions struct {
	// DateColumn names the column holding the incident or aggregate date.
	DateColumn string

	// CountColumn names an optional pre-aggregated count column.
	// When empty, each row counts as one incident.
	CountColumn string

	// DateLayouts lists accepted date formats, tried in order.
	// Defaults to ISO dates plus the common US export format.
	DateLayouts []string
}

// DefaultIngestOptions returns the parsing defaults: a "date" column,
// incident-level rows, ISO or US-style dates.
func DefaultIngestOptions() IngestOptions {
	return IngestOptions{
		DateColumn:  "date",
		DateLayouts: []string{DateLayout, "01/02/2006", "2006-01-02 15:04:05"},
	}
}

// IngestError reports a CSV parsing failure with its row number.
type IngestError struct {
	Row     int // 1-based data row (header excluded)
	Column  string
	Message string
}

func (e *IngestError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("row %d, column %q: %s", e.Row, e.Column, e.Message)
	}
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

// ReadCSV parses shooting records from CSV and aggregates them into a dense
// daily Series. The first record must be a header row naming at least the
// date column. Incident-level inputs (no count column) sum one per row;
// pre-aggregated inputs sum their count column, so duplicate dates in
// either form collapse deterministically.
func ReadCSV(r io.Reader, opts IngestOptions) (*Series, error) {
	if opts.DateColumn == "" {
		opts.DateColumn = "date"
	}
	if len(opts.DateLayouts) == 0 {
		opts.DateLayouts = DefaultIngestOptions().DateLayouts
	}

	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty CSV input")
	}
	if err != nil {
		return nil, fmt.Errorf("read CSV header: %w", err)
	}

	dateIdx := -1
	countIdx := -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case strings.ToLower(opts.DateColumn):
			dateIdx = i
		case strings.ToLower(opts.CountColumn):
			if opts.CountColumn != "" {
				countIdx = i
			}
		}
	}
	if dateIdx == -1 {
		return nil, fmt.Errorf("date column %q not found in header %v", opts.DateColumn, header)
	}
	if opts.CountColumn != "" && countIdx == -1 {
		return nil, fmt.Errorf("count column %q not found in header %v", opts.CountColumn, header)
	}

	var obs []Observation
	row := 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		row++
		if err != nil {
			return nil, &IngestError{Row: row, Message: err.Error()}
		}

		date, err := parseAnyDate(record[dateIdx], opts.DateLayouts)
		if err != nil {
			return nil, &IngestError{Row: row, Column: opts.DateColumn, Message: err.Error()}
		}

		count := 1
		if countIdx != -1 {
			count, err = strconv.Atoi(strings.TrimSpace(record[countIdx]))
			if err != nil {
				return nil, &IngestError{Row: row, Column: opts.CountColumn,
					Message: fmt.Sprintf("invalid count %q", record[countIdx])}
			}
			if count < 0 {
				return nil, &IngestError{Row: row, Column: opts.CountColumn,
					Message: fmt.Sprintf("negative count %d", count)}
			}
		}

		obs = append(obs, Observation{Date: date, Count: count})
	}

	if len(obs) == 0 {
		return nil, fmt.Errorf("no data rows in CSV input")
	}
	return FromObservations(obs)
}

func parseAnyDate(s string, layouts []string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Midnight(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}
