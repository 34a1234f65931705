package feeder

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strings"
)

// CSVFeeder serves rows of a CSV file round-robin. The first row names the
// columns unless it already starts with a 0x address, in which case the
// file is a bare wallet list: address, then an optional chain.
type CSVFeeder struct {
	rotation
}

func NewCSVFeeder(path string) (*CSVFeeder, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true
	reader.Comment = '#'
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read CSV: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("CSV file is empty")
	}

	header, data, firstLine := []string{"address", "chain"}, rows, 1
	headerless := looksLikeAddress(rows[0][0])
	if !headerless {
		header, data, firstLine = rows[0], rows[1:], 2
		for i := range header {
			header[i] = strings.TrimSpace(header[i])
		}
		if len(data) == 0 {
			return nil, fmt.Errorf("CSV file has a header row but no targets")
		}
	}

	records := make([]Record, 0, len(data))
	for i, row := range data {
		if len(row) > len(header) || (!headerless && len(row) != len(header)) {
			return nil, fmt.Errorf("row %d has %d fields, expected %d", i+firstLine, len(row), len(header))
		}
		record := make(Record, len(row))
		for j, value := range row {
			record[header[j]] = value
		}
		records = append(records, record)
	}

	return &CSVFeeder{rotation: rotation{records: records}}, nil
}

func looksLikeAddress(cell string) bool {
	cell = strings.TrimSpace(cell)
	return len(cell) > 2 && (strings.HasPrefix(cell, "0x") || strings.HasPrefix(cell, "0X"))
}

func (f *CSVFeeder) Next(ctx context.Context) (Record, error) {
	return f.next(ctx)
}

// Close is a no-op; the file is read fully on open.
func (f *CSVFeeder) Close() error {
	return nil
}

func (f *CSVFeeder) Len() int {
	return len(f.records)
}
