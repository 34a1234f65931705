package feeder

import (
	"context"
	"fmt"
	"os"

	"github.com/tidwall/gjson"
)

// JSONFeeder reads records from a JSON array. Elements are either objects,
// whose values are stringified, or bare strings taken as wallet addresses.
type JSONFeeder struct {
	rotation
}

// NewJSONFeeder creates a new JSON feeder from the given file path.
func NewJSONFeeder(path string) (*JSONFeeder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open JSON file: %w", err)
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("decode JSON: invalid document")
	}

	root := gjson.ParseBytes(data)
	if !root.IsArray() {
		return nil, fmt.Errorf("decode JSON: expected an array, got %s", root.Type)
	}

	var records []Record
	var convErr error
	root.ForEach(func(_, item gjson.Result) bool {
		i := len(records)
		switch {
		case item.IsObject():
			record := make(Record)
			item.ForEach(func(key, value gjson.Result) bool {
				record[key.String()] = value.String()
				return true
			})
			if len(record) == 0 {
				convErr = fmt.Errorf("record %d is empty", i)
				return false
			}
			records = append(records, record)
		case item.Type == gjson.String:
			records = append(records, Record{"address": item.String()})
		default:
			convErr = fmt.Errorf("record %d: unsupported %s element", i, item.Type)
			return false
		}
		return true
	})
	if convErr != nil {
		return nil, convErr
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("JSON file contains empty array")
	}

	return &JSONFeeder{rotation: rotation{records: records}}, nil
}

// Next returns the next record in round-robin order.
func (f *JSONFeeder) Next(ctx context.Context) (Record, error) {
	return f.next(ctx)
}

// Close releases resources. For JSON feeder, this is a no-op.
func (f *JSONFeeder) Close() error {
	return nil
}

// Len returns the total number of records in the dataset.
func (f *JSONFeeder) Len() int {
	return len(f.records)
}
