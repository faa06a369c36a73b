// Package labeltable reads atlas label tables: CSV files with a header row
// that includes a "Label" column, one row per region in label order.
package labeltable

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Column is the header of the region-name column
const Column = "Label"

// ReadFile returns the region names of the label table at path
func ReadFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	names, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("label table %s: %w", path, err)
	}
	return names, nil
}

// Read returns the Label column of a CSV stream in row order
func Read(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("empty file")
	}
	if err != nil {
		return nil, fmt.Errorf("error reading header: %w", err)
	}

	col := -1
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if name == Column {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("no %q column in header %v", Column, header)
	}

	var names []string
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading row %d: %w", len(names)+2, err)
		}
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue
		}
		if col >= len(record) {
			return nil, fmt.Errorf("row %d has %d fields, no %q value", len(names)+2, len(record), Column)
		}
		names = append(names, record[col])
	}

	if len(names) == 0 {
		return nil, errors.New("no rows")
	}
	return names, nil
}
