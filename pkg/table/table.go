// Package table writes a ResultTable with the columns Parcellation, Region
// and Value.
package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/ipc"
	"github.com/apache/arrow/go/v14/arrow/memory"

	"github.com/voxelai/parcpak/internal/models"
)

// Output formats
const (
	FormatCSV   = "csv"
	FormatArrow = "arrow"
)

// Columns are the output column names in order
var Columns = []string{"Parcellation", "Region", "Value"}

// Schema is the Arrow schema of a ResultTable
var Schema = arrow.NewSchema([]arrow.Field{
	{Name: "Parcellation", Type: arrow.BinaryTypes.String},
	{Name: "Region", Type: arrow.BinaryTypes.String},
	{Name: "Value", Type: arrow.PrimitiveTypes.Float64},
}, nil)

// Write encodes t to w in the named format
func Write(w io.Writer, t models.ResultTable, format string) error {
	switch format {
	case FormatCSV, "":
		return WriteCSV(w, t)
	case FormatArrow:
		return WriteArrow(w, t)
	}
	return fmt.Errorf("%w: output format %q (must be %s or %s)", models.ErrInvalidArgument, format, FormatCSV, FormatArrow)
}

// WriteCSV writes a header row followed by one row per region
func WriteCSV(w io.Writer, t models.ResultTable) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, row := range t {
		record := []string{row.Parcellation, row.Region, strconv.FormatFloat(row.Value, 'g', -1, 64)}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteArrow writes t as a single record batch in the Arrow IPC stream
// format.
func WriteArrow(w io.Writer, t models.ResultTable) error {
	pool := memory.NewGoAllocator()

	b := array.NewRecordBuilder(pool, Schema)
	defer b.Release()

	parcs := b.Field(0).(*array.StringBuilder)
	regions := b.Field(1).(*array.StringBuilder)
	values := b.Field(2).(*array.Float64Builder)
	for _, row := range t {
		parcs.Append(row.Parcellation)
		regions.Append(row.Region)
		values.Append(row.Value)
	}

	record := b.NewRecord()
	defer record.Release()

	writer := ipc.NewWriter(w, ipc.WithSchema(Schema), ipc.WithAllocator(pool))
	if err := writer.Write(record); err != nil {
		writer.Close()
		return fmt.Errorf("failed to write arrow record: %w", err)
	}
	return writer.Close()
}
