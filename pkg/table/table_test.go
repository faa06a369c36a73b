package table

import (
	"bytes"
	"encoding/csv"
	"errors"
	"testing"

	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/ipc"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxelai/parcpak/internal/models"
)

var sample = models.ResultTable{
	{Parcellation: "Tian_Subcortex_S1", Region: "HIP-rh", Value: 1.25},
	{Parcellation: "Tian_Subcortex_S1", Region: "Left, Amygdala", Value: -3},
	{Parcellation: "Buckner7", Region: "Visual", Value: 1e-7},
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sample, FormatCSV))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)

	want := [][]string{
		{"Parcellation", "Region", "Value"},
		{"Tian_Subcortex_S1", "HIP-rh", "1.25"},
		{"Tian_Subcortex_S1", "Left, Amygdala", "-3"},
		{"Buckner7", "Visual", "1e-07"},
	}
	if diff := cmp.Diff(want, records); diff != "" {
		t.Errorf("csv mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteArrow(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sample, FormatArrow))

	reader, err := ipc.NewReader(&buf)
	require.NoError(t, err)
	defer reader.Release()

	assert.True(t, reader.Schema().Equal(Schema))
	require.True(t, reader.Next())
	rec := reader.Record()
	require.EqualValues(t, len(sample), rec.NumRows())

	parcs := rec.Column(0).(*array.String)
	regions := rec.Column(1).(*array.String)
	values := rec.Column(2).(*array.Float64)
	for i, row := range sample {
		assert.Equal(t, row.Parcellation, parcs.Value(i))
		assert.Equal(t, row.Region, regions.Value(i))
		assert.Equal(t, row.Value, values.Value(i))
	}
	assert.False(t, reader.Next())
}

func TestWriteUnknownFormat(t *testing.T) {
	err := Write(&bytes.Buffer{}, sample, "parquet")
	assert.True(t, errors.Is(err, models.ErrInvalidArgument))
}
