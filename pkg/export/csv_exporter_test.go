package export

import (
	"encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVExporterRender(t *testing.T) {
	exporter := NewCSVExporter()

	data := Dataset{
		Title:   "Report Card",
		Meta:    []string{"Student: Ana Souza"},
		Headers: []string{"Subject", "Grade 1", "Average"},
		Rows: []map[string]string{
			{"Subject": "Mathematics", "Grade 1": "8.0", "Average": "---"},
			{"Subject": "Portuguese, Advanced", "Grade 1": "9.0", "Average": "9.00"},
		},
	}

	payload, err := exporter.Render(data)
	require.NoError(t, err)

	records, err := csv.NewReader(strings.NewReader(string(payload))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"Subject", "Grade 1", "Average"}, records[0])
	assert.Equal(t, "Portuguese, Advanced", records[2][0], "commas must survive quoting")
	assert.NotContains(t, string(payload), "Report Card", "title lines stay out of the table")
}

func TestCSVExporterRenderMissingColumnsAreEmpty(t *testing.T) {
	exporter := NewCSVExporter()

	payload, err := exporter.Render(Dataset{
		Headers: []string{"Subject", "Situation"},
		Rows:    []map[string]string{{"Subject": "Mathematics"}},
	})
	require.NoError(t, err)

	records, err := csv.NewReader(strings.NewReader(string(payload))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"Mathematics", ""}, records[1])
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	exporter := NewCSVExporter()

	_, err := exporter.Render(Dataset{})
	require.Error(t, err)
}
