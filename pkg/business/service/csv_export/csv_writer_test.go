package csv_export

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

func TestWriter_QuotesSpecialFields(t *testing.T) {
	w := NewWriter([]string{"SKU", "Name"})
	var buf bytes.Buffer

	err := w.WriteCSV(&buf, [][]string{
		{"A1", `Mango, "Ice"`},
		{"A2", "line\nbreak"},
	})
	require.NoError(t, err)

	assert.Equal(t, "SKU,Name\nA1,\"Mango, \"\"Ice\"\"\"\nA2,\"line\nbreak\"\n", buf.String())

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, `Mango, "Ice"`, records[1][1])
}

func TestWriter_RowWidthMismatch(t *testing.T) {
	w := NewWriter([]string{"SKU", "Name"})
	err := w.WriteCSV(&bytes.Buffer{}, [][]string{{"only-one"}})
	assert.Error(t, err)
}

func TestWriter_Windows1252(t *testing.T) {
	w := NewWriter([]string{"Price"}).SetEncoding("windows-1252")
	var buf bytes.Buffer
	require.NoError(t, w.WriteCSV(&buf, [][]string{{"£5"}}))

	decoded, err := charmap.Windows1252.NewDecoder().Bytes(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "Price\n£5\n", string(decoded))
	// £ is a single byte in cp1252
	assert.Equal(t, byte(0xA3), buf.Bytes()[6])
}

func TestWriter_UnknownEncoding(t *testing.T) {
	w := NewWriter([]string{"A"}).SetEncoding("koi8-x")
	assert.Error(t, w.WriteCSV(&bytes.Buffer{}, nil))
}

func TestWriter_WriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "export.csv")
	w := NewWriter([]string{"A"})
	require.NoError(t, w.WriteFile(path, [][]string{{"1"}}))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "A\n1\n", string(b))
}
