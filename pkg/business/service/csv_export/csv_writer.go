package csv_export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// Writer отвечает за запись табличных данных в CSV с заданным набором колонок.
type Writer struct {
	columns  []string
	encoding string
}

// NewWriter создаёт новый Writer с UTF-8 на выходе.
func NewWriter(columns []string) *Writer {
	return &Writer{columns: columns, encoding: "utf-8"}
}

func (w *Writer) SetEncoding(name string) *Writer {
	if name == "" {
		return w
	}
	w.encoding = strings.ToLower(name)
	return w
}

func (w *Writer) Columns() []string {
	return w.columns
}

// encoder returns nil for UTF-8. Characters missing from a legacy code page
// are replaced instead of failing the whole export.
func (w *Writer) encoder() (*encoding.Encoder, error) {
	switch w.encoding {
	case "", "utf-8", "utf8":
		return nil, nil
	case "windows-1252":
		return encoding.ReplaceUnsupported(charmap.Windows1252.NewEncoder()), nil
	case "windows-1251":
		return encoding.ReplaceUnsupported(charmap.Windows1251.NewEncoder()), nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", w.encoding)
	}
}

// WriteCSV пишет заголовок и строки. Каждая строка должна содержать ровно
// столько значений, сколько колонок.
func (w *Writer) WriteCSV(out io.Writer, rows [][]string) error {
	enc, err := w.encoder()
	if err != nil {
		return err
	}

	var sink io.Writer = out
	var tw *transform.Writer
	if enc != nil {
		tw = transform.NewWriter(out, enc)
		sink = tw
	}

	csvWriter := csv.NewWriter(sink)
	if err := csvWriter.Write(w.columns); err != nil {
		return fmt.Errorf("csv header: %w", err)
	}
	for i, row := range rows {
		if len(row) != len(w.columns) {
			return fmt.Errorf("row %d has %d values, want %d", i, len(row), len(w.columns))
		}
		if err := csvWriter.Write(row); err != nil {
			return fmt.Errorf("csv row %d: %w", i, err)
		}
	}
	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return fmt.Errorf("csv flush: %w", err)
	}
	if tw != nil {
		return tw.Close()
	}
	return nil
}

// WriteFile writes to a temp file next to path and renames it into place.
func (w *Writer) WriteFile(path string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".export-*.csv")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := w.WriteCSV(tmp, rows); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
