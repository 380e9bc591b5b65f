// Package export writes cleaned tables and run diagnostics to an .xlsx
// workbook for analysts who do not query the destination store directly.
package export

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/JonMunkholm/cademycode/internal/core"
	"github.com/xuri/excelize/v2"
)

// DiagnosticsSheet is the name of the sheet listing run events.
const DiagnosticsSheet = "diagnostics"

// ErrNotXLSX is returned when the target path does not end in .xlsx.
var ErrNotXLSX = errors.New("export path must end in .xlsx")

var diagnosticsHeader = []any{"severity", "kind", "table", "field", "count", "message", "detail"}

// Workbook exports to a single .xlsx file, overwriting it on every export.
type Workbook struct {
	Path string
}

// NewWorkbook creates a Workbook exporter writing to path.
func NewWorkbook(path string) (*Workbook, error) {
	if !strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return nil, fmt.Errorf("%w: %q", ErrNotXLSX, path)
	}
	return &Workbook{Path: path}, nil
}

// Export writes one sheet per table, in order, followed by the diagnostics
// sheet. Each table sheet has a header row of column names.
func (w *Workbook) Export(tables []*core.RecordSet, events []core.Event) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	first := true
	for _, rs := range tables {
		if rs == nil {
			continue
		}
		if err := addSheet(f, rs.Name, first); err != nil {
			return err
		}
		first = false
		if err := writeTable(f, rs); err != nil {
			return fmt.Errorf("write sheet %s: %w", rs.Name, err)
		}
	}

	if err := addSheet(f, DiagnosticsSheet, first); err != nil {
		return err
	}
	if err := writeDiagnostics(f, events); err != nil {
		return fmt.Errorf("write sheet %s: %w", DiagnosticsSheet, err)
	}

	if dir := filepath.Dir(w.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create export directory: %w", err)
		}
	}
	if err := f.SaveAs(w.Path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}

	slog.Info("workbook exported", "path", w.Path, "sheets", len(f.GetSheetList()))
	return nil
}

// addSheet renames the default sheet for the first table and appends the rest.
func addSheet(f *excelize.File, name string, first bool) error {
	if first {
		if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
			return fmt.Errorf("rename sheet %s: %w", name, err)
		}
		return nil
	}
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("add sheet %s: %w", name, err)
	}
	return nil
}

func writeTable(f *excelize.File, rs *core.RecordSet) error {
	header := make([]any, len(rs.Columns))
	for i, col := range rs.Columns {
		header[i] = col
	}
	if err := setRow(f, rs.Name, 1, header); err != nil {
		return err
	}

	for r, row := range rs.Rows {
		values := make([]any, len(rs.Columns))
		for i, col := range rs.Columns {
			values[i] = cellValue(row[col])
		}
		if err := setRow(f, rs.Name, r+2, values); err != nil {
			return err
		}
	}
	return nil
}

func writeDiagnostics(f *excelize.File, events []core.Event) error {
	if err := setRow(f, DiagnosticsSheet, 1, diagnosticsHeader); err != nil {
		return err
	}
	for i, e := range events {
		row := []any{string(e.Severity), string(e.Kind), e.Table, e.Field, e.Count, e.Message, e.Detail}
		if err := setRow(f, DiagnosticsSheet, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

// cellValue converts a record set cell into something excelize writes
// natively. Dates are written as ISO text so they survive any locale.
func cellValue(v any) any {
	switch x := core.Plain(v).(type) {
	case nil:
		return nil
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format("2006-01-02")
		}
		return x.Format(time.RFC3339)
	case string, bool, int, int32, int64, float32, float64:
		return x
	default:
		if t := core.ToNullText(x); t.Valid {
			return t.String
		}
		return nil
	}
}
