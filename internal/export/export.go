// Package export renders the record set as CSV or XLSX files.
package export

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"vet/internal/core"
)

const (
	DefaultCSVFilename  = "vacation-expenses.csv"
	DefaultXLSXFilename = "vacation-expenses.xlsx"
	SheetName           = "Expenses"
)

// ErrNoData is returned when there is nothing to export.
var ErrNoData = errors.New("No data to export")

// Columns is the fixed export column order.
var Columns = []string{"id", "date", "amount", "category", "traveler", "description", "createdAt", "synced"}

// Format selects the output encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// DefaultFilename returns the file name used when none is given.
func (f Format) DefaultFilename() string {
	if f == FormatXLSX {
		return DefaultXLSXFilename
	}
	return DefaultCSVFilename
}

// Write encodes records in the given format.
func Write(w io.Writer, format Format, records []core.Expense) error {
	switch format {
	case FormatCSV, "":
		return WriteCSV(w, records)
	case FormatXLSX:
		return WriteXLSX(w, records)
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}

// ordered sorts by id, the store's key order.
func ordered(records []core.Expense) []core.Expense {
	out := slices.Clone(records)
	slices.SortFunc(out, func(a, b core.Expense) int { return strings.Compare(a.ID, b.ID) })
	return out
}

func fields(e core.Expense) []string {
	return []string{
		e.ID,
		e.Date,
		core.FormatAmount(e.Amount),
		e.Category,
		e.Traveler,
		e.Description,
		e.CreatedAt,
		strconv.FormatBool(e.Synced),
	}
}

// WriteCSV writes a header line and one line per record. Every field is
// quoted with embedded quotes doubled; lines are joined by "\n" with no
// trailing newline.
func WriteCSV(w io.Writer, records []core.Expense) error {
	if len(records) == 0 {
		return ErrNoData
	}

	var b strings.Builder
	b.WriteString(strings.Join(Columns, ","))
	for _, e := range ordered(records) {
		b.WriteByte('\n')
		for i, v := range fields(e) {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteByte('"')
			b.WriteString(strings.ReplaceAll(v, `"`, `""`))
			b.WriteByte('"')
		}
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// WriteXLSX writes the same columns as WriteCSV into a single worksheet.
// Amounts are numeric cells and synced is a boolean cell.
func WriteXLSX(w io.Writer, records []core.Expense) error {
	if len(records) == 0 {
		return ErrNoData
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("create worksheet: %w", err)
	}

	for i, h := range Columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(SheetName, cell, h); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}

	for idx, e := range ordered(records) {
		row := []any{e.ID, e.Date, e.Amount, e.Category, e.Traveler, e.Description, e.CreatedAt, e.Synced}
		cell, err := excelize.CoordinatesToCellName(1, idx+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", idx+2, err)
		}
	}

	widths := map[string]float64{"A": 22, "B": 12, "C": 10, "D": 16, "E": 14, "F": 30, "G": 26, "H": 8}
	for col, width := range widths {
		if err := f.SetColWidth(SheetName, col, col, width); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}
