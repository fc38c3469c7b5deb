// Package export writes alert lists as CSV or XLSX attachments.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/ucgmax/webhook-receiver/internal/database"
	"github.com/xuri/excelize/v2"
)

// Format is an export file format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// Header is the fixed column order of every export
var Header = []string{"ID", "Alert ID", "Timestamp", "Severity", "Type", "Device", "Summary", "Source"}

// FileBase is the attachment name without extension
const FileBase = "ucgmax-alerts"

const sheetName = "Alerts"

// ParseFormat maps the format query value; empty means CSV
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unsupported export format %q (use csv or xlsx)", s)
	}
}

// ContentType returns the MIME type of f
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Filename returns the attachment file name for f
func (f Format) Filename() string {
	return FileBase + "." + string(f)
}

// formulaPrefixes start a formula when a spreadsheet opens the file
const formulaPrefixes = "=+-@\t\r"

// SafeCell prefixes v with a quote when a spreadsheet would evaluate it
func SafeCell(v string) string {
	if v != "" && strings.ContainsRune(formulaPrefixes, rune(v[0])) {
		return "'" + v
	}
	return v
}

// Row flattens one alert into Header order. Sender-supplied text is passed
// through SafeCell.
func Row(a database.Alert) []string {
	ts := ""
	if a.Timestamp != nil {
		ts = a.Timestamp.UTC().Format(time.RFC3339)
	}
	return []string{
		strconv.FormatUint(uint64(a.ID), 10),
		SafeCell(a.AlertID),
		ts,
		SafeCell(a.Severity),
		SafeCell(a.AlertType),
		SafeCell(a.Device),
		SafeCell(a.Summary),
		SafeCell(a.Source),
	}
}

// Write writes alerts to w in format f
func Write(w io.Writer, f Format, alerts []database.Alert) error {
	if f == FormatXLSX {
		return WriteXLSX(w, alerts)
	}
	return WriteCSV(w, alerts)
}

// WriteCSV writes a header line then one line per alert
func WriteCSV(w io.Writer, alerts []database.Alert) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, a := range alerts {
		if err := cw.Write(Row(a)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes a single-sheet workbook with a bold header row
func WriteXLSX(w io.Writer, alerts []database.Alert) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to remove default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := setRow(f, 1, Header); err != nil {
		return err
	}
	last, _ := excelize.CoordinatesToCellName(len(Header), 1)
	if err := f.SetCellStyle(sheetName, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("failed to set header style: %w", err)
	}

	for i, a := range alerts {
		row := Row(a)
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		// ID stays numeric so spreadsheet sorting works.
		values[0] = a.ID
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	widths := []float64{8, 38, 22, 12, 18, 20, 60, 20}
	for col, width := range widths {
		name, _ := excelize.ColumnNumberToName(col + 1)
		if err := f.SetColWidth(sheetName, name, name, width); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}

	_, err = f.WriteTo(w)
	return err
}

func setRow(f *excelize.File, row int, values []string) error {
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	cell, _ := excelize.CoordinatesToCellName(1, row)
	if err := f.SetSheetRow(sheetName, cell, &cells); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	return nil
}
