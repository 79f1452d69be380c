package exportsvc

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/masomo-console/core/dashboard"
	"github.com/trezcool/masomo-console/core/listing"
)

type Format string

const (
	XLSX Format = "xlsx"
	CSV  Format = "csv"
)

var ErrUnknownFormat = errors.New("unknown export format")

const maxSheetName = 31

var sheetNameReplacer = strings.NewReplacer(":", " ", "\\", " ", "/", " ", "?", " ", "*", " ", "[", "(", "]", ")")

// ParseFormat accepts "xlsx" (the default) and "csv".
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", XLSX:
		return XLSX, nil
	case CSV:
		return CSV, nil
	}
	return "", ErrUnknownFormat
}

func (f Format) ContentType() string {
	if f == CSV {
		return "text/csv; charset=utf-8"
	}
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Filename returns e.g. "leave-applications-20210110.xlsx".
func Filename(title string, f Format, now time.Time) string {
	slug := strings.Join(strings.Fields(strings.ToLower(title)), "-")
	if slug == "" {
		slug = "export"
	}
	return fmt.Sprintf("%s-%s.%s", slug, now.Format("20060102"), f)
}

// Write renders the export table in format `f`: one header row with the column titles,
// then one row per item.
func Write(w io.Writer, f Format, exp dashboard.Export) error {
	switch f {
	case XLSX:
		return writeXLSX(w, exp)
	case CSV:
		return writeCSV(w, exp)
	}
	return ErrUnknownFormat
}

func writeCSV(w io.Writer, exp dashboard.Export) error {
	cw := csv.NewWriter(w)

	row := make([]string, len(exp.Columns))
	for i, col := range exp.Columns {
		row[i] = col.Title
	}
	if err := cw.Write(row); err != nil {
		return errors.Wrap(err, "writing header")
	}
	for _, item := range exp.Items {
		for i, col := range exp.Columns {
			row[i] = item.String(col.Field)
		}
		if err := cw.Write(row); err != nil {
			return errors.Wrap(err, "writing row")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flushing csv")
}

func writeXLSX(w io.Writer, exp dashboard.Export) (err error) {
	file := excelize.NewFile()
	defer func() {
		if cErr := file.Close(); err == nil {
			err = cErr
		}
	}()

	sheet := sheetName(exp.Title)
	if err := file.SetSheetName("Sheet1", sheet); err != nil {
		return errors.Wrap(err, "naming sheet")
	}

	for i, col := range exp.Columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := file.SetCellValue(sheet, cell, col.Title); err != nil {
			return errors.Wrapf(err, "writing header %s", cell)
		}
	}
	if len(exp.Columns) > 0 {
		bold, err := file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			return errors.Wrap(err, "creating header style")
		}
		last, _ := excelize.CoordinatesToCellName(len(exp.Columns), 1)
		if err := file.SetCellStyle(sheet, "A1", last, bold); err != nil {
			return errors.Wrap(err, "styling header")
		}
	}

	for r, item := range exp.Items {
		for c, col := range exp.Columns {
			v := cellValue(item, col.Field)
			if v == "" {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			if err := file.SetCellValue(sheet, cell, v); err != nil {
				return errors.Wrapf(err, "writing cell %s", cell)
			}
		}
	}

	return errors.Wrap(file.Write(w), "writing workbook")
}

// cellValue keeps numbers and booleans typed; everything else is written as text.
func cellValue(item listing.Record, field string) interface{} {
	v, ok := item.Get(field)
	if !ok {
		return ""
	}
	switch val := v.(type) {
	case json.Number:
		if f, err := val.Float64(); err == nil {
			return f
		}
	case float64, bool:
		return val
	}
	return item.String(field)
}

func sheetName(title string) string {
	name := strings.TrimSpace(sheetNameReplacer.Replace(title))
	if name == "" {
		return "Sheet1"
	}
	if r := []rune(name); len(r) > maxSheetName {
		name = string(r[:maxSheetName])
	}
	return name
}
