// Package workbook converts between student records and xlsx workbooks.
package workbook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"student-records/internal/models"
	"student-records/internal/store"
	"student-records/internal/util"
)

const (
	SheetName   = "Students"
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	ReasonMissingRequired = "Missing required fields (Name, Class, Gender)"
)

// Columns is the fixed export layout. Import matches headers by name.
var Columns = []string{"Name", "Email", "Phone", "Class", "Gender", "DateOfBirth", "Address", "ProfilePhotoUrl"}

var widths = []float64{24, 30, 16, 10, 10, 14, 36, 40}

// headerAliases lets hand-made sheets use a few alternative titles.
var headerAliases = map[string]string{
	"classname":     "class",
	"dob":           "dateofbirth",
	"date of birth": "dateofbirth",
	"photo":         "profilephotourl",
}

// Export writes one row per student under a header row.
func Export(students []models.Student) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	header := make([]interface{}, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	last, _ := excelize.ColumnNumberToName(len(Columns))
	if err := f.SetCellStyle(SheetName, "A1", last+"1", bold); err != nil {
		return nil, fmt.Errorf("style header: %w", err)
	}

	for i := range students {
		s := &students[i]
		dob := ""
		if s.DateOfBirth != nil {
			dob = s.DateOfBirth.UTC().Format("2006-01-02")
		}
		row := []interface{}{s.Name, s.EmailOrEmpty(), s.Phone, s.ClassName, s.Gender, dob, s.Address, s.ProfilePhotoURL}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(SheetName, col, col, w)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// RowError is why a row was skipped.
type RowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// Summary is the outcome of an import.
type Summary struct {
	Created int        `json:"created"`
	Skipped int        `json:"skipped"`
	Errors  []RowError `json:"errors"`
}

// Sink receives imported rows. Create must report a taken email as a
// Conflict and bad fields as a Validation error.
type Sink interface {
	Exists(ctx context.Context, key store.DuplicateKey) (bool, error)
	Create(ctx context.Context, in store.StudentInput) error
}

// Observer is told the outcome of each row; "created" or "skipped".
type Observer func(result string)

// Import reads the first sheet of data and feeds each row to sink in
// order. Rows are independent: a skipped row never stops the import. A
// storage failure stops it and returns the summary so far with the error.
func Import(ctx context.Context, data []byte, sink Sink, observe Observer) (Summary, error) {
	sum := Summary{Errors: []RowError{}}
	if observe == nil {
		observe = func(string) {}
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return sum, util.Invalid("invalid workbook", util.FieldError{Field: "file", Reason: "must be an xlsx workbook"})
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return sum, nil
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return sum, util.Invalid("invalid workbook", util.FieldError{Field: "file", Reason: err.Error()})
	}
	if len(rows) == 0 {
		return sum, nil
	}

	index := headerIndex(rows[0])
	for i, cells := range rows[1:] {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		rowNum := i + 2
		if blank(cells) {
			continue
		}

		in := store.StudentInput{
			Name:            cell(cells, index, "name"),
			Email:           strings.ToLower(cell(cells, index, "email")),
			Phone:           cell(cells, index, "phone"),
			ClassName:       cell(cells, index, "class"),
			Gender:          cell(cells, index, "gender"),
			DateOfBirth:     dateCell(cell(cells, index, "dateofbirth")),
			Address:         cell(cells, index, "address"),
			ProfilePhotoURL: cell(cells, index, "profilephotourl"),
		}

		if in.Name == "" || in.ClassName == "" || in.Gender == "" {
			sum.skip(rowNum, ReasonMissingRequired)
			observe("skipped")
			continue
		}

		dup, err := sink.Exists(ctx, store.DuplicateKey{Email: in.Email, Name: in.Name, ClassName: in.ClassName})
		if err != nil {
			return sum, err
		}
		if dup {
			sum.Skipped++
			observe("skipped")
			continue
		}

		if err := sink.Create(ctx, in); err != nil {
			switch util.KindOf(err) {
			case util.KindConflict:
				sum.Skipped++
			case util.KindValidation:
				sum.skip(rowNum, validationReason(err))
			default:
				return sum, err
			}
			observe("skipped")
			continue
		}
		sum.Created++
		observe("created")
	}
	return sum, nil
}

func (s *Summary) skip(row int, reason string) {
	s.Skipped++
	s.Errors = append(s.Errors, RowError{Row: row, Reason: reason})
}

func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if alias, ok := headerAliases[key]; ok {
			key = alias
		}
		if _, seen := idx[key]; !seen && key != "" {
			idx[key] = i
		}
	}
	return idx
}

// cell returns the trimmed value of column key, "" when the column or the
// cell is missing.
func cell(cells []string, index map[string]int, key string) string {
	i, ok := index[key]
	if !ok || i >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[i])
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// dateCell turns an Excel serial date into YYYY-MM-DD; text is kept.
func dateCell(v string) string {
	if v == "" {
		return ""
	}
	if _, err := util.ParseDate(v); err == nil {
		return v
	}
	serial, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return v
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return v
	}
	return t.UTC().Format(time.DateOnly)
}

func validationReason(err error) string {
	var e *util.AppError
	if !errors.As(err, &e) || len(e.Fields) == 0 {
		return err.Error()
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" "+f.Reason)
	}
	return "Invalid fields: " + strings.Join(parts, "; ")
}
