package workbook

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"student-records/internal/models"
)

// ExportCSV writes the export columns as CSV with a UTF-8 BOM so
// spreadsheet tools pick the right encoding.
func ExportCSV(students []models.Student) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("\ufeff")
	w := csv.NewWriter(&buf)
	if err := w.Write(Columns); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for i := range students {
		s := &students[i]
		dob := ""
		if s.DateOfBirth != nil {
			dob = s.DateOfBirth.UTC().Format("2006-01-02")
		}
		if err := w.Write([]string{s.Name, s.EmailOrEmpty(), s.Phone, s.ClassName, s.Gender, dob, s.Address, s.ProfilePhotoURL}); err != nil {
			return nil, fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
