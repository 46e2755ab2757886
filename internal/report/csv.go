package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"finpulse/internal/core"

	"github.com/shopspring/decimal"
)

// DelimitedTextHeader is the fixed first line of the CSV export.
const DelimitedTextHeader = "Date,Category,Title,Amount,Notes"

const csvDateLayout = "2006-01-02"

// RenderDelimitedText writes one CSV row per expense. Title and Notes are
// always quoted; dates use loc's calendar.
func RenderDelimitedText(list []core.ExpenseWithCategory, loc *time.Location) Artifact {
	if loc == nil {
		loc = time.Local
	}
	var buf bytes.Buffer
	buf.WriteString(DelimitedTextHeader)
	buf.WriteByte('\n')
	for _, item := range list {
		e := item.Expense
		buf.WriteString(e.Date.In(loc).Format(csvDateLayout))
		buf.WriteByte(',')
		buf.WriteString(bareField(item.Category.Name))
		buf.WriteByte(',')
		buf.WriteString(quoteField(e.Title))
		buf.WriteByte(',')
		buf.WriteString(core.FormatAmount(e.Amount))
		buf.WriteByte(',')
		buf.WriteString(quoteField(e.NotesText()))
		buf.WriteByte('\n')
	}
	return Artifact{Name: DelimitedTextName, MIMEType: MIMECSV, Data: buf.Bytes()}
}

func quoteField(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// bareField leaves the value unquoted unless it would break the row.
func bareField(s string) string {
	if strings.ContainsAny(s, ",\"\r\n") || strings.TrimSpace(s) != s {
		return quoteField(s)
	}
	return s
}

// Row is one parsed line of the CSV export.
type Row struct {
	Date     time.Time
	Category string
	Title    string
	Amount   decimal.Decimal
	Notes    *string
}

// ParseDelimitedText reads a CSV produced by RenderDelimitedText.
func ParseDelimitedText(r io.Reader, loc *time.Location) ([]Row, error) {
	if loc == nil {
		loc = time.Local
	}
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 5

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("missing header")
	}
	if strings.Join(records[0], ",") != DelimitedTextHeader {
		return nil, fmt.Errorf("unexpected header %q", strings.Join(records[0], ","))
	}

	rows := make([]Row, 0, len(records)-1)
	for i, rec := range records[1:] {
		rowNum := i + 2
		date, err := time.ParseInLocation(csvDateLayout, rec[0], loc)
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid date %q", rowNum, rec[0])
		}
		amount, err := decimal.NewFromString(rec[3])
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid amount %q", rowNum, rec[3])
		}
		row := Row{Date: date, Category: rec[1], Title: rec[2], Amount: amount}
		if rec[4] != "" {
			notes := rec[4]
			row.Notes = &notes
		}
		rows = append(rows, row)
	}
	return rows, nil
}
