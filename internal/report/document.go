package report

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"finpulse/internal/core"

	"github.com/go-pdf/fpdf"
)

// A4 portrait in points.
const (
	PageWidth  = 595.0
	PageHeight = 842.0

	marginLeft = 40.0
	marginTop  = 40.0

	titleGap   = 40.0
	headerGap  = 25.0
	lineGap    = 20.0
	sectionGap = 20.0
)

const (
	DefaultTitle    = "Expense Report (Last 7 Days)"
	NoDataLine      = "No data available."
	DailySection    = "Daily Totals"
	CategorySection = "Category Totals"

	humanDateLayout = "02 January, 2006"
)

// Style is a font size, weight and gray level (0 black, 255 white).
type Style struct {
	Size float64
	Bold bool
	Gray int
}

var (
	StyleTitle  = Style{Size: 18, Bold: true, Gray: 0}
	StyleHeader = Style{Size: 14, Bold: true, Gray: 0}
	StyleBody   = Style{Size: 12, Bold: false, Gray: 68}
)

// Line is one positioned text run of the document; Y is the baseline.
type Line struct {
	Page  int
	X, Y  float64
	Style Style
	Text  string
}

// DocumentOptions configures RenderDocument.
type DocumentOptions struct {
	Title          string
	CurrencySymbol string
	Location       *time.Location
	// Now labels the document metadata; the visible layout does not depend on it.
	Now time.Time
}

func (o DocumentOptions) withDefaults() DocumentOptions {
	if o.Title == "" {
		o.Title = DefaultTitle
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	return o
}

// HumanDate formats a day the way the document prints it, e.g. "15 March, 2024".
func HumanDate(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(humanDateLayout)
}

// LayoutDocument places every text line of the report. Empty sections keep
// their header and get a single NoDataLine.
func LayoutDocument(daily core.DailyTotals, categories core.CategoryTotals, opts DocumentOptions) []Line {
	opts = opts.withDefaults()

	var lines []Line
	page, y := 0, marginTop
	add := func(style Style, text string, gap float64) {
		if y > PageHeight-marginTop {
			page++
			y = marginTop
		}
		lines = append(lines, Line{Page: page, X: marginLeft, Y: y, Style: style, Text: text})
		y += gap
	}

	add(StyleTitle, opts.Title, titleGap)

	add(StyleHeader, DailySection, headerGap)
	if len(daily) == 0 {
		add(StyleBody, NoDataLine, lineGap)
	}
	for _, d := range daily {
		add(StyleBody, HumanDate(d.Day, opts.Location)+": "+core.FormatMoney(opts.CurrencySymbol, d.Total), lineGap)
	}

	y += sectionGap
	add(StyleHeader, CategorySection, headerGap)
	if len(categories) == 0 {
		add(StyleBody, NoDataLine, lineGap)
	}
	for _, c := range categories {
		add(StyleBody, c.Category.Name+": "+core.FormatMoney(opts.CurrencySymbol, c.Total), lineGap)
	}
	return lines
}

// Core PDF fonts only cover cp1252; these symbols get a readable fallback.
var pdfFallbacks = strings.NewReplacer(
	"₹", "Rs.",
	"₽", "RUB ",
	"₺", "TRY ",
	"₩", "KRW ",
)

// RenderDocument draws the report as an A4 PDF.
func RenderDocument(daily core.DailyTotals, categories core.CategoryTotals, opts DocumentOptions) (Artifact, error) {
	opts = opts.withDefaults()
	lines := LayoutDocument(daily, categories, opts)

	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           fpdf.SizeType{Wd: PageWidth, Ht: PageHeight},
	})
	pdf.SetMargins(marginLeft, marginTop, marginLeft)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCatalogSort(true)
	pdf.SetProducer("FinPulse", true)
	pdf.SetTitle(opts.Title, true)
	if !opts.Now.IsZero() {
		pdf.SetCreationDate(opts.Now)
		pdf.SetModificationDate(opts.Now)
		pdf.SetSubject("Generated "+HumanDate(opts.Now, opts.Location), true)
	}
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	page := -1
	for _, l := range lines {
		for page < l.Page {
			pdf.AddPage()
			page++
		}
		fontStyle := ""
		if l.Style.Bold {
			fontStyle = "B"
		}
		pdf.SetFont("Helvetica", fontStyle, l.Style.Size)
		pdf.SetTextColor(l.Style.Gray, l.Style.Gray, l.Style.Gray)
		pdf.Text(l.X, l.Y, tr(pdfFallbacks.Replace(l.Text)))
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return Artifact{}, fmt.Errorf("render pdf: %w", err)
	}
	return Artifact{Name: DocumentName, MIMEType: MIMEPDF, Data: buf.Bytes()}, nil
}
