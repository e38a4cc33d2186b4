package processor

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"multimodal-rag/internal/logger"
	"multimodal-rag/internal/models"

	"github.com/ledongthuc/pdf"
)

const (
	localBackend = "local"
	// baseline distance, in points, under which runs share a row
	rowTolerance = 2.0
	// slack, in points, allowed between the end of one character and the
	// start of the next within a run
	runJoinTolerance = 0.5
)

// PDFProcessor partitions PDFs in-process with ledongthuc/pdf
type PDFProcessor struct {
	// ImageDir receives decoded page images; empty disables image export
	ImageDir string
	Logger   *slog.Logger
}

// NewPDFProcessor creates a new PDF processor
func NewPDFProcessor(imageDir string, log *slog.Logger) *PDFProcessor {
	return &PDFProcessor{
		ImageDir: imageDir,
		Logger:   logger.OrNop(log),
	}
}

// Extract partitions the document page by page. A page break element
// follows every page.
func (p *PDFProcessor) Extract(ctx context.Context, doc []byte) (elements []models.RawElement, err error) {
	if len(doc) == 0 {
		return nil, extractionErr(localBackend, "empty document")
	}

	// the reader panics on some malformed streams
	defer func() {
		if r := recover(); r != nil {
			elements = nil
			err = extractionErr(localBackend, "malformed PDF: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(doc), int64(len(doc)))
	if err != nil {
		return nil, &ExtractionError{Backend: localBackend, Err: fmt.Errorf("failed to open PDF: %w", err)}
	}

	numPages := r.NumPage()
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}

		elements = append(elements, layoutPage(i, contentRows(page.Content().Text))...)
		elements = append(elements, p.extractImages(i, page)...)
		elements = append(elements, models.RawElement{Type: models.ElementPageBreak, Page: i})
	}

	p.Logger.Debug("partitioned PDF", "pages", numPages, "elements", len(elements))
	return elements, nil
}

// contentRows joins the positioned characters of a page into runs, then
// groups runs sharing a baseline into rows. A run continues while each
// character starts where the previous one ended; fonts without widths report
// every character of a string at the same origin.
func contentRows(texts []pdf.Text) []textRow {
	type run struct {
		y float64
		g glyph
	}

	var (
		runs []run
		next float64
	)
	for _, t := range texts {
		// TJ arrays end with a synthetic newline
		if t.S == "" || t.S == "\n" || t.S == "\r" {
			next = math.NaN()
			continue
		}
		if n := len(runs); n > 0 {
			last := &runs[n-1]
			tolerance := math.Max(runJoinTolerance, 0.1*t.FontSize)
			if math.Abs(last.y-t.Y) < runJoinTolerance &&
				math.Abs(last.g.FontSize-t.FontSize) < 0.01 &&
				math.Abs(t.X-next) <= tolerance {
				last.g.S += t.S
				last.g.W += t.W
				next = t.X + t.W
				continue
			}
		}
		runs = append(runs, run{y: t.Y, g: glyph{X: t.X, W: t.W, FontSize: t.FontSize, S: t.S}})
		next = t.X + t.W
	}

	sort.SliceStable(runs, func(i, j int) bool { return runs[i].y > runs[j].y })

	var rows []textRow
	for _, r := range runs {
		if n := len(rows); n > 0 && rows[n-1].Y-r.y <= rowTolerance {
			rows[n-1].Glyphs = append(rows[n-1].Glyphs, r.g)
			continue
		}
		rows = append(rows, textRow{Y: r.y, Glyphs: []glyph{r.g}})
	}
	return rows
}
