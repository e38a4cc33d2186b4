package processor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"multimodal-rag/internal/models"

	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildPDF writes a minimal PDF with one Helvetica content stream per page
func buildPDF(t *testing.T, pages ...string) []byte {
	t.Helper()

	var buf bytes.Buffer
	var offsets []int
	object := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")
	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	object("<< /Type /Catalog /Pages 2 0 R >>")
	object(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)))
	object("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")
	for i, content := range pages {
		object(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i))
		object(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}

func TestPDFProcessorExtractsLayout(t *testing.T) {
	report := strings.Join([]string{
		"BT /F1 18 Tf 72 720 Td (Annual Report) Tj ET",
		"BT /F1 10 Tf 72 690 Td (Revenue grew ten percent in the third quarter.) Tj",
		"0 -12 Td (Costs stayed flat.) Tj ET",
	}, "\n")
	figures := strings.Join([]string{
		"BT /F1 10 Tf 72 700 Td (Region) Tj 150 0 Td (Revenue) Tj",
		"-150 -14 Td (North) Tj 150 0 Td (120) Tj",
		"-150 -14 Td (South) Tj 150 0 Td (95) Tj ET",
		"BT /F1 10 Tf 72 630 Td (Figures in thousands.) Tj ET",
	}, "\n")

	p := NewPDFProcessor("", nil)
	elements, err := p.Extract(context.Background(), buildPDF(t, report, figures))
	require.NoError(t, err)

	assert.Equal(t, []models.RawElement{
		{Type: models.ElementTitle, Content: "Annual Report", Page: 1},
		{Type: models.ElementNarrativeText, Content: "Revenue grew ten percent in the third quarter. Costs stayed flat.", Page: 1},
		{Type: models.ElementPageBreak, Page: 1},
		{
			Type:        models.ElementTable,
			Content:     "Region Revenue\nNorth 120\nSouth 95",
			Page:        2,
			TableMarkup: "<table><tr><td>Region</td><td>Revenue</td></tr><tr><td>North</td><td>120</td></tr><tr><td>South</td><td>95</td></tr></table>",
		},
		{Type: models.ElementNarrativeText, Content: "Figures in thousands.", Page: 2},
		{Type: models.ElementPageBreak, Page: 2},
	}, elements)
}

func TestContentRowsMergesCharacters(t *testing.T) {
	texts := []pdf.Text{
		// no widths: every character of the string sits at the origin
		{FontSize: 10, X: 72, Y: 700, S: "H"},
		{FontSize: 10, X: 72, Y: 700, S: "i"},
		{FontSize: 10, X: 72, Y: 700, S: "\n"},
		{FontSize: 10, X: 200, Y: 700, W: 6, S: "Y"},
		{FontSize: 10, X: 206, Y: 700, W: 5, S: "o"},
		{FontSize: 10, X: 300, Y: 699, W: 5, S: "x"},
		{FontSize: 12, X: 72, Y: 650, W: 6, S: "B"},
	}

	rows := contentRows(texts)
	require.Len(t, rows, 2)

	assert.Equal(t, 700.0, rows[0].Y)
	assert.Equal(t, []glyph{
		{X: 72, W: 0, FontSize: 10, S: "Hi"},
		{X: 200, W: 11, FontSize: 10, S: "Yo"},
		{X: 300, W: 5, FontSize: 10, S: "x"},
	}, rows[0].Glyphs)

	assert.Equal(t, 650.0, rows[1].Y)
	assert.Equal(t, []glyph{{X: 72, W: 6, FontSize: 12, S: "B"}}, rows[1].Glyphs)
}

func TestPDFProcessorRejectsEmptyDocument(t *testing.T) {
	p := NewPDFProcessor("", nil)

	elements, err := p.Extract(context.Background(), nil)
	require.Error(t, err)
	assert.Nil(t, elements)

	var extractionErr *ExtractionError
	require.True(t, errors.As(err, &extractionErr))
	assert.Equal(t, "local", extractionErr.Backend)
}

func TestPDFProcessorRejectsMalformedDocument(t *testing.T) {
	p := NewPDFProcessor("", nil)

	elements, err := p.Extract(context.Background(), []byte("this is not a pdf at all"))
	require.Error(t, err)
	assert.Nil(t, elements)

	var extractionErr *ExtractionError
	assert.True(t, errors.As(err, &extractionErr))
}
