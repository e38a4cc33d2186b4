package processor

import (
	"html"
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"multimodal-rag/internal/models"
)

const (
	// horizontal gap, in multiples of the font size, that separates table cells
	cellGapFactor = 2.0
	// horizontal gap, in multiples of the font size, that becomes a space
	spaceGapFactor = 0.15
	// vertical baseline distance, in multiples of the font size, that ends a paragraph
	paragraphGapFactor = 1.8
	// a paragraph whose font is this much larger than the body is a title
	titleFontRatio = 1.2
	// titles longer than this are treated as narrative text
	maxTitleLines = 3
	// minimum consecutive multi-cell rows that make a table
	minTableRows = 2
	defaultFontSize = 10.0
)

// glyph is a positioned run of text as reported by the PDF reader
type glyph struct {
	X        float64
	W        float64
	FontSize float64
	S        string
}

// textRow is every glyph sharing one baseline
type textRow struct {
	Y      float64
	Glyphs []glyph
}

type line struct {
	Y        float64
	FontSize float64
	Cells    []string
}

func (l line) text() string {
	return strings.Join(l.Cells, " ")
}

// buildLine merges the glyphs of a row into cells, splitting on wide gaps
func buildLine(row textRow) line {
	glyphs := make([]glyph, len(row.Glyphs))
	copy(glyphs, row.Glyphs)
	sort.SliceStable(glyphs, func(i, j int) bool { return glyphs[i].X < glyphs[j].X })

	ln := line{Y: row.Y}
	var current strings.Builder
	var prevEnd float64
	started := false

	flush := func() {
		if cell := strings.TrimSpace(current.String()); cell != "" {
			ln.Cells = append(ln.Cells, cell)
		}
		current.Reset()
	}

	for _, g := range glyphs {
		if g.S == "" {
			continue
		}
		size := g.FontSize
		if size <= 0 {
			size = defaultFontSize
		}
		if size > ln.FontSize {
			ln.FontSize = size
		}

		if started {
			gap := g.X - prevEnd
			switch {
			case gap > size*cellGapFactor:
				flush()
			case gap > size*spaceGapFactor:
				if s := current.String(); s != "" && !strings.HasSuffix(s, " ") && !strings.HasPrefix(g.S, " ") {
					current.WriteByte(' ')
				}
			}
		}
		current.WriteString(g.S)

		width := g.W
		if width <= 0 {
			width = 0.5 * size * float64(utf8.RuneCountInString(g.S))
		}
		prevEnd = g.X + width
		started = true
	}
	flush()

	if ln.FontSize == 0 {
		ln.FontSize = defaultFontSize
	}
	return ln
}

// layoutPage groups the lines of one page into titles, paragraphs, list items
// and tables. Rows are ordered top to bottom.
func layoutPage(page int, rows []textRow) []models.RawElement {
	lines := make([]line, 0, len(rows))
	for _, row := range rows {
		ln := buildLine(row)
		if len(ln.Cells) > 0 {
			lines = append(lines, ln)
		}
	}
	// PDF user space grows upwards
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].Y > lines[j].Y })

	body := medianFontSize(lines)

	var (
		elements  []models.RawElement
		paragraph []line
		tableRun  []line
	)

	flushParagraph := func() {
		if len(paragraph) == 0 {
			return
		}
		elements = append(elements, paragraphElement(page, paragraph, body))
		paragraph = nil
	}
	flushTable := func() {
		if len(tableRun) >= minTableRows {
			flushParagraph()
			elements = append(elements, tableElement(page, tableRun))
		} else {
			for _, ln := range tableRun {
				paragraph = appendParagraphLine(paragraph, ln, &elements, page, body)
			}
		}
		tableRun = nil
	}

	for _, ln := range lines {
		if len(ln.Cells) > 1 {
			tableRun = append(tableRun, ln)
			continue
		}
		flushTable()
		paragraph = appendParagraphLine(paragraph, ln, &elements, page, body)
	}
	flushTable()
	flushParagraph()

	return elements
}

// appendParagraphLine adds ln to the open paragraph, first closing it when ln
// starts a new block.
func appendParagraphLine(paragraph []line, ln line, elements *[]models.RawElement, page int, body float64) []line {
	if len(paragraph) > 0 && startsNewBlock(paragraph[len(paragraph)-1], ln) {
		*elements = append(*elements, paragraphElement(page, paragraph, body))
		paragraph = nil
	}
	return append(paragraph, ln)
}

func startsNewBlock(prev, next line) bool {
	size := math.Max(prev.FontSize, next.FontSize)
	if prev.Y-next.Y > size*paragraphGapFactor {
		return true
	}
	if math.Abs(prev.FontSize-next.FontSize) > 1.0 {
		return true
	}
	return isListMarker(next.text())
}

func paragraphElement(page int, lines []line, body float64) models.RawElement {
	parts := make([]string, 0, len(lines))
	large := true
	for _, ln := range lines {
		parts = append(parts, ln.text())
		if ln.FontSize < body*titleFontRatio {
			large = false
		}
	}
	text := strings.Join(parts, " ")

	elementType := models.ElementNarrativeText
	switch {
	case large && len(lines) <= maxTitleLines:
		elementType = models.ElementTitle
	case isListMarker(text):
		elementType = models.ElementListItem
	}

	return models.RawElement{
		Type:    elementType,
		Content: text,
		Page:    page,
	}
}

func tableElement(page int, lines []line) models.RawElement {
	rows := make([][]string, 0, len(lines))
	texts := make([]string, 0, len(lines))
	for _, ln := range lines {
		rows = append(rows, ln.Cells)
		texts = append(texts, ln.text())
	}
	return models.RawElement{
		Type:        models.ElementTable,
		Content:     strings.Join(texts, "\n"),
		Page:        page,
		TableMarkup: tableMarkup(rows),
	}
}

// tableMarkup renders rows of cells as an HTML table
func tableMarkup(rows [][]string) string {
	var sb strings.Builder
	sb.WriteString("<table>")
	for _, row := range rows {
		sb.WriteString("<tr>")
		for _, cell := range row {
			sb.WriteString("<td>")
			sb.WriteString(html.EscapeString(cell))
			sb.WriteString("</td>")
		}
		sb.WriteString("</tr>")
	}
	sb.WriteString("</table>")
	return sb.String()
}

func isListMarker(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	r, size := utf8.DecodeRuneInString(text)
	switch r {
	case '•', '◦', '▪', '‣', '–', '*':
		return true
	case '-':
		return len(text) > size && text[size] == ' '
	}
	if !unicode.IsDigit(r) {
		return false
	}
	// "1." or "12)" enumerators
	i := 0
	for i < len(text) && text[i] >= '0' && text[i] <= '9' {
		i++
	}
	return i < 4 && i+1 < len(text) && (text[i] == '.' || text[i] == ')') && text[i+1] == ' '
}

func medianFontSize(lines []line) float64 {
	if len(lines) == 0 {
		return defaultFontSize
	}
	sizes := make([]float64, len(lines))
	for i, ln := range lines {
		sizes[i] = ln.FontSize
	}
	sort.Float64s(sizes)
	return sizes[len(sizes)/2]
}
