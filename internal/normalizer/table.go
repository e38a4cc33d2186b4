package normalizer

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// MarkdownTable renders HTML table markup as pipe-delimited markdown, one
// line per row that has more than one non-empty cell. ok is false when no
// row qualifies or the markup cannot be parsed.
func MarkdownTable(markup string) (md string, ok bool) {
	if strings.TrimSpace(markup) == "" {
		return "", false
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return "", false
	}

	var rows []string
	doc.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var cells []string
		filled := 0
		tr.ChildrenFiltered("td, th").Each(func(_ int, cell *goquery.Selection) {
			text := cellText(cell.Text())
			if text != "" {
				filled++
			}
			cells = append(cells, text)
		})
		if filled > 1 {
			rows = append(rows, "| "+strings.Join(cells, " | ")+" |")
		}
	})

	if len(rows) == 0 {
		return "", false
	}
	return strings.Join(rows, "\n"), true
}

func cellText(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.ReplaceAll(s, "|", `\|`)
}
