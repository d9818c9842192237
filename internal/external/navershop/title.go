package navershop

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// CleanTitle strips the HTML decoration the search API puts in product
// titles and decodes entities.
// "<b>무선</b> 이어폰 &amp; 케이스" → "무선 이어폰 & 케이스"
func CleanTitle(title string) string {
	if !strings.ContainsAny(title, "<&") {
		return strings.TrimSpace(title)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(title))
	if err != nil {
		return strings.TrimSpace(title)
	}

	return strings.TrimSpace(doc.Text())
}

// CleanedTitle returns the item title without HTML decoration.
func (i SearchItem) CleanedTitle() string {
	return CleanTitle(i.Title)
}
