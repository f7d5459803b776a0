package listing

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"boatresearch/internal/utils/markdown"

	"github.com/PuerkitoBio/goquery"
)

// minDescriptionLen filters out placeholder accordions.
const minDescriptionLen = 20

// ExtractDescription finds the "Description" accordion of a listing page and
// returns its body as compact text. It returns "" when the page has none.
func ExtractDescription(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse listing page: %w", err)
	}

	var body *goquery.Selection
	doc.Find("summary").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.ToLower(strings.TrimSpace(s.Text())) != "description" {
			return true
		}
		block := s.SiblingsFiltered(".data-html").First()
		if utf8.RuneCountInString(strings.TrimSpace(block.Text())) <= minDescriptionLen {
			return true
		}
		body = block
		return false
	})
	if body == nil {
		return "", nil
	}

	inner, err := body.Html()
	if err != nil {
		return "", fmt.Errorf("read description block: %w", err)
	}
	text, err := markdown.FromFragment(inner)
	if err != nil {
		return "", fmt.Errorf("render description: %w", err)
	}
	return text, nil
}
