// Package webpage turns page HTML into the context sent alongside questions.
package webpage

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/tchan1002/apache/internal/entity"
)

const (
	// MaxTextLen bounds the body text sent with a question, in runes.
	MaxTextLen   = 2000
	maxHeadings  = 20
	ellipsisText = "…"
)

// ExtractPageContext parses HTML content and extracts the parts of the page
// that help the backend answer a question about it.
func ExtractPageContext(url, htmlContent string) (*entity.PageContext, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, err
	}

	pc := &entity.PageContext{
		URL:   url,
		Title: collapse(doc.Find("title").First().Text()),
	}

	// The first non-empty description wins; og:description is a fallback.
	doc.Find("meta").EachWithBreak(func(i int, s *goquery.Selection) bool {
		name, _ := s.Attr("name")
		property, _ := s.Attr("property")
		content, _ := s.Attr("content")
		if content == "" {
			return true
		}
		if strings.EqualFold(name, "description") {
			pc.Description = collapse(content)
			return false
		}
		if pc.Description == "" && strings.EqualFold(property, "og:description") {
			pc.Description = collapse(content)
		}
		return true
	})

	doc.Find("h1, h2, h3").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if text := collapse(s.Text()); text != "" {
			pc.Headings = append(pc.Headings, text)
		}
		return len(pc.Headings) < maxHeadings
	})

	doc.Find("script, style, noscript, nav, footer").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})
	pc.Text = truncate(collapse(doc.Find("body").Text()), MaxTextLen)

	return pc, nil
}

// collapse folds runs of whitespace into single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:n])) + ellipsisText
}
