package wattpad

import (
	"fmt"
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// SanitizeChapterHTML cleans a raw part body for embedding in a book and
// returns the image URLs it references, in document order. This is the only
// place that depends on the upstream's current markup shape.
//
// Parsing is best effort: malformed markup is tolerated, and input goquery
// cannot parse at all degrades to an escaped text paragraph.
func SanitizeChapterHTML(raw string, baseURL string) (string, []string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return "<p>" + html.EscapeString(raw) + "</p>", nil
	}

	body := doc.Find("body")
	body.Find("script, style, iframe, object, embed, form").Remove()

	// Strip inline event handlers left after executable tags are gone.
	// Removal mutates the attribute slice, so collect keys before touching it.
	body.Find("*").Each(func(_ int, s *goquery.Selection) {
		var handlers []string
		for _, node := range s.Nodes {
			for _, attr := range node.Attr {
				if strings.HasPrefix(strings.ToLower(attr.Key), "on") {
					handlers = append(handlers, attr.Key)
				}
			}
		}
		for _, key := range handlers {
			s.RemoveAttr(key)
		}
	})

	// Resolve relative links so they still work inside the book.
	body.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := s.AttrOr("href", "")
		if strings.HasPrefix(href, "/") && !strings.HasPrefix(href, "//") {
			s.SetAttr("href", baseURL+href)
		}
	})

	urls := make([]string, 0)
	body.Find("img").Each(func(i int, s *goquery.Selection) {
		src := s.AttrOr("data-src", "")
		if src == "" {
			src = s.AttrOr("src", "")
		}
		if src == "" {
			s.Remove()
			return
		}
		if strings.HasPrefix(src, "//") {
			src = "https:" + src
		}
		s.SetAttr("src", src)
		s.RemoveAttr("data-src")
		if s.AttrOr("alt", "") == "" {
			s.SetAttr("alt", fmt.Sprintf("image-%03d", i+1))
		}
		urls = append(urls, src)
	})

	cleaned, err := body.Html()
	if err != nil {
		return "<p>" + html.EscapeString(doc.Text()) + "</p>", nil
	}
	return strings.TrimSpace(cleaned), urls
}

// RewriteImageRefs replaces image sources in a sanitized chapter body with
// their embedded book-local paths. It matches attributes through the parser,
// not textually: serialization escapes URL ampersands, so the stored source
// and the body text differ for query-string URLs.
func RewriteImageRefs(bodyHTML string, replacements map[string]string) string {
	if len(replacements) == 0 {
		return bodyHTML
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(bodyHTML))
	if err != nil {
		return bodyHTML
	}
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		src, ok := s.Attr("src")
		if !ok {
			return
		}
		if local, ok := replacements[src]; ok {
			s.SetAttr("src", local)
		}
	})
	out, err := doc.Find("body").Html()
	if err != nil {
		return bodyHTML
	}
	return out
}
