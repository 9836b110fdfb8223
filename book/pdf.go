package book

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"wattpad-downloader/model"
)

const pdfStyle = `
body { font-family: Georgia, serif; line-height: 1.55; margin: 2em 3em; }
h1 { page-break-before: always; }
.cover { text-align: center; page-break-after: always; }
.cover img { max-width: 90%; max-height: 80vh; }
.cover h1 { page-break-before: avoid; }
.byline, .status, .tags { color: #555; }
.toc { page-break-after: always; }
.toc ol { line-height: 2; }
img { max-width: 100%; }
`

// assemblePDF lays the whole bundle out as one self-contained HTML document
// and prints it through headless Chromium. Image references are inlined as
// data URIs so the page needs no network access.
func (a *Assembler) assemblePDF(ctx context.Context, bundle *model.Bundle) ([]byte, error) {
	doc, err := composeDocument(bundle)
	if err != nil {
		return nil, fmt.Errorf("%w: compose document: %v", model.ErrAssembly, err)
	}
	data, err := a.renderPDF(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("%w: render pdf: %v", model.ErrAssembly, err)
	}
	return data, nil
}

// composeDocument builds the printable HTML: cover page, metadata, table of
// contents and every chapter in order, each anchored for the TOC links.
func composeDocument(bundle *model.Bundle) (string, error) {
	lead := bundle.Stories[0].Story

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&b, "<title>%s</title>\n", html.EscapeString(bundle.Title))
	fmt.Fprintf(&b, "<style>%s</style>\n", pdfStyle)
	b.WriteString("</head>\n<body>\n")

	b.WriteString("<div class=\"cover\">\n")
	if bundle.Cover != nil && len(bundle.Cover.Data) > 0 {
		fmt.Fprintf(&b, "<img src=\"%s\" alt=\"cover\">\n", dataURI(bundle.Cover.ContentType, bundle.Cover.Data))
	}
	fmt.Fprintf(&b, "<h1>%s</h1>\n", html.EscapeString(bundle.Title))
	fmt.Fprintf(&b, "<p class=\"byline\">by %s</p>\n", html.EscapeString(lead.User.Username))
	if len(lead.Tags) > 0 {
		fmt.Fprintf(&b, "<p class=\"tags\">%s</p>\n", html.EscapeString(strings.Join(lead.Tags, ", ")))
	}
	b.WriteString("</div>\n")

	b.WriteString("<nav class=\"toc\">\n<h2>Contents</h2>\n<ol>\n")
	for si, sc := range bundle.Stories {
		for _, ch := range sc.Chapters {
			fmt.Fprintf(&b, "<li><a href=\"#chapter-%d-%d\">%s</a></li>\n", si, ch.Index, html.EscapeString(ch.Title))
		}
	}
	b.WriteString("</ol>\n</nav>\n")

	for si, sc := range bundle.Stories {
		if len(bundle.Stories) > 1 {
			fmt.Fprintf(&b, "<h1>%s</h1>\n<p class=\"byline\">by %s</p>\n",
				html.EscapeString(sc.Story.Title), html.EscapeString(sc.Story.User.Username))
		}
		for _, ch := range sc.Chapters {
			assets := make(map[string]*model.ImageAsset, len(ch.Images))
			for _, img := range ch.Images {
				assets[img.SourceURL] = img
			}
			body, err := inlineImages(ch.BodyHTML, assets)
			if err != nil {
				body = ch.BodyHTML
			}
			fmt.Fprintf(&b, "<section class=\"chapter\" id=\"chapter-%d-%d\">\n<h1>%s</h1>\n%s\n</section>\n",
				si, ch.Index, html.EscapeString(ch.Title), body)
		}
	}

	b.WriteString("</body>\n</html>\n")
	return b.String(), nil
}

// inlineImages swaps every img src for a data URI from the downloaded assets.
// Sources with no matching asset are blanked so Chromium does not reach out.
func inlineImages(body string, assets map[string]*model.ImageAsset) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return "", err
	}
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		src, ok := s.Attr("src")
		if !ok {
			return
		}
		if img, ok := assets[src]; ok && len(img.Data) > 0 {
			s.SetAttr("src", dataURI(img.ContentType, img.Data))
		} else {
			s.SetAttr("src", "")
		}
	})
	out, err := doc.Find("body").Html()
	if err != nil {
		return "", err
	}
	return out, nil
}

func dataURI(contentType string, data []byte) string {
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// renderPDF runs a dedicated headless browser for the duration of the print.
func (a *Assembler) renderPDF(ctx context.Context, doc string) ([]byte, error) {
	tmpFile, err := os.CreateTemp("", "wpd-pdf-*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %v", err)
	}
	defer os.Remove(tmpFile.Name())
	if _, err := tmpFile.WriteString(doc); err != nil {
		tmpFile.Close()
		return nil, fmt.Errorf("failed to write temp file: %v", err)
	}
	tmpFile.Close()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("no-sandbox", true),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	runCtx, cancel := context.WithTimeout(browserCtx, 2*time.Minute)
	defer cancel()

	var data []byte
	err = chromedp.Run(runCtx,
		chromedp.Navigate("file://"+filepath.ToSlash(tmpFile.Name())),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPreferCSSPageSize(true).
				Do(ctx)
			if err != nil {
				return err
			}
			data = buf
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("chromedp execution failed: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		return nil, fmt.Errorf("browser returned %d bytes of non-pdf output", len(data))
	}
	return data, nil
}
