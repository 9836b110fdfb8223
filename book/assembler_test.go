package book

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wattpad-downloader/model"
)

var testPNG = []byte{
	0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00, 0x00, 0x0D,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1F, 0x15, 0xC4, 0x89, 0x00, 0x00, 0x00,
	0x0D, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9C, 0x62, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0D, 0x0A, 0x2D, 0xB4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4E, 0x44, 0xAE, 0x42, 0x60, 0x82,
}

func testBundle() *model.Bundle {
	story := &model.Story{
		ID:          "123456",
		Title:       "The Midnight Library",
		Description: "A story about a library.",
		User:        model.User{Username: "writer42"},
		Language:    model.Language{Name: "en"},
		Tags:        []string{"fantasy", "books"},
		Completed:   true,
	}
	return &model.Bundle{
		Title: story.Title,
		ID:    story.ID,
		Cover: &model.ImageAsset{SourceURL: "https://img.example/cover.png", Data: testPNG, ContentType: "image/png"},
		Stories: []*model.StoryContent{{
			Story: story,
			Chapters: []*model.Chapter{
				{
					ID: 1, Index: 0, Title: "Chapter One",
					BodyHTML: `<p>First chapter.</p><img src="https://img.example/a.png">`,
					Images: []*model.ImageAsset{{
						SourceURL:   "https://img.example/a.png",
						Data:        testPNG,
						ContentType: "image/png",
					}},
				},
				{ID: 2, Index: 1, Title: "Chapter Two", BodyHTML: "<p>Second chapter.</p>"},
			},
		}},
	}
}

func newTestAssembler() *Assembler {
	return NewAssembler(zerolog.Nop())
}

func TestAssembleEPUB(t *testing.T) {
	bundle := testBundle()
	res, err := newTestAssembler().Assemble(context.Background(), bundle, model.BuildRequest{
		Target:         model.Target{Kind: model.TargetStory, ID: "123456"},
		Format:         model.FormatEPUB,
		DownloadImages: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "application/epub+zip", res.ContentType)
	assert.Equal(t, "the-midnight-library_123456_images.epub", res.Filename)

	zr, err := zip.NewReader(bytes.NewReader(res.Data), int64(len(res.Data)))
	require.NoError(t, err)

	files := make(map[string]string, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		files[f.Name] = string(data)
	}

	assert.Equal(t, "application/epub+zip", files["mimetype"])

	var opf string
	var images, sections int
	for name, content := range files {
		switch {
		case strings.HasSuffix(name, ".opf"):
			opf = content
		case strings.HasSuffix(name, ".png"):
			images++
		case strings.HasSuffix(name, ".xhtml"):
			sections++
		}
	}
	require.NotEmpty(t, opf, "package document missing")
	assert.Contains(t, opf, "The Midnight Library")
	assert.Contains(t, opf, "writer42")
	// cover plus the in-chapter image
	assert.GreaterOrEqual(t, images, 2)
	// title page plus two chapters (nav may add one more)
	assert.GreaterOrEqual(t, sections, 3)

	var one, two string
	for name, content := range files {
		if strings.Contains(content, "First chapter.") {
			one = name
		}
		if strings.Contains(content, "Second chapter.") {
			two = name
		}
	}
	require.NotEmpty(t, one)
	require.NotEmpty(t, two)
	assert.Less(t, one, two, "chapter files must sort in reading order")

	// embedded image reference replaced the remote one
	assert.NotContains(t, files[one], "https://img.example/a.png")
}

func TestAssembleRefusesEmptyBundle(t *testing.T) {
	bundle := &model.Bundle{
		Title:   "Empty",
		ID:      "1",
		Stories: []*model.StoryContent{{Story: &model.Story{Title: "Empty"}}},
	}
	_, err := newTestAssembler().Assemble(context.Background(), bundle, model.BuildRequest{Format: model.FormatEPUB})
	assert.ErrorIs(t, err, model.ErrAssembly)
}

func TestAssembleRefusesAllFailedChapters(t *testing.T) {
	bundle := testBundle()
	for _, ch := range bundle.Stories[0].Chapters {
		ch.Failed = true
	}
	_, err := newTestAssembler().Assemble(context.Background(), bundle, model.BuildRequest{Format: model.FormatEPUB})
	assert.ErrorIs(t, err, model.ErrAssembly)
}

func TestFilename(t *testing.T) {
	bundle := testBundle()
	assert.Equal(t, "the-midnight-library_123456.pdf",
		filename(bundle, model.BuildRequest{Format: model.FormatPDF}))
	assert.Equal(t, "the-midnight-library_123456_images.epub",
		filename(bundle, model.BuildRequest{Format: model.FormatEPUB, DownloadImages: true}))

	bundle.Title = "???"
	assert.Equal(t, "book_123456.epub", filename(bundle, model.BuildRequest{Format: model.FormatEPUB}))
}

func TestComposeDocument(t *testing.T) {
	bundle := testBundle()
	doc, err := composeDocument(bundle)
	require.NoError(t, err)

	assert.Contains(t, doc, "<title>The Midnight Library</title>")
	assert.Contains(t, doc, "by writer42")
	assert.Contains(t, doc, "fantasy, books")

	// cover inlined, never fetched
	assert.Contains(t, doc, "data:image/png;base64,")
	assert.NotContains(t, doc, "https://img.example/a.png")

	// toc anchors resolve to chapter sections
	assert.Contains(t, doc, `href="#chapter-0-0"`)
	assert.Contains(t, doc, `id="chapter-0-0"`)
	assert.Contains(t, doc, `href="#chapter-0-1"`)
	assert.Contains(t, doc, `id="chapter-0-1"`)

	// reading order preserved
	assert.Less(t, strings.Index(doc, "First chapter."), strings.Index(doc, "Second chapter."))
}

func TestComposeDocumentBlanksUnknownImages(t *testing.T) {
	bundle := testBundle()
	bundle.Stories[0].Chapters[1].BodyHTML = `<p>x</p><img src="https://img.example/missing.png">`
	doc, err := composeDocument(bundle)
	require.NoError(t, err)
	assert.NotContains(t, doc, "https://img.example/missing.png")
}

func TestInlineImages(t *testing.T) {
	assets := map[string]*model.ImageAsset{
		"https://img.example/a.png": {Data: testPNG, ContentType: "image/png"},
	}
	out, err := inlineImages(`<img src="https://img.example/a.png"><img src="https://img.example/b.png">`, assets)
	require.NoError(t, err)
	assert.Contains(t, out, "data:image/png;base64,")
	assert.NotContains(t, out, "img.example")
}
