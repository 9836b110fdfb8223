package book

import (
	"fmt"
	"html"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-shiori/go-epub"
	"github.com/google/uuid"

	"wattpad-downloader/model"
	"wattpad-downloader/wattpad"
)

// assembleEPUB emits one content document per chapter in index order, with
// bibliographic metadata from the story and every downloaded image embedded
// and re-referenced locally. The library owns manifest, spine and nav.
func (a *Assembler) assembleEPUB(bundle *model.Bundle) ([]byte, error) {
	e, err := epub.NewEpub(bundle.Title)
	if err != nil {
		return nil, fmt.Errorf("%w: create epub: %v", model.ErrAssembly, err)
	}

	lead := bundle.Stories[0].Story
	e.SetAuthor(lead.User.Username)
	e.SetDescription(lead.Description)
	if lead.Language.Name != "" {
		e.SetLang(lead.Language.Name)
	}
	e.SetIdentifier("urn:uuid:" + uuid.NewString())

	// Image bytes live in memory; the library wants files, so stage them in
	// a scratch directory for the duration of the build.
	tmpDir, err := os.MkdirTemp("", "wpd-epub-*")
	if err != nil {
		return nil, fmt.Errorf("%w: scratch dir: %v", model.ErrAssembly, err)
	}
	defer os.RemoveAll(tmpDir)

	if bundle.Cover != nil {
		if internal, err := a.stageImage(e, tmpDir, "cover"+imageExt(bundle.Cover.ContentType), bundle.Cover.Data); err == nil {
			e.SetCover(internal, "")
		}
	}

	if err := a.addTitlePage(e, bundle); err != nil {
		return nil, err
	}

	for si, sc := range bundle.Stories {
		if len(bundle.Stories) > 1 {
			page := fmt.Sprintf("<h1>%s</h1>\n<p class=\"byline\">by %s</p>",
				html.EscapeString(sc.Story.Title), html.EscapeString(sc.Story.User.Username))
			if _, err := e.AddSection(page, sc.Story.Title, fmt.Sprintf("story-%02d.xhtml", si), ""); err != nil {
				return nil, fmt.Errorf("%w: add story page: %v", model.ErrAssembly, err)
			}
		}
		for _, ch := range sc.Chapters {
			if err := a.addChapter(e, tmpDir, si, ch); err != nil {
				return nil, err
			}
		}
	}

	out := filepath.Join(tmpDir, "book.epub")
	if err := e.Write(out); err != nil {
		return nil, fmt.Errorf("%w: write epub: %v", model.ErrAssembly, err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("%w: read epub: %v", model.ErrAssembly, err)
	}
	return data, nil
}

// addTitlePage carries the metadata the container format has no fields for:
// tags, completion and maturity, in reader-visible form.
func (a *Assembler) addTitlePage(e *epub.Epub, bundle *model.Bundle) error {
	lead := bundle.Stories[0].Story
	var b strings.Builder
	fmt.Fprintf(&b, "<h1>%s</h1>\n", html.EscapeString(bundle.Title))
	fmt.Fprintf(&b, "<p class=\"byline\">by %s</p>\n", html.EscapeString(lead.User.Username))
	if len(lead.Tags) > 0 {
		fmt.Fprintf(&b, "<p class=\"tags\">%s</p>\n", html.EscapeString(strings.Join(lead.Tags, ", ")))
	}
	status := "Ongoing"
	if lead.Completed {
		status = "Completed"
	}
	if lead.Mature {
		status += " · Mature"
	}
	fmt.Fprintf(&b, "<p class=\"status\">%s</p>\n", status)
	if lead.Description != "" {
		fmt.Fprintf(&b, "<p class=\"description\">%s</p>\n", html.EscapeString(lead.Description))
	}
	if _, err := e.AddSection(b.String(), bundle.Title, "titlepage.xhtml", ""); err != nil {
		return fmt.Errorf("%w: add title page: %v", model.ErrAssembly, err)
	}
	return nil
}

func (a *Assembler) addChapter(e *epub.Epub, tmpDir string, storyIdx int, ch *model.Chapter) error {
	replacements := make(map[string]string, len(ch.Images))
	for i, img := range ch.Images {
		name := fmt.Sprintf("s%02d-ch%03d-%03d%s", storyIdx, ch.Index, i, imageExt(img.ContentType))
		internal, err := a.stageImage(e, tmpDir, name, img.Data)
		if err != nil {
			// The body keeps its remote reference; readers may still resolve it.
			a.log.Warn().Str("url", img.SourceURL).Err(err).Msg("could not embed image")
			continue
		}
		replacements[img.SourceURL] = internal
	}

	body := wattpad.RewriteImageRefs(ch.BodyHTML, replacements)
	content := fmt.Sprintf("<h1>%s</h1>\n%s", html.EscapeString(ch.Title), body)
	internalName := fmt.Sprintf("s%02d-ch%03d-%d.xhtml", storyIdx, ch.Index, ch.ID)
	if _, err := e.AddSection(content, ch.Title, internalName, ""); err != nil {
		return fmt.Errorf("%w: add chapter %d: %v", model.ErrAssembly, ch.ID, err)
	}
	return nil
}

func (a *Assembler) stageImage(e *epub.Epub, tmpDir, name string, data []byte) (string, error) {
	path := filepath.Join(tmpDir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return e.AddImage(path, name)
}

func imageExt(contentType string) string {
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		for _, ext := range exts {
			if ext == ".jpg" || ext == ".png" || ext == ".gif" || ext == ".webp" {
				return ext
			}
		}
		return exts[0]
	}
	return ".jpg"
}
