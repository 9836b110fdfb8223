// Package book turns gathered content into the final artifact: an EPUB via
// the book-authoring library, or a PDF via headless Chromium.
package book

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"wattpad-downloader/model"
	"wattpad-downloader/utils"
)

type Assembler struct {
	log zerolog.Logger
}

func NewAssembler(log zerolog.Logger) *Assembler {
	return &Assembler{log: log.With().Str("component", "book").Logger()}
}

// Assemble builds the requested format from a bundle. It refuses to emit a
// book with no real content: at least one chapter must have resolved.
func (a *Assembler) Assemble(ctx context.Context, bundle *model.Bundle, req model.BuildRequest) (*model.BuildResult, error) {
	total, viable := 0, 0
	for _, sc := range bundle.Stories {
		for _, ch := range sc.Chapters {
			total++
			if !ch.Failed {
				viable++
			}
		}
	}
	if total == 0 {
		return nil, fmt.Errorf("%w: story has no chapters", model.ErrAssembly)
	}
	if viable == 0 {
		return nil, fmt.Errorf("%w: no chapter could be downloaded", model.ErrAssembly)
	}

	var (
		data []byte
		err  error
	)
	switch req.Format {
	case model.FormatPDF:
		data, err = a.assemblePDF(ctx, bundle)
	default:
		data, err = a.assembleEPUB(bundle)
	}
	if err != nil {
		return nil, err
	}

	return &model.BuildResult{
		Data:        data,
		ContentType: req.Format.ContentType(),
		Filename:    filename(bundle, req),
		Report:      bundle.Report,
	}, nil
}

// filename derives the deterministic artifact name from title and ID.
func filename(bundle *model.Bundle, req model.BuildRequest) string {
	name := utils.Slugify(bundle.Title)
	if name == "" {
		name = "book"
	}
	name += "_" + bundle.ID
	if req.DownloadImages {
		name += "_images"
	}
	return name + "." + string(req.Format)
}
