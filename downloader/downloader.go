// Package downloader orchestrates content gathering: it resolves targets to
// concrete stories, fans out chapter and image fetches under the shared
// concurrency ceiling, and absorbs partial failures into placeholders.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/rs/zerolog"

	"wattpad-downloader/model"
	"wattpad-downloader/session"
)

// API is the upstream surface the orchestrator needs. Satisfied by
// wattpad.Client; tests substitute a scripted fake.
type API interface {
	Story(ctx context.Context, storyID string, cookies []*http.Cookie) (*model.Story, error)
	StoryFromPart(ctx context.Context, partID string, cookies []*http.Cookie) (*model.Story, error)
	PartText(ctx context.Context, partID int64, cookies []*http.Cookie) (string, error)
	List(ctx context.Context, listID string, cookies []*http.Cookie) (string, []string, error)
	Image(ctx context.Context, url string, cookies []*http.Cookie) (*model.ImageAsset, error)
}

// placeholderBody replaces a chapter whose fetch failed, so the book keeps
// its full chapter count.
const placeholderBody = `<p class="missing-content"><em>This chapter could not be downloaded. It may be paid content or temporarily unavailable on the platform.</em></p>`

// placeholderPNG is a 1x1 image substituted for failed image fetches.
var placeholderPNG = []byte{
	0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A,
	0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x02, 0x00, 0x00, 0x00, 0x90, 0x77, 0x53,
	0xDE, 0x00, 0x00, 0x00, 0x0C, 0x49, 0x44, 0x41,
	0x54, 0x08, 0x99, 0x63, 0xF8, 0x0F, 0x00, 0x00,
	0x01, 0x01, 0x00, 0x05, 0x18, 0x0D, 0xA3, 0xD2,
	0x00, 0x00, 0x00, 0x00, 0x49, 0x45, 0x4E, 0x44,
	0xAE, 0x42, 0x60, 0x82,
}

// Sanitizer cleans one raw part body and reports its image URLs.
type Sanitizer func(raw string, baseURL string) (string, []string)

type Downloader struct {
	api      API
	sessions *session.Manager
	sanitize Sanitizer
	baseURL  string
	log      zerolog.Logger
}

func New(api API, sessions *session.Manager, sanitize Sanitizer, baseURL string, log zerolog.Logger) *Downloader {
	return &Downloader{
		api:      api,
		sessions: sessions,
		sanitize: sanitize,
		baseURL:  baseURL,
		log:      log.With().Str("component", "downloader").Logger(),
	}
}

// Gather fetches everything a build needs for one target. Metadata and
// target resolution failures are fatal; chapter and image failures degrade
// to placeholders recorded in the bundle report.
func (d *Downloader) Gather(ctx context.Context, target model.Target, creds *model.Credentials, downloadImages bool) (*model.Bundle, error) {
	auth, err := d.newAuthState(ctx, creds)
	if err != nil {
		return nil, err
	}

	bundle := &model.Bundle{}

	switch target.Kind {
	case model.TargetStory, model.TargetPart:
		var story *model.Story
		err := auth.do(ctx, func(cookies []*http.Cookie) error {
			var ferr error
			if target.Kind == model.TargetPart {
				story, ferr = d.api.StoryFromPart(ctx, target.ID, cookies)
			} else {
				story, ferr = d.api.Story(ctx, target.ID, cookies)
			}
			return ferr
		})
		if err != nil {
			return nil, err
		}
		content, report := d.gatherChapters(ctx, auth, story, downloadImages)
		bundle.Title = story.Title
		bundle.ID = story.ID
		bundle.Stories = []*model.StoryContent{content}
		bundle.Report.Merge(report)

	case model.TargetList:
		var name string
		var ids []string
		err := auth.do(ctx, func(cookies []*http.Cookie) error {
			var ferr error
			name, ids, ferr = d.api.List(ctx, target.ID, cookies)
			return ferr
		})
		if err != nil {
			return nil, err
		}
		bundle.Title = name
		bundle.ID = target.ID
		var lastErr error
		for _, storyID := range ids {
			var story *model.Story
			err := auth.do(ctx, func(cookies []*http.Cookie) error {
				var ferr error
				story, ferr = d.api.Story(ctx, storyID, cookies)
				return ferr
			})
			if err != nil {
				// One broken story must not sink the rest of the list.
				d.log.Warn().Str("story_id", storyID).Err(err).Msg("skipping unresolvable list story")
				bundle.Report.SkippedStories = append(bundle.Report.SkippedStories, storyID)
				lastErr = err
				continue
			}
			content, report := d.gatherChapters(ctx, auth, story, downloadImages)
			bundle.Stories = append(bundle.Stories, content)
			bundle.Report.Merge(report)
		}
		if len(bundle.Stories) == 0 {
			if lastErr != nil {
				return nil, fmt.Errorf("no stories in list %s could be gathered: %w", target.ID, lastErr)
			}
			return nil, fmt.Errorf("%w: list %s is empty", model.ErrStoryNotFound, target.ID)
		}

	default:
		return nil, fmt.Errorf("%w: unknown target kind %q", model.ErrInvalidIdentifier, target.Kind)
	}

	if len(bundle.Stories) > 0 {
		bundle.Cover = d.cover(ctx, auth, bundle.Stories[0].Story)
	}
	return bundle, nil
}

// gatherChapters fetches every part body concurrently. Results land in a
// pre-sized slice slot keyed by part index, so final order never depends on
// completion order.
func (d *Downloader) gatherChapters(ctx context.Context, auth *authState, story *model.Story, downloadImages bool) (*model.StoryContent, model.BuildReport) {
	chapters := make([]*model.Chapter, len(story.Parts))
	var mu sync.Mutex
	var report model.BuildReport

	var wg sync.WaitGroup
	for i, part := range story.Parts {
		wg.Add(1)
		go func(idx int, part model.Part) {
			defer wg.Done()
			chapter, failedImages := d.fetchChapter(ctx, auth, idx, part, downloadImages)
			chapters[idx] = chapter
			mu.Lock()
			if chapter.Failed {
				report.FailedChapters = append(report.FailedChapters, part.ID)
			}
			report.FailedImages = append(report.FailedImages, failedImages...)
			mu.Unlock()
		}(i, part)
	}
	wg.Wait()

	return &model.StoryContent{Story: story, Chapters: chapters}, report
}

func (d *Downloader) fetchChapter(ctx context.Context, auth *authState, idx int, part model.Part, downloadImages bool) (*model.Chapter, []string) {
	chapter := &model.Chapter{ID: part.ID, Index: idx, Title: part.Title}

	var raw string
	err := auth.do(ctx, func(cookies []*http.Cookie) error {
		var ferr error
		raw, ferr = d.api.PartText(ctx, part.ID, cookies)
		return ferr
	})
	if err != nil {
		d.log.Warn().Int64("part_id", part.ID).Err(err).Msg("chapter body unavailable, inserting placeholder")
		chapter.Failed = true
		chapter.BodyHTML = placeholderBody
		return chapter, nil
	}

	body, imageURLs := d.sanitize(raw, d.baseURL)
	chapter.BodyHTML = body
	if !downloadImages {
		return chapter, nil
	}

	var failed []string
	for _, url := range imageURLs {
		var asset *model.ImageAsset
		err := auth.do(ctx, func(cookies []*http.Cookie) error {
			var ferr error
			asset, ferr = d.api.Image(ctx, url, cookies)
			return ferr
		})
		if err != nil {
			d.log.Warn().Str("url", url).Err(err).Msg("image unavailable, inserting placeholder")
			asset = &model.ImageAsset{
				SourceURL:   url,
				Data:        placeholderPNG,
				ContentType: "image/png",
				Placeholder: true,
			}
			failed = append(failed, url)
		}
		chapter.Images = append(chapter.Images, asset)
	}
	return chapter, failed
}

// cover fetches the story cover, degrading to nil on failure: a book without
// a cover is still a book.
func (d *Downloader) cover(ctx context.Context, auth *authState, story *model.Story) *model.ImageAsset {
	if story.Cover == "" {
		return nil
	}
	var asset *model.ImageAsset
	err := auth.do(ctx, func(cookies []*http.Cookie) error {
		var ferr error
		asset, ferr = d.api.Image(ctx, story.Cover, cookies)
		return ferr
	})
	if err != nil {
		d.log.Warn().Str("url", story.Cover).Err(err).Msg("cover unavailable")
		return nil
	}
	return asset
}

// authState carries the session for one gather and performs at most one
// re-login per rejected generation when the upstream reports an
// authorization failure mid-build.
type authState struct {
	d     *Downloader
	creds *model.Credentials

	mu   sync.Mutex
	sess *session.Session
	gen  int
}

func (d *Downloader) newAuthState(ctx context.Context, creds *model.Credentials) (*authState, error) {
	a := &authState{d: d, creds: creds}
	if creds == nil {
		return a, nil
	}
	sess, err := d.sessions.Acquire(ctx, *creds)
	if err != nil {
		return nil, err
	}
	a.sess = sess
	return a, nil
}

func (a *authState) snapshot() ([]*http.Cookie, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sess == nil {
		return nil, a.gen
	}
	return a.sess.Cookies, a.gen
}

// refresh re-logins once per generation; concurrent callers that raced into
// the same rejection reuse the refreshed session.
func (a *authState) refresh(ctx context.Context, seenGen int) ([]*http.Cookie, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.gen != seenGen {
		return a.sess.Cookies, nil
	}
	a.d.sessions.Invalidate(a.sess.Fingerprint)
	sess, err := a.d.sessions.Acquire(ctx, *a.creds)
	if err != nil {
		return nil, err
	}
	a.sess = sess
	a.gen++
	return sess.Cookies, nil
}

func (a *authState) do(ctx context.Context, fn func(cookies []*http.Cookie) error) error {
	cookies, gen := a.snapshot()
	err := fn(cookies)
	if err == nil || a.creds == nil || !errors.Is(err, model.ErrAuthenticationFailed) {
		return err
	}
	cookies, rerr := a.refresh(ctx, gen)
	if rerr != nil {
		return rerr
	}
	return fn(cookies)
}
