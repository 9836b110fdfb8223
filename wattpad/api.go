// Package wattpad speaks the upstream story platform API: login, story and
// part metadata, part bodies, reading lists and images. All calls go through
// the shared fetch client.
package wattpad

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"wattpad-downloader/fetch"
	"wattpad-downloader/model"
)

const (
	storyFields = "tags,id,title,createDate,modifyDate,language(name),description,completed,mature,url,isPaywalled,user(username,avatar,description),parts(id,title),cover,copyright"
	partFields  = "groupId,group(" + storyFields + ")"

	// Upstream error codes for missing content.
	codeStoryNotFound = 1017
	codePartNotFound  = 1020
	codePartTextGone  = 463
)

type Client struct {
	baseURL string
	fetch   *fetch.Client
	log     zerolog.Logger
}

func NewClient(baseURL string, f *fetch.Client, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		fetch:   f,
		log:     log.With().Str("component", "wattpad").Logger(),
	}
}

// Login exchanges credentials for the upstream cookie set. Success is a 204
// carrying at least one cookie; anything else is an authentication failure.
func (c *Client) Login(ctx context.Context, creds model.Credentials) ([]*http.Cookie, error) {
	resp, err := c.fetch.Do(ctx, fetch.Request{
		Method: http.MethodPost,
		URL:    c.baseURL + "/auth/login",
		Query: map[string]string{
			"nextUrl": "/",
			"_data":   "routes/auth.login",
		},
		FormData: map[string]string{
			"username": creds.Username,
			"password": creds.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("login request: %w", err)
	}
	if resp.StatusCode() != http.StatusNoContent {
		return nil, fmt.Errorf("%w: login returned %s", model.ErrAuthenticationFailed, resp.Status())
	}
	cookies := resp.Cookies()
	if len(cookies) == 0 {
		return nil, fmt.Errorf("%w: login returned no cookies", model.ErrAuthenticationFailed)
	}
	return cookies, nil
}

// Story fetches story metadata by story ID.
func (c *Client) Story(ctx context.Context, storyID string, cookies []*http.Cookie) (*model.Story, error) {
	resp, err := c.fetch.Do(ctx, fetch.Request{
		URL:     c.baseURL + "/api/v3/stories/" + storyID,
		Query:   map[string]string{"fields": storyFields},
		Cookies: cookies,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch story %s: %w", storyID, err)
	}
	if err := c.checkStatus(resp, codeStoryNotFound); err != nil {
		return nil, fmt.Errorf("story %s: %w", storyID, err)
	}
	story := &model.Story{}
	if err := json.Unmarshal(resp.Body(), story); err != nil {
		return nil, fmt.Errorf("decode story %s: %w", storyID, err)
	}
	return story, nil
}

// StoryFromPart resolves a part ID to its owning story. The upstream returns
// the story ID and the full story metadata in one call.
func (c *Client) StoryFromPart(ctx context.Context, partID string, cookies []*http.Cookie) (*model.Story, error) {
	resp, err := c.fetch.Do(ctx, fetch.Request{
		URL:     c.baseURL + "/api/v3/story_parts/" + partID,
		Query:   map[string]string{"fields": partFields},
		Cookies: cookies,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch part %s: %w", partID, err)
	}
	if err := c.checkStatus(resp, codePartNotFound); err != nil {
		return nil, fmt.Errorf("part %s: %w", partID, err)
	}
	var body struct {
		GroupID json.Number  `json:"groupId"`
		Group   *model.Story `json:"group"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("decode part %s: %w", partID, err)
	}
	if body.Group == nil || body.GroupID.String() == "" {
		return nil, fmt.Errorf("%w: part %s has no owning story", model.ErrStoryNotFound, partID)
	}
	if body.Group.ID == "" {
		body.Group.ID = body.GroupID.String()
	}
	return body.Group, nil
}

// PartText fetches the raw HTML body of one part.
func (c *Client) PartText(ctx context.Context, partID int64, cookies []*http.Cookie) (string, error) {
	resp, err := c.fetch.Do(ctx, fetch.Request{
		URL: c.baseURL + "/apiv2/",
		Query: map[string]string{
			"m":  "storytext",
			"id": fmt.Sprintf("%d", partID),
		},
		Cookies: cookies,
	})
	if err != nil {
		return "", fmt.Errorf("fetch part text %d: %w", partID, err)
	}
	if resp.StatusCode() == http.StatusBadRequest {
		var body struct {
			Code int `json:"code"`
		}
		if json.Unmarshal(resp.Body(), &body) == nil && body.Code == codePartTextGone {
			return "", fmt.Errorf("part text %d: %w", partID, model.ErrStoryNotFound)
		}
	}
	if err := c.checkStatus(resp, 0); err != nil {
		return "", fmt.Errorf("part text %d: %w", partID, err)
	}
	return resp.String(), nil
}

// List fetches a reading list: its name and member story IDs in list order.
func (c *Client) List(ctx context.Context, listID string, cookies []*http.Cookie) (string, []string, error) {
	resp, err := c.fetch.Do(ctx, fetch.Request{
		URL:     c.baseURL + "/api/v3/lists/" + listID,
		Query:   map[string]string{"fields": "id,name,stories(id)"},
		Cookies: cookies,
	})
	if err != nil {
		return "", nil, fmt.Errorf("fetch list %s: %w", listID, err)
	}
	if err := c.checkStatus(resp, codeStoryNotFound); err != nil {
		return "", nil, fmt.Errorf("list %s: %w", listID, err)
	}
	var body struct {
		Name    string `json:"name"`
		Stories []struct {
			ID string `json:"id"`
		} `json:"stories"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return "", nil, fmt.Errorf("decode list %s: %w", listID, err)
	}
	ids := make([]string, 0, len(body.Stories))
	for _, s := range body.Stories {
		ids = append(ids, s.ID)
	}
	return body.Name, ids, nil
}

// Image downloads one image asset. Covers and in-body images of restricted
// stories are themselves gated, so the session cookies ride along.
func (c *Client) Image(ctx context.Context, url string, cookies []*http.Cookie) (*model.ImageAsset, error) {
	resp, err := c.fetch.Do(ctx, fetch.Request{URL: url, Cookies: cookies})
	if err != nil {
		return nil, fmt.Errorf("fetch image %s: %w", url, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: image %s returned %s", model.ErrUpstreamUnavailable, url, resp.Status())
	}
	contentType := resp.Header().Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return &model.ImageAsset{
		SourceURL:   url,
		Data:        resp.Body(),
		ContentType: contentType,
	}, nil
}

// checkStatus maps terminal upstream statuses onto the error taxonomy.
// notFoundCode is the upstream error_code that means deleted content for the
// endpoint at hand; zero disables that check.
func (c *Client) checkStatus(resp *resty.Response, notFoundCode int) error {
	switch {
	case resp.StatusCode() == http.StatusOK:
		return nil
	case resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden:
		return fmt.Errorf("%w: upstream returned %s", model.ErrAuthenticationFailed, resp.Status())
	case resp.StatusCode() == http.StatusNotFound:
		return model.ErrStoryNotFound
	case resp.StatusCode() == http.StatusBadRequest && notFoundCode != 0:
		var body struct {
			ErrorCode int `json:"error_code"`
		}
		if json.Unmarshal(resp.Body(), &body) == nil && body.ErrorCode == notFoundCode {
			return model.ErrStoryNotFound
		}
		fallthrough
	default:
		return fmt.Errorf("%w: upstream returned %s", model.ErrUpstreamUnavailable, resp.Status())
	}
}
