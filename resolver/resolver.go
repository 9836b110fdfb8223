// Package resolver turns user-supplied Wattpad URLs and bare IDs into typed
// targets. It is pure and deterministic: the result feeds build fingerprints.
package resolver

import (
	"fmt"
	"regexp"
	"strings"

	"wattpad-downloader/model"
)

var (
	storyPathRe = regexp.MustCompile(`/(?:story|stories)/(\d+)`)
	listPathRe  = regexp.MustCompile(`/list/(\d+)`)
	numericRe   = regexp.MustCompile(`^\d+$`)
	partPathRe  = regexp.MustCompile(`^(\d+)(?:[-_].*)?$`)
)

// Resolve parses raw into a target. A pure numeric string is a story ID; a
// story or list path marker yields that kind; anything that reduces to a
// numeric token after stripping host and slug is a part.
func Resolve(raw string) (model.Target, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return model.Target{}, fmt.Errorf("%w: empty input", model.ErrInvalidIdentifier)
	}

	if numericRe.MatchString(s) {
		return model.Target{Kind: model.TargetStory, ID: s}, nil
	}

	s = stripQuery(s)

	if m := storyPathRe.FindStringSubmatch(s); m != nil {
		return model.Target{Kind: model.TargetStory, ID: m[1]}, nil
	}
	if m := listPathRe.FindStringSubmatch(s); m != nil {
		return model.Target{Kind: model.TargetList, ID: m[1]}, nil
	}

	// Bare part URLs look like wattpad.com/12345-some-slug.
	if tail, ok := stripHost(s); ok {
		if m := partPathRe.FindStringSubmatch(tail); m != nil {
			return model.Target{Kind: model.TargetPart, ID: m[1]}, nil
		}
	}

	return model.Target{}, fmt.Errorf("%w: %q", model.ErrInvalidIdentifier, raw)
}

func stripQuery(s string) string {
	for _, sep := range []string{"?", "#"} {
		if i := strings.Index(s, sep); i >= 0 {
			s = s[:i]
		}
	}
	return s
}

// stripHost removes the scheme and wattpad host prefix, returning the first
// path segment. Reports false when the input carries no recognizable host.
func stripHost(s string) (string, bool) {
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	host, path, ok := strings.Cut(s, "/")
	if !ok {
		return "", false
	}
	host = strings.TrimPrefix(host, "www.")
	if !strings.HasPrefix(host, "wattpad.") {
		return "", false
	}
	seg, _, _ := strings.Cut(strings.Trim(path, "/"), "/")
	return seg, seg != ""
}
