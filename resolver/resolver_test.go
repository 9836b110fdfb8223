package resolver

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wattpad-downloader/model"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name string
		in   string
		kind model.TargetKind
		id   string
	}{
		{"bare numeric id", "12345678", model.TargetStory, "12345678"},
		{"story path", "https://www.wattpad.com/story/12345678-some-story-title", model.TargetStory, "12345678"},
		{"story path no scheme", "wattpad.com/story/98765", model.TargetStory, "98765"},
		{"stories path", "https://www.wattpad.com/stories/4242", model.TargetStory, "4242"},
		{"story path with query", "https://www.wattpad.com/story/111-title?utm_source=web", model.TargetStory, "111"},
		{"list path", "https://www.wattpad.com/list/5550123-my-reading-list", model.TargetList, "5550123"},
		{"part path with slug", "https://www.wattpad.com/777001-chapter-one-the-beginning", model.TargetPart, "777001"},
		{"part path with tracking", "https://www.wattpad.com/777002-chapter-two?utm_medium=link&wp_page=reading", model.TargetPart, "777002"},
		{"part path underscore slug", "www.wattpad.com/888_epilogue", model.TargetPart, "888"},
		{"part path bare digits", "https://wattpad.com/999/", model.TargetPart, "999"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, err := Resolve(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, target.Kind)
			assert.Equal(t, tt.id, target.ID)
		})
	}
}

func TestResolveInvalid(t *testing.T) {
	for _, in := range []string{
		"",
		"   ",
		"not-a-story",
		"https://www.wattpad.com/user/someone",
		"https://www.wattpad.com/",
		"story/abc",
	} {
		t.Run(in, func(t *testing.T) {
			_, err := Resolve(in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, model.ErrInvalidIdentifier))
		})
	}
}

func TestResolveDeterministic(t *testing.T) {
	a, err := Resolve("https://www.wattpad.com/story/123-a-title?src=home")
	require.NoError(t, err)
	b, err := Resolve("https://www.wattpad.com/story/123-a-title?src=home")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
