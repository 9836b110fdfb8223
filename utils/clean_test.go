package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"The Midnight Library", "the-midnight-library"},
		{"  Hello,   World!  ", "hello-world"},
		{"Café & Croissants", "caf-croissants"},
		{"already-slugged", "already-slugged"},
		{"---", ""},
		{"", ""},
		{"Book: Part 1 / Chapter 2", "book-part-1-chapter-2"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Slugify(tc.in), "input %q", tc.in)
	}
}
