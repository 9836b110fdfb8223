package utils

import (
	"regexp"
	"strings"
)

var (
	slugInvalid  = regexp.MustCompile(`[^\w\s-]`)
	slugCollapse = regexp.MustCompile(`[-\s]+`)
)

// Slugify lowercases the value, drops everything that is not alphanumeric,
// underscore, hyphen or whitespace, and collapses runs of whitespace and
// hyphens into single hyphens. Same title in gives the same slug out.
func Slugify(input string) string {
	cleaned := slugInvalid.ReplaceAllString(strings.ToLower(input), "")
	cleaned = slugCollapse.ReplaceAllString(cleaned, "-")
	return strings.Trim(cleaned, "-_")
}
