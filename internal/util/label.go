// Package util provides common utility functions.
package util

import (
	"regexp"
	"strings"
)

var (
	// Matches whitespace, dashes, dots, and slashes (for replacement with underscores).
	labelSeparatorRe = regexp.MustCompile(`[\s\-./\\]+`)
	// Matches anything that is not a lower-case letter, digit, or underscore.
	nonLabelRe = regexp.MustCompile(`[^a-z0-9_]`)
	// Matches multiple consecutive underscores.
	multipleUnderscoreRe = regexp.MustCompile(`_+`)
)

// NormalizeLabel converts a free-text naming label into a file-name-safe token.
// The result never contains '-', so it cannot be mistaken for a sequence suffix.
//
// Normalization rules:
//  1. Trim whitespace and lowercase
//  2. Replace spaces, dashes, dots and slashes with underscores
//  3. Remove everything outside [a-z0-9_]
//  4. Collapse multiple underscores
//  5. Trim leading/trailing underscores
//
// Examples:
//
//	"Front"          → "front"
//	"Shelf Edge"     → "shelf_edge"
//	"side-view 2"    → "side_view_2"
//	"  Ätikett!  "   → "tikett"
//	"__x__"          → "x"
func NormalizeLabel(input string) string {
	s := strings.ToLower(strings.TrimSpace(input))
	s = labelSeparatorRe.ReplaceAllString(s, "_")
	s = nonLabelRe.ReplaceAllString(s, "")
	s = multipleUnderscoreRe.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}
