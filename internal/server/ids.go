package server

import "regexp"

var (
	docIDRe     = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,128}$`)
	nameStripRe = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)
)

// validDocID reports whether a client-supplied document id is acceptable.
// Document ids are strict: a bad one is a 400, never a silent rewrite.
func validDocID(id string) bool {
	return docIDRe.MatchString(id)
}

// sanitizeName cleans a form or panel id: invalid characters are stripped
// and an empty result falls back to the configured default.
func sanitizeName(raw, fallback string) string {
	cleaned := nameStripRe.ReplaceAllString(raw, "")
	if len(cleaned) > 64 {
		cleaned = cleaned[:64]
	}
	if cleaned == "" {
		return fallback
	}
	return cleaned
}
