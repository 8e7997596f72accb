package node

import (
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// NewUUID returns a fresh node uuid.
func NewUUID() string {
	return uuid.NewString()
}

// FidFromTitle derives a friendly identifier from a title: lowercase,
// non-alphanumeric runs collapsed to single dashes. An empty result
// (e.g. a title of only punctuation) falls back to a fresh uuid.
func FidFromTitle(title string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteByte('-')
			lastDash = true
		}
	}
	fid := strings.Trim(b.String(), "-")
	if fid == "" {
		return NewUUID()
	}
	return fid
}

// DisambiguateFid appends a short random suffix, used when a derived fid
// collides with an existing node.
func DisambiguateFid(fid string) string {
	return fid + "-" + uuid.NewString()[:8]
}
