package services

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// handleKeyedPlatforms are platforms whose usernames are already globally
// unique, so identity is keyed directly on the handle and the face-match
// candidate search is bypassed entirely.
var handleKeyedPlatforms = map[string]bool{
	"instagram": true,
}

// IsHandleKeyed reports whether a platform identifies people by a unique
// handle rather than by name+age heuristics.
func IsHandleKeyed(platform string) bool {
	return handleKeyedPlatforms[strings.ToLower(strings.TrimSpace(platform))]
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeName case-folds, strips accents and drops everything that is not
// a letter or digit. "Ana Clara" and "ána-clara" normalize identically.
func NormalizeName(name string) string {
	folded := strings.ToLower(strings.TrimSpace(name))
	if stripped, _, err := transform.String(stripMarks, folded); err == nil {
		folded = stripped
	}

	var b strings.Builder
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// PersonIdentifier derives the stable person id. Handle-keyed platforms use
// handle+platform; everything else uses normalizedName+age?+platform. Age is
// included only when known, so a later report without age will not merge
// with an aged record by id alone. That is an acknowledged limitation of the
// derivation, not something silently patched over.
func PersonIdentifier(name, platform, username string, age *int) string {
	platform = strings.ToLower(strings.TrimSpace(platform))

	if IsHandleKeyed(platform) && username != "" {
		return fmt.Sprintf("%s_%s", NormalizeName(username), platform)
	}

	if age != nil {
		return fmt.Sprintf("%s_%d_%s", NormalizeName(name), *age, platform)
	}
	return fmt.Sprintf("%s_%s", NormalizeName(name), platform)
}
