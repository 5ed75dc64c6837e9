package platform

import "strings"

const (
	defaultTitle  = "download"
	maxTitleRunes = 120
)

var unsafeRunes = `/\:*?"<>|`

// ResolveTitle derives a human-facing filename for a completed download.
// An explicit override always wins. Short-form social platforms label
// videos through the caption, so a non-empty description is preferred over
// the extracted title there.
func ResolveTitle(override, title, description string, p Platform) string {
	name := strings.TrimSpace(override)
	if name == "" {
		name = strings.TrimSpace(title)
		if p == TikTok || p == Instagram {
			if desc := strings.TrimSpace(description); desc != "" {
				name = desc
			}
		}
	}
	if name == "" {
		name = defaultTitle
	}
	return SanitizeTitle(name)
}

// SanitizeTitle makes a title safe to use as a filename: newlines collapse
// to spaces, filesystem-unsafe characters become underscores, and the
// result is truncated to 120 characters.
func SanitizeTitle(name string) string {
	name = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(name)
	var b strings.Builder
	for _, r := range name {
		if strings.ContainsRune(unsafeRunes, r) {
			b.WriteRune('_')
		} else {
			b.WriteRune(r)
		}
	}
	runes := []rune(b.String())
	if len(runes) > maxTitleRunes {
		runes = runes[:maxTitleRunes]
	}
	return strings.TrimRight(string(runes), " \t")
}
