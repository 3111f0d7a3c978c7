package localfs

import (
	"regexp"
	"strings"
)

var (
	disallowedChars = regexp.MustCompile(`[^\w\s-]`)
	separatorRuns   = regexp.MustCompile(`[\s-]+`)
)

const maxFilenameComponent = 50

// sanitizeFilename turns a command or package name into a safe
// filename component: drop anything outside word characters, spaces,
// and hyphens, collapse separator runs to underscores, and cap the
// length.
func sanitizeFilename(name string) string {
	cleaned := disallowedChars.ReplaceAllString(name, "")
	cleaned = separatorRuns.ReplaceAllString(cleaned, "_")
	cleaned = strings.Trim(cleaned, "_")
	if cleaned == "" {
		cleaned = "unnamed"
	}
	if len(cleaned) > maxFilenameComponent {
		cleaned = cleaned[:maxFilenameComponent]
	}
	return cleaned
}
