package audio

import (
	"path/filepath"
	"regexp"
	"strings"
)

var (
	unsafeFilenameChars = regexp.MustCompile(`[^\w\-.]`)
	repeatedUnderscores = regexp.MustCompile(`_{2,}`)
)

// SanitizeFilename strips directories and replaces everything except
// letters, digits, '_', '-' and '.' with '_'
func SanitizeFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	if base == "." || base == "/" {
		return ""
	}
	base = unsafeFilenameChars.ReplaceAllString(base, "_")
	return repeatedUnderscores.ReplaceAllString(base, "_")
}

// Extension returns the lower-case extension of a filename, including the dot
func Extension(name string) string {
	return strings.ToLower(filepath.Ext(SanitizeFilename(name)))
}
