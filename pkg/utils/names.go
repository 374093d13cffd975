package utils

import (
	"path/filepath"
	"strings"
)

var quoteReplacer = strings.NewReplacer(
	`"`, "",
	`'`, "",
	"“", "",
	"”", "",
	"‘", "",
	"’", "",
	"`", "",
)

// SanitizeName strips quotation characters and surrounding whitespace from a
// user supplied display name.
func SanitizeName(name string) string {
	return strings.TrimSpace(quoteReplacer.Replace(name))
}

// NormalizeExtension returns ext lower-cased and without a leading dot.
func NormalizeExtension(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// HasExtension reports whether filename ends with the given extension,
// ignoring case.
func HasExtension(filename, ext string) bool {
	got := NormalizeExtension(filepath.Ext(filename))
	return got != "" && got == NormalizeExtension(ext)
}

// EnsureExtension appends "."+ext to name unless it already carries it.
func EnsureExtension(name, ext string) string {
	if HasExtension(name, ext) {
		return name
	}
	return name + "." + NormalizeExtension(ext)
}

// CanonicalName is the filename without its extension. It is the join key
// between the fingerprint index and the identifier store.
func CanonicalName(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
