package generate

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/JonMunkholm/certgen/internal/tabular"
)

// fallbackName is used when a row has no usable name.
const fallbackName = "participant"

// maxNameLen caps the name part of a file name, in runes.
const maxNameLen = 80

// OutputName returns the file name for the row at index (zero-based):
// certificate_<index+1>_<name>.pdf, where name is the row's value in
// nameColumn or "participant".
func OutputName(index int, row tabular.Row, nameColumn string) string {
	name := ""
	if nameColumn != "" {
		name = sanitizeName(row[nameColumn])
	}
	if name == "" {
		name = fallbackName
	}
	return fmt.Sprintf("certificate_%d_%s.pdf", index+1, name)
}

// sanitizeName replaces characters that are unsafe in file names or archive
// paths with '_' and trims leading and trailing dots and spaces.
func sanitizeName(s string) string {
	var b strings.Builder
	n := 0
	for _, r := range s {
		if n == maxNameLen {
			break
		}
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r), unicode.IsControl(r):
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
		n++
	}
	return strings.Trim(b.String(), ". ")
}
