// Package render turns named documents into the plain text a tab displays.
package render

import (
	"context"
	"path"
	"strings"
)

// MaxTextLength bounds rendered output so it fits a single reply.
const MaxTextLength = 4095

// Loader resolves and renders documents by base name.
type Loader interface {
	// Exists reports whether a document with this base name is available.
	Exists(name string) bool
	// Render returns the document as plain text. It fails with NOT_FOUND or RENDER_ERROR.
	Render(ctx context.Context, name string) (string, error)
}

// ResolveName reduces user input such as "docs/home.html" to the document
// base name "home".
func ResolveName(raw string) string {
	name := strings.TrimSpace(raw)
	if name == "" {
		return ""
	}
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if dot := strings.LastIndex(name, "."); dot >= 0 {
		name = name[:dot]
	}
	if len(name) > 500 {
		name = name[:500]
	}
	return name
}

// truncate bounds s to max bytes without splitting a UTF-8 sequence.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && s[cut]&0xC0 == 0x80 {
		cut--
	}
	return s[:cut]
}
