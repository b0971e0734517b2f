package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/gabriel-vasile/mimetype"
	"github.com/grovetools/tabd/command"
	"github.com/grovetools/tabd/errors"
	"golang.org/x/net/html"
)

// DocumentExt is the extension documents are stored with.
const DocumentExt = ".html"

// HTMLLoader renders <dir>/<name>.html documents in-process.
type HTMLLoader struct {
	dir     string
	builder *command.SafeBuilder
}

// NewHTMLLoader creates a loader reading documents from dir.
func NewHTMLLoader(dir string) *HTMLLoader {
	return &HTMLLoader{dir: dir, builder: command.NewSafeBuilder()}
}

// Dir returns the document directory.
func (l *HTMLLoader) Dir() string { return l.dir }

// Path returns the file backing a document name.
func (l *HTMLLoader) Path(name string) string {
	return filepath.Join(l.dir, name+DocumentExt)
}

// Exists reports whether the document is present and its name is safe.
func (l *HTMLLoader) Exists(name string) bool {
	if err := l.builder.Validate(command.PageName, name); err != nil {
		return false
	}
	info, err := os.Stat(l.Path(name))
	return err == nil && !info.IsDir()
}

// Documents lists available document names, sorted.
func (l *HTMLLoader) Documents() ([]string, error) {
	matches, err := doublestar.Glob(os.DirFS(l.dir), "*"+DocumentExt)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, strings.TrimSuffix(m, DocumentExt))
	}
	sort.Strings(names)
	return names, nil
}

// Suggest returns the closest document name to name, or "" if nothing is close.
func (l *HTMLLoader) Suggest(name string) string {
	docs, err := l.Documents()
	if err != nil {
		return ""
	}
	best, bestDist := "", -1
	for _, doc := range docs {
		d := levenshtein.ComputeDistance(strings.ToLower(name), strings.ToLower(doc))
		if bestDist == -1 || d < bestDist {
			best, bestDist = doc, d
		}
	}
	limit := len(name) / 3
	if limit < 2 {
		limit = 2
	}
	if bestDist < 0 || bestDist > limit {
		return ""
	}
	return best
}

// Render parses the document and converts it to plain text.
func (l *HTMLLoader) Render(ctx context.Context, name string) (string, error) {
	if !l.Exists(name) {
		notFound := errors.PageNotFound(name)
		if suggestion := l.Suggest(name); suggestion != "" {
			notFound = notFound.WithDetail("suggestion", suggestion)
		}
		return "", notFound
	}
	if err := ctx.Err(); err != nil {
		return "", errors.RenderFailed(name, err)
	}

	p := l.Path(name)
	mtype, err := mimetype.DetectFile(p)
	if err != nil {
		return "", errors.RenderFailed(name, err)
	}
	if !isText(mtype) {
		return "", errors.RenderFailed(name, fmt.Errorf("unsupported document type %s", mtype.String()))
	}

	f, err := os.Open(p)
	if err != nil {
		return "", errors.RenderFailed(name, err)
	}
	defer f.Close()

	doc, err := html.Parse(f)
	if err != nil {
		return "", errors.RenderFailed(name, err)
	}
	return truncate(HTMLToText(doc), MaxTextLength), nil
}

// isText accepts text/html and anything descending from text/plain.
func isText(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		if m.Is("text/html") || m.Is("text/plain") {
			return true
		}
	}
	return false
}
