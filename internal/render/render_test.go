package render

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grovetools/tabd/command"
	"github.com/grovetools/tabd/config"
	"github.com/grovetools/tabd/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func writeDocs(t *testing.T, docs map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range docs {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	return dir
}

func TestResolveName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"home", "home"},
		{"home.html", "home"},
		{"docs/about.html", "about"},
		{"/abs/path/contact", "contact"},
		{"  spaced  ", "spaced"},
		{"archive.tar.gz", "archive.tar"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveName(tt.input))
		})
	}
}

func TestHTMLLoaderRender(t *testing.T) {
	dir := writeDocs(t, map[string]string{
		"home.html": `<!DOCTYPE html><html><head><title>Home</title><style>p{}</style></head>
<body><h1>Welcome</h1><p>Hello   <b>world</b>.</p><script>alert(1)</script>
<ul><li>One</li><li>Two</li></ul><p>See <a href="about.html">about</a></p></body></html>`,
	})
	l := NewHTMLLoader(dir)

	assert.True(t, l.Exists("home"))
	assert.False(t, l.Exists("missing"))
	assert.False(t, l.Exists("../home"))

	text, err := l.Render(context.Background(), "home")
	require.NoError(t, err)
	assert.Equal(t, "Welcome\nHello world.\n* One\n* Two\nSee about [about.html]\n", text)
	assert.NotContains(t, text, "alert")
}

func TestHTMLLoaderNotFoundSuggestion(t *testing.T) {
	dir := writeDocs(t, map[string]string{
		"about.html":   "<p>About</p>",
		"contact.html": "<p>Contact</p>",
	})
	l := NewHTMLLoader(dir)

	docs, err := l.Documents()
	require.NoError(t, err)
	assert.Equal(t, []string{"about", "contact"}, docs)

	_, err = l.Render(context.Background(), "abuot")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeNotFound))

	var tabErr *errors.TabError
	require.ErrorAs(t, err, &tabErr)
	assert.Equal(t, "about", tabErr.Details["suggestion"])

	assert.Equal(t, "", l.Suggest("zzzzzzzz"))
}

func TestHTMLLoaderRejectsBinary(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}
	dir := writeDocs(t, map[string]string{"image.html": string(png)})

	_, err := NewHTMLLoader(dir).Render(context.Background(), "image")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeRenderError))
}

func TestRenderTruncates(t *testing.T) {
	body := "<p>" + strings.Repeat("word ", 2000) + "</p>"
	dir := writeDocs(t, map[string]string{"long.html": body})

	text, err := NewHTMLLoader(dir).Render(context.Background(), "long")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(text), MaxTextLength)
}

func TestHTMLToText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"br and hr", "<p>a<br>b</p><hr><p>c</p>", "a\nb\n----------------------------------------\nc\n"},
		{"pre keeps spacing", "<pre>x  y</pre>", "x  y\n"},
		{"image alt", `<p>logo <img alt="tabd"></p>`, "logo [tabd]\n"},
		{"fragment links are dropped", `<a href="#top">top</a>`, "top\n"},
		{"table cells", "<table><tr><td>a</td><td>b</td></tr></table>", "a b\n"},
		{"empty document", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := html.Parse(strings.NewReader(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, HTMLToText(doc))
		})
	}
}

// catExecutor stands in for w3m by printing the file it was asked to dump.
type catExecutor struct{}

func (catExecutor) CommandContext(ctx context.Context, name string, args ...string) *exec.Cmd {
	return exec.CommandContext(ctx, "cat", args[len(args)-1])
}

func TestCommandLoader(t *testing.T) {
	dir := writeDocs(t, map[string]string{"home.html": "dumped home"})
	l := NewCommandLoaderWithBuilder(dir, "w3m", command.NewSafeBuilderWithExecutor(catExecutor{}))

	text, err := l.Render(context.Background(), "home")
	require.NoError(t, err)
	assert.Equal(t, "dumped home\n", text)

	_, err = l.Render(context.Background(), "nope")
	assert.True(t, errors.Is(err, errors.ErrCodeNotFound))
}

func TestCommandLoaderFailure(t *testing.T) {
	dir := writeDocs(t, map[string]string{"home.html": "x"})
	l := NewCommandLoader(dir, "tabd-renderer-that-does-not-exist")

	_, err := l.Render(context.Background(), "home")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeRenderError))
}

func TestNewFromConfig(t *testing.T) {
	_, ok := NewFromConfig(config.RenderConfig{Dir: ".", Engine: config.EngineHTML}).(*HTMLLoader)
	assert.True(t, ok)

	_, ok = NewFromConfig(config.RenderConfig{Dir: ".", Engine: config.EngineExternal, Command: "w3m"}).(*CommandLoader)
	assert.True(t, ok)
}
