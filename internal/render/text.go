package render

import (
	"strings"

	"golang.org/x/net/html"
)

var skippedElements = map[string]bool{
	"head":     true,
	"script":   true,
	"style":    true,
	"noscript": true,
	"iframe":   true,
	"embed":    true,
	"object":   true,
	"svg":      true,
	"template": true,
}

var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"div": true, "dl": true, "dt": true, "dd": true, "fieldset": true,
	"figure": true, "footer": true, "form": true, "h1": true, "h2": true,
	"h3": true, "h4": true, "h5": true, "h6": true, "header": true,
	"hr": true, "li": true, "main": true, "nav": true, "ol": true,
	"p": true, "pre": true, "section": true, "table": true, "tr": true,
	"ul": true, "title": true,
}

// HTMLToText flattens a parsed document into readable plain text: block
// elements start new lines, list items are bulleted and links keep their
// target as "text [href]".
func HTMLToText(doc *html.Node) string {
	w := &textWriter{}
	w.walk(doc, false)
	return w.String()
}

type textWriter struct {
	b       strings.Builder
	pending bool // a line break is owed before the next text
	space   bool // a space is owed before the next word

	lineStart bool
}

func (w *textWriter) walk(n *html.Node, pre bool) {
	switch n.Type {
	case html.CommentNode, html.DoctypeNode:
		return
	case html.TextNode:
		w.text(n.Data, pre)
		return
	case html.ElementNode:
		tag := strings.ToLower(n.Data)
		if skippedElements[tag] {
			return
		}
		switch tag {
		case "br":
			w.newline()
			return
		case "hr":
			w.newline()
			w.write(strings.Repeat("-", 40))
			w.newline()
			return
		case "img":
			if alt := attr(n, "alt"); alt != "" {
				w.text("["+alt+"]", false)
			}
			return
		}
		if blockElements[tag] {
			w.newline()
		}
		if tag == "li" {
			w.write("* ")
		}
		if tag == "td" || tag == "th" {
			w.space = true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			w.walk(c, pre || tag == "pre")
		}
		if tag == "a" {
			if href := attr(n, "href"); href != "" && !strings.HasPrefix(href, "#") {
				w.space = true
				w.text("["+href+"]", false)
			}
		}
		if blockElements[tag] {
			w.newline()
		}
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c, pre)
	}
}

func (w *textWriter) text(s string, pre bool) {
	if pre {
		w.write(s)
		return
	}
	words := strings.Fields(s)
	if len(words) == 0 {
		if s != "" {
			w.space = true
		}
		return
	}
	if startsWithSpace(s) {
		w.space = true
	}
	for i, word := range words {
		if i > 0 {
			w.space = true
		}
		w.write(word)
	}
	if endsWithSpace(s) {
		w.space = true
	}
}

func (w *textWriter) write(s string) {
	if w.pending {
		if w.b.Len() > 0 {
			w.b.WriteString("\n")
			w.lineStart = true
		}
		w.pending = false
		w.space = false
	}
	if w.space {
		if w.b.Len() > 0 && !w.lineStart {
			w.b.WriteString(" ")
		}
		w.space = false
	}
	w.b.WriteString(s)
	w.lineStart = strings.HasSuffix(s, "\n")
}

func (w *textWriter) newline() {
	w.pending = true
}

func (w *textWriter) String() string {
	lines := strings.Split(w.b.String(), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	if len(out) == 0 {
		return ""
	}
	return strings.Join(out, "\n") + "\n"
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func startsWithSpace(s string) bool {
	return len(s) > 0 && strings.TrimLeft(s[:1], " \t\r\n") == ""
}

func endsWithSpace(s string) bool {
	return len(s) > 0 && strings.TrimRight(s[len(s)-1:], " \t\r\n") == ""
}
