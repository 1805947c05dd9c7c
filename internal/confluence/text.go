package confluence

import (
	"fmt"
	"html"
	"strings"
	"unicode"

	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// TextOptions controls PlainText.
type TextOptions struct {
	// MaxChars truncates the output on a rune boundary; 0 disables truncation.
	MaxChars int
	// Links appends " (href)" after anchor text.
	Links bool
}

// PlainText renders Confluence storage or view markup as readable text:
// block elements become line breaks, list items get "- " bullets and
// Confluence resource references (ri:page, ri:url, ri:attachment) are
// replaced by their title, URL or file name. The second result reports
// whether the text was truncated.
func PlainText(markup string, opts TextOptions) (string, bool, error) {
	nodes, err := xhtml.ParseFragment(strings.NewReader(unwrapCDATA(markup)), &xhtml.Node{
		Type:     xhtml.ElementNode,
		DataAtom: atom.Div,
		Data:     "div",
	})
	if err != nil {
		return "", false, fmt.Errorf("parse markup: %w", err)
	}

	r := &renderer{links: opts.Links}
	for _, n := range nodes {
		r.node(n, false)
	}
	out := strings.TrimSpace(r.result())

	if opts.MaxChars > 0 {
		if runes := []rune(out); len(runes) > opts.MaxChars {
			return strings.TrimSpace(string(runes[:opts.MaxChars])), true, nil
		}
	}
	return out, false, nil
}

// unwrapCDATA drops CDATA wrappers (code and plain-text macros) so the
// HTML tokenizer sees their payload as text.
func unwrapCDATA(s string) string {
	const open, end = "<![CDATA[", "]]>"
	var b strings.Builder
	for {
		i := strings.Index(s, open)
		if i < 0 {
			break
		}
		j := strings.Index(s[i+len(open):], end)
		if j < 0 {
			break
		}
		b.WriteString(s[:i])
		b.WriteString(s[i+len(open) : i+len(open)+j])
		s = s[i+len(open)+j+len(end):]
	}
	b.WriteString(s)
	return b.String()
}

// renderer accumulates text while tracking pending whitespace and the
// number of newlines already emitted, so blocks never stack blank lines.
type renderer struct {
	sb         strings.Builder
	links      bool
	depth      int // list nesting
	space      bool
	atLineHead bool
	newlines   int
}

var refAttrs = map[string]string{
	"ri:url":        "ri:value",
	"ri:page":       "ri:content-title",
	"ri:attachment": "ri:filename",
}

func (r *renderer) node(n *xhtml.Node, pre bool) {
	switch n.Type {
	case xhtml.TextNode:
		r.text(n.Data, pre)
	case xhtml.ElementNode:
		r.element(n, pre)
	default:
		r.children(n, pre)
	}
}

func (r *renderer) children(n *xhtml.Node, pre bool) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		r.node(c, pre)
	}
}

func (r *renderer) element(n *xhtml.Node, pre bool) {
	tag := strings.ToLower(strings.TrimSpace(n.Data))
	inner := pre || tag == "pre" || tag == "code" || tag == "ac:plain-text-body"

	switch tag {
	case "br":
		r.breakLines(1)
		return
	case "ul", "ol":
		r.depth++
		r.children(n, inner)
		r.depth--
		r.breakLines(1)
		return
	case "li":
		r.breakLines(1)
		if r.depth > 1 {
			r.sb.WriteString(strings.Repeat("  ", r.depth-1))
		}
		r.sb.WriteString("- ")
		r.space, r.atLineHead, r.newlines = false, false, 0
		r.children(n, inner)
		r.breakLines(1)
		return
	}

	block := isBlock(tag)
	if block {
		r.breakLines(1)
	}
	if key, ok := refAttrs[tag]; ok {
		if v := attr(n, key); v != "" {
			r.text(v, pre)
		}
	}
	r.children(n, inner)
	if tag == "a" && r.links {
		if href := attr(n, "href"); href != "" {
			r.text(" ("+href+")", false)
		}
	}
	if block {
		r.breakLines(2)
	}
}

func isBlock(tag string) bool {
	switch tag {
	case "p", "div", "section", "article", "header", "footer",
		"h1", "h2", "h3", "h4", "h5", "h6",
		"pre", "blockquote",
		"table", "thead", "tbody", "tfoot", "tr", "th", "td",
		"ac:structured-macro", "ac:rich-text-body", "ac:plain-text-body":
		return true
	}
	return false
}

func attr(n *xhtml.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

func (r *renderer) text(s string, pre bool) {
	if s == "" {
		return
	}
	s = strings.ReplaceAll(html.UnescapeString(s), "\u00a0", " ")

	if pre {
		if r.space {
			r.sb.WriteByte(' ')
		}
		r.sb.WriteString(s)
		r.space = false
		r.newlines = len(s) - len(strings.TrimRight(s, "\n"))
		r.atLineHead = r.newlines > 0
		return
	}

	for _, ch := range s {
		if unicode.IsSpace(ch) {
			r.space = true
			continue
		}
		if r.space && r.sb.Len() > 0 && !r.atLineHead {
			r.sb.WriteByte(' ')
		}
		r.space, r.atLineHead, r.newlines = false, false, 0
		r.sb.WriteRune(ch)
	}
}

// breakLines makes sure at least n newlines end the output.
func (r *renderer) breakLines(n int) {
	r.space = false
	for r.newlines < n {
		r.sb.WriteByte('\n')
		r.newlines++
	}
	r.atLineHead = true
}

func (r *renderer) result() string {
	lines := strings.Split(r.sb.String(), "\n")
	out := make([]string, 0, len(lines))
	blank := 0
	for _, l := range lines {
		l = strings.TrimRightFunc(l, unicode.IsSpace)
		if l == "" {
			blank++
			if blank > 2 {
				continue
			}
		} else {
			blank = 0
		}
		out = append(out, l)
	}
	return strings.Join(out, "\n")
}
