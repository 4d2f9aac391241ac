package render

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Blogger themes and readers' dark-mode extensions override ordinary CSS, so
// every element carries its critical declarations inline with !important.
var headingSizes = map[atom.Atom]string{
	atom.H2: "26px",
	atom.H3: "22px",
	atom.H4: "19px",
	atom.H5: "17px",
	atom.H6: "16px",
}

// dropped elements are removed together with their content.
var dropped = map[atom.Atom]bool{
	atom.Script: true, atom.Style: true, atom.Iframe: true, atom.Object: true,
	atom.Embed: true, atom.Form: true, atom.Input: true, atom.Button: true,
	atom.Select: true, atom.Textarea: true, atom.Noscript: true, atom.Template: true,
	atom.Svg: true, atom.Math: true, atom.Head: true, atom.Title: true, atom.Meta: true,
	atom.Link: true, atom.Frame: true, atom.Frameset: true,
}

// allowed maps source elements to the element written out. Anything else is
// unwrapped: its children are kept, the tag is not.
var allowed = map[atom.Atom]atom.Atom{
	atom.P: atom.P, atom.Br: atom.Br, atom.Hr: atom.Hr,
	atom.H1: atom.H2, atom.H2: atom.H2, atom.H3: atom.H3, atom.H4: atom.H4, atom.H5: atom.H5, atom.H6: atom.H6,
	atom.Ul: atom.Ul, atom.Ol: atom.Ol, atom.Li: atom.Li,
	atom.Strong: atom.Strong, atom.B: atom.Strong, atom.Em: atom.Em, atom.I: atom.Em,
	atom.Blockquote: atom.Blockquote, atom.Code: atom.Code, atom.Pre: atom.Pre,
	atom.A: atom.A, atom.Img: atom.Img,
	atom.Table: atom.Table, atom.Thead: atom.Thead, atom.Tbody: atom.Tbody,
	atom.Tr: atom.Tr, atom.Th: atom.Th, atom.Td: atom.Td,
}

type styler struct {
	theme Theme
}

func (s styler) style(a atom.Atom) string {
	text := fmt.Sprintf("color:%s !important;background-color:transparent !important;", textColor)
	switch a {
	case atom.P:
		return text + "font-size:18px !important;line-height:1.8 !important;margin:0 0 1.2em 0 !important;"
	case atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		return fmt.Sprintf("color:%s !important;background-color:transparent !important;font-size:%s !important;font-weight:700 !important;margin:1.6em 0 0.6em 0 !important;", headingColor, headingSizes[a])
	case atom.Ul, atom.Ol:
		return text + "padding-left:1.5em !important;margin:0 0 1.2em 0 !important;"
	case atom.Li:
		return text + "font-size:18px !important;line-height:1.8 !important;margin:0 0 0.4em 0 !important;"
	case atom.Strong, atom.Em, atom.Td, atom.Th:
		return text
	case atom.A:
		return fmt.Sprintf("color:%s !important;background-color:transparent !important;text-decoration:underline !important;", s.theme.Primary)
	case atom.Blockquote:
		return text + fmt.Sprintf("border-left:4px solid %s !important;padding:0.4em 1em !important;margin:0 0 1.2em 0 !important;", s.theme.Primary)
	case atom.Code:
		return fmt.Sprintf("color:%s !important;background-color:%s !important;padding:2px 6px !important;border-radius:4px !important;", textColor, codeBackground)
	case atom.Pre:
		return fmt.Sprintf("color:%s !important;background-color:%s !important;padding:12px !important;overflow-x:auto !important;white-space:pre-wrap !important;", textColor, codeBackground)
	case atom.Img:
		return "display:block !important;max-width:100% !important;height:auto !important;margin:1em auto !important;"
	case atom.Table:
		return text + "border-collapse:collapse !important;width:100% !important;margin:0 0 1.2em 0 !important;"
	default:
		return ""
	}
}

// sanitizeFragment parses untrusted HTML and writes back only allowlisted
// elements and attributes, each with forced inline styles.
func sanitizeFragment(src string, theme Theme) (string, error) {
	parent := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(src), parent)
	if err != nil {
		return "", err
	}
	s := styler{theme: theme}
	var buf bytes.Buffer
	for _, n := range nodes {
		for _, clean := range s.clean(n) {
			if err := html.Render(&buf, clean); err != nil {
				return "", err
			}
		}
	}
	return buf.String(), nil
}

func (s styler) clean(n *html.Node) []*html.Node {
	switch n.Type {
	case html.TextNode:
		return []*html.Node{{Type: html.TextNode, Data: n.Data}}
	case html.ElementNode:
		if dropped[n.DataAtom] {
			return nil
		}
		var children []*html.Node
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			children = append(children, s.clean(c)...)
		}
		target, ok := allowed[n.DataAtom]
		if !ok {
			return children
		}
		attrs, keep := s.attributes(n, target)
		if !keep {
			return children
		}
		out := &html.Node{Type: html.ElementNode, DataAtom: target, Data: target.String(), Attr: attrs}
		if !isVoid(target) {
			for _, c := range children {
				out.AppendChild(c)
			}
		}
		return []*html.Node{out}
	default:
		// comments, doctypes
		return nil
	}
}

// attributes returns the attributes to keep; keep is false when the element
// is useless without a rejected attribute (a link or image with an unsafe URL).
func (s styler) attributes(n *html.Node, target atom.Atom) ([]html.Attribute, bool) {
	var attrs []html.Attribute
	switch target {
	case atom.A:
		href, ok := safeURL(attr(n, "href"), "http", "https", "mailto")
		if !ok {
			return nil, false
		}
		attrs = append(attrs,
			html.Attribute{Key: "href", Val: href},
			html.Attribute{Key: "rel", Val: "noopener nofollow"},
		)
	case atom.Img:
		src, ok := safeURL(attr(n, "src"), "https")
		if !ok {
			return nil, false
		}
		attrs = append(attrs,
			html.Attribute{Key: "src", Val: src},
			html.Attribute{Key: "alt", Val: attr(n, "alt")},
			html.Attribute{Key: "loading", Val: "lazy"},
		)
	case atom.Th, atom.Td:
		if span := attr(n, "colspan"); isSmallInt(span) {
			attrs = append(attrs, html.Attribute{Key: "colspan", Val: span})
		}
	}
	if st := s.style(target); st != "" {
		attrs = append(attrs, html.Attribute{Key: "style", Val: st})
	}
	return attrs, true
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

func safeURL(raw string, schemes ...string) (string, bool) {
	if raw == "" {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	scheme := strings.ToLower(u.Scheme)
	for _, s := range schemes {
		if scheme == s {
			return u.String(), true
		}
	}
	return "", false
}

func isSmallInt(s string) bool {
	if s == "" || len(s) > 2 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isVoid(a atom.Atom) bool {
	switch a {
	case atom.Br, atom.Hr, atom.Img:
		return true
	}
	return false
}

// plainText flattens s to text with collapsed whitespace.
func plainText(s string) string {
	nodes, err := html.ParseFragment(strings.NewReader(s), &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div})
	if err != nil {
		return strings.Join(strings.Fields(s), " ")
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && dropped[n.DataAtom] {
			return
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
