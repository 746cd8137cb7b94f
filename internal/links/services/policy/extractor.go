package policy

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/haukened/linkguard/internal/links/domain"
)

// markdown is a CommonMark parser; it is safe for concurrent use.
var markdown parser.Parser = goldmark.DefaultParser()

// ExtractLinks returns every anchor found in content, in document order.
//
// HTML <a> elements yield their first href (empty when missing) and their
// whitespace-collapsed inner text. An <a> opened while another is still open
// closes the earlier one, and an anchor left open at the end of input is
// flushed. Text outside of anchors is parsed as CommonMark, yielding inline,
// reference and autolinks; images are skipped. Script and style bodies are
// ignored. Duplicates are kept.
func ExtractLinks(content string) []domain.ExtractedLink {
	links := make([]domain.ExtractedLink, 0)
	if content == "" {
		return links
	}

	var (
		z       = html.NewTokenizer(strings.NewReader(content))
		open    bool
		current domain.ExtractedLink
		inner   strings.Builder
		rawText bool
		md      []byte
	)
	flushMarkdown := func() {
		links = append(links, markdownLinks(md)...)
		md = md[:0]
	}
	flush := func() {
		if !open {
			return
		}
		current.AnchorText = collapseSpace(inner.String())
		links = append(links, current)
		open = false
		inner.Reset()
	}

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			flush()
			flushMarkdown()
			return links
		case html.StartTagToken, html.SelfClosingTagToken:
			// Token lowercases the tag in place, so keep the raw bytes first.
			raw := append([]byte(nil), z.Raw()...)
			tok := z.Token()
			if tok.DataAtom == 0 && strings.ContainsAny(tok.Data, ":@") {
				// <https://...> and <user@host> are markdown autolinks, not tags.
				if open {
					inner.Write(raw)
				} else {
					md = append(md, raw...)
				}
				continue
			}
			if !open && !rawText {
				md = append(md, '\n')
			}
			switch tok.DataAtom {
			case atom.A:
				flush()
				flushMarkdown()
				current = domain.ExtractedLink{URL: attr(tok, "href")}
				open = true
				if tt == html.SelfClosingTagToken {
					flush()
				}
			case atom.Script, atom.Style:
				rawText = tt == html.StartTagToken
			}
		case html.EndTagToken:
			tok := z.Token()
			if !open && !rawText {
				md = append(md, '\n')
			}
			switch tok.DataAtom {
			case atom.A:
				flush()
			case atom.Script, atom.Style:
				rawText = false
			}
		case html.TextToken:
			if rawText {
				continue
			}
			if open {
				inner.WriteString(z.Token().Data)
				continue
			}
			md = append(md, z.Raw()...)
		}
	}
}

// markdownLinks parses src as CommonMark and returns its links in order.
func markdownLinks(src []byte) []domain.ExtractedLink {
	src = dedent(src)
	if len(strings.TrimSpace(string(src))) == 0 {
		return nil
	}
	var out []domain.ExtractedLink
	doc := markdown.Parse(text.NewReader(src))
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n := n.(type) {
		case *ast.Image:
			return ast.WalkSkipChildren, nil
		case *ast.Link:
			out = append(out, domain.ExtractedLink{
				URL:        html.UnescapeString(string(n.Destination)),
				AnchorText: collapseSpace(html.UnescapeString(inlineText(n, src))),
			})
			return ast.WalkSkipChildren, nil
		case *ast.AutoLink:
			label := string(n.Label(src))
			link := string(n.URL(src))
			if n.AutoLinkType == ast.AutoLinkEmail && !strings.HasPrefix(strings.ToLower(link), "mailto:") {
				link = "mailto:" + link
			}
			out = append(out, domain.ExtractedLink{URL: html.UnescapeString(link), AnchorText: label})
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return out
}

// inlineText concatenates the text under n; line breaks become spaces.
func inlineText(n ast.Node, src []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch c := c.(type) {
		case *ast.Text:
			b.Write(c.Segment.Value(src))
			if c.SoftLineBreak() || c.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(c.Value)
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}

// dedent strips leading blanks from every line. Text lifted out of indented
// HTML must not turn into indented code blocks.
func dedent(src []byte) []byte {
	out := make([]byte, 0, len(src))
	lineStart := true
	for _, c := range src {
		if lineStart && (c == ' ' || c == '\t') {
			continue
		}
		lineStart = c == '\n'
		out = append(out, c)
	}
	return out
}

// attr returns the value of the first attribute named key.
func attr(tok html.Token, key string) string {
	for _, a := range tok.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val
		}
	}
	return ""
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
