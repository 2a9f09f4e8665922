package fetcher

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// nonContentSelectors lists elements stripped before rendering text.
const nonContentSelectors = "script, style, nav, header, footer, noscript, iframe, form, " +
	"a.skip-link, a[href='#main-content'], .visually-hidden-focusable"

// mainRegionSelectors are tried in order to find the page's main content.
var mainRegionSelectors = []string{
	"main",
	"article",
	"#main-content",
	"[role='main']",
}

var contentClassPattern = regexp.MustCompile(`(?i)\b[\w-]*(content|main|body)[\w-]*\b`)

// blockElements end the current line when rendering text.
var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true, "br": true,
	"dd": true, "div": true, "dl": true, "dt": true, "figcaption": true, "figure": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true, "hr": true,
	"li": true, "main": true, "ol": true, "p": true, "pre": true, "section": true,
	"table": true, "tbody": true, "thead": true, "tr": true, "ul": true,
}

// extracted is what the fetcher takes from one HTML document.
type extracted struct {
	Title        string
	Text         string
	LastModified string
}

// extractHTML parses body and renders the main region as line-oriented text.
func extractHTML(body []byte, titleSuffix *regexp.Regexp) (*extracted, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	out := &extracted{
		Title:        extractPageTitle(doc, titleSuffix),
		LastModified: extractTimeDatetime(doc),
	}

	doc.Find(nonContentSelectors).Remove()
	out.Text = renderText(mainRegion(doc))

	return out, nil
}

// extractPageTitle prefers <title>, then og:title, and strips the site suffix.
func extractPageTitle(doc *goquery.Document, suffix *regexp.Regexp) string {
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		if og, exists := doc.Find("meta[property='og:title']").Attr("content"); exists {
			title = strings.TrimSpace(og)
		}
	}

	if suffix != nil {
		title = strings.TrimSpace(suffix.ReplaceAllString(title, ""))
	}

	return title
}

func extractTimeDatetime(doc *goquery.Document) string {
	if dt, exists := doc.Find("time[datetime]").First().Attr("datetime"); exists {
		return strings.TrimSpace(dt)
	}
	return ""
}

// mainRegion returns the first matching main-content container, falling back
// to a content-classed element and then <body>.
func mainRegion(doc *goquery.Document) *goquery.Selection {
	for _, sel := range mainRegionSelectors {
		if s := doc.Find(sel).First(); s.Length() > 0 {
			return s
		}
	}

	var classed *goquery.Selection
	doc.Find("body div[class], body section[class]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		class, _ := s.Attr("class")
		if contentClassPattern.MatchString(class) {
			classed = s
			return false
		}
		return true
	})
	if classed != nil {
		return classed
	}

	return doc.Find("body").First()
}

// renderText walks the selection and emits one line per block element with
// inline whitespace collapsed.
func renderText(sel *goquery.Selection) string {
	var b strings.Builder
	for _, n := range sel.Nodes {
		renderNode(&b, n)
	}
	return b.String()
}

func renderNode(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		text := strings.Join(strings.Fields(n.Data), " ")
		if text == "" {
			if strings.TrimSpace(n.Data) == "" && len(n.Data) > 0 {
				writeSpace(b)
			}
			return
		}
		if startsWithSpace(n.Data) {
			writeSpace(b)
		}
		b.WriteString(text)
		if endsWithSpace(n.Data) {
			writeSpace(b)
		}
		return
	case html.ElementNode:
		block := blockElements[n.Data]
		if block {
			writeNewline(b)
		}
		if n.Data == "td" || n.Data == "th" {
			writeSpace(b)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			renderNode(b, c)
		}
		if block {
			writeNewline(b)
		}
	case html.DocumentNode:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			renderNode(b, c)
		}
	default:
	}
}

func writeSpace(b *strings.Builder) {
	s := b.String()
	if s == "" || strings.HasSuffix(s, " ") || strings.HasSuffix(s, "\n") {
		return
	}
	b.WriteByte(' ')
}

func writeNewline(b *strings.Builder) {
	if b.Len() == 0 || strings.HasSuffix(b.String(), "\n") {
		return
	}
	b.WriteByte('\n')
}

func startsWithSpace(s string) bool {
	return s != "" && strings.ContainsRune(" \t\n\r", rune(s[0]))
}

func endsWithSpace(s string) bool {
	return s != "" && strings.ContainsRune(" \t\n\r", rune(s[len(s)-1]))
}
