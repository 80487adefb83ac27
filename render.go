package main

import (
	"bytes"
	"html"
	"regexp"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	emoji "github.com/yuin/goldmark-emoji"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

// Bodies are stored as Markdown and rendered per response. Raw HTML is
// let through goldmark and removed by bodyPolicy afterwards.
var (
	markdown = goldmark.New(
		goldmark.WithExtensions(
			emoji.Emoji,
			extension.Strikethrough,
			extension.Table,
			extension.TaskList,
			// An empty-match regexp turns off email linkification; nil
			// would keep goldmark's default finder.
			extension.NewLinkify(
				extension.WithLinkifyEmailRegexp(regexp.MustCompile(`^$`)),
			),
		),
		goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
	)

	bodyPolicy  = newBodyPolicy()
	plainPolicy = bluemonday.StrictPolicy()

	codeClass = regexp.MustCompile(`^language-[\w-]+$`)
)

// markdownToHTML converts Markdown without sanitizing. On a conversion
// error the source is returned unchanged.
func markdownToHTML(src string) string {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return src
	}
	return buf.String()
}

// plainText strips every tag. Entities are unescaped so JSON and XML
// encoders escape exactly once.
func plainText(s string) string {
	return html.UnescapeString(plainPolicy.Sanitize(s))
}

func sanitizeBody(s string) string {
	return bodyPolicy.Sanitize(s)
}

// renderBody turns a stored Markdown body into safe HTML.
func renderBody(body string) string {
	return sanitizeBody(markdownToHTML(body))
}

// newBodyPolicy allows user formatting except headings, which would let
// one post dominate a topic page.
func newBodyPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()

	p.AllowElements("p", "br", "hr", "div", "span", "blockquote", "pre")
	p.AllowElements("ul", "ol", "li", "dl", "dt", "dd")
	p.AllowElements("table", "thead", "tbody", "tr", "th", "td")
	p.AllowElements("b", "i", "strong", "em", "u", "s", "strike", "del", "ins")
	p.AllowElements("sub", "sup", "small", "mark", "abbr", "cite", "kbd", "samp", "var")

	p.AllowElements("code")
	p.AllowAttrs("class").Matching(codeClass).OnElements("code")

	p.AllowAttrs("href", "title").OnElements("a")
	p.AllowRelativeURLs(true)
	p.RequireNoFollowOnLinks(true)
	p.RequireNoReferrerOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)

	p.AllowImages()

	// GFM task list checkboxes
	p.AllowAttrs("type", "disabled", "checked").OnElements("input")

	return p
}
