// Package htmlutil turns the html fragments the portal returns into something a notification
// channel can display.
package htmlutil

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	switch node.Type {
	case html.TextNode:
		buffer.WriteString(node.Data)
		return
	case html.ElementNode:
		switch node.Data {
		case "br":
			buffer.WriteString("\n")
			return
		case "script", "style":
			return
		}
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
	if node.Type == html.ElementNode && blockElements[node.Data] {
		buffer.WriteString("\n")
	}
}

var blockElements = map[string]bool{
	"p": true, "div": true, "li": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

var excessNewlines = regexp.MustCompile(`\n{3,}`)

// ToText renders an html fragment as plain text, line breaks and block elements become
// newlines and everything else is reduced to its text content.
func ToText(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return fragment
	}
	var buffer bytes.Buffer
	for _, node := range doc.Find("body").Nodes {
		getTextRecursive(node, &buffer)
	}
	text := excessNewlines.ReplaceAllString(buffer.String(), "\n\n")
	return strings.TrimSpace(text)
}

// BrToNewline is the minimal conversion used for push messages which render a subset of
// html themselves.
func BrToNewline(text string) string {
	return strings.ReplaceAll(text, "<br>", "\n")
}

var bareUrl = regexp.MustCompile(`(https?://[^ \n\t]*)`)

// Linkify wraps every bare http(s) url in an anchor.
func Linkify(text string) string {
	return bareUrl.ReplaceAllString(text, `<a href="$1">$1</a>`)
}

// Page wraps a fragment into a minimal utf-8 html document.
func Page(body string) string {
	return `<html> <head> <meta charset="utf-8" /> </head> <body>` + body + `</body></html>`
}
