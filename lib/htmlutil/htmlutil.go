package htmlutil

import (
	"bytes"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"inventory-scrapers/lib/textutil"
)

// elements whose boundaries separate words even when the markup has no
// whitespace between them, "<p>Rise</p><p>10</p>" must not become "Rise10".
var breakingElements = map[atom.Atom]bool{
	atom.Br: true, atom.P: true, atom.Div: true, atom.Li: true,
	atom.Ul: true, atom.Ol: true, atom.Tr: true, atom.Td: true,
	atom.Th: true, atom.Table: true, atom.H1: true, atom.H2: true,
	atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Section: true, atom.Article: true,
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	switch node.Type {
	case html.TextNode:
		buffer.WriteString(node.Data)
		return
	case html.ElementNode:
		if node.DataAtom == atom.Script || node.DataAtom == atom.Style {
			return
		}
		if breakingElements[node.DataAtom] {
			buffer.WriteByte(' ')
			defer buffer.WriteByte(' ')
		}
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) || unicode.IsSpace(c) {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

// SanitizeHTML strips all markup from raw, turns non-breaking spaces into
// plain spaces and collapses whitespace runs (line breaks included) into a
// single space.
func SanitizeHTML(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	// double-escaped entities show up in some product descriptions
	raw = strings.ReplaceAll(raw, "&amp;nbsp;", " ")

	nodes, err := html.ParseFragment(strings.NewReader(raw), &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	})
	var text string
	if err != nil {
		text = raw
	} else {
		var buffer bytes.Buffer
		for _, n := range nodes {
			getTextRecursive(n, &buffer)
		}
		text = buffer.String()
	}

	text = strings.ReplaceAll(text, "\u00a0", " ")
	text = strings.ReplaceAll(text, "&nbsp;", " ")
	text = removeNonPrintable(text)
	return textutil.CollapseSpace(text)
}

// SelectionText is the sanitized text of the first node in sel.
func SelectionText(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return ""
	}
	var buffer bytes.Buffer
	getTextRecursive(sel.Nodes[0], &buffer)
	text := strings.ReplaceAll(buffer.String(), "\u00a0", " ")
	return textutil.CollapseSpace(removeNonPrintable(text))
}
