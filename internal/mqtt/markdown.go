package mqtt

import (
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// maxStateLen is Home Assistant's limit on an entity state string.
const maxStateLen = 255

var markdown = goldmark.New()

// PlainText strips Markdown formatting from a model reply, keeping the
// text of paragraphs, headings, list items, links and code. Blocks are
// separated by newlines.
func PlainText(md string) string {
	source := []byte(md)
	doc := markdown.Parser().Parse(text.NewReader(source))

	var b strings.Builder
	newline := func() {
		if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
			b.WriteByte('\n')
		}
	}

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.Text:
			if entering {
				b.Write(node.Segment.Value(source))
				if node.SoftLineBreak() || node.HardLineBreak() {
					b.WriteByte(' ')
				}
			}
		case *ast.String:
			if entering {
				b.Write(node.Value)
			}
		case *ast.AutoLink:
			if entering {
				b.Write(node.Label(source))
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if entering {
				newline()
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					b.Write(seg.Value(source))
				}
				newline()
				return ast.WalkSkipChildren, nil
			}
		case *ast.HTMLBlock, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		}
		if !entering && n.Type() == ast.TypeBlock {
			newline()
		}
		return ast.WalkContinue, nil
	})

	return strings.TrimSpace(b.String())
}

// StateText renders a reply for an entity state: plain text on one
// line, cut to 252 characters plus "..." when it exceeds the limit.
func StateText(reply string) string {
	s := strings.Join(strings.Fields(PlainText(reply)), " ")
	if utf8.RuneCountInString(s) <= maxStateLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxStateLen-3]) + "..."
}
