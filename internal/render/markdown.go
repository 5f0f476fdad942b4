// ABOUTME: Renders assistant markdown as terminal text by walking the goldmark AST
// ABOUTME: With a nil palette the output is plain text with markup removed

package render

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/2389/skillchat/internal/theme"
)

const codeIndent = "    "

// Renderer converts markdown to terminal text. It is safe for concurrent use.
type Renderer struct {
	md goldmark.Markdown

	heading, code, link, muted, strong, em, strike *color.Color
}

// New creates a renderer coloring with p. Pass nil for plain output.
func New(p *theme.Palette) *Renderer {
	r := &Renderer{
		md: goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
	if p != nil {
		r.heading = p.Heading
		r.code = p.Code
		r.link = p.Link
		r.muted = p.Muted
		r.strong = color.New(color.Bold)
		r.em = color.New(color.Italic)
		r.strike = color.New(color.CrossedOut)
	}
	return r
}

// Render converts src. The result has no trailing newline.
func (r *Renderer) Render(src string) string {
	source := []byte(src)
	doc := r.md.Parser().Parse(text.NewReader(source))

	var b strings.Builder
	r.blocks(&b, doc, source)
	return strings.TrimRight(b.String(), "\n")
}

func style(c *color.Color, s string) string {
	if c == nil || s == "" {
		return s
	}
	return c.Sprint(s)
}

func (r *Renderer) blocks(b *strings.Builder, parent ast.Node, src []byte) {
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		r.block(b, n, src)
	}
}

func (r *Renderer) block(b *strings.Builder, n ast.Node, src []byte) {
	switch n := n.(type) {
	case *ast.Heading:
		b.WriteString(style(r.heading, strings.Repeat("#", n.Level)+" "+r.inline(n, src)))
		b.WriteString("\n\n")

	case *ast.Paragraph:
		b.WriteString(r.inline(n, src))
		b.WriteString("\n\n")

	case *ast.TextBlock:
		b.WriteString(r.inline(n, src))
		b.WriteString("\n")

	case *ast.FencedCodeBlock, *ast.CodeBlock:
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			line := strings.TrimRight(string(seg.Value(src)), "\r\n")
			b.WriteString(codeIndent + style(r.code, line) + "\n")
		}
		b.WriteString("\n")

	case *ast.HTMLBlock:
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			b.WriteString(style(r.muted, strings.TrimRight(string(seg.Value(src)), "\r\n")) + "\n")
		}
		b.WriteString("\n")

	case *ast.List:
		num := n.Start
		if num == 0 {
			num = 1
		}
		for item := n.FirstChild(); item != nil; item = item.NextSibling() {
			marker := "- "
			if n.IsOrdered() {
				marker = fmt.Sprintf("%d. ", num)
				num++
			}
			var sub strings.Builder
			r.blocks(&sub, item, src)
			prefixLines(b, strings.TrimRight(sub.String(), "\n"), marker, strings.Repeat(" ", len(marker)))
		}
		if _, nested := n.Parent().(*ast.ListItem); !nested {
			b.WriteString("\n")
		}

	case *ast.Blockquote:
		var sub strings.Builder
		r.blocks(&sub, n, src)
		bar := style(r.muted, "> ")
		prefixLines(b, strings.TrimRight(sub.String(), "\n"), bar, bar)
		b.WriteString("\n")

	case *ast.ThematicBreak:
		b.WriteString(style(r.muted, "---"))
		b.WriteString("\n\n")

	case *east.Table:
		for row := n.FirstChild(); row != nil; row = row.NextSibling() {
			var cells []string
			for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
				cells = append(cells, r.inline(cell, src))
			}
			line := strings.Join(cells, " | ")
			if _, header := row.(*east.TableHeader); header {
				line = style(r.strong, line)
			}
			b.WriteString(line + "\n")
		}
		b.WriteString("\n")

	default:
		r.blocks(b, n, src)
	}
}

// prefixLines writes body with first before the first line and rest before the others.
func prefixLines(b *strings.Builder, body, first, rest string) {
	for i, line := range strings.Split(body, "\n") {
		prefix := rest
		if i == 0 {
			prefix = first
		}
		if line == "" {
			b.WriteString(strings.TrimRight(prefix, " ") + "\n")
			continue
		}
		b.WriteString(prefix + line + "\n")
	}
}

func (r *Renderer) inline(parent ast.Node, src []byte) string {
	var b strings.Builder
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		switch n := n.(type) {
		case *ast.Text:
			b.Write(n.Segment.Value(src))
			if n.HardLineBreak() || n.SoftLineBreak() {
				b.WriteString("\n")
			}
		case *ast.String:
			b.Write(n.Value)
		case *ast.CodeSpan:
			b.WriteString(style(r.code, r.inline(n, src)))
		case *ast.Emphasis:
			c := r.em
			if n.Level >= 2 {
				c = r.strong
			}
			b.WriteString(style(c, r.inline(n, src)))
		case *ast.Link:
			label := r.inline(n, src)
			dest := string(n.Destination)
			if label == "" || label == dest {
				b.WriteString(style(r.link, dest))
			} else {
				b.WriteString(label + " (" + style(r.link, dest) + ")")
			}
		case *ast.AutoLink:
			b.WriteString(style(r.link, string(n.URL(src))))
		case *ast.Image:
			b.WriteString("[image: " + r.inline(n, src) + "] (" + style(r.link, string(n.Destination)) + ")")
		case *ast.RawHTML:
			for i := 0; i < n.Segments.Len(); i++ {
				seg := n.Segments.At(i)
				b.Write(seg.Value(src))
			}
		case *east.Strikethrough:
			b.WriteString(style(r.strike, r.inline(n, src)))
		case *east.TaskCheckBox:
			if n.IsChecked {
				b.WriteString("[x] ")
			} else {
				b.WriteString("[ ] ")
			}
		default:
			b.WriteString(r.inline(n, src))
		}
	}
	return b.String()
}
