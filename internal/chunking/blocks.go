package chunking

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// Sentinel markers framing serialized tables so the keyword scorer can
// locate individual rows inside chunk content.
const (
	tableStart = "[表格开始]"
	tableEnd   = "[表格结束]"
)

type blockKind int

const (
	kindParagraph blockKind = iota
	kindHeading
	kindCode
	kindTable
	kindList
	kindQuote
	kindHTML
	kindRule
)

// block is one classified markdown block. Atomic blocks (fenced code,
// tables, individual list items) are never split across chunks.
type block struct {
	kind   blockKind
	level  int // heading level 1..6, 0 otherwise
	text   string
	atomic bool
}

// parseBlocks classifies the document into an ordered block list using the
// goldmark AST. Unclosed code fences are absorbed to EOF by the parser.
func parseBlocks(source []byte) []block {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	doc := md.Parser().Parse(text.NewReader(source))

	var blocks []block
	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		switch n := node.(type) {
		case *ast.Heading:
			blocks = append(blocks, block{
				kind:  kindHeading,
				level: n.Level,
				text:  extractText(n, source),
			})

		case *ast.FencedCodeBlock:
			blocks = append(blocks, block{
				kind:   kindCode,
				text:   renderFence(n, source),
				atomic: true,
			})

		case *ast.CodeBlock:
			blocks = append(blocks, block{
				kind:   kindCode,
				text:   "```\n" + nodeLines(n, source) + "\n```",
				atomic: true,
			})

		case *east.Table:
			blocks = append(blocks, block{
				kind:   kindTable,
				text:   serializeTable(n, source),
				atomic: true,
			})

		case *ast.List:
			blocks = append(blocks, listItemBlocks(n, source)...)

		case *ast.Blockquote:
			raw := rawSpan(n, source)
			lines := strings.Split(raw, "\n")
			for i, line := range lines {
				lines[i] = "> " + line
			}
			blocks = append(blocks, block{kind: kindQuote, text: strings.Join(lines, "\n")})

		case *ast.ThematicBreak:
			blocks = append(blocks, block{kind: kindRule, text: "---"})

		case *ast.HTMLBlock:
			raw := nodeLines(n, source)
			if raw == "" {
				continue
			}
			blocks = append(blocks, block{
				kind:   kindHTML,
				text:   raw,
				atomic: strings.Contains(strings.ToLower(raw), "<table"),
			})

		default:
			raw := rawSpan(node, source)
			if strings.TrimSpace(raw) == "" {
				continue
			}
			blocks = append(blocks, block{kind: kindParagraph, text: raw})
		}
	}
	return blocks
}

// renderFence re-emits a fenced code block with its info string intact.
func renderFence(n *ast.FencedCodeBlock, source []byte) string {
	lang := ""
	if l := n.Language(source); l != nil {
		lang = string(l)
	}
	return "```" + lang + "\n" + nodeLines(n, source) + "\n```"
}

// listItemBlocks emits one atomic block per list item so a long item is
// never split below item granularity, while the list itself can still be
// divided at item boundaries.
func listItemBlocks(list *ast.List, source []byte) []block {
	var blocks []block
	idx := list.Start
	if idx == 0 {
		idx = 1
	}
	for item := list.FirstChild(); item != nil; item = item.NextSibling() {
		body := rawSpan(item, source)
		if strings.TrimSpace(body) == "" {
			continue
		}
		marker := "- "
		if list.IsOrdered() {
			marker = fmt.Sprintf("%d. ", idx)
			idx++
		}
		blocks = append(blocks, block{kind: kindList, text: marker + body, atomic: true})
	}
	return blocks
}

// serializeTable renders a GFM table in a line-oriented row form framed by
// sentinel markers. When a row's cell count does not match the header the
// whole table falls back to the plain "col | col" form.
func serializeTable(table *east.Table, source []byte) string {
	var header []string
	var rows [][]string

	for child := table.FirstChild(); child != nil; child = child.NextSibling() {
		switch row := child.(type) {
		case *east.TableHeader:
			header = cellTexts(row, source)
		case *east.TableRow:
			rows = append(rows, cellTexts(row, source))
		}
	}

	mismatched := false
	for _, row := range rows {
		if len(row) != len(header) {
			mismatched = true
			break
		}
	}

	var b strings.Builder
	b.WriteString(tableStart)
	b.WriteByte('\n')
	if mismatched || len(header) == 0 {
		if len(header) > 0 {
			b.WriteString(strings.Join(header, " | "))
			b.WriteByte('\n')
		}
		for _, row := range rows {
			b.WriteString(strings.Join(row, " | "))
			b.WriteByte('\n')
		}
	} else {
		for i, row := range rows {
			pairs := make([]string, len(row))
			for j, cell := range row {
				pairs[j] = header[j] + "=" + cell
			}
			b.WriteString(fmt.Sprintf("row %d: %s\n", i+1, strings.Join(pairs, ", ")))
		}
	}
	b.WriteString(tableEnd)
	return b.String()
}

func cellTexts(row ast.Node, source []byte) []string {
	var cells []string
	for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
		cells = append(cells, extractText(cell, source))
	}
	return cells
}

// extractText collects the plain text of a node's inline content.
func extractText(node ast.Node, source []byte) string {
	var b strings.Builder
	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := n.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(source))
		case *ast.String:
			b.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}

// nodeLines concatenates a node's own line segments from source, without
// the trailing newline. Used for blocks whose body is stored as raw lines
// (code blocks, HTML blocks).
func nodeLines(n ast.Node, source []byte) string {
	var b strings.Builder
	segs := n.Lines()
	for i := 0; i < segs.Len(); i++ {
		seg := segs.At(i)
		b.Write(seg.Value(source))
	}
	return strings.TrimRight(b.String(), "\n")
}

// rawSpan reconstructs a node's source text from the line segments of the
// node and its descendants, preserving document order.
func rawSpan(node ast.Node, source []byte) string {
	var lines []string
	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if n.Type() != ast.TypeBlock {
			return ast.WalkContinue, nil
		}
		segs := n.Lines()
		for i := 0; i < segs.Len(); i++ {
			seg := segs.At(i)
			lines = append(lines, strings.TrimRight(string(seg.Value(source)), "\n"))
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
