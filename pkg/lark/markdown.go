package lark

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// assetDownloader fetches the binaries referenced by image and whiteboard blocks.
type assetDownloader interface {
	DownloadMedia(ctx context.Context, fileToken string) (*File, error)
	DownloadWhiteboardImage(ctx context.Context, whiteboardID string) (*File, error)
}

type blockNode struct {
	block    *Block
	children []*blockNode
}

// markdownRenderer converts a flat docx block list into Markdown. The first
// block must be the page block.
type markdownRenderer struct {
	assets    assetDownloader
	assetsDir string
}

func buildBlockTree(blocks []Block) (*blockNode, error) {
	if len(blocks) == 0 {
		return nil, fmt.Errorf("document has no blocks")
	}
	if blocks[0].BlockType != BlockPage {
		return nil, fmt.Errorf("first block must be the page block, got type %d", blocks[0].BlockType)
	}
	byID := make(map[string]*Block, len(blocks))
	for i := range blocks {
		byID[blocks[i].BlockID] = &blocks[i]
	}

	var build func(b *Block, depth int) (*blockNode, error)
	build = func(b *Block, depth int) (*blockNode, error) {
		if depth > len(blocks) {
			return nil, fmt.Errorf("block %s: cycle in block children", b.BlockID)
		}
		node := &blockNode{block: b}
		for _, id := range b.Children {
			child, ok := byID[id]
			if !ok {
				return nil, fmt.Errorf("block %s references missing child %s", b.BlockID, id)
			}
			c, err := build(child, depth+1)
			if err != nil {
				return nil, err
			}
			node.children = append(node.children, c)
		}
		return node, nil
	}
	return build(&blocks[0], 0)
}

func (r *markdownRenderer) Render(ctx context.Context, blocks []Block) (string, error) {
	root, err := buildBlockTree(blocks)
	if err != nil {
		return "", err
	}
	return r.block(ctx, root, 0)
}

func (r *markdownRenderer) block(ctx context.Context, n *blockNode, level int) (string, error) {
	b := n.block
	switch {
	case b.Page != nil:
		parts := []string{r.text(b.Page, BlockPage)}
		for _, c := range n.children {
			md, err := r.block(ctx, c, level)
			if err != nil {
				return "", err
			}
			parts = append(parts, md)
		}
		return strings.Join(parts, "\n"), nil
	case b.Bullet != nil || b.Ordered != nil:
		return r.list(ctx, n, level)
	case b.Callout != nil, b.QuoteContainer != nil:
		return r.quoted(ctx, n, level)
	case b.Divider != nil:
		return "---", nil
	case b.Table != nil:
		return r.table(ctx, n, level)
	case b.Image != nil:
		return r.image(ctx, b.Image)
	case b.Board != nil:
		return r.board(ctx, b.Board)
	}
	if t := b.textContent(); t != nil {
		return r.text(t, b.BlockType), nil
	}
	return "", nil
}

func (r *markdownRenderer) text(t *Text, typ BlockType) string {
	var sb strings.Builder
	for _, el := range t.Elements {
		sb.WriteString(textElement(el))
	}
	md := sb.String()
	style := t.Style
	if style == nil {
		style = &TextStyle{}
	}
	if style.IndentationLevel == "OneLevelIndent" {
		md = "    " + md
	}
	switch {
	case typ == BlockCode:
		md = "```" + codeLanguages[style.Language] + "\n" + md + "\n```"
	case typ == BlockQuote:
		md = "> " + md
	case typ == BlockTodo:
		done := " "
		if style.Done {
			done = "x"
		}
		md = "- [" + done + "] " + md
	case typ.HeadingLevel() > 0:
		md = strings.Repeat("#", typ.HeadingLevel()) + " " + md
	case typ == BlockPage:
		md = "# " + md + "\n"
	}
	return md
}

func textElement(el TextElement) string {
	switch {
	case el.TextRun != nil:
		return textRun(el.TextRun)
	case el.Equation != nil:
		return "$$ " + strings.TrimSpace(el.Equation.Content) + " $$"
	case el.MentionDoc != nil:
		return " [" + el.MentionDoc.Title + "](" + el.MentionDoc.URL + ") "
	}
	return ""
}

// textRun applies inline styles. Colours are dropped.
func textRun(run *TextRun) string {
	md := run.Content
	s := run.TextElementStyle
	if s == nil {
		return md
	}
	if s.Bold {
		md = " **" + md + "** "
	}
	if s.Italic {
		md = " *" + md + "* "
	}
	if s.Strikethrough {
		md = " ~~" + md + "~~ "
	}
	if s.Underline {
		md = " _" + md + "_ "
	}
	if s.InlineCode {
		md = " `" + md + "` "
	}
	if s.Link != nil {
		link := s.Link.URL
		if u, err := url.QueryUnescape(link); err == nil {
			link = u
		}
		md = " [" + md + "](" + link + ") "
	}
	return md
}

func (r *markdownRenderer) list(ctx context.Context, n *blockNode, level int) (string, error) {
	b := n.block
	marker, data, typ := "- ", b.Bullet, BlockBullet
	if b.Ordered != nil {
		marker, data, typ = "1. ", b.Ordered, BlockOrdered
	}
	lines := []string{strings.Repeat("    ", level) + marker + r.text(data, typ)}
	for _, c := range n.children {
		md, err := r.block(ctx, c, level+1)
		if err != nil {
			return "", err
		}
		lines = append(lines, md)
	}
	return strings.Join(lines, "\n"), nil
}

func (r *markdownRenderer) quoted(ctx context.Context, n *blockNode, level int) (string, error) {
	lines := make([]string, 0, len(n.children))
	for _, c := range n.children {
		md, err := r.block(ctx, c, level)
		if err != nil {
			return "", err
		}
		lines = append(lines, "> "+md)
	}
	return strings.Join(lines, "\n"), nil
}

func (r *markdownRenderer) table(ctx context.Context, n *blockNode, level int) (string, error) {
	prop := n.block.Table.Property
	if len(n.block.Table.Cells) != len(n.children) || len(n.children) != prop.RowSize*prop.ColumnSize {
		return "", fmt.Errorf("table %s: %d cells for a %dx%d table", n.block.BlockID, len(n.children), prop.RowSize, prop.ColumnSize)
	}

	cells := make([]string, len(n.children))
	for i, cell := range n.children {
		parts := make([]string, 0, len(cell.children))
		for _, c := range cell.children {
			md, err := r.block(ctx, c, level)
			if err != nil {
				return "", err
			}
			parts = append(parts, md)
		}
		cells[i] = strings.Join(parts, "<br>")
	}

	row := func(items []string) string { return "|" + strings.Join(items, "|") + "|" }
	repeat := func(s string) []string {
		out := make([]string, prop.ColumnSize)
		for i := range out {
			out[i] = s
		}
		return out
	}

	var rows []string
	for i := 0; i < prop.RowSize; i++ {
		rows = append(rows, row(cells[i*prop.ColumnSize:(i+1)*prop.ColumnSize]))
	}
	if !prop.HeaderRow {
		rows = append([]string{row(repeat(""))}, rows...)
	}
	rows = append(rows[:1], append([]string{row(repeat(":---"))}, rows[1:]...)...)
	return strings.Join(rows, "\n"), nil
}

func (r *markdownRenderer) image(ctx context.Context, img *ImageBlock) (string, error) {
	if r.assets == nil {
		return "", nil
	}
	f, err := r.assets.DownloadMedia(ctx, img.Token)
	if err != nil {
		return "", err
	}
	name := img.Token + "_" + f.Name
	if f.Name == "" {
		name = img.Token + f.Extension()
	}
	path, err := SaveFile(r.assetsDir, name, f.Data)
	if err != nil {
		return "", err
	}
	return "![" + name + "](" + path + ")", nil
}

func (r *markdownRenderer) board(ctx context.Context, board *TokenBlock) (string, error) {
	if r.assets == nil {
		return "", nil
	}
	f, err := r.assets.DownloadWhiteboardImage(ctx, board.Token)
	if err != nil {
		return "", err
	}
	path, err := SaveFile(r.assetsDir, board.Token+".png", f.Data)
	if err != nil {
		return "", err
	}
	return "![board](" + path + ")", nil
}
