package lark

// BlockType identifies the kind of a docx block.
type BlockType int

const (
	BlockPage           BlockType = 1
	BlockText           BlockType = 2
	BlockHeading1       BlockType = 3
	BlockHeading9       BlockType = 11
	BlockBullet         BlockType = 12
	BlockOrdered        BlockType = 13
	BlockCode           BlockType = 14
	BlockQuote          BlockType = 15
	BlockTodo           BlockType = 17
	BlockBitable        BlockType = 18
	BlockCallout        BlockType = 19
	BlockDivider        BlockType = 22
	BlockFile           BlockType = 23
	BlockImage          BlockType = 27
	BlockSheet          BlockType = 30
	BlockTable          BlockType = 31
	BlockTableCell      BlockType = 32
	BlockQuoteContainer BlockType = 34
	BlockBoard          BlockType = 43
	BlockUnsupported    BlockType = 999
)

// HeadingLevel returns 1..9 for heading blocks and 0 otherwise.
func (t BlockType) HeadingLevel() int {
	if t >= BlockHeading1 && t <= BlockHeading9 {
		return int(t-BlockHeading1) + 1
	}
	return 0
}

type TextStyle struct {
	Align            int    `json:"align,omitempty"`
	Done             bool   `json:"done,omitempty"`
	Folded           bool   `json:"folded,omitempty"`
	Language         int    `json:"language,omitempty"`
	Wrap             bool   `json:"wrap,omitempty"`
	IndentationLevel string `json:"indentation_level,omitempty"`
}

type TextElementLink struct {
	URL string `json:"url"`
}

type TextElementStyle struct {
	Bold          bool             `json:"bold,omitempty"`
	Italic        bool             `json:"italic,omitempty"`
	Strikethrough bool             `json:"strikethrough,omitempty"`
	Underline     bool             `json:"underline,omitempty"`
	InlineCode    bool             `json:"inline_code,omitempty"`
	Link          *TextElementLink `json:"link,omitempty"`
}

type TextRun struct {
	Content          string            `json:"content"`
	TextElementStyle *TextElementStyle `json:"text_element_style,omitempty"`
}

type MentionUser struct {
	UserID string `json:"user_id"`
}

type MentionDoc struct {
	Token   string `json:"token"`
	ObjType int    `json:"obj_type,omitempty"`
	URL     string `json:"url"`
	Title   string `json:"title"`
}

type Equation struct {
	Content string `json:"content"`
}

type TextElement struct {
	TextRun     *TextRun     `json:"text_run,omitempty"`
	MentionUser *MentionUser `json:"mention_user,omitempty"`
	MentionDoc  *MentionDoc  `json:"mention_doc,omitempty"`
	Equation    *Equation    `json:"equation,omitempty"`
}

type Text struct {
	Style    *TextStyle    `json:"style,omitempty"`
	Elements []TextElement `json:"elements,omitempty"`
}

type ImageBlock struct {
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
	Token  string `json:"token"`
}

type TokenBlock struct {
	Token string `json:"token"`
}

type TableProperty struct {
	RowSize      int  `json:"row_size"`
	ColumnSize   int  `json:"column_size"`
	HeaderRow    bool `json:"header_row,omitempty"`
	HeaderColumn bool `json:"header_column,omitempty"`
}

type TableBlock struct {
	Cells    []string      `json:"cells"`
	Property TableProperty `json:"property"`
}

// Block is one node of a docx document. Exactly one of the content fields
// matching BlockType is set.
type Block struct {
	BlockID   string    `json:"block_id"`
	BlockType BlockType `json:"block_type"`
	ParentID  string    `json:"parent_id,omitempty"`
	Children  []string  `json:"children,omitempty"`

	Page           *Text          `json:"page,omitempty"`
	Text           *Text          `json:"text,omitempty"`
	Heading1       *Text          `json:"heading1,omitempty"`
	Heading2       *Text          `json:"heading2,omitempty"`
	Heading3       *Text          `json:"heading3,omitempty"`
	Heading4       *Text          `json:"heading4,omitempty"`
	Heading5       *Text          `json:"heading5,omitempty"`
	Heading6       *Text          `json:"heading6,omitempty"`
	Heading7       *Text          `json:"heading7,omitempty"`
	Heading8       *Text          `json:"heading8,omitempty"`
	Heading9       *Text          `json:"heading9,omitempty"`
	Bullet         *Text          `json:"bullet,omitempty"`
	Ordered        *Text          `json:"ordered,omitempty"`
	Code           *Text          `json:"code,omitempty"`
	Quote          *Text          `json:"quote,omitempty"`
	Todo           *Text          `json:"todo,omitempty"`
	Equation       *Text          `json:"equation,omitempty"`
	Callout        map[string]any `json:"callout,omitempty"`
	Divider        map[string]any `json:"divider,omitempty"`
	Image          *ImageBlock    `json:"image,omitempty"`
	Table          *TableBlock    `json:"table,omitempty"`
	TableCell      map[string]any `json:"table_cell,omitempty"`
	QuoteContainer map[string]any `json:"quote_container,omitempty"`
	Board          *TokenBlock    `json:"board,omitempty"`
	Sheet          *TokenBlock    `json:"sheet,omitempty"`
	Bitable        *TokenBlock    `json:"bitable,omitempty"`
}

// textContent returns the text payload of text-like blocks.
func (b *Block) textContent() *Text {
	switch {
	case b.Page != nil:
		return b.Page
	case b.Text != nil:
		return b.Text
	case b.Bullet != nil:
		return b.Bullet
	case b.Ordered != nil:
		return b.Ordered
	case b.Code != nil:
		return b.Code
	case b.Quote != nil:
		return b.Quote
	case b.Todo != nil:
		return b.Todo
	case b.Equation != nil:
		return b.Equation
	}
	for _, h := range []*Text{b.Heading1, b.Heading2, b.Heading3, b.Heading4, b.Heading5, b.Heading6, b.Heading7, b.Heading8, b.Heading9} {
		if h != nil {
			return h
		}
	}
	return nil
}

// codeLanguages maps the docx code-block language ids to Markdown fence tags.
var codeLanguages = map[int]string{
	7:  "bash",
	8:  "csharp",
	9:  "cpp",
	10: "c",
	12: "css",
	18: "dockerfile",
	22: "go",
	24: "html",
	28: "json",
	29: "java",
	30: "javascript",
	32: "kotlin",
	38: "makefile",
	39: "markdown",
	43: "php",
	48: "protobuf",
	49: "python",
	52: "ruby",
	53: "rust",
	56: "sql",
	60: "shell",
	61: "swift",
	63: "typescript",
	66: "xml",
	67: "yaml",
	69: "diff",
	71: "graphql",
	75: "toml",
}
