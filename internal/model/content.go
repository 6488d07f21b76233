package model

import (
	"fmt"
	"regexp"
	"slices"

	"github.com/microcosm-cc/bluemonday"
)

// BlockType 富文本块类型
type BlockType string

const (
	BlockText      BlockType = "text"
	BlockHeading   BlockType = "heading"
	BlockList      BlockType = "list"
	BlockChecklist BlockType = "checklist"
	BlockCode      BlockType = "code"
	BlockQuote     BlockType = "quote"
)

const maxContentBlocks = 200

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// 块内文本一律按纯文本存储
var textPolicy = bluemonday.StrictPolicy()

type BlockStyle struct {
	Bold       bool   `json:"bold,omitempty"`
	Italic     bool   `json:"italic,omitempty"`
	Color      string `json:"color,omitempty"`
	Background string `json:"background,omitempty"`
	Align      string `json:"align,omitempty"` // left / center / right
}

type ChecklistItem struct {
	Text    string `json:"text"`
	Checked bool   `json:"checked"`
}

// Block 带类型标签的内容块，type 决定哪些字段有效：
//
//	text, quote: Text (quote 可带 Cite)
//	heading:     Text + Level(1-6)
//	list:        Items + Ordered
//	checklist:   Checks
//	code:        Text + Language
type Block struct {
	Type     BlockType       `json:"type"`
	Style    *BlockStyle     `json:"style,omitempty"`
	Text     string          `json:"text,omitempty"`
	Level    int             `json:"level,omitempty"`
	Items    []string        `json:"items,omitempty"`
	Ordered  bool            `json:"ordered,omitempty"`
	Checks   []ChecklistItem `json:"checks,omitempty"`
	Language string          `json:"language,omitempty"`
	Cite     string          `json:"cite,omitempty"`
}

func (b *Block) Validate() error {
	if err := b.Style.validate(); err != nil {
		return err
	}

	hasList := len(b.Items) > 0 || b.Ordered
	switch b.Type {
	case BlockText, BlockQuote:
		if b.Level != 0 || hasList || len(b.Checks) > 0 || b.Language != "" {
			return fmt.Errorf("%s block carries fields of another block type", b.Type)
		}
		if b.Type == BlockText && b.Cite != "" {
			return fmt.Errorf("text block cannot have cite")
		}
	case BlockHeading:
		if b.Level < 1 || b.Level > 6 {
			return fmt.Errorf("heading level must be between 1 and 6")
		}
		if b.Text == "" {
			return fmt.Errorf("heading text is required")
		}
		if hasList || len(b.Checks) > 0 || b.Language != "" || b.Cite != "" {
			return fmt.Errorf("heading block carries fields of another block type")
		}
	case BlockList:
		if len(b.Items) == 0 {
			return fmt.Errorf("list block needs at least one item")
		}
		if b.Text != "" || b.Level != 0 || len(b.Checks) > 0 || b.Language != "" || b.Cite != "" {
			return fmt.Errorf("list block carries fields of another block type")
		}
	case BlockChecklist:
		if len(b.Checks) == 0 {
			return fmt.Errorf("checklist block needs at least one item")
		}
		if b.Text != "" || b.Level != 0 || hasList || b.Language != "" || b.Cite != "" {
			return fmt.Errorf("checklist block carries fields of another block type")
		}
	case BlockCode:
		if b.Level != 0 || hasList || len(b.Checks) > 0 || b.Cite != "" {
			return fmt.Errorf("code block carries fields of another block type")
		}
	default:
		return fmt.Errorf("unknown block type %q", b.Type)
	}
	return nil
}

func (s *BlockStyle) validate() error {
	if s == nil {
		return nil
	}
	if s.Color != "" && !colorPattern.MatchString(s.Color) {
		return fmt.Errorf("style color must be #rrggbb")
	}
	if s.Background != "" && !colorPattern.MatchString(s.Background) {
		return fmt.Errorf("style background must be #rrggbb")
	}
	switch s.Align {
	case "", "left", "center", "right":
	default:
		return fmt.Errorf("style align must be left, center or right")
	}
	return nil
}

// Sanitize 去掉文本里的 HTML，code 块保持原样
func (b *Block) Sanitize() {
	if b.Type != BlockCode {
		b.Text = textPolicy.Sanitize(b.Text)
	}
	b.Cite = textPolicy.Sanitize(b.Cite)
	for i := range b.Items {
		b.Items[i] = textPolicy.Sanitize(b.Items[i])
	}
	for i := range b.Checks {
		b.Checks[i].Text = textPolicy.Sanitize(b.Checks[i].Text)
	}
}

// NormalizeContent 校验并清洗整段内容
func NormalizeContent(blocks []Block) ([]Block, error) {
	if len(blocks) > maxContentBlocks {
		return nil, fmt.Errorf("content has %d blocks, limit is %d", len(blocks), maxContentBlocks)
	}
	out := make([]Block, len(blocks))
	for i := range blocks {
		b := blocks[i]
		if err := b.Validate(); err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
		b.Items = slices.Clone(b.Items)
		b.Checks = slices.Clone(b.Checks)
		b.Sanitize()
		out[i] = b
	}
	return out, nil
}
