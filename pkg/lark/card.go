package lark

import "strings"

// Card is a minimal interactive message card. Only the pieces needed for
// status notifications are modelled.
type Card struct {
	Config       *CardConfig              `json:"config,omitempty"`
	I18nHeader   map[string]*CardHeader   `json:"i18n_header,omitempty"`
	I18nElements map[string][]CardElement `json:"i18n_elements"`
}

type CardConfig struct {
	WideScreenMode bool `json:"wide_screen_mode"`
	UpdateMulti    bool `json:"update_multi,omitempty"`
}

// Header colour templates.
const (
	TemplateBlue   = "blue"
	TemplateGreen  = "green"
	TemplateRed    = "red"
	TemplateOrange = "orange"
	TemplateGrey   = "grey"
)

type CardHeader struct {
	Title    *CardElement `json:"title"`
	Subtitle *CardElement `json:"subtitle,omitempty"`
	Template string       `json:"template,omitempty"`
	Icon     *CardIcon    `json:"ud_icon,omitempty"`
}

type CardIcon struct {
	Tag   string `json:"tag"`
	Token string `json:"token"`
}

// CardElement covers the plain_text, markdown, div, column_set and column tags.
type CardElement struct {
	Tag       string        `json:"tag"`
	Content   string        `json:"content,omitempty"`
	TextSize  string        `json:"text_size,omitempty"`
	TextAlign string        `json:"text_align,omitempty"`
	TextColor string        `json:"text_color,omitempty"`
	Text      *CardElement  `json:"text,omitempty"`
	Columns   []CardElement `json:"columns,omitempty"`
	Elements  []CardElement `json:"elements,omitempty"`
}

const defaultCardLocale = "zh_cn"

func PlainText(content string) *CardElement {
	return &CardElement{Tag: "plain_text", Content: content}
}

func Markdown(content string) CardElement {
	return CardElement{Tag: "markdown", Content: content}
}

// Heading is a div holding a heading-sized plain text, wrapped in a single
// column so it renders full width.
func Heading(content string) CardElement {
	text := PlainText(content)
	text.TextSize = "heading"
	text.TextAlign = "left"
	text.TextColor = "default"
	return CardElement{
		Tag: "column_set",
		Columns: []CardElement{{
			Tag:      "column",
			Elements: []CardElement{{Tag: "div", Text: text}},
		}},
	}
}

// NewCardHeader builds a header with a standard icon. An empty subtitle is omitted.
func NewCardHeader(title, subtitle, template, icon string) *CardHeader {
	h := &CardHeader{
		Title:    PlainText(title),
		Template: template,
	}
	if subtitle != "" {
		h.Subtitle = PlainText(subtitle)
	}
	if icon != "" {
		h.Icon = &CardIcon{Tag: "standard_icon", Token: icon}
	}
	return h
}

func NewCard(header *CardHeader, elements ...CardElement) *Card {
	card := &Card{
		I18nElements: map[string][]CardElement{defaultCardLocale: elements},
	}
	if header != nil {
		card.I18nHeader = map[string]*CardHeader{defaultCardLocale: header}
	}
	return card
}

// SuccessCard renders msg under a green header.
func SuccessCard(msg, title, subtitle string) *Card {
	return NewCard(
		NewCardHeader(title, subtitle, TemplateGreen, "yes_filled"),
		Heading("Message"),
		Markdown("```txt\n"+msg+"\n```"),
	)
}

// ErrorCard renders msg and a traceback under a red header.
func ErrorCard(msg, traceback, title, subtitle string) *Card {
	return NewCard(
		NewCardHeader(title, subtitle, TemplateRed, "error_filled"),
		Heading("Message"),
		Markdown("```txt\n"+msg+"\n```"),
		Heading("Traceback"),
		Markdown("```\n"+strings.TrimSpace(traceback)+"\n```"),
	)
}
