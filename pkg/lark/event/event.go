// Package event receives Lark event subscriptions and card callbacks over
// HTTP, decrypts and verifies them, and routes them to registered handlers.
package event

import (
	"encoding/json"
	"fmt"
)

// Event types pushed by the open platform.
const (
	TypeMessageReceive          = "im.message.receive_v1"
	TypeMessageRead             = "im.message.message_read_v1"
	TypeMessageRecalled         = "im.message.recalled_v1"
	TypeMessageReactionCreated  = "im.message.reaction.created_v1"
	TypeMessageReactionDeleted  = "im.message.reaction.deleted_v1"
	TypeChatDisbanded           = "im.chat.disbanded_v1"
	TypeChatUpdated             = "im.chat.updated_v1"
	TypeChatMemberUserAdded     = "im.chat.member.user.added_v1"
	TypeChatMemberUserDeleted   = "im.chat.member.user.deleted_v1"
	TypeChatMemberUserWithdrawn = "im.chat.member.user.withdrawn_v1"
	TypeChatMemberBotAdded      = "im.chat.member.bot.added_v1"
	TypeChatMemberBotDeleted    = "im.chat.member.bot.deleted_v1"
	TypeP2PChatCreate           = "p2p_chat_create"
	TypeBotP2PChatEntered       = "im.chat.access_event.bot_p2p_chat_entered_v1"
	TypeCardActionTrigger       = "card.action.trigger"
)

type Header struct {
	EventID    string `json:"event_id"`
	EventType  string `json:"event_type"`
	CreateTime string `json:"create_time"`
	Token      string `json:"token"`
	AppID      string `json:"app_id"`
	TenantKey  string `json:"tenant_key"`
}

// Event is the schema 2.0 envelope. The payload stays raw until a handler
// decodes it into the shape it expects.
type Event struct {
	Schema string          `json:"schema"`
	Header Header          `json:"header"`
	Event  json.RawMessage `json:"event"`
}

// Decode unmarshals the event payload into v.
func (e *Event) Decode(v any) error {
	if len(e.Event) == 0 {
		return fmt.Errorf("event %s has no payload", e.Header.EventID)
	}
	if err := json.Unmarshal(e.Event, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Header.EventType, err)
	}
	return nil
}

type UserID struct {
	OpenID  string `json:"open_id,omitempty"`
	UnionID string `json:"union_id,omitempty"`
	UserID  string `json:"user_id,omitempty"`
}

type Sender struct {
	SenderID   UserID `json:"sender_id"`
	SenderType string `json:"sender_type"`
	TenantKey  string `json:"tenant_key"`
}

type Mention struct {
	Key       string `json:"key"`
	ID        UserID `json:"id"`
	Name      string `json:"name"`
	TenantKey string `json:"tenant_key"`
}

type MessageBody struct {
	MessageID   string    `json:"message_id"`
	RootID      string    `json:"root_id,omitempty"`
	ParentID    string    `json:"parent_id,omitempty"`
	CreateTime  string    `json:"create_time"`
	UpdateTime  string    `json:"update_time"`
	ChatID      string    `json:"chat_id,omitempty"`
	ThreadID    string    `json:"thread_id,omitempty"`
	ChatType    string    `json:"chat_type"`
	MessageType string    `json:"message_type"`
	Content     string    `json:"content"`
	Mentions    []Mention `json:"mentions,omitempty"`
	UserAgent   string    `json:"user_agent,omitempty"`
}

// MessageReceiveEvent is the payload of im.message.receive_v1.
type MessageReceiveEvent struct {
	Sender  Sender      `json:"sender"`
	Message MessageBody `json:"message"`
}

// Text returns the text of a text message with mention placeholders kept.
func (m *MessageReceiveEvent) Text() (string, error) {
	var c struct {
		Text string `json:"text"`
	}
	if err := m.content("text", &c); err != nil {
		return "", err
	}
	return c.Text, nil
}

// ImageKey returns the resource key of an image message.
func (m *MessageReceiveEvent) ImageKey() (string, error) {
	var c struct {
		ImageKey string `json:"image_key"`
	}
	if err := m.content("image", &c); err != nil {
		return "", err
	}
	return c.ImageKey, nil
}

func (m *MessageReceiveEvent) content(msgType string, v any) error {
	if m.Message.MessageType != msgType {
		return fmt.Errorf("message %s is %s, not %s", m.Message.MessageID, m.Message.MessageType, msgType)
	}
	if err := json.Unmarshal([]byte(m.Message.Content), v); err != nil {
		return fmt.Errorf("decode %s content: %w", msgType, err)
	}
	return nil
}

type Operator struct {
	TenantKey string `json:"tenant_key"`
	UserID    string `json:"user_id,omitempty"`
	OpenID    string `json:"open_id"`
	UnionID   string `json:"union_id,omitempty"`
}

type Action struct {
	Value      map[string]any `json:"value,omitempty"`
	Tag        string         `json:"tag"`
	Timezone   string         `json:"timezone,omitempty"`
	Name       string         `json:"name,omitempty"`
	FormValue  map[string]any `json:"form_value,omitempty"`
	InputValue string         `json:"input_value,omitempty"`
	Option     string         `json:"option,omitempty"`
	Options    []string       `json:"options,omitempty"`
	Checked    bool           `json:"checked,omitempty"`
}

type ActionContext struct {
	URL           string `json:"url,omitempty"`
	PreviewToken  string `json:"preview_token,omitempty"`
	OpenMessageID string `json:"open_message_id"`
	OpenChatID    string `json:"open_chat_id"`
}

// CardActionEvent is the payload of card.action.trigger.
type CardActionEvent struct {
	Operator     Operator      `json:"operator"`
	Token        string        `json:"token"`
	Action       Action        `json:"action"`
	Host         string        `json:"host"`
	DeliveryType string        `json:"delivery_type,omitempty"`
	Context      ActionContext `json:"context"`
}

// Toast kinds shown by the client after a card callback.
const (
	ToastInfo    = "info"
	ToastSuccess = "success"
	ToastError   = "error"
	ToastWarning = "warning"
)

type Toast struct {
	Type    string            `json:"type"`
	Content string            `json:"content"`
	I18n    map[string]string `json:"i18n,omitempty"`
}

type TemplateCard struct {
	TemplateID          string         `json:"template_id"`
	TemplateVariable    map[string]any `json:"template_variable,omitempty"`
	TemplateVersionName string         `json:"template_version_name,omitempty"`
}

// CallbackCard replaces the card the user acted on. Type is "raw" with a card
// JSON in Data, or "template" with a TemplateCard.
type CallbackCard struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type CallbackResponse struct {
	Toast *Toast        `json:"toast,omitempty"`
	Card  *CallbackCard `json:"card,omitempty"`
}

// NewToastResponse answers a card callback with a toast only.
func NewToastResponse(kind, content string) *CallbackResponse {
	return &CallbackResponse{Toast: &Toast{Type: kind, Content: content}}
}
