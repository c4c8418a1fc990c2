package lark

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	httpclient "github.com/natserract/lark/pkg/http"
)

// ReceiveIDType selects how SendMessage interprets the receive id.
type ReceiveIDType string

const (
	ReceiveIDOpenID  ReceiveIDType = "open_id"
	ReceiveIDUserID  ReceiveIDType = "user_id"
	ReceiveIDUnionID ReceiveIDType = "union_id"
	ReceiveIDEmail   ReceiveIDType = "email"
	ReceiveIDChatID  ReceiveIDType = "chat_id"
)

// Message types accepted by the send and reply endpoints.
const (
	MsgTypeText        = "text"
	MsgTypePost        = "post"
	MsgTypeImage       = "image"
	MsgTypeFile        = "file"
	MsgTypeInteractive = "interactive"
)

// SendMessageRequest is the body of a send call. Content is the JSON encoded
// message content, see TextContent and CardContent.
type SendMessageRequest struct {
	ReceiveID string `json:"receive_id"`
	MsgType   string `json:"msg_type"`
	Content   string `json:"content"`
	// UUID deduplicates retried sends for one hour. Filled when empty.
	UUID string `json:"uuid,omitempty"`
}

func (r SendMessageRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ReceiveID, validation.Required),
		validation.Field(&r.MsgType, validation.Required),
		validation.Field(&r.Content, validation.Required),
	)
}

type ReplyMessageRequest struct {
	MsgType       string `json:"msg_type"`
	Content       string `json:"content"`
	ReplyInThread bool   `json:"reply_in_thread,omitempty"`
	UUID          string `json:"uuid,omitempty"`
}

func (r ReplyMessageRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.MsgType, validation.Required),
		validation.Field(&r.Content, validation.Required),
	)
}

type MessageSender struct {
	ID         string `json:"id"`
	IDType     string `json:"id_type"`
	SenderType string `json:"sender_type"`
	TenantKey  string `json:"tenant_key"`
}

type MessageBody struct {
	Content string `json:"content"`
}

type Mention struct {
	Key       string `json:"key"`
	ID        string `json:"id"`
	IDType    string `json:"id_type"`
	Name      string `json:"name"`
	TenantKey string `json:"tenant_key"`
}

type Message struct {
	MessageID      string        `json:"message_id"`
	RootID         string        `json:"root_id,omitempty"`
	ParentID       string        `json:"parent_id,omitempty"`
	ThreadID       string        `json:"thread_id,omitempty"`
	MsgType        string        `json:"msg_type"`
	CreateTime     string        `json:"create_time"`
	UpdateTime     string        `json:"update_time"`
	Deleted        bool          `json:"deleted"`
	Updated        bool          `json:"updated"`
	ChatID         string        `json:"chat_id"`
	Sender         MessageSender `json:"sender"`
	Body           MessageBody   `json:"body"`
	Mentions       []Mention     `json:"mentions,omitempty"`
	UpperMessageID string        `json:"upper_message_id,omitempty"`
}

type MessageResponse = httpclient.Result[Message]

type MessageItems struct {
	Items []Message `json:"items"`
}

type GetMessageResponse = httpclient.Result[MessageItems]

type UploadImageData struct {
	ImageKey string `json:"image_key"`
}

type UploadImageResponse = httpclient.Result[UploadImageData]

// Image types accepted by UploadImage.
const (
	ImageTypeMessage = "message"
	ImageTypeAvatar  = "avatar"
)

// TextContent encodes a plain text message body.
func TextContent(text string) string {
	b, _ := json.Marshal(map[string]string{"text": text})
	return string(b)
}

// CardContent encodes an interactive card message body.
func CardContent(card *Card) (string, error) {
	b, err := json.Marshal(card)
	if err != nil {
		return "", fmt.Errorf("failed to marshal card: %w", err)
	}
	return string(b), nil
}

// SendMessage sends a message to a user or chat identified by receiveIDType.
func (l *Lark) SendMessage(ctx context.Context, receiveIDType ReceiveIDType, req SendMessageRequest) (*MessageResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid send message request: %w", err)
	}
	if req.UUID == "" {
		req.UUID = uuid.NewString()
	}

	l.logger.Info("Sending message",
		zap.String("receive_id_type", string(receiveIDType)),
		zap.String("msg_type", req.MsgType))

	resp, err := httpclient.Post[MessageResponse](ctx, l.httpClient, messagesPath, req,
		httpclient.WithParam("receive_id_type", string(receiveIDType)))
	if err != nil {
		return nil, fmt.Errorf("send message failed: %w", err)
	}

	l.logger.Info("Successfully sent message", zap.String("message_id", resp.Data.MessageID))
	return resp, nil
}

// SendText is a shortcut for sending a plain text message.
func (l *Lark) SendText(ctx context.Context, receiveIDType ReceiveIDType, receiveID, text string) (*MessageResponse, error) {
	return l.SendMessage(ctx, receiveIDType, SendMessageRequest{
		ReceiveID: receiveID,
		MsgType:   MsgTypeText,
		Content:   TextContent(text),
	})
}

// ReplyMessage replies to messageID, optionally inside its thread.
func (l *Lark) ReplyMessage(ctx context.Context, messageID string, req ReplyMessageRequest) (*MessageResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid reply message request: %w", err)
	}
	if req.UUID == "" {
		req.UUID = uuid.NewString()
	}
	path, err := httpclient.FormatPath(messageReplyPath, map[string]string{"message_id": messageID})
	if err != nil {
		return nil, err
	}

	resp, err := httpclient.Post[MessageResponse](ctx, l.httpClient, path, req)
	if err != nil {
		return nil, fmt.Errorf("reply message failed: %w", err)
	}
	return resp, nil
}

// ForwardMessage forwards messageID to another receiver.
func (l *Lark) ForwardMessage(ctx context.Context, messageID string, receiveIDType ReceiveIDType, receiveID string) (*MessageResponse, error) {
	path, err := httpclient.FormatPath(messageForwardPath, map[string]string{"message_id": messageID})
	if err != nil {
		return nil, err
	}

	resp, err := httpclient.Post[MessageResponse](ctx, l.httpClient, path,
		map[string]string{"receive_id": receiveID},
		httpclient.WithParam("receive_id_type", string(receiveIDType)),
		httpclient.WithParam("uuid", uuid.NewString()))
	if err != nil {
		return nil, fmt.Errorf("forward message failed: %w", err)
	}
	return resp, nil
}

func (l *Lark) GetMessage(ctx context.Context, messageID string) (*GetMessageResponse, error) {
	path, err := httpclient.FormatPath(messagePath, map[string]string{"message_id": messageID})
	if err != nil {
		return nil, err
	}

	resp, err := httpclient.Get[GetMessageResponse](ctx, l.httpClient, path)
	if err != nil {
		return nil, fmt.Errorf("get message failed: %w", err)
	}
	return resp, nil
}

// GetMessageResource downloads an image or file attached to a message.
// resourceType is "image" or "file".
func (l *Lark) GetMessageResource(ctx context.Context, messageID, fileKey, resourceType string) ([]byte, error) {
	path, err := httpclient.FormatPath(messageResourcePath, map[string]string{
		"message_id": messageID,
		"file_key":   fileKey,
	})
	if err != nil {
		return nil, err
	}

	resp, err := l.httpClient.Raw(ctx, http.MethodGet, path, httpclient.WithParam("type", resourceType))
	if err != nil {
		return nil, fmt.Errorf("get message resource failed: %w", err)
	}

	l.logger.Debug("Downloaded message resource",
		zap.String("message_id", messageID),
		zap.Int("bytes", len(resp.Body)))
	return resp.Body, nil
}

// UploadImage uploads an image for use in messages or as an avatar.
func (l *Lark) UploadImage(ctx context.Context, imageType, filename string, data []byte) (*UploadImageResponse, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("upload image: empty image data")
	}
	if imageType == "" {
		imageType = ImageTypeMessage
	}

	opts, err := httpclient.NewRequestOptions(http.MethodPost, imagesPath,
		httpclient.WithMultipart(
			map[string]string{"image_type": imageType},
			map[string]httpclient.FilePart{"image": {Filename: filename, Data: data}},
		))
	if err != nil {
		return nil, err
	}

	resp, err := httpclient.Execute[UploadImageResponse](ctx, l.httpClient, opts)
	if err != nil {
		return nil, fmt.Errorf("upload image failed: %w", err)
	}

	l.logger.Info("Successfully uploaded image", zap.String("image_key", resp.Data.ImageKey))
	return resp, nil
}
