package lark

import (
	"context"

	httpclient "github.com/natserract/lark/pkg/http"
)

// LarkClient defines the interface for Lark API operations
type LarkClient interface {
	// GetTenantAccessToken returns a valid tenant access token
	GetTenantAccessToken(ctx context.Context) (*Credential, error)

	// SendMessage sends a message to a user or chat
	SendMessage(ctx context.Context, receiveIDType ReceiveIDType, req SendMessageRequest) (*MessageResponse, error)

	// ReplyMessage replies to an existing message
	ReplyMessage(ctx context.Context, messageID string, req ReplyMessageRequest) (*MessageResponse, error)

	// GetMessageResource downloads a file or image attached to a message
	GetMessageResource(ctx context.Context, messageID, fileKey, resourceType string) ([]byte, error)

	// UploadImage uploads an image and returns its image key
	UploadImage(ctx context.Context, imageType, filename string, data []byte) (*UploadImageResponse, error)

	// SendWebhookCard posts an interactive card to the configured custom bot
	SendWebhookCard(ctx context.Context, card *Card) (*httpclient.Envelope, error)

	// ReadRange reads one range of a spreadsheet
	ReadRange(ctx context.Context, token, rng string, opts ReadOptions) (*ReadRangeResponse, error)

	// WriteRange overwrites one range of a spreadsheet
	WriteRange(ctx context.Context, token, rng string, values [][]any) (*WriteRangeResponse, error)

	// BatchCreateRecords adds records to a bitable table
	BatchCreateRecords(ctx context.Context, appToken, tableID string, records []RecordFields) ([]Record, error)

	// GetWikiNode resolves a knowledge-space node
	GetWikiNode(ctx context.Context, token string) (*WikiNodeResponse, error)
}

var _ LarkClient = (*Lark)(nil)
