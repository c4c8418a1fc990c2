package lark

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	httpclient "github.com/natserract/lark/pkg/http"
)

// ErrNoWebhook is returned by webhook calls when no webhook URL is configured.
var ErrNoWebhook = errors.New("lark: webhook url is not configured")

type webhookMessage struct {
	MsgType   string `json:"msg_type"`
	Content   any    `json:"content,omitempty"`
	Card      *Card  `json:"card,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Sign      string `json:"sign,omitempty"`
}

// WebhookSign computes the custom-bot signature for timestamp (unix seconds).
// The key is "timestamp\nsecret" and the signed message is empty.
func WebhookSign(timestamp int64, secret string) string {
	key := strconv.FormatInt(timestamp, 10) + "\n" + secret
	mac := hmac.New(sha256.New, []byte(key))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// SendWebhookText posts a plain text message to the configured custom bot.
func (l *Lark) SendWebhookText(ctx context.Context, text string) (*httpclient.Envelope, error) {
	return l.postWebhook(ctx, webhookMessage{
		MsgType: MsgTypeText,
		Content: map[string]string{"text": text},
	})
}

// SendWebhookCard posts an interactive card to the configured custom bot.
func (l *Lark) SendWebhookCard(ctx context.Context, card *Card) (*httpclient.Envelope, error) {
	if card == nil {
		return nil, fmt.Errorf("send webhook card: card is required")
	}
	return l.postWebhook(ctx, webhookMessage{
		MsgType: MsgTypeInteractive,
		Card:    card,
	})
}

// PostSuccessCard posts a green status card. An empty subtitle becomes the
// current time.
func (l *Lark) PostSuccessCard(ctx context.Context, msg, title, subtitle string) (*httpclient.Envelope, error) {
	if subtitle == "" {
		subtitle = l.credentials.now().Format(time.DateTime)
	}
	return l.SendWebhookCard(ctx, SuccessCard(msg, title, subtitle))
}

// PostErrorCard posts a red status card with a traceback section.
func (l *Lark) PostErrorCard(ctx context.Context, msg, traceback, title, subtitle string) (*httpclient.Envelope, error) {
	if subtitle == "" {
		subtitle = l.credentials.now().Format(time.DateTime)
	}
	return l.SendWebhookCard(ctx, ErrorCard(msg, traceback, title, subtitle))
}

func (l *Lark) postWebhook(ctx context.Context, msg webhookMessage) (*httpclient.Envelope, error) {
	if l.config.WebhookURL == "" {
		return nil, ErrNoWebhook
	}
	if l.config.WebhookSecret != "" {
		ts := l.credentials.now().Unix()
		msg.Timestamp = strconv.FormatInt(ts, 10)
		msg.Sign = WebhookSign(ts, l.config.WebhookSecret)
	}

	l.logger.Info("Posting webhook message", zap.String("msg_type", msg.MsgType))
	resp, err := httpclient.Post[httpclient.Envelope](ctx, l.httpClient, l.config.WebhookURL, msg,
		httpclient.WithoutAuth())
	if err != nil {
		l.logger.Error("Webhook post failed", zap.Error(err))
		return nil, fmt.Errorf("webhook post failed: %w", err)
	}
	return resp, nil
}
