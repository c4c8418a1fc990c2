package lark

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookSign(t *testing.T) {
	assert.Equal(t, "fiWS2+gh28DOydAv7hzONH/mDn9+b1Y4Y5ivXWXy8vA=", WebhookSign(1_700_000_000, "secret"))
}

func TestSendWebhookText(t *testing.T) {
	srv := newTestServer(t)
	srv.mux.HandleFunc("POST /open-apis/bot/v2/hook/abc", func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		var body map[string]any
		decodeBody(t, r, &body)
		assert.Equal(t, "text", body["msg_type"])
		assert.Equal(t, map[string]any{"text": "build finished"}, body["content"])
		assert.Equal(t, "1700000000", body["timestamp"])
		assert.Equal(t, WebhookSign(1_700_000_000, "secret"), body["sign"])
		writeJSON(w, map[string]any{"code": 0, "msg": "success"})
	})
	cfg := srv.config()
	cfg.WebhookURL = srv.URL + "/open-apis/bot/v2/hook/abc"
	cfg.WebhookSecret = "secret"
	l := srv.client(t, cfg, WithClock(newFakeClock().Now))

	resp, err := l.SendWebhookText(context.Background(), "build finished")
	require.NoError(t, err)
	assert.Equal(t, 0, resp.Code)
	assert.Zero(t, srv.tokenIssued.Load(), "webhooks never request a token")
}

func TestPostErrorCard(t *testing.T) {
	clock := newFakeClock()
	srv := newTestServer(t)
	srv.mux.HandleFunc("POST /hook", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			MsgType string `json:"msg_type"`
			Card    Card   `json:"card"`
			Sign    string `json:"sign"`
		}
		decodeBody(t, r, &body)
		assert.Equal(t, MsgTypeInteractive, body.MsgType)
		assert.Empty(t, body.Sign)

		header := body.Card.I18nHeader[defaultCardLocale]
		if assert.NotNil(t, header) {
			assert.Equal(t, TemplateRed, header.Template)
			assert.Equal(t, "Nightly", header.Title.Content)
			assert.Equal(t, clock.Now().Format(time.DateTime), header.Subtitle.Content)
		}
		elements := body.Card.I18nElements[defaultCardLocale]
		assert.Len(t, elements, 4)
		writeJSON(w, map[string]any{"code": 0})
	})
	cfg := srv.config()
	cfg.WebhookURL = srv.URL + "/hook"
	l := srv.client(t, cfg, WithClock(clock.Now))

	_, err := l.PostErrorCard(context.Background(), "job failed", "stack trace\n", "Nightly", "")
	require.NoError(t, err)
}

func TestWebhookErrors(t *testing.T) {
	srv := newTestServer(t)
	srv.mux.HandleFunc("POST /hook", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"code": 19021, "msg": "sign match fail or timestamp is not within one hour from current time"})
	})

	l := srv.client(t, nil)
	_, err := l.SendWebhookText(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNoWebhook)

	cfg := srv.config()
	cfg.WebhookURL = srv.URL + "/hook"
	l = srv.client(t, cfg)
	_, err = l.SendWebhookText(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "19021")
}
