package http

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequestOptions(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		o, err := NewRequestOptions(http.MethodGet, "im/v1/messages")
		require.NoError(t, err)
		assert.Equal(t, http.MethodGet, o.Method())
		assert.False(t, o.SkipAuth())
		assert.False(t, o.RawResponse())
		_, ok := o.MaxRetries()
		assert.False(t, ok)
		assert.Zero(t, o.Timeout())
	})

	t.Run("exactly one body", func(t *testing.T) {
		_, err := NewRequestOptions(http.MethodPost, "x",
			WithJSON(map[string]string{"a": "b"}),
			WithContent([]byte("raw"), "text/plain"))
		assert.ErrorIs(t, err, ErrConflictingBody)

		_, err = NewRequestOptions(http.MethodPost, "x",
			WithContent([]byte("raw"), ""),
			WithMultipart(nil, map[string]FilePart{"f": {Data: []byte("d")}}))
		assert.ErrorIs(t, err, ErrConflictingBody)

		_, err = NewRequestOptions(http.MethodPost, "x", WithJSON(nil), WithContent([]byte("raw"), ""))
		assert.NoError(t, err, "a nil JSON body does not count")
	})

	t.Run("rejects invalid values", func(t *testing.T) {
		_, err := NewRequestOptions("HEAD", "x")
		assert.Error(t, err)
		_, err = NewRequestOptions(http.MethodGet, "")
		assert.Error(t, err)
		_, err = NewRequestOptions(http.MethodGet, "x", WithMaxRetries(-1))
		assert.Error(t, err)
	})

	t.Run("accessors copy", func(t *testing.T) {
		o, err := NewRequestOptions(http.MethodGet, "x", WithParam("a", "1"), WithHeader("X-A", "1"))
		require.NoError(t, err)
		o.Params()["a"] = "2"
		o.Headers()["X-A"] = "2"
		assert.Equal(t, "1", o.Params()["a"])
		assert.Equal(t, "1", o.Headers()["X-A"])
	})
}

func TestFormatPath(t *testing.T) {
	got, err := FormatPath("sheets/v3/spreadsheets/{spreadsheet_token}/sheets/{sheet_id}", map[string]string{
		"spreadsheet_token": "shtABC",
		"sheet_id":          "a/b",
	})
	require.NoError(t, err)
	assert.Equal(t, "sheets/v3/spreadsheets/shtABC/sheets/a%2Fb", got)

	_, err = FormatPath("im/v1/messages/{message_id}", map[string]string{"message_id": ""})
	assert.ErrorIs(t, err, ErrMissingPathParam)
}

func TestBuildURL(t *testing.T) {
	tests := []struct {
		name   string
		base   string
		path   string
		params map[string]string
		want   string
	}{
		{"joins slashes", "https://open.feishu.cn/open-apis/", "/im/v1/messages", nil, "https://open.feishu.cn/open-apis/im/v1/messages"},
		{"base without slash", "https://open.feishu.cn/open-apis", "im/v1/chats", nil, "https://open.feishu.cn/open-apis/im/v1/chats"},
		{"strips empty params", "https://h/api/", "x", map[string]string{"a": "1", "b": ""}, "https://h/api/x?a=1"},
		{"absolute path", "https://h/api/", "https://hook.test/bot/v2/hook/abc?x=1", map[string]string{"y": "2"}, "https://hook.test/bot/v2/hook/abc?x=1&y=2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildURL(tt.base, tt.path, tt.params)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
