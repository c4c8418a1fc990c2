package event

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	testPath  = "/webhook/event"
	testKey   = "encrypt-key"
	testToken = "verify-token"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T, d *Dispatcher, opts ...ServerOption) *gin.Engine {
	t.Helper()
	opts = append([]ServerOption{WithLogger(zaptest.NewLogger(t))}, opts...)
	return NewRouter(testPath, NewServer(d, opts...))
}

func post(router http.Handler, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, testPath, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func eventJSON(t *testing.T, id, typ, token string, payload any) string {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	b, err := json.Marshal(Event{
		Schema: "2.0",
		Header: Header{EventID: id, EventType: typ, Token: token, AppID: "cli_test"},
		Event:  raw,
	})
	require.NoError(t, err)
	return string(b)
}

func sealed(t *testing.T, plaintext string) string {
	t.Helper()
	b, err := json.Marshal(map[string]string{"encrypt": encrypt(t, testKey, []byte(plaintext))})
	require.NoError(t, err)
	return string(b)
}

func TestURLVerification(t *testing.T) {
	router := newTestRouter(t, NewDispatcherWithLogger(zaptest.NewLogger(t)), WithVerificationToken(testToken))

	rec := post(router, `{"type":"url_verification","challenge":"abc","token":"verify-token"}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"challenge":"abc"}`, rec.Body.String())

	rec = post(router, `{"type":"url_verification","challenge":"abc","token":"wrong"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestEncryptedURLVerification(t *testing.T) {
	router := newTestRouter(t, NewDispatcherWithLogger(zaptest.NewLogger(t)), WithEncryptKey(testKey))

	rec := post(router, sealed(t, `{"type":"url_verification","challenge":"c-1"}`), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"challenge":"c-1"}`, rec.Body.String())
}

func TestEncryptedWithoutKey(t *testing.T) {
	router := newTestRouter(t, NewDispatcherWithLogger(zaptest.NewLogger(t)))

	rec := post(router, sealed(t, `{"type":"url_verification"}`), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), ErrMissingEncryptKey.Error())
}

func TestRejectsMalformedBodies(t *testing.T) {
	router := newTestRouter(t, NewDispatcherWithLogger(zaptest.NewLogger(t)), WithEncryptKey(testKey))

	for _, body := range []string{
		`not json`,
		`{"schema":"2.0","header":{}}`,
		`{"encrypt":"AAAA"}`,
		sealed(t, `not json either`),
	} {
		rec := post(router, body, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestEncryptedEventDispatch(t *testing.T) {
	d := NewDispatcherWithLogger(zaptest.NewLogger(t))
	var got MessageReceiveEvent
	d.Register(TypeMessageReceive, func(_ context.Context, evt *Event) (any, error) {
		return nil, evt.Decode(&got)
	})
	router := newTestRouter(t, d, WithEncryptKey(testKey), WithVerificationToken(testToken))

	plain := eventJSON(t, "e1", TypeMessageReceive, testToken, map[string]any{
		"message": map[string]any{
			"message_id":   "om_1",
			"message_type": "text",
			"content":      `{"text":"hi bot"}`,
		},
	})
	body := sealed(t, plain)
	headers := map[string]string{
		HeaderTimestamp: "1700000000",
		HeaderNonce:     "n1",
		HeaderSignature: Signature("1700000000", "n1", testKey, []byte(body)),
	}

	rec := post(router, body, headers)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{}`, rec.Body.String())

	text, err := got.Text()
	require.NoError(t, err)
	assert.Equal(t, "hi bot", text)
}

func TestBadSignature(t *testing.T) {
	d := NewDispatcherWithLogger(zaptest.NewLogger(t))
	var calls atomic.Int32
	d.Register("custom", func(context.Context, *Event) (any, error) {
		calls.Add(1)
		return nil, nil
	})
	router := newTestRouter(t, d, WithEncryptKey(testKey))

	body := sealed(t, eventJSON(t, "e1", "custom", "", map[string]any{}))
	rec := post(router, body, map[string]string{
		HeaderTimestamp: "1700000000",
		HeaderNonce:     "n1",
		HeaderSignature: "deadbeef",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, calls.Load())
}

func TestBadEventToken(t *testing.T) {
	d := NewDispatcherWithLogger(zaptest.NewLogger(t))
	router := newTestRouter(t, d, WithVerificationToken(testToken))

	rec := post(router, eventJSON(t, "e1", "custom", "other", map[string]any{}), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDuplicateEvent(t *testing.T) {
	d := NewDispatcherWithLogger(zaptest.NewLogger(t))
	var calls atomic.Int32
	d.Register("custom", func(context.Context, *Event) (any, error) {
		calls.Add(1)
		return map[string]string{"ok": "yes"}, nil
	})
	router := newTestRouter(t, d)
	body := eventJSON(t, "dup-1", "custom", "", map[string]any{})

	rec := post(router, body, nil)
	assert.JSONEq(t, `{"ok":"yes"}`, rec.Body.String())

	rec = post(router, body, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{}`, rec.Body.String())
	assert.Equal(t, int32(1), calls.Load())
}

func TestUnhandledEventIsAcknowledged(t *testing.T) {
	router := newTestRouter(t, NewDispatcherWithLogger(zaptest.NewLogger(t)))

	rec := post(router, eventJSON(t, "e1", TypeChatUpdated, "", map[string]any{}), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{}`, rec.Body.String())
}

func TestFailedEventCanBeRedelivered(t *testing.T) {
	d := NewDispatcherWithLogger(zaptest.NewLogger(t))
	var calls atomic.Int32
	d.Register("custom", func(context.Context, *Event) (any, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("downstream unavailable")
		}
		return nil, nil
	})
	store := NewMemoryStore(0)
	router := newTestRouter(t, d, WithStore(store))
	body := eventJSON(t, "e-retry", "custom", "", map[string]any{})

	rec := post(router, body, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "downstream unavailable")
	assert.Zero(t, store.Len())

	rec = post(router, body, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int32(2), calls.Load())
}

type failingStore struct{}

func (failingStore) Claim(context.Context, string) (bool, error) { return false, errors.New("db down") }
func (failingStore) Release(context.Context, string) error { return nil }

func TestStoreFailure(t *testing.T) {
	d := NewDispatcherWithLogger(zaptest.NewLogger(t))
	d.Register("custom", func(context.Context, *Event) (any, error) { return nil, nil })
	router := newTestRouter(t, d, WithStore(failingStore{}))

	rec := post(router, eventJSON(t, "e1", "custom", "", map[string]any{}), nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCardActionCallback(t *testing.T) {
	d := NewDispatcherWithLogger(zaptest.NewLogger(t))
	d.Register(TypeCardActionTrigger, func(_ context.Context, evt *Event) (any, error) {
		var action CardActionEvent
		if err := evt.Decode(&action); err != nil {
			return nil, err
		}
		return NewToastResponse(ToastSuccess, "Received "+action.Action.Tag), nil
	})
	router := newTestRouter(t, d)

	body := eventJSON(t, "c1", TypeCardActionTrigger, "", map[string]any{
		"operator": map[string]any{"open_id": "ou_1"},
		"action":   map[string]any{"tag": "button", "value": map[string]any{"k": "v"}},
	})
	rec := post(router, body, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"toast":{"type":"success","content":"Received button"}}`, rec.Body.String())
}

func TestRouterRecoversPanics(t *testing.T) {
	d := NewDispatcherWithLogger(zaptest.NewLogger(t))
	d.Register("custom", func(context.Context, *Event) (any, error) { panic("handler bug") })
	router := newTestRouter(t, d)

	rec := post(router, eventJSON(t, "e1", "custom", "", map[string]any{}), nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestMissingSignatureWithEncryptKey(t *testing.T) {
	d := NewDispatcherWithLogger(zaptest.NewLogger(t))
	var calls atomic.Int32
	d.Register("custom", func(context.Context, *Event) (any, error) {
		calls.Add(1)
		return nil, nil
	})
	router := newTestRouter(t, d, WithEncryptKey(testKey))

	rec := post(router, sealed(t, eventJSON(t, "e1", "custom", "", map[string]any{})), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), ErrInvalidSignature.Error())
	assert.Zero(t, calls.Load())
}
