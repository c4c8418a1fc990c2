package lark

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpclient "github.com/natserract/lark/pkg/http"
)

func TestTenantAccessTokenCached(t *testing.T) {
	srv := newTestServer(t)
	clock := newFakeClock()
	l := srv.client(t, nil, WithClock(clock.Now))
	ctx := context.Background()

	cred, err := l.GetTenantAccessToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, testToken, cred.AccessToken)
	assert.Equal(t, clock.Now().Add(7200*time.Second-TokenSafetyMargin), cred.ExpiresAt)
	assert.Equal(t, int32(1), srv.tokenIssued.Load())

	_, err = l.GetTenantAccessToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), srv.tokenIssued.Load(), "valid credential is reused")
}

func TestTenantAccessTokenSafetyMargin(t *testing.T) {
	srv := newTestServer(t)
	clock := newFakeClock()
	l := srv.client(t, nil, WithClock(clock.Now))
	ctx := context.Background()

	_, err := l.GetTenantAccessToken(ctx)
	require.NoError(t, err)

	clock.Advance(7200*time.Second - TokenSafetyMargin)
	_, err = l.GetTenantAccessToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), srv.tokenIssued.Load(), "exactly at expiry is still valid")

	clock.Advance(time.Second)
	_, err = l.GetTenantAccessToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), srv.tokenIssued.Load(), "expired credential is refreshed once")
}

func TestCredentialRefreshIsTransparent(t *testing.T) {
	srv := newTestServer(t)
	clock := newFakeClock()
	var calls atomic.Int32
	srv.handle(t, "GET /open-apis/im/v1/messages/{id}", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, ok(map[string]any{"items": []map[string]any{{"message_id": r.PathValue("id")}}}))
	})
	l := srv.client(t, nil, WithClock(clock.Now))
	ctx := context.Background()

	_, err := l.GetMessage(ctx, "om_1")
	require.NoError(t, err)
	clock.Advance(3 * time.Hour)
	resp, err := l.GetMessage(ctx, "om_2")
	require.NoError(t, err)

	assert.Equal(t, "om_2", resp.Data.Items[0].MessageID)
	assert.Equal(t, int32(2), srv.tokenIssued.Load())
	assert.Equal(t, int32(2), calls.Load())
}

func TestInvalidateCredential(t *testing.T) {
	srv := newTestServer(t)
	l := srv.client(t, nil)
	ctx := context.Background()

	_, err := l.GetTenantAccessToken(ctx)
	require.NoError(t, err)
	l.InvalidateCredential()
	_, err = l.GetTenantAccessToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), srv.tokenIssued.Load())
}

func TestConcurrentRefreshSharesOneRequest(t *testing.T) {
	srv := newTestServer(t, withTokenLatency(50*time.Millisecond))
	l := srv.client(t, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cred, err := l.GetTenantAccessToken(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, testToken, cred.AccessToken)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), srv.tokenIssued.Load())
}

func TestUnsupportedCredentialKind(t *testing.T) {
	srv := newTestServer(t)
	var calls atomic.Int32
	srv.mux.HandleFunc("POST /open-apis/im/v1/messages", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})
	cfg := srv.config()
	cfg.CredentialKind = CredentialUser
	l := srv.client(t, cfg)

	_, err := l.GetTenantAccessToken(context.Background())
	var kindErr *UnsupportedCredentialKindError
	require.ErrorAs(t, err, &kindErr)
	assert.Equal(t, CredentialUser, kindErr.Kind)

	_, err = l.SendText(context.Background(), ReceiveIDChatID, "oc_1", "hi")
	require.ErrorAs(t, err, &kindErr)

	assert.Zero(t, srv.tokenIssued.Load())
	assert.Zero(t, calls.Load())
}

func TestTenantTokenRejected(t *testing.T) {
	srv := newTestServer(t, withTokenReply(map[string]any{"code": 10014, "msg": "app secret invalid"}))
	l := srv.client(t, nil)

	_, err := l.GetTenantAccessToken(context.Background())
	var apiErr *httpclient.RemoteAPIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 10014, apiErr.Code)
	assert.Equal(t, int32(1), srv.tokenIssued.Load(), "logical failures are not retried")
}

func TestTenantTokenMissingFields(t *testing.T) {
	srv := newTestServer(t, withTokenReply(map[string]any{"code": 0, "msg": "ok"}))
	l := srv.client(t, nil)

	_, err := l.GetTenantAccessToken(context.Background())
	var badErr *httpclient.BadResponseError
	require.ErrorAs(t, err, &badErr)
}

func TestCancelledCallerDoesNotFailSharedRefresh(t *testing.T) {
	srv := newTestServer(t, withTokenLatency(200*time.Millisecond))
	l := srv.client(t, nil)

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := l.GetTenantAccessToken(leaderCtx)
		leaderErr <- err
	}()

	time.Sleep(50 * time.Millisecond)
	waiter := make(chan error, 1)
	var cred *Credential
	go func() {
		var err error
		cred, err = l.GetTenantAccessToken(context.Background())
		waiter <- err
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-leaderErr, context.Canceled)

	require.NoError(t, <-waiter)
	assert.Equal(t, testToken, cred.AccessToken)
	assert.Equal(t, int32(1), srv.tokenIssued.Load())
}
