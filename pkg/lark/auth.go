package lark

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/natserract/lark/pkg/config"
	httpclient "github.com/natserract/lark/pkg/http"
)

// TokenSafetyMargin is subtracted from the issued lifetime so a token is
// refreshed shortly before the platform stops accepting it.
const TokenSafetyMargin = 5 * time.Second

// Credential kinds accepted by the configuration. Only tenant is implemented.
const (
	CredentialTenant = "tenant"
	CredentialUser   = "user"
	CredentialApp    = "app"
)

// Credential is an issued access token and the moment it stops being usable.
type Credential struct {
	AccessToken string
	ExpiresAt   time.Time
}

// IsExpired reports whether the credential must be refreshed at now.
func (c *Credential) IsExpired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// UnsupportedCredentialKindError is returned for credential kinds the client
// cannot issue.
type UnsupportedCredentialKindError struct {
	Kind string
}

func (e *UnsupportedCredentialKindError) Error() string {
	return fmt.Sprintf("lark: credential kind %q is not supported", e.Kind)
}

type tenantTokenRequest struct {
	AppID     string `json:"app_id"`
	AppSecret string `json:"app_secret"`
}

type tenantTokenResponse struct {
	httpclient.Envelope
	TenantAccessToken string `json:"tenant_access_token"`
	Expire            int    `json:"expire"`
}

func (r *tenantTokenResponse) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.TenantAccessToken, validation.Required),
		validation.Field(&r.Expire, validation.Required, validation.Min(1)),
	)
}

// credentialStore caches the tenant access token. The current credential is
// replaced wholesale on refresh and concurrent refreshes share one request.
type credentialStore struct {
	kind      string
	appID     string
	appSecret string
	client    *httpclient.Client
	current   atomic.Pointer[Credential]
	group     singleflight.Group
	now       func() time.Time
	logger    *zap.Logger

	// refreshTimeout bounds a shared refresh once its starter has gone away.
	refreshTimeout time.Duration
}

func newCredentialStore(cfg *config.Config, now func() time.Time, logger *zap.Logger) *credentialStore {
	kind := cfg.CredentialKind
	if kind == "" {
		kind = CredentialTenant
	}
	refreshTimeout := cfg.Timeout
	if refreshTimeout <= 0 {
		refreshTimeout = config.DefaultTimeout
	}
	return &credentialStore{
		kind:           kind,
		appID:          cfg.AppID,
		appSecret:      cfg.AppSecret,
		now:            now,
		logger:         logger,
		refreshTimeout: refreshTimeout,
	}
}

// AuthHeaders implements httpclient.AuthProvider.
func (s *credentialStore) AuthHeaders(ctx context.Context) (map[string]string, error) {
	cred, err := s.credential(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"Authorization": "Bearer " + cred.AccessToken,
	}, nil
}

// credential returns a valid credential, refreshing it when absent or expired.
func (s *credentialStore) credential(ctx context.Context) (*Credential, error) {
	if s.kind != CredentialTenant {
		return nil, &UnsupportedCredentialKindError{Kind: s.kind}
	}

	if cred := s.current.Load(); cred != nil && !cred.IsExpired(s.now()) {
		return cred, nil
	}

	// The flight outlives the caller that started it so one cancelled caller
	// does not fail the others; each caller still stops waiting on its own ctx.
	ch := s.group.DoChan(s.kind, func() (any, error) {
		// Another caller may have finished a refresh while we waited.
		if cred := s.current.Load(); cred != nil && !cred.IsExpired(s.now()) {
			return cred, nil
		}
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.refreshTimeout)
		defer cancel()
		return s.refresh(flightCtx)
	})
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("failed to get tenant access token: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Credential), nil
	}
}

func (s *credentialStore) refresh(ctx context.Context) (*Credential, error) {
	if s.client == nil {
		return nil, fmt.Errorf("lark: credential store has no client")
	}
	s.logger.Info("Access token expired or not available, requesting tenant access token",
		zap.String("app_id", s.appID))

	resp, err := httpclient.Post[tenantTokenResponse](ctx, s.client, tenantAccessTokenPath,
		tenantTokenRequest{AppID: s.appID, AppSecret: s.appSecret},
		httpclient.WithoutAuth())
	if err != nil {
		s.logger.Error("Failed to get tenant access token", zap.Error(err))
		return nil, fmt.Errorf("failed to get tenant access token: %w", err)
	}

	expiresIn := time.Duration(resp.Expire) * time.Second
	cred := &Credential{
		AccessToken: resp.TenantAccessToken,
		ExpiresAt:   s.now().Add(expiresIn - TokenSafetyMargin),
	}
	s.current.Store(cred)

	s.logger.Info("Successfully cached tenant access token",
		zap.Duration("expires_in", expiresIn),
		zap.Time("expires_at", cred.ExpiresAt))
	return cred, nil
}

// invalidate drops the cached credential so the next call refreshes it.
func (s *credentialStore) invalidate() {
	s.current.Store(nil)
}

// GetTenantAccessToken returns the cached tenant access token, requesting a
// new one when it is absent or expired.
func (l *Lark) GetTenantAccessToken(ctx context.Context) (*Credential, error) {
	return l.credentials.credential(ctx)
}

// InvalidateCredential forces the next authenticated call to request a new token.
func (l *Lark) InvalidateCredential() {
	l.credentials.invalidate()
}
