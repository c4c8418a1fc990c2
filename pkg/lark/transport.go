package lark

import (
	"net/http"

	"github.com/natserract/lark/pkg/config"
	httpclient "github.com/natserract/lark/pkg/http"
)

func newHTTPClient(cfg *config.Config) *http.Client {
	return &http.Client{
		Transport: httpclient.NewTransport(httpclient.TransportConfig{
			ConnectTimeout:     cfg.ConnectTimeout,
			MaxConnections:     cfg.MaxConnections,
			MaxIdleConnections: cfg.MaxIdleConnections,
		}),
	}
}
