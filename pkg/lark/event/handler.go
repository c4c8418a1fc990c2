package event

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/natserract/lark/pkg/logging"
)

// Server turns inbound pushes into Dispatch calls.
type Server struct {
	dispatcher        *Dispatcher
	encryptKey        string
	verificationToken string
	store             Store
	logger            *zap.Logger
}

type ServerOption func(*Server)

// WithEncryptKey enables payload decryption and signature checks.
func WithEncryptKey(key string) ServerOption {
	return func(s *Server) {
		s.encryptKey = key
	}
}

// WithVerificationToken rejects pushes whose token does not match.
func WithVerificationToken(token string) ServerOption {
	return func(s *Server) {
		s.verificationToken = token
	}
}

// WithStore replaces the default in-memory dedup store.
func WithStore(store Store) ServerOption {
	return func(s *Server) {
		s.store = store
	}
}

func WithLogger(logger *zap.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

func NewServer(d *Dispatcher, opts ...ServerOption) *Server {
	s := &Server{
		dispatcher: d,
		logger:     d.logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = NewMemoryStore(DefaultDedupTTL)
	}
	return s
}

// NewRouter serves srv on path with request logging and panic recovery.
func NewRouter(path string, srv *Server) *gin.Engine {
	engine := gin.New()
	engine.Use(logging.GinLogger(srv.logger))
	engine.Use(logging.GinRecovery(srv.logger))
	engine.POST(path, srv.Handler())
	return engine
}

// Handler answers url_verification challenges and dispatches schema 2.0
// events. Unknown and duplicate events are acknowledged with an empty object
// so the platform stops redelivering them.
func (s *Server) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
			return
		}

		payload, err := s.open(body)
		if err != nil {
			s.logger.Warn("Rejected event payload", zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if gjson.GetBytes(payload, "type").String() == "url_verification" {
			if !s.tokenMatches(gjson.GetBytes(payload, "token").String()) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": ErrInvalidToken.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"challenge": gjson.GetBytes(payload, "challenge").String()})
			return
		}

		var evt Event
		if err := json.Unmarshal(payload, &evt); err != nil || evt.Header.EventType == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "not a schema 2.0 event"})
			return
		}
		logger := s.logger.With(
			zap.String("event_id", evt.Header.EventID),
			zap.String("event_type", evt.Header.EventType))

		if !s.tokenMatches(evt.Header.Token) {
			logger.Warn("Rejected event with bad token")
			c.JSON(http.StatusUnauthorized, gin.H{"error": ErrInvalidToken.Error()})
			return
		}
		if s.encryptKey != "" {
			err := VerifySignature(c.GetHeader(HeaderSignature), c.GetHeader(HeaderTimestamp), c.GetHeader(HeaderNonce), s.encryptKey, body)
			if err != nil {
				logger.Warn("Rejected event with bad signature")
				c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
				return
			}
		}

		ctx := c.Request.Context()
		if evt.Header.EventID != "" {
			first, err := s.store.Claim(ctx, evt.Header.EventID)
			if err != nil {
				logger.Error("Failed to record event", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "event store unavailable"})
				return
			}
			if !first {
				logger.Info("Skipped duplicate event")
				c.JSON(http.StatusOK, gin.H{})
				return
			}
		}

		resp, err := s.dispatcher.Dispatch(ctx, evt.Header.EventType, &evt)
		switch {
		case errors.Is(err, ErrUnhandledEvent):
			logger.Warn("No handler for event")
			c.JSON(http.StatusOK, gin.H{})
			return
		case err != nil:
			logger.Error("Event handler failed", zap.Error(err))
			if evt.Header.EventID != "" {
				if rerr := s.store.Release(ctx, evt.Header.EventID); rerr != nil {
					logger.Warn("Failed to release event", zap.Error(rerr))
				}
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		if resp == nil {
			resp = gin.H{}
		}
		c.JSON(http.StatusOK, resp)
	}
}

// open returns the plaintext payload, decrypting the "encrypt" envelope when present.
func (s *Server) open(body []byte) ([]byte, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("body is not valid JSON")
	}
	encrypted := gjson.GetBytes(body, "encrypt")
	if !encrypted.Exists() {
		return body, nil
	}
	if s.encryptKey == "" {
		return nil, ErrMissingEncryptKey
	}
	plain, err := Decrypt(encrypted.String(), s.encryptKey)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(plain) {
		return nil, errors.New("decrypted payload is not valid JSON")
	}
	return plain, nil
}

func (s *Server) tokenMatches(token string) bool {
	return s.verificationToken == "" || token == s.verificationToken
}
