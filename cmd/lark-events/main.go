package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/natserract/lark/pkg/config"
	"github.com/natserract/lark/pkg/lark"
	"github.com/natserract/lark/pkg/lark/event"
	"github.com/natserract/lark/pkg/logging"
	"github.com/natserract/lark/pkg/storage/postgres"
)

func main() {
	addr := pflag.String("addr", "", "listen address (default LARK_EVENT_ADDR)")
	path := pflag.String("path", "", "event callback path (default LARK_EVENT_PATH)")
	dedupTTL := pflag.Duration("dedup-ttl", event.DefaultDedupTTL, "how long processed event ids are remembered")
	pflag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.EventAddr = *addr
	}
	if *path != "" {
		cfg.EventPath = *path
	}
	if err := cfg.RequireAppCredentials(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := logging.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := lark.NewLarkWithLogger(cfg, logger)

	dispatcher := event.NewDispatcherWithLogger(logger)
	dispatcher.Register(event.TypeMessageReceive, echoHandler(client, logger), event.Async())
	dispatcher.Register(event.TypeCardActionTrigger, cardActionHandler(logger))

	var store event.Store = event.NewMemoryStore(*dedupTTL)
	if cfg.DatabaseDSN != "" {
		db, err := postgres.New(ctx, postgres.NewConfig(cfg.DatabaseDSN), logger)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		pgStore, err := event.NewPostgresStore(ctx, db, logger)
		if err != nil {
			logger.Fatal("Failed to initialize event store", zap.Error(err))
		}
		if _, err := pgStore.Purge(ctx, *dedupTTL); err != nil {
			logger.Warn("Failed to purge processed events", zap.Error(err))
		}
		store = pgStore
	}

	srv := event.NewServer(dispatcher,
		event.WithEncryptKey(cfg.EncryptKey),
		event.WithVerificationToken(cfg.VerificationToken),
		event.WithStore(store),
		event.WithLogger(logger))

	gin.SetMode(gin.ReleaseMode)
	httpServer := &http.Server{
		Addr:              cfg.EventAddr,
		Handler:           event.NewRouter(cfg.EventPath, srv),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Listening for events", zap.String("addr", cfg.EventAddr), zap.String("path", cfg.EventPath))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Event server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down event server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shut down event server", zap.Error(err))
	}
	dispatcher.Wait()
}

// echoHandler replies to text messages with the same text and saves received
// images to the working directory.
func echoHandler(client *lark.Lark, logger *zap.Logger) event.Handler {
	return func(ctx context.Context, evt *event.Event) (any, error) {
		var msg event.MessageReceiveEvent
		if err := evt.Decode(&msg); err != nil {
			return nil, err
		}

		switch msg.Message.MessageType {
		case lark.MsgTypeText:
			text, err := msg.Text()
			if err != nil {
				return nil, err
			}
			_, err = client.ReplyMessage(ctx, msg.Message.MessageID, lark.ReplyMessageRequest{
				MsgType: lark.MsgTypeText,
				Content: lark.TextContent(text),
			})
			return nil, err
		case lark.MsgTypeImage:
			key, err := msg.ImageKey()
			if err != nil {
				return nil, err
			}
			data, err := client.GetMessageResource(ctx, msg.Message.MessageID, key, "image")
			if err != nil {
				return nil, err
			}
			path, err := lark.SaveFile(".", key+".png", data)
			if err != nil {
				return nil, err
			}
			logger.Info("Saved message image", zap.String("path", path))
		default:
			logger.Info("Ignoring message", zap.String("message_type", msg.Message.MessageType))
		}
		return nil, nil
	}
}

func cardActionHandler(logger *zap.Logger) event.Handler {
	return func(ctx context.Context, evt *event.Event) (any, error) {
		var action event.CardActionEvent
		if err := evt.Decode(&action); err != nil {
			return nil, err
		}
		logger.Info("Card action",
			zap.String("open_id", action.Operator.OpenID),
			zap.String("tag", action.Action.Tag),
			zap.Any("value", action.Action.Value))
		return event.NewToastResponse(event.ToastSuccess, "Received "+action.Action.Tag), nil
	}
}
