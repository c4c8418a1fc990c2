package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/natserract/lark/pkg/config"
	"github.com/natserract/lark/pkg/lark"
	"github.com/natserract/lark/pkg/logging"
)

func main() {
	kind := pflag.StringP("kind", "k", "text", "message kind: text, success or error")
	title := pflag.StringP("title", "t", "", "card title")
	subtitle := pflag.String("subtitle", "", "card subtitle (default current time)")
	traceback := pflag.String("traceback", "", "error details shown in the error card")
	chatID := pflag.String("chat", "", "send through the API to this chat id instead of the webhook")
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: lark-notify [flags] [message]\n\nReads the message from stdin when no argument is given.\n\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	msg := strings.Join(pflag.Args(), " ")
	if msg == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read message: %v\n", err)
			os.Exit(1)
		}
		msg = strings.TrimSpace(string(data))
	}
	if msg == "" {
		pflag.Usage()
		os.Exit(2)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *chatID != "" {
		if err := cfg.RequireAppCredentials(); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
	} else if cfg.WebhookURL == "" {
		fmt.Fprintf(os.Stderr, "LARK_WEBHOOK_URL is required unless --chat is set\n")
		os.Exit(1)
	}

	// Initialize logger
	logger, err := logging.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	client := lark.NewLarkWithLogger(cfg, logger)
	if err := send(context.Background(), client, *kind, *chatID, msg, *title, *subtitle, *traceback); err != nil {
		logger.Error("Failed to send notification", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Notification sent")
}

func send(ctx context.Context, client *lark.Lark, kind, chatID, msg, title, subtitle, traceback string) error {
	var card *lark.Card
	switch kind {
	case "text":
		if chatID != "" {
			_, err := client.SendText(ctx, lark.ReceiveIDChatID, chatID, msg)
			return err
		}
		_, err := client.SendWebhookText(ctx, msg)
		return err
	case "success":
		if chatID == "" {
			_, err := client.PostSuccessCard(ctx, msg, title, subtitle)
			return err
		}
		card = lark.SuccessCard(msg, title, subtitle)
	case "error":
		if chatID == "" {
			_, err := client.PostErrorCard(ctx, msg, traceback, title, subtitle)
			return err
		}
		card = lark.ErrorCard(msg, traceback, title, subtitle)
	default:
		return fmt.Errorf("unknown kind %q", kind)
	}

	content, err := lark.CardContent(card)
	if err != nil {
		return err
	}
	_, err = client.SendMessage(ctx, lark.ReceiveIDChatID, lark.SendMessageRequest{
		ReceiveID: chatID,
		MsgType:   lark.MsgTypeInteractive,
		Content:   content,
	})
	return err
}
