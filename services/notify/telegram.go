package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/upb/andon-board/config"
	"github.com/upb/andon-board/internal/observability"
	"go.uber.org/zap"
)

// TelegramNotifier posts messages to a chat through the Telegram Bot API
type TelegramNotifier struct {
	client   *http.Client
	baseURL  string
	token    string
	chatID   string
	metrics  *observability.Metrics
	failures FailureRecorder
	logger   *zap.Logger
}

// NewTelegramNotifier creates a notifier for cfg. failures may be nil.
func NewTelegramNotifier(cfg config.TelegramConfig, metrics *observability.Metrics, failures FailureRecorder, logger *zap.Logger) *TelegramNotifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &TelegramNotifier{
		client:   &http.Client{Timeout: timeout},
		baseURL:  cfg.APIURL,
		token:    cfg.BotToken,
		chatID:   cfg.ChatID,
		metrics:  metrics,
		failures: failures,
		logger:   logger,
	}
}

// New returns a TelegramNotifier when cfg is complete and a NopNotifier otherwise
func New(cfg config.TelegramConfig, metrics *observability.Metrics, failures FailureRecorder, logger *zap.Logger) Notifier {
	if !cfg.Enabled() {
		logger.Info("telegram notifications disabled")
		return NopNotifier{}
	}
	return NewTelegramNotifier(cfg, metrics, failures, logger)
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Notify sends msg and records any failure without returning it
func (n *TelegramNotifier) Notify(ctx context.Context, msg Message) {
	if err := n.Send(ctx, msg.Text); err != nil {
		n.metrics.Notification("failed")
		n.logger.Warn("telegram notification failed",
			zap.String("tenant_id", msg.TenantID.String()),
			zap.Error(err))
		if n.failures != nil {
			n.failures.NotificationFailed(ctx, msg.TenantID, msg.CallID, err)
		}
		return
	}
	n.metrics.Notification("sent")
}

// Send performs one sendMessage call
func (n *TelegramNotifier) Send(ctx context.Context, text string) error {
	body, err := json.Marshal(sendMessageRequest{
		ChatID:    n.chatID,
		Text:      text,
		ParseMode: "HTML",
	})
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		// the URL carries the bot token
		return fmt.Errorf("telegram request failed: %w", redact(err, n.token))
	}
	defer resp.Body.Close()

	var result sendMessageResponse
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&result)

	if resp.StatusCode >= 300 || !result.OK {
		if result.Description != "" {
			return fmt.Errorf("telegram rejected message: %d %s", resp.StatusCode, result.Description)
		}
		return fmt.Errorf("telegram rejected message: status %d", resp.StatusCode)
	}
	return nil
}

func redact(err error, token string) error {
	if token == "" {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), token, "<token>"))
}
