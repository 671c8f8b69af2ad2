package handlers

import (
	"context"
	"log/slog"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/labstack/echo/v4"

	"github.com/textproof/textproof/internal/telegram"
)

// UpdateHandler consumes a parsed Telegram update.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update tgbotapi.Update)
}

// WebhookHandler receives Telegram webhook callbacks and hands the parsed
// updates to the bot. Telegram retries deliveries on non-2xx responses, so
// everything past a JSON parse failure answers 200.
type WebhookHandler struct {
	logger *slog.Logger
	bot    UpdateHandler
}

// NewWebhookHandler creates a WebhookHandler.
func NewWebhookHandler(log *slog.Logger, bot UpdateHandler) *WebhookHandler {
	return &WebhookHandler{
		logger: log.With(slog.String("handler", "webhook")),
		bot:    bot,
	}
}

// Register registers the webhook route.
func (h *WebhookHandler) Register(e *echo.Echo) {
	e.POST(telegram.WebhookPath, h.Webhook)
}

// Webhook handles POST /telegram-webhook.
func (h *WebhookHandler) Webhook(c echo.Context) error {
	update, err := telegram.ParseUpdate(c.Request().Body)
	if err != nil {
		h.logger.Warn("malformed webhook payload", slog.Any("error", err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{Detail: "malformed update payload"})
	}
	// Attachment downloads spawned by the bot outlive this request, so the
	// request context must not cancel them on return.
	h.bot.HandleUpdate(context.WithoutCancel(c.Request().Context()), update)
	return c.String(http.StatusOK, "OK")
}
