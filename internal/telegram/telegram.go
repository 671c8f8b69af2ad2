// Package telegram adapts Telegram bot updates to ingestion events and
// delivers pipeline outcomes back as chat replies. Updates arrive through
// the HTTP webhook endpoint, not long polling; this package owns webhook
// registration and all outbound sends.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/textproof/textproof/internal/config"
	"github.com/textproof/textproof/internal/extract"
	"github.com/textproof/textproof/internal/ingest"
	"github.com/textproof/textproof/internal/metrics"
)

// WebhookPath is the route platform updates are delivered to.
const WebhookPath = "/telegram-webhook"

const (
	labelCheckText     = "Check text"
	labelCheckDocument = "Check a document"

	msgStart          = "Hi! Choose an action:"
	msgPromptText     = "Send me the text you want checked for originality."
	msgPromptDocument = "Send me a document (.txt, .pdf or .docx) and I will check its text."
	msgTextAck        = "Text received. Checking originality..."
	msgDocumentAck    = "Document received. Checking originality..."
	msgBusy           = "The service is busy right now, please try again later."
	msgDownloadFailed = "Could not download the document, please try again."
)

// Bot wraps the Telegram API client and feeds the ingestion queue.
type Bot struct {
	logger      *slog.Logger
	api         *tgbotapi.BotAPI
	queue       *ingest.Queue
	metrics     *metrics.Metrics
	webhookURL  string
	maxDocBytes int64
	httpClient  *http.Client

	// send is the outbound seam; tests replace it.
	send func(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// NewBot authenticates against the Telegram API and prepares the adapter.
func NewBot(log *slog.Logger, cfg config.TelegramConfig, queue *ingest.Queue, m *metrics.Metrics, maxDocBytes int64) (*Bot, error) {
	if log == nil {
		log = slog.Default()
	}
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	bot := &Bot{
		logger:      log.With(slog.String("adapter", "telegram")),
		api:         api,
		queue:       queue,
		metrics:     m,
		webhookURL:  strings.TrimRight(cfg.WebhookURL, "/") + WebhookPath,
		maxDocBytes: maxDocBytes,
		httpClient:  &http.Client{Timeout: 60 * time.Second},
	}
	bot.send = api.Send
	bot.logger.Info("bot authenticated", slog.String("username", api.Self.UserName))
	return bot, nil
}

// RegisterWebhook removes any pre-existing webhook registration and installs
// the current one. Must run before the HTTP server starts accepting traffic.
func (b *Bot) RegisterWebhook(ctx context.Context) error {
	if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{DropPendingUpdates: false}); err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	wh, err := tgbotapi.NewWebhook(b.webhookURL)
	if err != nil {
		return fmt.Errorf("build webhook config: %w", err)
	}
	if _, err := b.api.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	b.logger.Info("webhook registered", slog.String("url", b.webhookURL))
	return nil
}

// ParseUpdate decodes a webhook body into a Telegram update.
func ParseUpdate(r io.Reader) (tgbotapi.Update, error) {
	var update tgbotapi.Update
	if err := json.NewDecoder(r).Decode(&update); err != nil {
		return tgbotapi.Update{}, fmt.Errorf("decode update: %w", err)
	}
	return update, nil
}

// HandleUpdate routes one webhook update. Text messages are enqueued
// synchronously (cheap); document downloads run in their own goroutine so
// the webhook endpoint can acknowledge the platform immediately.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return
	}
	chatID := msg.Chat.ID

	if msg.IsCommand() {
		if msg.Command() == "start" {
			b.sendStartMenu(chatID)
		}
		return
	}

	if msg.Document != nil {
		go b.ingestDocument(ctx, chatID, msg.Document)
		return
	}

	text := strings.TrimSpace(msg.Text)
	switch text {
	case "":
		return
	case labelCheckText:
		b.reply(chatID, msgPromptText)
		return
	case labelCheckDocument:
		b.reply(chatID, msgPromptDocument)
		return
	}

	ev := ingest.NewTextEvent(text, b.Target(chatID, ""))
	if err := b.queue.TryEnqueue(ev); err != nil {
		b.logger.Warn("enqueue text failed", slog.Int64("chat_id", chatID), slog.Any("error", err))
		b.countQueueDrop()
		b.reply(chatID, msgBusy)
		return
	}
	b.reply(chatID, msgTextAck)
}

// ingestDocument fetches an attached document through the bot file API and
// enqueues it. Oversized attachments are enqueued by size alone (no
// download) so the validation gate issues the rejection.
func (b *Bot) ingestDocument(ctx context.Context, chatID int64, doc *tgbotapi.Document) {
	format, _ := extract.FormatForFilename(doc.FileName)
	target := b.Target(chatID, doc.FileName)

	if b.maxDocBytes > 0 && int64(doc.FileSize) > b.maxDocBytes {
		b.enqueueDocument(chatID, ingest.Document{
			Filename: doc.FileName,
			Format:   format,
			Size:     int64(doc.FileSize),
		}, target)
		return
	}

	data, err := b.downloadDocument(ctx, doc.FileID)
	if err != nil {
		b.logger.Warn("document download failed",
			slog.Int64("chat_id", chatID),
			slog.String("filename", doc.FileName),
			slog.Any("error", err),
		)
		b.reply(chatID, msgDownloadFailed)
		return
	}

	b.enqueueDocument(chatID, ingest.Document{
		Filename: doc.FileName,
		Format:   format,
		Data:     data,
	}, target)
}

func (b *Bot) enqueueDocument(chatID int64, doc ingest.Document, target ingest.ReplyTarget) {
	ev := ingest.NewDocumentEvent(doc, target)
	if err := b.queue.TryEnqueue(ev); err != nil {
		b.logger.Warn("enqueue document failed", slog.Int64("chat_id", chatID), slog.Any("error", err))
		b.countQueueDrop()
		b.reply(chatID, msgBusy)
		return
	}
	b.reply(chatID, msgDocumentAck)
}

func (b *Bot) downloadDocument(ctx context.Context, fileID string) ([]byte, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("resolve file url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download document: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("download document status: %d", resp.StatusCode)
	}
	// Attachment metadata can lie about the size; enforce the cap on the
	// actual bytes too. The oversized result is still the gate's call.
	limited := &io.LimitedReader{R: resp.Body, N: b.maxDocBytes + 1}
	return io.ReadAll(limited)
}

func (b *Bot) sendStartMenu(chatID int64) {
	keyboard := tgbotapi.NewOneTimeReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(labelCheckText),
			tgbotapi.NewKeyboardButton(labelCheckDocument),
		),
	)
	keyboard.ResizeKeyboard = true

	msg := tgbotapi.NewMessage(chatID, msgStart)
	msg.ReplyMarkup = keyboard
	if _, err := b.send(msg); err != nil {
		b.logger.Error("send start menu failed", slog.Int64("chat_id", chatID), slog.Any("error", err))
	}
}

func (b *Bot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, truncateMessage(sanitizeMessage(text)))
	if _, err := b.send(msg); err != nil {
		b.logger.Error("send reply failed", slog.Int64("chat_id", chatID), slog.Any("error", err))
	}
}

func (b *Bot) countQueueDrop() {
	if b.metrics != nil {
		b.metrics.QueueDropsTotal.Inc()
	}
}
