package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/textproof/textproof/internal/extract"
	"github.com/textproof/textproof/internal/ingest"
)

// Telegram rejects messages above this length.
const maxMessageLength = 4096

// ChatTarget delivers a pipeline outcome to a Telegram conversation.
// The pipeline treats it as opaque; rendering happens here.
type ChatTarget struct {
	bot      *Bot
	chatID   int64
	filename string
}

// Target builds a reply target for a conversation. filename is set for
// document submissions so extraction failures can name the file.
func (b *Bot) Target(chatID int64, filename string) *ChatTarget {
	return &ChatTarget{bot: b, chatID: chatID, filename: filename}
}

// Deliver renders the outcome as a chat message and sends it.
func (t *ChatTarget) Deliver(_ context.Context, out ingest.Outcome) {
	t.bot.reply(t.chatID, renderOutcome(out, t.filename))
}

// renderOutcome converts a pipeline outcome to a user-facing message.
// Classified errors become fixed user-safe strings; internals never leak.
func renderOutcome(out ingest.Outcome, filename string) string {
	if out.Err == nil {
		return out.Verdict.Summary
	}
	switch {
	case errors.Is(out.Err, ingest.ErrTooLarge):
		return "The document is too large to check."
	case errors.Is(out.Err, extract.ErrUnsupported):
		return "This file format is not supported. Send a .txt, .pdf or .docx document."
	case errors.Is(out.Err, extract.ErrDecode), errors.Is(out.Err, extract.ErrParse):
		name := strings.TrimSpace(filename)
		if name == "" {
			return "Could not extract text from the document."
		}
		return fmt.Sprintf("Could not extract text from %s.", name)
	default:
		if out.Verdict.Summary != "" {
			return out.Verdict.Summary
		}
		return ingest.UserMessageAnalysisFailed
	}
}

// sanitizeMessage strips invalid UTF-8 byte sequences for the Telegram API.
func sanitizeMessage(text string) string {
	if utf8.ValidString(text) {
		return text
	}
	return strings.ToValidUTF8(text, "")
}

// truncateMessage cuts text to maxMessageLength on a rune boundary,
// appending "..." when truncation occurs.
func truncateMessage(text string) string {
	if len(text) <= maxMessageLength {
		return text
	}
	const suffix = "..."
	limit := maxMessageLength - len(suffix)
	for limit > 0 && !utf8.RuneStart(text[limit]) {
		limit--
	}
	return text[:limit] + suffix
}
