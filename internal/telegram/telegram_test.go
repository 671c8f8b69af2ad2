package telegram

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/textproof/textproof/internal/analyzer"
	"github.com/textproof/textproof/internal/extract"
	"github.com/textproof/textproof/internal/ingest"
)

func newTestBot(queue *ingest.Queue) (*Bot, *[]string) {
	var sent []string
	bot := &Bot{
		logger:      slog.Default(),
		queue:       queue,
		maxDocBytes: 16 << 20,
	}
	bot.send = func(c tgbotapi.Chattable) (tgbotapi.Message, error) {
		if msg, ok := c.(tgbotapi.MessageConfig); ok {
			sent = append(sent, msg.Text)
		}
		return tgbotapi.Message{}, nil
	}
	return bot, &sent
}

func textUpdate(chatID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{
		Message: &tgbotapi.Message{
			Text: text,
			Chat: &tgbotapi.Chat{ID: chatID},
		},
	}
}

func TestParseUpdate(t *testing.T) {
	t.Parallel()

	body := `{"update_id":7,"message":{"message_id":1,"text":"hello","chat":{"id":42,"type":"private"}}}`
	update, err := ParseUpdate(strings.NewReader(body))
	require.NoError(t, err)
	require.NotNil(t, update.Message)
	assert.Equal(t, "hello", update.Message.Text)
	assert.Equal(t, int64(42), update.Message.Chat.ID)
}

func TestParseUpdateInvalidJSON(t *testing.T) {
	t.Parallel()

	_, err := ParseUpdate(strings.NewReader("{broken"))
	require.Error(t, err)
}

func TestHandleUpdateEnqueuesTextInOrder(t *testing.T) {
	t.Parallel()

	queue := ingest.NewQueue(8)
	bot, sent := newTestBot(queue)

	bot.HandleUpdate(context.Background(), textUpdate(42, "Проверка текста"))
	bot.HandleUpdate(context.Background(), textUpdate(42, "Проверка текста"))

	first := <-queue.Events()
	second := <-queue.Events()
	assert.Equal(t, ingest.KindTextMessage, first.Kind)
	assert.Equal(t, "Проверка текста", first.Text)
	assert.Equal(t, "Проверка текста", second.Text)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, []string{msgTextAck, msgTextAck}, *sent)
}

func TestHandleUpdateQueueFull(t *testing.T) {
	t.Parallel()

	queue := ingest.NewQueue(1)
	bot, sent := newTestBot(queue)

	bot.HandleUpdate(context.Background(), textUpdate(1, "first"))
	bot.HandleUpdate(context.Background(), textUpdate(1, "second"))

	require.Len(t, *sent, 2)
	assert.Equal(t, msgTextAck, (*sent)[0])
	assert.Equal(t, msgBusy, (*sent)[1])
	assert.Equal(t, 1, queue.Len())
}

func TestHandleUpdateStartCommand(t *testing.T) {
	t.Parallel()

	queue := ingest.NewQueue(1)
	bot, _ := newTestBot(queue)

	var markup any
	bot.send = func(c tgbotapi.Chattable) (tgbotapi.Message, error) {
		if msg, ok := c.(tgbotapi.MessageConfig); ok {
			markup = msg.ReplyMarkup
		}
		return tgbotapi.Message{}, nil
	}

	update := textUpdate(9, "/start")
	update.Message.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: 6}}
	bot.HandleUpdate(context.Background(), update)

	keyboard, ok := markup.(tgbotapi.ReplyKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, keyboard.Keyboard, 1)
	require.Len(t, keyboard.Keyboard[0], 2)
	assert.Equal(t, labelCheckText, keyboard.Keyboard[0][0].Text)
	assert.Equal(t, labelCheckDocument, keyboard.Keyboard[0][1].Text)
	assert.True(t, keyboard.OneTimeKeyboard)
	assert.Equal(t, 0, queue.Len())
}

func TestHandleUpdateMenuLabelsPromptInsteadOfAnalyzing(t *testing.T) {
	t.Parallel()

	queue := ingest.NewQueue(4)
	bot, sent := newTestBot(queue)

	bot.HandleUpdate(context.Background(), textUpdate(5, labelCheckText))
	bot.HandleUpdate(context.Background(), textUpdate(5, labelCheckDocument))

	assert.Equal(t, 0, queue.Len())
	assert.Equal(t, []string{msgPromptText, msgPromptDocument}, *sent)
}

func TestHandleUpdateOversizedDocumentSkipsDownload(t *testing.T) {
	t.Parallel()

	queue := ingest.NewQueue(4)
	bot, sent := newTestBot(queue)
	bot.maxDocBytes = 1024

	done := make(chan struct{})
	go func() {
		defer close(done)
		// api is nil; a download attempt would panic, proving the
		// oversized path never touches the file API.
		bot.ingestDocument(context.Background(), 3, &tgbotapi.Document{
			FileID:   "file-1",
			FileName: "huge.pdf",
			FileSize: 4096,
		})
	}()
	<-done

	ev := <-queue.Events()
	require.Equal(t, ingest.KindUploadedDocument, ev.Kind)
	assert.Equal(t, int64(4096), ev.Document.Size)
	assert.Nil(t, ev.Document.Data)
	assert.Equal(t, []string{msgDocumentAck}, *sent)

	// The gate rejects it downstream.
	err := ingest.Gate{MaxDocumentBytes: 1024}.Validate(ev)
	require.ErrorIs(t, err, ingest.ErrTooLarge)
}

func TestRenderOutcome(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		out      ingest.Outcome
		filename string
		want     string
	}{
		{
			name: "verdict",
			out:  ingest.Outcome{Verdict: analyzer.Verdict{Summary: "Originality assessment: 85%", Success: true}},
			want: "Originality assessment: 85%",
		},
		{
			name: "too large",
			out:  ingest.Outcome{Err: ingest.ErrTooLarge},
			want: "The document is too large to check.",
		},
		{
			name: "unsupported",
			out:  ingest.Outcome{Err: extract.ErrUnsupported},
			want: "This file format is not supported. Send a .txt, .pdf or .docx document.",
		},
		{
			name:     "parse failure names file",
			out:      ingest.Outcome{Err: extract.ErrParse},
			filename: "report.pdf",
			want:     "Could not extract text from report.pdf.",
		},
		{
			name: "analysis failure",
			out: ingest.Outcome{
				Verdict: analyzer.FailureVerdict(ingest.UserMessageAnalysisFailed),
				Err:     analyzer.ErrBackend,
			},
			want: ingest.UserMessageAnalysisFailed,
		},
		{
			name: "unknown error falls back",
			out:  ingest.Outcome{Err: errors.New("weird")},
			want: ingest.UserMessageAnalysisFailed,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, renderOutcome(tc.out, tc.filename))
		})
	}
}

func TestTruncateMessage(t *testing.T) {
	t.Parallel()

	short := "short message"
	assert.Equal(t, short, truncateMessage(short))

	long := strings.Repeat("я", 3000) // 2 bytes per rune, 6000 bytes
	got := truncateMessage(long)
	assert.LessOrEqual(t, len(got), maxMessageLength)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.True(t, strings.HasPrefix(got, "я"))
}
