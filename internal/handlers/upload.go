package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/textproof/textproof/internal/analyzer"
	"github.com/textproof/textproof/internal/extract"
	"github.com/textproof/textproof/internal/ingest"
	"github.com/textproof/textproof/internal/metrics"
)

const (
	// uploadFormField is the multipart form field carrying the document.
	uploadFormField = "file"

	// maxContentRunes caps the extracted content echoed back in the
	// upload response. The full text still goes to the analyzer.
	maxContentRunes = 1000

	// enqueueWait bounds how long an upload request blocks waiting for
	// queue capacity before giving up with 429.
	enqueueWait = 2 * time.Second
)

// UploadHandler accepts document uploads, runs them through the ingestion
// queue and waits for the pipeline outcome before responding.
type UploadHandler struct {
	logger         *slog.Logger
	queue          *ingest.Queue
	metrics        *metrics.Metrics
	maxUploadBytes int64
	requestTimeout time.Duration
}

// NewUploadHandler creates an UploadHandler.
func NewUploadHandler(log *slog.Logger, queue *ingest.Queue, m *metrics.Metrics, maxUploadBytes int64, requestTimeout time.Duration) *UploadHandler {
	return &UploadHandler{
		logger:         log.With(slog.String("handler", "upload")),
		queue:          queue,
		metrics:        m,
		maxUploadBytes: maxUploadBytes,
		requestTimeout: requestTimeout,
	}
}

// Register registers the upload route.
func (h *UploadHandler) Register(e *echo.Echo) {
	e.POST("/upload/", h.Upload)
}

// Upload handles POST /upload/. The document travels through the same queue
// and pipeline as chat messages; the handler blocks until the pipeline
// delivers an outcome or the request deadline passes.
func (h *UploadHandler) Upload(c echo.Context) error {
	fileHeader, err := c.FormFile(uploadFormField)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Detail: "multipart field \"file\" is required"})
	}

	src, err := fileHeader.Open()
	if err != nil {
		h.logger.Error("open uploaded file", slog.String("filename", fileHeader.Filename), slog.Any("error", err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Detail: "failed to read uploaded file"})
	}
	defer src.Close()

	// Oversized uploads are not rejected here; the event goes through with
	// an over-limit size so the validation gate issues the rejection.
	data, err := ingest.ReadAllWithLimit(src, h.maxUploadBytes)
	size := int64(len(data))
	if err != nil {
		if !errors.Is(err, ingest.ErrTooLarge) {
			h.logger.Error("read uploaded file", slog.String("filename", fileHeader.Filename), slog.Any("error", err))
			return c.JSON(http.StatusInternalServerError, ErrorResponse{Detail: "failed to read uploaded file"})
		}
		data = nil
		size = h.maxUploadBytes + 1
	}

	format, _ := extract.FormatForFilename(fileHeader.Filename)
	target := ingest.NewWaitTarget()
	event := ingest.NewDocumentEvent(ingest.Document{
		Filename: fileHeader.Filename,
		Format:   format,
		Data:     data,
		Size:     size,
	}, target)

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.requestTimeout)
	defer cancel()

	enqueueCtx, enqueueCancel := context.WithTimeout(ctx, enqueueWait)
	defer enqueueCancel()
	if err := h.queue.Enqueue(enqueueCtx, event); err != nil {
		if h.metrics != nil {
			h.metrics.QueueDropsTotal.Inc()
		}
		h.logger.Warn("upload rejected", slog.String("filename", fileHeader.Filename), slog.Any("error", err))
		return c.JSON(http.StatusTooManyRequests, ErrorResponse{Detail: "server is busy, try again later"})
	}

	outcome, err := target.Wait(ctx)
	if err != nil {
		h.logger.Error("upload outcome timed out", slog.String("event_id", event.ID), slog.Any("error", err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Detail: "processing timed out"})
	}
	return h.respond(c, fileHeader.Filename, format, outcome)
}

func (h *UploadHandler) respond(c echo.Context, filename string, format extract.Format, outcome ingest.Outcome) error {
	if outcome.Err != nil {
		switch {
		case errors.Is(outcome.Err, ingest.ErrTooLarge):
			return c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
				Detail: fmt.Sprintf("document exceeds the %d byte limit", h.maxUploadBytes),
			})
		case errors.Is(outcome.Err, extract.ErrUnsupported):
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Detail: "unsupported file format, send .txt, .pdf or .docx",
			})
		case errors.Is(outcome.Err, extract.ErrDecode), errors.Is(outcome.Err, extract.ErrParse):
			return c.JSON(http.StatusInternalServerError, ErrorResponse{
				Detail: fmt.Sprintf("could not extract text from %s document", format),
			})
		case errors.Is(outcome.Err, analyzer.ErrBackend), errors.Is(outcome.Err, analyzer.ErrMalformedResponse):
			return c.JSON(http.StatusInternalServerError, ErrorResponse{Detail: "analysis failed"})
		default:
			h.logger.Error("upload failed", slog.String("filename", filename), slog.Any("error", outcome.Err))
			return c.JSON(http.StatusInternalServerError, ErrorResponse{Detail: "processing failed"})
		}
	}
	return c.JSON(http.StatusOK, UploadResponse{
		Filename: filename,
		Content:  truncateContent(outcome.Content, maxContentRunes),
		Result:   outcome.Verdict.Summary,
	})
}

func truncateContent(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := 0
	for i := range s {
		if runes == limit {
			return s[:i]
		}
		runes++
	}
	return s
}
