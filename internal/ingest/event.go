// Package ingest serializes two independent event sources, HTTP uploads and
// chat updates, onto one bounded processing path. Producers enqueue
// IngestionEvents; a single Pipeline consumer validates, extracts, analyzes,
// and delivers each outcome back through the event's reply target.
package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/textproof/textproof/internal/analyzer"
	"github.com/textproof/textproof/internal/extract"
)

// EventKind identifies the variant of an ingestion event.
type EventKind string

const (
	KindTextMessage      EventKind = "text_message"
	KindUploadedDocument EventKind = "uploaded_document"
)

// Document is the payload of an uploaded-document event: the raw bytes, the
// declared format tag, and the byte length as observed at the edge.
type Document struct {
	Filename string
	Format   extract.Format
	Data     []byte
	Size     int64
}

// Outcome is the terminal result of processing one event. Either Err carries
// a classified failure, or Verdict carries the analysis result. Content holds
// the extracted document text when extraction ran.
type Outcome struct {
	Content string
	Verdict analyzer.Verdict
	Err     error
}

// ReplyTarget is the opaque destination an outcome is delivered to.
// The pipeline never inspects it beyond calling Deliver exactly once.
type ReplyTarget interface {
	Deliver(ctx context.Context, out Outcome)
}

// Event is the unit of work flowing through the queue. Immutable after
// creation; the payload is read-only through the whole pipeline.
type Event struct {
	ID         string
	Kind       EventKind
	Text       string
	Document   *Document
	Reply      ReplyTarget
	EnqueuedAt time.Time
}

// NewTextEvent builds a TextMessage event with a fresh correlation ID.
func NewTextEvent(text string, reply ReplyTarget) Event {
	return Event{
		ID:         uuid.NewString(),
		Kind:       KindTextMessage,
		Text:       text,
		Reply:      reply,
		EnqueuedAt: time.Now().UTC(),
	}
}

// NewDocumentEvent builds an UploadedDocument event with a fresh correlation ID.
func NewDocumentEvent(doc Document, reply ReplyTarget) Event {
	if doc.Size == 0 {
		doc.Size = int64(len(doc.Data))
	}
	return Event{
		ID:         uuid.NewString(),
		Kind:       KindUploadedDocument,
		Document:   &doc,
		Reply:      reply,
		EnqueuedAt: time.Now().UTC(),
	}
}

// WaitTarget is a reply target for producers that hold their caller open
// until the outcome arrives (the HTTP upload path). Delivery never blocks
// the pipeline: the outcome is buffered, and if the waiting side already
// gave up the delivery is simply a no-op.
type WaitTarget struct {
	ch   chan Outcome
	once sync.Once
}

// NewWaitTarget creates a WaitTarget ready for one delivery.
func NewWaitTarget() *WaitTarget {
	return &WaitTarget{ch: make(chan Outcome, 1)}
}

// Deliver hands the outcome to the waiting caller. Safe to call at most once
// per event lifecycle; extra calls are ignored.
func (t *WaitTarget) Deliver(_ context.Context, out Outcome) {
	t.once.Do(func() {
		t.ch <- out
	})
}

// Wait blocks until the outcome is delivered or ctx expires.
func (t *WaitTarget) Wait(ctx context.Context) (Outcome, error) {
	select {
	case out := <-t.ch:
		return out, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}
