package ingest

import "errors"

var (
	// ErrQueueFull indicates the bounded queue could not accept the event
	// within the producer's wait budget.
	ErrQueueFull = errors.New("ingestion queue is full")
	// ErrQueueClosed indicates the queue has been closed for shutdown.
	ErrQueueClosed = errors.New("ingestion queue is closed")
	// ErrTooLarge indicates the document exceeds the configured size limit.
	ErrTooLarge = errors.New("document exceeds the maximum allowed size")
)
