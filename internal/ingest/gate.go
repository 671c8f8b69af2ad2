package ingest

import (
	"fmt"

	"github.com/textproof/textproof/internal/extract"
)

// Gate validates events before extraction runs. Pure predicate: no side
// effects, stable reason codes via wrapped sentinel errors.
type Gate struct {
	// MaxDocumentBytes is the size cap for uploaded documents.
	// Text messages carry no cap.
	MaxDocumentBytes int64
}

// Validate returns nil when the event may proceed to extraction, or a
// classified rejection (ErrTooLarge, extract.ErrUnsupported) otherwise.
func (g Gate) Validate(ev Event) error {
	if ev.Kind != KindUploadedDocument {
		return nil
	}
	doc := ev.Document
	if doc == nil {
		return fmt.Errorf("%w: event carries no document", extract.ErrUnsupported)
	}
	if g.MaxDocumentBytes > 0 && doc.Size > g.MaxDocumentBytes {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrTooLarge, doc.Size, g.MaxDocumentBytes)
	}
	if !extract.Supported(doc.Format) {
		return fmt.Errorf("%w: %q", extract.ErrUnsupported, doc.Filename)
	}
	return nil
}
