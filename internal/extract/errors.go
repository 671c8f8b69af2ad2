package extract

import "errors"

var (
	// ErrDecode indicates the payload is not valid text in the declared encoding.
	ErrDecode = errors.New("payload is not valid UTF-8 text")
	// ErrParse indicates the document structure could not be parsed.
	ErrParse = errors.New("malformed document")
	// ErrUnsupported indicates the format tag has no registered extractor.
	ErrUnsupported = errors.New("unsupported document format")
)
