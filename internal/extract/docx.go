package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

const docxDocumentEntry = "word/document.xml"

// extractDocx pulls every paragraph's text out of a Word document in order,
// with a newline after each paragraph. A docx file is a zip archive whose
// body lives in word/document.xml; paragraphs are <w:p> elements and text
// runs are <w:t> elements.
func extractDocx(data []byte) (string, error) {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: not a docx archive: %v", ErrParse, err)
	}

	var document *zip.File
	for _, file := range archive.File {
		if file.Name == docxDocumentEntry {
			document = file
			break
		}
	}
	if document == nil {
		return "", fmt.Errorf("%w: missing %s", ErrParse, docxDocumentEntry)
	}

	body, err := document.Open()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrParse, err)
	}
	defer func() {
		_ = body.Close()
	}()

	return decodeDocxBody(body)
}

func decodeDocxBody(body io.Reader) (string, error) {
	decoder := xml.NewDecoder(body)

	var out strings.Builder
	var paragraph strings.Builder
	inParagraph := false
	inText := false

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrParse, err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				inParagraph = true
				paragraph.Reset()
			case "t":
				inText = inParagraph
			case "tab":
				if inParagraph {
					paragraph.WriteByte('\t')
				}
			case "br":
				if inParagraph {
					paragraph.WriteByte('\n')
				}
			}
		case xml.CharData:
			if inText {
				paragraph.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if inParagraph {
					out.WriteString(paragraph.String())
					out.WriteByte('\n')
				}
				inParagraph = false
			}
		}
	}
	return out.String(), nil
}
