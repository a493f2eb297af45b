package rag

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"nuvaru/src/log"
)

// Supported upload content types.
const (
	ContentTypeText     = "text/plain"
	ContentTypeMarkdown = "text/markdown"
	ContentTypeJSON     = "application/json"
	ContentTypePDF      = "application/pdf"
)

// Extraction is normalized text plus the basic metadata the extractor could
// recover from the raw bytes.
type Extraction struct {
	Text      string
	Title     string
	PageCount int
}

// Extractor converts a raw uploaded byte stream into normalized text.
type Extractor interface {
	Extract(content []byte, contentType, filename string) (*Extraction, error)
}

// TextExtractor handles the four supported formats. Extraction imperfections
// never block an upload: a PDF whose pages yield no text produces a
// placeholder instead of failing, so the document stays searchable by
// filename.
type TextExtractor struct{}

func NewTextExtractor() *TextExtractor {
	return &TextExtractor{}
}

func (e *TextExtractor) Extract(content []byte, contentType, filename string) (*Extraction, error) {
	switch contentType {
	case ContentTypeText, ContentTypeMarkdown:
		return &Extraction{Text: normalizeText(content), Title: filename}, nil
	case ContentTypeJSON:
		return extractJSON(content, filename)
	case ContentTypePDF:
		return extractPDF(content, filename)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, contentType)
	}
}

// normalizeText decodes bytes as UTF-8, replacing invalid sequences so later
// rune-based chunking never sees broken encoding.
func normalizeText(content []byte) string {
	if utf8.Valid(content) {
		return string(content)
	}
	return strings.ToValidUTF8(string(content), "�")
}

func extractJSON(content []byte, filename string) (*Extraction, error) {
	var data interface{}
	if err := json.Unmarshal(content, &data); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", ErrExtractionFailed, err)
	}
	pretty, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	return &Extraction{Text: string(pretty), Title: filename}, nil
}

// extractPDF walks pages one by one. A page that yields no text is skipped;
// only a file that cannot be opened as a PDF container at all is fatal.
func extractPDF(content []byte, filename string) (*Extraction, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("%w: cannot open PDF: %v", ErrExtractionFailed, err)
	}

	pageCount := reader.NumPage()
	var sb strings.Builder
	for i := 1; i <= pageCount; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			log.Debug("skipping unreadable PDF page", "filename", filename, "page", i, "error", err.Error())
			continue
		}
		if strings.TrimSpace(pageText) == "" {
			continue
		}
		fmt.Fprintf(&sb, "\n--- Page %d ---\n", i)
		sb.WriteString(pageText)
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		log.Info("PDF produced no extractable text, using placeholder", "filename", filename, "pages", pageCount)
		text = PlaceholderText(filename)
	}

	title := filename
	return &Extraction{Text: text, Title: title, PageCount: pageCount}, nil
}

// PlaceholderText is substituted when a document yields zero extractable
// text, so ingestion completes and the document remains searchable by
// filename and metadata.
func PlaceholderText(filename string) string {
	return fmt.Sprintf(
		"Document: %s\n\nThis document could not be processed for text extraction. "+
			"The file may be image-based, password-protected, or corrupted.", filename)
}
