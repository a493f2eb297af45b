package rag_test

import (
	"errors"
	"strings"
	"testing"

	"nuvaru/src/core/rag"
)

func TestExtractPlainTextAndMarkdown(t *testing.T) {
	e := rag.NewTextExtractor()

	tests := []struct {
		name        string
		contentType string
		content     string
	}{
		{name: "plain text", contentType: rag.ContentTypeText, content: "hello world"},
		{name: "markdown", contentType: rag.ContentTypeMarkdown, content: "# Title\n\nbody"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Extract([]byte(tt.content), tt.contentType, "file.txt")
			if err != nil {
				t.Fatal(err)
			}
			if got.Text != tt.content {
				t.Errorf("Extract() text = %q, want %q", got.Text, tt.content)
			}
		})
	}
}

func TestExtractInvalidUTF8IsReplaced(t *testing.T) {
	e := rag.NewTextExtractor()

	content := append([]byte("valid"), 0xff, 0xfe)
	got, err := e.Extract(content, rag.ContentTypeText, "file.txt")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(got.Text, "valid") {
		t.Errorf("Extract() text = %q", got.Text)
	}
	if strings.Contains(got.Text, "\xff") {
		t.Error("Extract() left invalid bytes in output")
	}
}

func TestExtractJSON(t *testing.T) {
	e := rag.NewTextExtractor()

	got, err := e.Extract([]byte(`{"b":2,"a":1}`), rag.ContentTypeJSON, "data.json")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got.Text, `"a": 1`) || !strings.Contains(got.Text, `"b": 2`) {
		t.Errorf("Extract() text = %q, want pretty-printed JSON", got.Text)
	}
}

func TestExtractInvalidJSONFails(t *testing.T) {
	e := rag.NewTextExtractor()

	_, err := e.Extract([]byte(`{not json`), rag.ContentTypeJSON, "data.json")
	if !errors.Is(err, rag.ErrExtractionFailed) {
		t.Errorf("Extract() error = %v, want ErrExtractionFailed", err)
	}
}

func TestExtractUnsupportedFormat(t *testing.T) {
	e := rag.NewTextExtractor()

	_, err := e.Extract([]byte("data"), "image/png", "photo.png")
	if !errors.Is(err, rag.ErrUnsupportedFormat) {
		t.Errorf("Extract() error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestExtractCorruptedPDFFails(t *testing.T) {
	e := rag.NewTextExtractor()

	_, err := e.Extract([]byte("not a pdf at all"), rag.ContentTypePDF, "broken.pdf")
	if !errors.Is(err, rag.ErrExtractionFailed) {
		t.Errorf("Extract() error = %v, want ErrExtractionFailed", err)
	}
}

func TestPlaceholderTextMentionsFilename(t *testing.T) {
	text := rag.PlaceholderText("scan.pdf")
	if !strings.Contains(text, "scan.pdf") {
		t.Errorf("PlaceholderText() = %q, want it to contain the filename", text)
	}
	if strings.TrimSpace(text) == "" {
		t.Error("PlaceholderText() is empty")
	}
}
