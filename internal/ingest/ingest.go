// Package ingest turns caller-supplied syllabus material (pasted text or an
// uploaded PDF) into bounded plain text for prompt grounding.
package ingest

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// MaxContextChars caps syllabus context so evaluation prompts stay inside
// the service's token budget.
const MaxContextChars = 15000

// FromText bounds pasted syllabus text to the context budget. The cut never
// splits a UTF-8 sequence.
func FromText(s string) string {
	if len(s) <= MaxContextChars {
		return s
	}
	cut := MaxContextChars
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// FromPDF extracts plain text from an uploaded PDF and bounds it like
// FromText.
func FromPDF(r io.ReaderAt, size int64) (string, error) {
	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return "", fmt.Errorf("parse pdf: %w", err)
	}

	content, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}

	var sb strings.Builder
	if _, err := io.Copy(&sb, content); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}

	return FromText(sb.String()), nil
}
