package ingest

import (
	"bytes"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestFromText(t *testing.T) {
	t.Run("short text passes through", func(t *testing.T) {
		assert.Equal(t, "Chapter 1: cells.", FromText("Chapter 1: cells."))
	})

	t.Run("empty text", func(t *testing.T) {
		assert.Equal(t, "", FromText(""))
	})

	t.Run("long text is cut at the budget", func(t *testing.T) {
		long := strings.Repeat("a", MaxContextChars+500)

		got := FromText(long)
		assert.Len(t, got, MaxContextChars)
	})

	t.Run("cut never splits a rune", func(t *testing.T) {
		// Multi-byte runes straddling the boundary must not be split.
		long := strings.Repeat("é", MaxContextChars)

		got := FromText(long)
		assert.LessOrEqual(t, len(got), MaxContextChars)
		assert.True(t, utf8.ValidString(got))
	})
}

func TestFromPDF(t *testing.T) {
	t.Run("rejects non-pdf input", func(t *testing.T) {
		data := []byte("this is not a pdf")

		_, err := FromPDF(bytes.NewReader(data), int64(len(data)))
		assert.Error(t, err)
	})
}
