package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_BufferHasNoColor(t *testing.T) {
	// Given: a non-terminal writer
	w := New(&bytes.Buffer{})

	// Then: color is off
	assert.False(t, w.UseColor())
}

func TestWriter_Icons(t *testing.T) {
	tests := []struct {
		name  string
		write func(*Writer)
		want  string
	}{
		{"success", func(w *Writer) { w.Success("Indexed bio") }, "✓ Indexed bio\n"},
		{"successf", func(w *Writer) { w.Successf("Indexed %s", "bio") }, "✓ Indexed bio\n"},
		{"warning", func(w *Writer) { w.Warning("vector source failed") }, "! vector source failed\n"},
		{"warningf", func(w *Writer) { w.Warningf("%d sources failed", 1) }, "! 1 sources failed\n"},
		{"error", func(w *Writer) { w.Error("document not found") }, "✗ document not found\n"},
		{"errorf", func(w *Writer) { w.Errorf("code %s", "ERR_404") }, "✗ code ERR_404\n"},
		{"status without icon", func(w *Writer) { w.Status("", "indented") }, "  indented\n"},
		{"statusf", func(w *Writer) { w.Statusf("→", "page %d", 2) }, "→ page 2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			tt.write(NewWithColor(buf, false))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestWriter_KeyValue(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewWithColor(buf, false)

	w.KeyValue("Documents", 2)

	assert.Equal(t, "  Documents:   2\n", buf.String())
}

func TestWriter_Code(t *testing.T) {
	// Given: a multi-line block
	buf := &bytes.Buffer{}
	w := NewWithColor(buf, false)

	// When: printing it
	w.Code("studyrag index notes.txt\nstudyrag search notes enzymes")

	// Then: each line is indented and the block is padded
	assert.Equal(t, "\n  studyrag index notes.txt\n  studyrag search notes enzymes\n\n", buf.String())
}

func TestWriter_HeaderDimRaw(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewWithColor(buf, false)

	w.Header("Documents")
	w.Dim("none yet")
	w.Newline()
	w.Raw("raw")

	assert.Equal(t, "Documents\nnone yet\n\nraw", buf.String())
}

func TestWriter_ColorKeepsText(t *testing.T) {
	// Given: color forced on
	buf := &bytes.Buffer{}
	w := NewWithColor(buf, true)

	// When: printing a success
	w.Success("done")

	// Then: the message is intact
	assert.True(t, w.UseColor())
	assert.Contains(t, buf.String(), "done")
	assert.Contains(t, buf.String(), "✓")
}
