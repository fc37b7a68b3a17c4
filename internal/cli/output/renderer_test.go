package output

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMode(t *testing.T) {
	tests := []struct {
		in   string
		want OutputMode
	}{
		{"text", ModeText},
		{"markdown", ModeMarkdown},
		{"json", ModeJSON},
		{"auto", ModeAuto},
		{"", ModeAuto},
		{"yaml", ModeAuto},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Mode(tt.in))
		})
	}
}

func TestEffectiveMode(t *testing.T) {
	var out, errOut bytes.Buffer

	assert.Equal(t, ModeText, NewRendererWithTTY(&out, &errOut, true, ModeAuto).EffectiveMode())
	assert.Equal(t, ModeMarkdown, NewRendererWithTTY(&out, &errOut, false, ModeAuto).EffectiveMode())
	assert.Equal(t, ModeJSON, NewRendererWithTTY(&out, &errOut, true, ModeJSON).EffectiveMode())
	assert.False(t, NewRenderer(&out, &errOut, ModeAuto).IsTTY(), "a buffer is never a terminal")
}

func TestHeader(t *testing.T) {
	var out, errOut bytes.Buffer
	r := NewRendererWithTTY(&out, &errOut, false, ModeMarkdown)

	r.Header(2, "Columns")
	assert.Equal(t, "## Columns\n\n", out.String())
}

func TestErrorGoesToErrStream(t *testing.T) {
	var out, errOut bytes.Buffer
	r := NewRendererWithTTY(&out, &errOut, false, ModeText)

	r.Error("boom")

	assert.Empty(t, out.String())
	assert.Equal(t, "Error: boom\n", errOut.String(), "no ANSI codes without a terminal")
}

func TestJSON(t *testing.T) {
	var out, errOut bytes.Buffer
	r := NewRendererWithTTY(&out, &errOut, false, ModeJSON)

	require.NoError(t, r.JSON(map[string]int{"rows": 3}))

	var got map[string]int
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, 3, got["rows"])
}

func TestFormatters(t *testing.T) {
	assert.Equal(t, "# Title", FormatHeader(0, "Title"))
	assert.Equal(t, "###### Deep", FormatHeader(9, "Deep"))
	assert.Equal(t, "- **Rows**: 10", FormatKeyValue("Rows", "10"))
}
