package agent

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadInstructionTemplateFallsBack(t *testing.T) {
	dir := t.TempDir()
	blank := filepath.Join(dir, "blank.tmpl")
	require.NoError(t, os.WriteFile(blank, []byte("  \n"), 0o644))

	for _, path := range []string{"", filepath.Join(dir, "missing.tmpl"), blank} {
		text, err := LoadInstructionTemplate(path)
		require.NoError(t, err)
		assert.Equal(t, DefaultInstructions, text)
	}
}

func TestLoadInstructionTemplateReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "instructions.tmpl")
	require.NoError(t, os.WriteFile(path, []byte("Hello {{.Name}}"), 0o644))

	text, err := LoadInstructionTemplate(path)
	require.NoError(t, err)
	assert.Equal(t, "Hello {{.Name}}", text)
}

func TestRenderInstructions(t *testing.T) {
	out, err := RenderInstructions(DefaultInstructions, InstructionData{Name: "studor"})
	require.NoError(t, err)
	assert.Contains(t, out, "You are a GPT called studor designed with rich knowledge")
	assert.NotContains(t, out, "{{")

	out, err = RenderInstructions("plain text, no placeholders", InstructionData{Name: "x"})
	require.NoError(t, err)
	assert.Equal(t, "plain text, no placeholders", out)

	out, err = RenderInstructions("{{if .Personas}}Known personas:\n{{.Personas}}{{end}}", InstructionData{})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestRenderInstructionsErrors(t *testing.T) {
	_, err := RenderInstructions("{{.Name", InstructionData{})
	assert.Error(t, err)

	_, err = RenderInstructions("{{.Unknown}}", InstructionData{})
	assert.Error(t, err)
}
