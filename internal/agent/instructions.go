package agent

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"text/template"
)

// DefaultInstructions is used when no instruction template file exists.
const DefaultInstructions = `You are a GPT called {{.Name}} designed with rich knowledge about colleges, courses, and degrees in the US.
You will converse with users in dialog-based conversations to help them make career choices.
Start the conversation with a greeting and ask the user for their name.
Use the provided personas and information to guide the conversation.`

// InstructionData is the data available to instruction templates.
type InstructionData struct {
	Name     string
	Personas string
}

// LoadInstructionTemplate reads the template at path, falling back to
// DefaultInstructions when the file does not exist.
func LoadInstructionTemplate(path string) (string, error) {
	if path == "" {
		return DefaultInstructions, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultInstructions, nil
	}
	if err != nil {
		return "", fmt.Errorf("read instruction template: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return DefaultInstructions, nil
	}
	return string(data), nil
}

// RenderInstructions fills the template with the persona data.
func RenderInstructions(text string, data InstructionData) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}

	tmpl, err := template.New("instructions").Option("missingkey=error").Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse instruction template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render instruction template: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}
