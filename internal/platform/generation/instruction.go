package generation

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
)

//go:embed style_guide.md
var defaultStyleGuide string

// DefaultSystemInstruction returns the built-in admission note style guide.
func DefaultSystemInstruction() string {
	return defaultStyleGuide
}

// LoadSystemInstruction reads the style guide from path, or returns the
// built-in one when path is empty.
func LoadSystemInstruction(path string) (string, error) {
	if path == "" {
		return defaultStyleGuide, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read system instruction: %w", err)
	}
	s := strings.TrimSpace(string(b))
	if s == "" {
		return "", fmt.Errorf("system instruction file %s is empty", path)
	}
	return s, nil
}
