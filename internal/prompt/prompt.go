// Package prompt loads per-role system prompt templates from the
// prompts/ directory, adapted from the teacher's skill-loading idiom
// (prompt/skills.go's directory-search-with-fallbacks pattern) to the
// YAML template+vars document this project's prompts use instead of
// plain markdown.
package prompt

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"gopkg.in/yaml.v3"
)

// Template is one role's prompt document: a Go text/template body plus the
// default variable values substituted into it.
type Template struct {
	TemplateText string            `yaml:"template"`
	Vars         map[string]string `yaml:"vars,omitempty"`
}

// Loader locates and parses prompts/<role>.yaml files.
type Loader struct {
	promptsDir string
}

// NewLoader searches upward from the working directory for a prompts/
// directory, mirroring config.findDefaultConfigPath's project-root search.
func NewLoader() *Loader {
	dir, err := os.Getwd()
	if err != nil {
		return &Loader{}
	}
	for {
		candidate := filepath.Join(dir, "prompts")
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return &Loader{promptsDir: candidate}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return &Loader{}
		}
		dir = parent
	}
}

// Load reads prompts/<role>.yaml and renders its template with vars merged
// over the document's own defaults (vars values override the document's).
func (l *Loader) Load(role string, vars map[string]string) (string, error) {
	if l.promptsDir == "" {
		return "", fmt.Errorf("prompt: no prompts directory found")
	}
	path := filepath.Join(l.promptsDir, role+".yaml")
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("prompt: reading %s: %w", path, err)
	}
	var doc Template
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return "", fmt.Errorf("prompt: parsing %s: %w", path, err)
	}

	merged := map[string]string{}
	for k, v := range doc.Vars {
		merged[k] = v
	}
	for k, v := range vars {
		merged[k] = v
	}

	tmpl, err := template.New(role).Parse(doc.TemplateText)
	if err != nil {
		return "", fmt.Errorf("prompt: template %s: %w", role, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, merged); err != nil {
		return "", fmt.Errorf("prompt: rendering %s: %w", role, err)
	}
	return buf.String(), nil
}
