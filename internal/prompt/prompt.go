// Package prompt loads the YAML prompt template file and renders templates
// by literal `{placeholder}` substitution.
package prompt

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kadirpekel-labs/lcbench/internal/config"
)

// Template is one named prompt: a system message, a user message template,
// and optional free-form constraints appended to generation prompts.
type Template struct {
	System      string   `yaml:"system"`
	User        string   `yaml:"user"`
	Constraints []string `yaml:"constraints,omitempty"`
}

// Store holds the loaded template file, keyed by template name
// (question_generation, testing).
type Store struct {
	templates map[string]Template
}

// Load reads and parses a YAML template file from path.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("prompt: read %s: %w", path, err)
	}
	return LoadBytes(data)
}

// LoadBytes parses a YAML template document already in memory. Before
// parsing, `${VAR}`/`${VAR:-default}` references anywhere in the document
// are expanded from the process environment, so a template file can embed
// things like `{api_base}` defaults or deployment-specific wording without
// forking the file per environment.
func LoadBytes(data []byte) (*Store, error) {
	expanded := config.ExpandEnvVars(string(data))

	var templates map[string]Template
	if err := yaml.Unmarshal([]byte(expanded), &templates); err != nil {
		return nil, fmt.Errorf("prompt: parse templates: %w", err)
	}
	return &Store{templates: templates}, nil
}

// placeholder matches a literal `{name}` reference. Placeholders are
// substituted literally, not via text/template.
func placeholders(s string) []string {
	var names []string
	for {
		start := strings.IndexByte(s, '{')
		if start < 0 {
			break
		}
		end := strings.IndexByte(s[start:], '}')
		if end < 0 {
			break
		}
		names = append(names, s[start+1:start+end])
		s = s[start+end+1:]
	}
	return names
}

// Render substitutes vars into the named template's system/user strings.
// It is an error for the template source to reference a placeholder that
// vars does not supply.
func (s *Store) Render(name string, vars map[string]string) (system, user string, err error) {
	tmpl, ok := s.templates[name]
	if !ok {
		return "", "", fmt.Errorf("prompt: unknown template %q", name)
	}

	for _, text := range []string{tmpl.System, tmpl.User} {
		for _, name := range placeholders(text) {
			if _, ok := vars[name]; !ok {
				return "", "", fmt.Errorf("prompt: template references undefined placeholder %q", name)
			}
		}
	}

	return substitute(tmpl.System, vars), substitute(tmpl.User, vars), nil
}

func substitute(s string, vars map[string]string) string {
	for name, value := range vars {
		s = strings.ReplaceAll(s, "{"+name+"}", value)
	}
	return s
}
