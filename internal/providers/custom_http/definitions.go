package custom_http

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Definition describes one user-defined adapter. JSON text is valid YAML,
// so both forms of the customApis setting parse here.
type Definition struct {
	Name         string            `yaml:"-"`
	Triggers     []string          `yaml:"triggers"`
	URL          string            `yaml:"url"`
	Method       string            `yaml:"method"`
	Headers      map[string]string `yaml:"headers"`
	BodyTemplate string            `yaml:"body_template"`
	Field        string            `yaml:"field"`
}

// ParseDefinitions returns the definitions sorted by name. Blank text
// yields none.
func ParseDefinitions(text string) ([]Definition, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	var raw map[string]Definition
	if err := yaml.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("parse custom apis: %w", err)
	}

	out := make([]Definition, 0, len(raw))
	for name, def := range raw {
		def.Name = strings.TrimSpace(name)
		if def.Name == "" {
			return nil, fmt.Errorf("parse custom apis: empty name")
		}
		triggers := def.Triggers[:0]
		for _, t := range def.Triggers {
			if t = strings.TrimSpace(t); t != "" {
				triggers = append(triggers, t)
			}
		}
		if len(triggers) == 0 {
			return nil, fmt.Errorf("parse custom apis: %q has no triggers", def.Name)
		}
		def.Triggers = triggers
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
