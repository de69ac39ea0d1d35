package memory

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rule is one distilled trading rule from the operator's playbook.
type Rule struct {
	Name    string   `yaml:"name"`
	Symbols []string `yaml:"symbols,omitempty"` // empty applies to all
	Text    string   `yaml:"text"`
}

// Playbook holds the distilled rule set, loaded once at startup.
type Playbook struct {
	Rules []Rule `yaml:"rules"`
}

// LoadPlaybook reads the rules file. A missing path is not an error: a new
// installation simply has no playbook yet.
func LoadPlaybook(path string) (*Playbook, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return &Playbook{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Playbook{}, nil
		}
		return nil, fmt.Errorf("reading playbook: %w", err)
	}
	var pb Playbook
	if err := yaml.Unmarshal(raw, &pb); err != nil {
		return nil, fmt.Errorf("parsing playbook: %w", err)
	}
	return &pb, nil
}

// Match returns the rules that apply to the symbol.
func (p *Playbook) Match(symbol string) []Rule {
	if p == nil || len(p.Rules) == 0 {
		return nil
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	out := make([]Rule, 0, len(p.Rules))
	for _, r := range p.Rules {
		if len(r.Symbols) == 0 {
			out = append(out, r)
			continue
		}
		for _, s := range r.Symbols {
			if strings.ToUpper(strings.TrimSpace(s)) == symbol {
				out = append(out, r)
				break
			}
		}
	}
	return out
}
