// Package policydoc loads the versioned career misconduct policy document.
package policydoc

import (
	"errors"
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Snapshot is an immutable view of the policy document. It is read once per
// process; blocks and reports record Version so later edits never rewrite history.
type Snapshot struct {
	Version                string   `yaml:"version" json:"version" env:"POLICY_VERSION" env-default:"1.0.0"`
	Title                  string   `yaml:"title" json:"title" env-default:"Platform Usage Policy"`
	Content                string   `yaml:"content" json:"content" env-default:"Default platform policy content."`
	SeverityLevel          string   `yaml:"severity_level" json:"severity_level" env-default:"info"`
	RequiresAcknowledgment bool     `yaml:"requires_acknowledgment" json:"requires_acknowledgment" env-default:"false"`
	EffectiveDate          string   `yaml:"effective_date" json:"effective_date,omitempty"`
	DefaultBlockReason     string   `yaml:"default_block_reason" json:"-" env-default:"Policy violation"`
	ProhibitedConduct      []string `yaml:"prohibited_conduct" json:"prohibited_conduct,omitempty"`
}

var validSeverityLevels = map[string]bool{"info": true, "warning": true, "error": true, "critical": true}

// Load reads the policy document at path. A missing file yields the built-in
// default policy.
func Load(path string) (*Snapshot, error) {
	var s Snapshot

	if _, err := os.Stat(path); path == "" || errors.Is(err, os.ErrNotExist) {
		if err := cleanenv.ReadEnv(&s); err != nil {
			return nil, fmt.Errorf("failed to read default policy: %w", err)
		}
		return &s, nil
	}

	if err := cleanenv.ReadConfig(path, &s); err != nil {
		return nil, fmt.Errorf("failed to read policy document %s: %w", path, err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Snapshot) validate() error {
	if s.Version == "" {
		return errors.New("policy document: version is required")
	}
	if s.Title == "" {
		return errors.New("policy document: title is required")
	}
	if !validSeverityLevels[s.SeverityLevel] {
		return fmt.Errorf("policy document: invalid severity_level %q", s.SeverityLevel)
	}
	return nil
}
