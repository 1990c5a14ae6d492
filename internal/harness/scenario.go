package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Step is one write applied during a scenario run. Kind selects between
// a locally-authored write (goes through Store.Set, including the
// timestamp bump) and a raw ingest (goes through Store.IngestDocument
// directly, for tests that need to control timestamp/signature exactly,
// e.g. a last-write-wins tiebreak scenario).
type Step struct {
	Kind        string `yaml:"kind"`
	Author      string `yaml:"author"`
	Path        string `yaml:"path"`
	Content     string `yaml:"content"`
	Timestamp   int64  `yaml:"timestamp,omitempty"`
	DeleteAfter *int64 `yaml:"deleteAfter,omitempty"`
	Signature   string `yaml:"signature,omitempty"`
	IsLocal     bool   `yaml:"isLocal,omitempty"`
}

const (
	StepKindSet    = "set"
	StepKindIngest = "ingest"
)

// Assertion checks one fact about the store's state after all steps
// have run.
type Assertion struct {
	Type string `yaml:"type"`

	Path          string   `yaml:"path,omitempty"`
	ExpectContent *string  `yaml:"expectContent,omitempty"`
	ExpectAbsent  bool     `yaml:"expectAbsent,omitempty"`
	ExpectPaths   []string `yaml:"expectPaths,omitempty"`
	ExpectAuthors []string `yaml:"expectAuthors,omitempty"`
	ExpectCount   int      `yaml:"expectCount,omitempty"`
}

const (
	AssertLiveDocument = "live_document"
	AssertPathSet      = "path_set"
	AssertAuthorSet    = "author_set"
	AssertTraceCount   = "trace_count"
)

// Scenario describes a reproducible store exercise: a workspace, a clock
// value, a sequence of steps, and assertions over the resulting state.
type Scenario struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Workspace   string      `yaml:"workspace"`
	Format      string      `yaml:"format"`
	Now         int64       `yaml:"now,omitempty"`
	Steps       []Step      `yaml:"steps"`
	Assertions  []Assertion `yaml:"assertions"`
}

// LoadScenario reads and strictly parses a scenario YAML file, rejecting
// unknown fields so a typo'd key fails loudly instead of silently.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("harness: load scenario: %w", err)
	}
	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("harness: parse scenario %s: %w", path, err)
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("harness: invalid scenario %s: %w", path, err)
	}
	return &s, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Workspace == "" {
		return fmt.Errorf("workspace is required")
	}
	if s.Format == "" {
		return fmt.Errorf("format is required")
	}
	for i, step := range s.Steps {
		switch step.Kind {
		case StepKindSet, StepKindIngest:
		default:
			return fmt.Errorf("steps[%d]: unknown kind %q", i, step.Kind)
		}
		if step.Author == "" {
			return fmt.Errorf("steps[%d]: author is required", i)
		}
		if step.Path == "" {
			return fmt.Errorf("steps[%d]: path is required", i)
		}
	}
	for i, a := range s.Assertions {
		switch a.Type {
		case AssertLiveDocument, AssertPathSet, AssertAuthorSet, AssertTraceCount:
		default:
			return fmt.Errorf("assertions[%d]: unknown type %q", i, a.Type)
		}
	}
	return nil
}
