// ABOUTME: Evaluation suite data structures and YAML loading
// ABOUTME: A suite is a document set plus question scenarios with ground truth

package eval

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed suites/financial.yaml
var defaultSuite []byte

// Suite is a self-contained evaluation: documents to index and scenarios to ask
type Suite struct {
	Name      string     `yaml:"name"`
	Documents []Document `yaml:"documents"`
	Scenarios []Scenario `yaml:"scenarios"`

	// dir resolves relative document paths
	dir string
}

// Document is indexed before the scenarios run. Either Path or Chunks is set.
type Document struct {
	Source string   `yaml:"source"`
	Chunks []string `yaml:"chunks"`
	Path   string   `yaml:"path"`
}

// Scenario is one conversation evaluated on its final turn
type Scenario struct {
	ID          string      `yaml:"id"`
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Turns       []Turn      `yaml:"turns"`
	GroundTruth GroundTruth `yaml:"ground_truth"`
}

// Turn is a single question in a scenario conversation
type Turn struct {
	Query string `yaml:"query"`
	TopK  int    `yaml:"top_k"`
}

// GroundTruth defines the expected outcome of the final turn
type GroundTruth struct {
	ExpectedInResponse   []string `yaml:"expected_in_response"`
	ForbiddenInResponse  []string `yaml:"forbidden_in_response"`
	ExpectedContextItems []string `yaml:"expected_context_items"`
	ExpectedSources      []string `yaml:"expected_sources"`
}

// DefaultSuite returns the built-in financial document suite
func DefaultSuite() (*Suite, error) {
	return ParseSuite(defaultSuite, "")
}

// LoadSuite reads a suite from a YAML file
func LoadSuite(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read suite: %w", err)
	}
	return ParseSuite(data, filepath.Dir(path))
}

// ParseSuite decodes and validates a suite; dir resolves relative document paths
func ParseSuite(data []byte, dir string) (*Suite, error) {
	var s Suite
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse suite: %w", err)
	}
	s.dir = dir
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks every scenario has an id and at least one turn
func (s *Suite) Validate() error {
	if len(s.Scenarios) == 0 {
		return fmt.Errorf("suite %q has no scenarios", s.Name)
	}
	seen := make(map[string]bool, len(s.Scenarios))
	for i, sc := range s.Scenarios {
		if sc.ID == "" {
			return fmt.Errorf("scenario %d has no id", i)
		}
		if seen[sc.ID] {
			return fmt.Errorf("duplicate scenario id %q", sc.ID)
		}
		seen[sc.ID] = true
		if len(sc.Turns) == 0 {
			return fmt.Errorf("scenario %s has no turns", sc.ID)
		}
	}
	for i, d := range s.Documents {
		if d.Path == "" && (d.Source == "" || len(d.Chunks) == 0) {
			return fmt.Errorf("document %d needs a path or a source with chunks", i)
		}
	}
	return nil
}

// Scenario returns the scenario with the given id
func (s *Suite) Scenario(id string) (Scenario, bool) {
	for _, sc := range s.Scenarios {
		if sc.ID == id {
			return sc, true
		}
	}
	return Scenario{}, false
}

func (s *Suite) resolve(path string) string {
	if filepath.IsAbs(path) || s.dir == "" {
		return path
	}
	return filepath.Join(s.dir, path)
}
