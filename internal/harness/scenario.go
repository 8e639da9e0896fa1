package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/stockroom/internal/importer"
	"github.com/roach88/stockroom/internal/ir"
)

// DefaultActor dispatches steps that name no actor when the scenario sets none.
const DefaultActor = "local"

// Scenario is a scripted session against a fresh log.
type Scenario struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Actor       string      `yaml:"actor,omitempty"`
	Steps       []Step      `yaml:"steps"`
	Assertions  []Assertion `yaml:"assertions"`
}

// Step dispatches one action or runs one import. Exactly one of Action or
// Import is set.
type Step struct {
	Actor             string         `yaml:"actor,omitempty"`
	Action            string         `yaml:"action,omitempty"`
	Payload           map[string]any `yaml:"payload,omitempty"`
	Import            *ImportStep    `yaml:"import,omitempty"`
	ExpectDiagnostics []string       `yaml:"expect_diagnostics,omitempty"`
}

// ImportStep analyzes rows against the actor's snapshot, applies the
// resolutions and commits. Nothing is committed if a resolution is rejected.
type ImportStep struct {
	Rows           []importer.Row            `yaml:"rows"`
	Resolutions    []importer.ResolutionSpec `yaml:"resolutions,omitempty"`
	ChunkSize      int                       `yaml:"chunk_size,omitempty"`
	ExpectRejected int                       `yaml:"expect_rejected,omitempty"`
}

// Assertion types.
const (
	AssertItem            = "item"
	AssertItemAbsent      = "item_absent"
	AssertItemCount       = "item_count"
	AssertOrder           = "order"
	AssertNames           = "names"
	AssertDiagnosticCount = "diagnostic_count"
	AssertHistoryContains = "history_contains"
)

// Assertion checks the replayed state. Which fields apply depends on Type.
type Assertion struct {
	Type           string         `yaml:"type"`
	Code           string         `yaml:"code,omitempty"`
	Subtype        string         `yaml:"subtype,omitempty"`
	Expect         map[string]any `yaml:"expect,omitempty"`
	Order          string         `yaml:"order,omitempty"`
	Lines          []LineSpec     `yaml:"lines,omitempty"`
	Classification string         `yaml:"classification,omitempty"`
	Names          []string       `yaml:"names,omitempty"`
	Diagnostic     string         `yaml:"diagnostic,omitempty"`
	Count          int            `yaml:"count,omitempty"`
	Text           string         `yaml:"text,omitempty"`
}

// LineSpec is an expected order line.
type LineSpec struct {
	Code    string `yaml:"code"`
	Subtype string `yaml:"subtype"`
	Qty     int    `yaml:"qty"`
}

// Key returns the item key the assertion targets.
func (a Assertion) Key() ir.ItemKey {
	return ir.NewItemKey(a.Code, a.Subtype)
}

// ActorFor returns who dispatches step.
func (s *Scenario) ActorFor(step Step) string {
	switch {
	case step.Actor != "":
		return step.Actor
	case s.Actor != "":
		return s.Actor
	default:
		return DefaultActor
	}
}

// itemFields are the keys an item assertion may check.
var itemFields = []string{"qty", "shipped", "pieces", "description", "classification", "image"}

// LoadScenario reads and validates a scenario file.
// Unknown keys are rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates a scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// FindScenarios returns the .yaml and .yml files under dir in lexical
// order. A non-empty filter is a glob matched against the base name
// without extension.
func FindScenarios(dir, filter string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(files)
	return files, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}
	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, step *Step) error {
	switch {
	case step.Action != "" && step.Import != nil:
		return fmt.Errorf("steps[%d]: action and import are mutually exclusive", index)
	case step.Action != "":
		if step.Payload == nil {
			return fmt.Errorf("steps[%d]: payload is required (use {} if empty)", index)
		}
	case step.Import != nil:
		if len(step.Import.Rows) == 0 {
			return fmt.Errorf("steps[%d].import: rows are required", index)
		}
		if step.Import.ChunkSize < 0 || step.Import.ExpectRejected < 0 {
			return fmt.Errorf("steps[%d].import: chunk_size and expect_rejected must be non-negative", index)
		}
	default:
		return fmt.Errorf("steps[%d]: action or import is required", index)
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertItem:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for item", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for item", index)
		}
		for field := range a.Expect {
			if !slices.Contains(itemFields, field) {
				return fmt.Errorf("assertions[%d]: unknown item field %q", index, field)
			}
		}
	case AssertItemAbsent, AssertHistoryContains:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for %s", index, a.Type)
		}
		if a.Type == AssertHistoryContains && a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for history_contains", index)
		}
	case AssertItemCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for item_count", index)
		}
	case AssertOrder:
		if a.Order == "" {
			return fmt.Errorf("assertions[%d]: order is required for order", index)
		}
	case AssertNames:
		if a.Classification == "" {
			return fmt.Errorf("assertions[%d]: classification is required for names", index)
		}
	case AssertDiagnosticCount:
		if a.Diagnostic == "" {
			return fmt.Errorf("assertions[%d]: diagnostic is required for diagnostic_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for diagnostic_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
