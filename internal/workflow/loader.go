package workflow

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"jira-sync/internal/tally"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// ErrInvalidWorkflow wraps every load-time configuration problem.
var ErrInvalidWorkflow = errors.New("invalid workflow")

//go:embed default.yaml
var bundledWorkflow []byte

type document struct {
	Name  string         `yaml:"name"`
	Rules []ruleDocument `yaml:"rules"`
}

type ruleDocument struct {
	When       []string `yaml:"when"`
	Verdict    []string `yaml:"verdict"`
	Transition string   `yaml:"transition"`
}

func intPtr(i int) *int { return &i }

func stringList() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:  "array",
		Items: &jsonschema.Schema{Type: "string", MinLength: intPtr(1)},
	}
}

// documentSchema describes the shape of a workflow file. Outcome names are
// checked separately so the error can name the offending rule.
var documentSchema = &jsonschema.Schema{
	Type:     "object",
	Required: []string{"rules"},
	Properties: map[string]*jsonschema.Schema{
		"name": {Type: "string"},
		"rules": {
			Type:     "array",
			MinItems: intPtr(1),
			Items: &jsonschema.Schema{
				Type:     "object",
				Required: []string{"transition"},
				Properties: map[string]*jsonschema.Schema{
					"when":       stringList(),
					"verdict":    stringList(),
					"transition": {Type: "string", MinLength: intPtr(1)},
				},
				AdditionalProperties: &jsonschema.Schema{Not: &jsonschema.Schema{}},
			},
		},
	},
	AdditionalProperties: &jsonschema.Schema{Not: &jsonschema.Schema{}},
}

// Load reads a workflow file. An empty path selects the bundled workflow.
func Load(path string) (*Workflow, error) {
	if path == "" {
		log.Debug().Msg("Using bundled workflow")
		return Parse(bundledWorkflow)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrInvalidWorkflow, path, err)
	}
	w, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	log.Debug().Str("path", path).Int("rules", len(w.Rules)).Msg("Loaded workflow")
	return w, nil
}

// Parse validates and compiles a YAML workflow document.
func Parse(data []byte) (*Workflow, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWorkflow, err)
	}
	if err := validateShape(raw); err != nil {
		return nil, err
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWorkflow, err)
	}

	w := &Workflow{Name: doc.Name, Rules: make([]Rule, 0, len(doc.Rules))}
	for i, rd := range doc.Rules {
		rule := Rule{Transition: strings.TrimSpace(rd.Transition)}
		if rule.Transition == "" {
			return nil, fmt.Errorf("%w: rule %d has an empty transition", ErrInvalidWorkflow, i+1)
		}
		for _, s := range rd.When {
			if s == Wildcard {
				rule.Statuses = nil
				break
			}
			rule.Statuses = append(rule.Statuses, strings.TrimSpace(s))
		}
		for _, v := range rd.Verdict {
			if v == Wildcard {
				rule.Verdicts = nil
				break
			}
			o, err := tally.ParseOutcome(v)
			if err != nil {
				return nil, fmt.Errorf("%w: rule %d: %v", ErrInvalidWorkflow, i+1, err)
			}
			rule.Verdicts = append(rule.Verdicts, o)
		}
		w.Rules = append(w.Rules, rule)
	}
	return w, nil
}

// validateShape checks the decoded YAML against documentSchema. The value is
// round-tripped through JSON so the validator only sees JSON types.
func validateShape(raw any) error {
	if raw == nil {
		return fmt.Errorf("%w: empty document", ErrInvalidWorkflow)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidWorkflow, err)
	}
	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidWorkflow, err)
	}

	resolved, err := documentSchema.Resolve(nil)
	if err != nil {
		return fmt.Errorf("resolving workflow schema: %w", err)
	}
	if err := resolved.Validate(instance); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidWorkflow, err)
	}
	return nil
}
