package workflow

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed checklist_default.yaml
var defaultChecklist []byte

// ErrInvalidContent is returned when checklist content cannot drive a
// workflow (for example an empty panel).
var ErrInvalidContent = errors.New("workflow: invalid content")

// Status is the outcome recorded for a single Step.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusPass    Status = "PASS"
	StatusFail    Status = "FAIL"
)

// Step is one checklist item. Only Status changes during a session.
type Step struct {
	Description string `yaml:"description"`
	Reference   string `yaml:"reference,omitempty"`
	Status      Status `yaml:"-"`
}

// Panel is a named, ordered group of inspection tasks.
type Panel struct {
	Name  string  `yaml:"name"`
	Tasks []*Step `yaml:"tasks"`
}

// Content is the static checklist driving one session. Membership never
// changes after loading; steps are shared by pointer so their status can be
// recorded in place.
type Content struct {
	Title         string   `yaml:"title"`
	Prerequisites []*Step  `yaml:"prerequisites"`
	Tools         []string `yaml:"tools"`
	Panels        []*Panel `yaml:"panels"`
}

// DefaultContent returns a fresh copy of the embedded checklist.
func DefaultContent() (*Content, error) {
	return ParseContent(defaultChecklist)
}

// LoadContent reads a checklist YAML file. An empty path selects the
// embedded default.
func LoadContent(path string) (*Content, error) {
	if path == "" {
		return DefaultContent()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("workflow: reading %s: %w", path, err)
	}
	c, err := ParseContent(data)
	if err != nil {
		return nil, fmt.Errorf("workflow: %s: %w", path, err)
	}
	return c, nil
}

// ParseContent decodes and validates checklist YAML. Every step starts
// PENDING regardless of the input.
func ParseContent(data []byte) (*Content, error) {
	var c Content
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing checklist: %w", err)
	}
	for _, s := range c.Prerequisites {
		if s != nil {
			s.Status = StatusPending
		}
	}
	for _, p := range c.Panels {
		if p == nil {
			continue
		}
		for _, s := range p.Tasks {
			if s != nil {
				s.Status = StatusPending
			}
		}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the shape the navigation rules depend on: at least one
// prerequisite, at least one panel, and no empty panel.
func (c *Content) Validate() error {
	var errs []string

	if len(c.Prerequisites) == 0 {
		errs = append(errs, "at least one prerequisite is required")
	}
	for i, s := range c.Prerequisites {
		if s == nil || strings.TrimSpace(s.Description) == "" {
			errs = append(errs, fmt.Sprintf("prerequisites[%d]: description is required", i))
		}
	}
	if len(c.Panels) == 0 {
		errs = append(errs, "at least one panel is required")
	}
	for i, p := range c.Panels {
		if p == nil {
			errs = append(errs, fmt.Sprintf("panels[%d]: empty entry", i))
			continue
		}
		if strings.TrimSpace(p.Name) == "" {
			errs = append(errs, fmt.Sprintf("panels[%d]: name is required", i))
		}
		if len(p.Tasks) == 0 {
			errs = append(errs, fmt.Sprintf("panels[%d] %q: at least one task is required", i, p.Name))
		}
		for j, s := range p.Tasks {
			if s == nil || strings.TrimSpace(s.Description) == "" {
				errs = append(errs, fmt.Sprintf("panels[%d].tasks[%d]: description is required", i, j))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidContent, strings.Join(errs, "; "))
	}
	return nil
}

// TaskCount returns the number of inspection tasks across all panels.
func (c *Content) TaskCount() int {
	n := 0
	for _, p := range c.Panels {
		n += len(p.Tasks)
	}
	return n
}
