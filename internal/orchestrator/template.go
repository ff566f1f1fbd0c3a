package orchestrator

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/api/resource"
)

// TemplateSpec is the operator-supplied shape of the worker pod template,
// loaded from a YAML file at startup. It is only consulted when the template
// does not exist yet; an existing template in the cluster wins.
type TemplateSpec struct {
	Image          string            `yaml:"image"`
	Command        []string          `yaml:"command,omitempty"`
	CPU            string            `yaml:"cpu"`
	Memory         string            `yaml:"memory"`
	Labels         map[string]string `yaml:"labels,omitempty"`
	ServiceAccount string            `yaml:"serviceAccount,omitempty"`
}

// LoadTemplateSpec reads and validates a TemplateSpec from path.
func LoadTemplateSpec(path string) (TemplateSpec, error) {
	var spec TemplateSpec

	raw, err := os.ReadFile(path)
	if err != nil {
		return spec, fmt.Errorf("reading worker template %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &spec); err != nil {
		return spec, fmt.Errorf("parsing worker template %s: %w", path, err)
	}
	if err := spec.Validate(); err != nil {
		return spec, fmt.Errorf("worker template %s: %w", path, err)
	}
	return spec, nil
}

// Validate checks the spec is complete enough to stamp out workers.
func (s TemplateSpec) Validate() error {
	if s.Image == "" {
		return fmt.Errorf("image is required")
	}
	if s.CPU != "" {
		if _, err := resource.ParseQuantity(s.CPU); err != nil {
			return fmt.Errorf("invalid cpu quantity %q: %w", s.CPU, err)
		}
	}
	if s.Memory != "" {
		if _, err := resource.ParseQuantity(s.Memory); err != nil {
			return fmt.Errorf("invalid memory quantity %q: %w", s.Memory, err)
		}
	}
	return nil
}
