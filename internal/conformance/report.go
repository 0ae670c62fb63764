package conformance

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Result is the outcome of one case.
type Result struct {
	Name     string        `yaml:"name"`
	Passed   bool          `yaml:"passed"`
	Message  string        `yaml:"message,omitempty"`
	Duration time.Duration `yaml:"duration"`
}

// Report collects the results of a run.
type Report struct {
	Shim     string        `yaml:"shim,omitempty"`
	Started  time.Time     `yaml:"started"`
	Duration time.Duration `yaml:"duration"`
	Passed   int           `yaml:"passed"`
	Failed   int           `yaml:"failed"`
	Results  []Result      `yaml:"results"`
}

func (r *Report) add(res Result) {
	r.Results = append(r.Results, res)
	if res.Passed {
		r.Passed++
	} else {
		r.Failed++
	}
}

// OK reports whether every case passed.
func (r *Report) OK() bool {
	return r.Failed == 0
}

// WriteFile writes the report as YAML.
func (r *Report) WriteFile(path string) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// ReadReport loads a report written by WriteFile.
func ReadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	var r Report
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &r, nil
}
