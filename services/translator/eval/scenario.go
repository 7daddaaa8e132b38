// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package eval

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ScenarioMetadata identifies the evaluation configuration being run.
type ScenarioMetadata struct {
	ID          string `yaml:"id" json:"id"`
	Version     string `yaml:"version" json:"version"`
	Description string `yaml:"description" json:"description"`
	Author      string `yaml:"author" json:"author"`
	Created     string `yaml:"created" json:"created"`
}

// Scenario is the full evaluation configuration file.
type Scenario struct {
	Metadata ScenarioMetadata `yaml:"metadata" json:"metadata"`

	Dataset struct {
		Path       string `yaml:"path" json:"path"`
		SampleSize int    `yaml:"sample_size" json:"sample_size"`
		Seed       int64  `yaml:"seed" json:"seed"`
	} `yaml:"dataset" json:"dataset"`

	Run struct {
		Backend        string `yaml:"backend" json:"backend"`
		TypeHint       string `yaml:"type_hint" json:"type_hint"`
		MaxRefinements *int   `yaml:"max_refinements" json:"max_refinements"`
		Concurrency    int    `yaml:"concurrency" json:"concurrency"`
		TimeoutSeconds int    `yaml:"timeout_seconds" json:"timeout_seconds"`
	} `yaml:"run" json:"run"`

	Output struct {
		Dir    string `yaml:"dir" json:"dir"`
		Influx bool   `yaml:"influx" json:"influx"`
	} `yaml:"output" json:"output"`
}

// LoadScenario reads and parses a scenario YAML file, applies defaults, and
// validates the result.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario file: %w", err)
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("parsing scenario file: %w", err)
	}

	scenario.EnsureDefaults()
	if err := scenario.Validate(); err != nil {
		return nil, err
	}
	return &scenario, nil
}

// EnsureDefaults fills optional fields a minimal scenario file omits.
func (s *Scenario) EnsureDefaults() {
	if s.Metadata.Version == "" {
		s.Metadata.Version = "1"
	}
	if s.Dataset.SampleSize == 0 {
		s.Dataset.SampleSize = 10
	}
	if s.Run.Backend == "" {
		s.Run.Backend = "static"
	}
	if s.Run.Concurrency == 0 {
		s.Run.Concurrency = 4
	}
	if s.Run.TimeoutSeconds == 0 {
		s.Run.TimeoutSeconds = 300
	}
	if s.Output.Dir == "" {
		s.Output.Dir = "eval_results"
	}
}

// Validate rejects scenarios that cannot produce a meaningful run.
func (s *Scenario) Validate() error {
	if s.Metadata.ID == "" {
		return fmt.Errorf("scenario metadata.id is required")
	}
	if s.Dataset.Path == "" {
		return fmt.Errorf("scenario dataset.path is required")
	}
	if s.Dataset.SampleSize < 1 {
		return fmt.Errorf("scenario dataset.sample_size must be positive, got %d", s.Dataset.SampleSize)
	}
	if s.Run.Backend != "static" && s.Run.Backend != "openai" {
		return fmt.Errorf("scenario run.backend must be static or openai, got %q", s.Run.Backend)
	}
	if s.Run.Concurrency < 1 {
		return fmt.Errorf("scenario run.concurrency must be positive, got %d", s.Run.Concurrency)
	}
	return nil
}

// RunID derives the batch identifier: {ID}_v{Version}_{Timestamp}.
func (s *Scenario) RunID(now time.Time) string {
	return fmt.Sprintf("%s_v%s_%s", s.Metadata.ID, s.Metadata.Version, now.Format("20060102_150405"))
}
