// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.
package audit_engine

import (
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/solforge/services/translator/datatypes"
)

// RuleFile is the on-disk (and embedded) shape of the detector set.
type RuleFile struct {
	Rules []Rule `yaml:"rules"`
}

// Rule is one line detector: a regex matched against every source line.
type Rule struct {
	Id              string                    `yaml:"id"`
	Category        datatypes.FindingCategory `yaml:"category"`
	Severity        datatypes.Severity        `yaml:"severity"`
	Pattern         string                    `yaml:"pattern"`
	Rationale       string                    `yaml:"rationale"`
	compiledPattern *regexp.Regexp            `yaml:"-"`
}

// ruleSeverity is a yaml.Unmarshaler shim so severity values are validated
// at decode time rather than at first scan.
type ruleSeverity datatypes.Severity

func (s *ruleSeverity) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	incoming := datatypes.Severity(raw)
	if !incoming.Valid() {
		return fmt.Errorf("invalid value for severity: %q", raw)
	}
	*s = ruleSeverity(incoming)
	return nil
}

// UnmarshalYAML validates rule fields as they decode. Category and severity
// must come from the closed taxonomy; an empty id or pattern is rejected.
func (r *Rule) UnmarshalYAML(value *yaml.Node) error {
	type plain struct {
		Id        string                    `yaml:"id"`
		Category  datatypes.FindingCategory `yaml:"category"`
		Severity  ruleSeverity              `yaml:"severity"`
		Pattern   string                    `yaml:"pattern"`
		Rationale string                    `yaml:"rationale"`
	}
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	if p.Id == "" {
		return fmt.Errorf("rule is missing an id")
	}
	if !p.Category.Valid() {
		return fmt.Errorf("rule %s: invalid category %q", p.Id, p.Category)
	}
	if p.Pattern == "" {
		return fmt.Errorf("rule %s: missing pattern", p.Id)
	}
	r.Id = p.Id
	r.Category = p.Category
	r.Severity = datatypes.Severity(p.Severity)
	r.Pattern = p.Pattern
	r.Rationale = p.Rationale
	return nil
}

// CompileRegexes compiles every rule's pattern, failing fast on the first
// invalid expression.
func (f *RuleFile) CompileRegexes() error {
	for i := range f.Rules {
		rule := &f.Rules[i]
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return fmt.Errorf("failed to compile the regex for rule %s: %w", rule.Id, err)
		}
		rule.compiledPattern = re
	}
	return nil
}
