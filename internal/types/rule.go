package types

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
)

// Rule types. Only Grade is evaluatable today; View and MasteryLevel are
// accepted by the model and rejected at evaluation time.
const (
	RuleTypeGrade        = "Grade"
	RuleTypeView         = "View"
	RuleTypeMasteryLevel = "MasteryLevel"
)

// Comparison operators accepted in a Grade rule payload.
const (
	RuleOpGte = "gte"
	RuleOpGt  = "gt"
	RuleOpLte = "lte"
	RuleOpLt  = "lt"
	RuleOpEq  = "eq"
)

// Payload value scales.
const (
	RuleScalePercent  = "percent"
	RuleScaleFraction = "fraction"
)

// Retake rules: how repeated graded attempts collapse into the single
// percent the rule comparison sees.
const (
	RetakeRuleSimpleAverage   = "SimpleAverage"
	RetakeRuleWeightedAverage = "WeightedAverage"
	RetakeRuleDecayingAverage = "DecayingAverage"
	RetakeRuleMostRecent      = "MostRecent"
	RetakeRuleHighest         = "Highest"
)

// RuleProfile scopes, ordered from most to least specific.
const (
	RuleScopeTaxonomy     = "taxonomy"
	RuleScopeCourse       = "course"
	RuleScopeOrganization = "organization"
)

// RulePayload is the structured payload of a Grade rule.
type RulePayload struct {
	Op    string  `json:"op"`
	Value float64 `json:"value"`
	Scale string  `json:"scale,omitempty"`
}

// ExpectedPercent normalizes the payload value onto the percent scale.
func (p RulePayload) ExpectedPercent() (float64, error) {
	switch p.Scale {
	case "", RuleScalePercent:
		return p.Value, nil
	case RuleScaleFraction:
		return p.Value * 100.0, nil
	default:
		return 0, fmt.Errorf("unsupported rule scale %q", p.Scale)
	}
}

// ParseRulePayload decodes a stored jsonb payload.
func ParseRulePayload(raw datatypes.JSON) (RulePayload, error) {
	var p RulePayload
	if len(raw) == 0 {
		return p, fmt.Errorf("empty rule payload")
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("decode rule payload: %w", err)
	}
	if p.Op == "" {
		return p, fmt.Errorf("rule payload missing op")
	}
	return p, nil
}

// EffectiveRule sources, in cascade order.
const (
	RuleSourceOverride      = "override"
	RuleSourceDirectProfile = "profile"
	RuleSourceTaxonomy      = "taxonomy"
	RuleSourceCourse        = "course"
	RuleSourceOrganization  = "organization"
	RuleSourceDefault       = "default"
)

// EffectiveRule is the resolved rule actually applied to one criterion. It
// is never persisted.
type EffectiveRule struct {
	RuleType string      `json:"rule_type"`
	Payload  RulePayload `json:"payload"`
	Source   string      `json:"source"`
	// MissingProfile is set when the system default was used because no
	// profile matched anywhere in the cascade.
	MissingProfile bool `json:"missing_profile,omitempty"`
}
