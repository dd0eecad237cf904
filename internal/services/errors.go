package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ConfigurationError marks a malformed criteria tree: a cycle, a non-leaf
// group without an operator, a criterion whose tag does not match its
// group's competency tag, or multiple roots. Fatal for the affected
// competency's evaluation; other competencies proceed.
type ConfigurationError struct {
	CompetencyTagID uuid.UUID
	Reason          string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("criteria configuration error for competency %s: %s", e.CompetencyTagID, e.Reason)
}

func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// UnresolvedRuleError marks a criterion for which the whole resolution
// cascade came up empty and no system default is configured. Per-criterion,
// contained to its subtree.
type UnresolvedRuleError struct {
	CriterionID uuid.UUID
}

func (e *UnresolvedRuleError) Error() string {
	return fmt.Sprintf("no rule resolvable for criterion %s", e.CriterionID)
}

// UnsupportedRuleTypeError marks a criterion whose effective rule type the
// evaluator cannot apply yet (View, MasteryLevel). Per-criterion, contained.
type UnsupportedRuleTypeError struct {
	RuleType string
}

func (e *UnsupportedRuleTypeError) Error() string {
	return fmt.Sprintf("unsupported rule type %q", e.RuleType)
}

// ErrSignalUnavailable stands for a grading-source timeout or missing data.
// Treated as not-yet-evaluable and retried on the next event, never a hard
// failure.
var ErrSignalUnavailable = errors.New("learner signal unavailable")

// ErrNotEvaluable is returned when a criterion has no signal at all (no
// grade, no attempt). No status record is written for it.
var ErrNotEvaluable = errors.New("not yet evaluable")
