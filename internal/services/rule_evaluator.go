package services

import (
	"fmt"
	"sort"

	"github.com/yungbote/competency-engine/internal/logger"
	"github.com/yungbote/competency-engine/internal/types"
)

// Weight of the most recent attempt under the DecayingAverage retake rule;
// the average of earlier attempts carries the remainder.
const decayingRecentWeight = 0.65

// RuleEvaluator applies one effective rule to one learner signal. Pure: the
// only output is the verdict (or an error); status writes belong to the
// status service.
type RuleEvaluator interface {
	// Evaluate returns the verdict, ErrNotEvaluable when no grade and no
	// attempt exist yet, or an UnsupportedRuleTypeError for non-Grade rules.
	Evaluate(rule types.EffectiveRule, retakeRule string, sig *types.LearnerSignal) (types.Verdict, error)
}

type ruleEvaluator struct {
	log *logger.Logger
}

func NewRuleEvaluator(baseLog *logger.Logger) RuleEvaluator {
	return &ruleEvaluator{log: baseLog.With("service", "RuleEvaluator")}
}

func (e *ruleEvaluator) Evaluate(rule types.EffectiveRule, retakeRule string, sig *types.LearnerSignal) (types.Verdict, error) {
	if rule.RuleType != types.RuleTypeGrade {
		return "", &UnsupportedRuleTypeError{RuleType: rule.RuleType}
	}
	if sig == nil {
		return "", ErrNotEvaluable
	}

	percent, err := effectivePercent(sig, retakeRule)
	if err != nil {
		return "", err
	}
	if percent == nil {
		if sig.Attempted {
			return types.VerdictPartiallyAttempted, nil
		}
		return "", ErrNotEvaluable
	}

	expected, err := rule.Payload.ExpectedPercent()
	if err != nil {
		return "", err
	}
	holds, err := compare(rule.Payload.Op, *percent, expected)
	if err != nil {
		return "", err
	}
	if holds {
		return types.VerdictDemonstrated, nil
	}
	return types.VerdictAttemptedNotDemonstrated, nil
}

func compare(op string, actual, expected float64) (bool, error) {
	switch op {
	case types.RuleOpGte:
		return actual >= expected, nil
	case types.RuleOpGt:
		return actual > expected, nil
	case types.RuleOpLte:
		return actual <= expected, nil
	case types.RuleOpLt:
		return actual < expected, nil
	case types.RuleOpEq:
		return actual == expected, nil
	default:
		return false, fmt.Errorf("unsupported rule op %q", op)
	}
}

// effectivePercent collapses the attempt history per the criterion's retake
// rule. Without a history it falls back to the source's latest grade.
func effectivePercent(sig *types.LearnerSignal, retakeRule string) (*float64, error) {
	if len(sig.Attempts) == 0 {
		return sig.GradePercent, nil
	}
	attempts := make([]types.GradeAttempt, len(sig.Attempts))
	copy(attempts, sig.Attempts)
	sort.SliceStable(attempts, func(i, j int) bool { return attempts[i].At.Before(attempts[j].At) })

	var p float64
	switch retakeRule {
	case types.RetakeRuleMostRecent, "":
		p = attempts[len(attempts)-1].Percent
	case types.RetakeRuleHighest:
		p = attempts[0].Percent
		for _, a := range attempts[1:] {
			if a.Percent > p {
				p = a.Percent
			}
		}
	case types.RetakeRuleSimpleAverage:
		var sum float64
		for _, a := range attempts {
			sum += a.Percent
		}
		p = sum / float64(len(attempts))
	case types.RetakeRuleWeightedAverage:
		var sum, weights float64
		for _, a := range attempts {
			w := a.Weight
			if w <= 0 {
				w = 1
			}
			sum += a.Percent * w
			weights += w
		}
		p = sum / weights
	case types.RetakeRuleDecayingAverage:
		last := attempts[len(attempts)-1].Percent
		if len(attempts) == 1 {
			p = last
		} else {
			var sum float64
			for _, a := range attempts[:len(attempts)-1] {
				sum += a.Percent
			}
			prior := sum / float64(len(attempts)-1)
			p = prior*(1-decayingRecentWeight) + last*decayingRecentWeight
		}
	default:
		return nil, fmt.Errorf("unsupported retake rule %q", retakeRule)
	}
	return &p, nil
}
