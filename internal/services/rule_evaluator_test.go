package services

import (
	"errors"
	"testing"
	"time"

	"github.com/yungbote/competency-engine/internal/types"
)

func gradeRule(op string, value float64, scale string) types.EffectiveRule {
	return types.EffectiveRule{
		RuleType: types.RuleTypeGrade,
		Payload:  types.RulePayload{Op: op, Value: value, Scale: scale},
		Source:   types.RuleSourceOverride,
	}
}

func gradeSignal(percent float64) *types.LearnerSignal {
	return &types.LearnerSignal{GradePercent: &percent, Attempted: true}
}

func TestEvaluateGradeOperators(t *testing.T) {
	e := NewRuleEvaluator(newTestLogger(t))

	cases := []struct {
		name    string
		op      string
		value   float64
		percent float64
		want    types.Verdict
	}{
		{"gte met at boundary", types.RuleOpGte, 80, 80, types.VerdictDemonstrated},
		{"gte not met", types.RuleOpGte, 80, 79.9, types.VerdictAttemptedNotDemonstrated},
		{"gt boundary fails", types.RuleOpGt, 80, 80, types.VerdictAttemptedNotDemonstrated},
		{"gt met", types.RuleOpGt, 80, 80.1, types.VerdictDemonstrated},
		{"lte met", types.RuleOpLte, 20, 20, types.VerdictDemonstrated},
		{"lt not met at boundary", types.RuleOpLt, 20, 20, types.VerdictAttemptedNotDemonstrated},
		{"eq met", types.RuleOpEq, 100, 100, types.VerdictDemonstrated},
		{"eq not met", types.RuleOpEq, 100, 99, types.VerdictAttemptedNotDemonstrated},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := e.Evaluate(gradeRule(tc.op, tc.value, ""), types.RetakeRuleMostRecent, gradeSignal(tc.percent))
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			if got != tc.want {
				t.Fatalf("verdict: want=%q got=%q", tc.want, got)
			}
		})
	}
}

func TestEvaluateFractionScale(t *testing.T) {
	e := NewRuleEvaluator(newTestLogger(t))

	// 0.8 on the fraction scale is an 80% threshold.
	got, err := e.Evaluate(gradeRule(types.RuleOpGte, 0.8, types.RuleScaleFraction), "", gradeSignal(85))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if got != types.VerdictDemonstrated {
		t.Fatalf("verdict: want=%q got=%q", types.VerdictDemonstrated, got)
	}

	got, err = e.Evaluate(gradeRule(types.RuleOpGte, 0.8, types.RuleScaleFraction), "", gradeSignal(75))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if got != types.VerdictAttemptedNotDemonstrated {
		t.Fatalf("verdict: want=%q got=%q", types.VerdictAttemptedNotDemonstrated, got)
	}
}

func TestEvaluateAttemptWithoutGrade(t *testing.T) {
	e := NewRuleEvaluator(newTestLogger(t))

	got, err := e.Evaluate(gradeRule(types.RuleOpGte, 80, ""), "", &types.LearnerSignal{Attempted: true})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if got != types.VerdictPartiallyAttempted {
		t.Fatalf("verdict: want=%q got=%q", types.VerdictPartiallyAttempted, got)
	}
}

func TestEvaluateNotEvaluable(t *testing.T) {
	e := NewRuleEvaluator(newTestLogger(t))

	if _, err := e.Evaluate(gradeRule(types.RuleOpGte, 80, ""), "", &types.LearnerSignal{}); !errors.Is(err, ErrNotEvaluable) {
		t.Fatalf("no data: want ErrNotEvaluable, got %v", err)
	}
	if _, err := e.Evaluate(gradeRule(types.RuleOpGte, 80, ""), "", nil); !errors.Is(err, ErrNotEvaluable) {
		t.Fatalf("nil signal: want ErrNotEvaluable, got %v", err)
	}
}

func TestEvaluateUnsupportedRuleType(t *testing.T) {
	e := NewRuleEvaluator(newTestLogger(t))

	rule := types.EffectiveRule{RuleType: types.RuleTypeView, Payload: types.RulePayload{Op: types.RuleOpGte, Value: 1}}
	_, err := e.Evaluate(rule, "", gradeSignal(100))
	var unsupported *UnsupportedRuleTypeError
	if !errors.As(err, &unsupported) {
		t.Fatalf("want UnsupportedRuleTypeError, got %v", err)
	}
	if unsupported.RuleType != types.RuleTypeView {
		t.Fatalf("rule type: want=%q got=%q", types.RuleTypeView, unsupported.RuleType)
	}
}

func attemptsSignal(attempts ...types.GradeAttempt) *types.LearnerSignal {
	return &types.LearnerSignal{Attempted: true, Attempts: attempts}
}

func at(offsetMinutes int) time.Time {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return base.Add(time.Duration(offsetMinutes) * time.Minute)
}

func TestRetakeRuleMostRecent(t *testing.T) {
	e := NewRuleEvaluator(newTestLogger(t))
	sig := attemptsSignal(
		types.GradeAttempt{Percent: 50, At: at(0)},
		types.GradeAttempt{Percent: 80, At: at(10)},
	)

	got, err := e.Evaluate(gradeRule(types.RuleOpGte, 80, ""), types.RetakeRuleMostRecent, sig)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if got != types.VerdictDemonstrated {
		t.Fatalf("effective percent should be the newest attempt (80): got %q", got)
	}
	got, err = e.Evaluate(gradeRule(types.RuleOpGt, 80, ""), types.RetakeRuleMostRecent, sig)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if got != types.VerdictAttemptedNotDemonstrated {
		t.Fatalf("gt 80 against 80 should fail: got %q", got)
	}
}

func TestRetakeRuleOrdersAttemptsByTime(t *testing.T) {
	e := NewRuleEvaluator(newTestLogger(t))
	// Newest-first input still resolves MostRecent to the attempt with the
	// latest timestamp.
	sig := attemptsSignal(
		types.GradeAttempt{Percent: 90, At: at(20)},
		types.GradeAttempt{Percent: 40, At: at(0)},
	)

	got, err := e.Evaluate(gradeRule(types.RuleOpGte, 90, ""), types.RetakeRuleMostRecent, sig)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if got != types.VerdictDemonstrated {
		t.Fatalf("MostRecent should use the latest-At attempt: got %q", got)
	}
}

func TestRetakeRuleHighest(t *testing.T) {
	e := NewRuleEvaluator(newTestLogger(t))
	sig := attemptsSignal(
		types.GradeAttempt{Percent: 90, At: at(0)},
		types.GradeAttempt{Percent: 40, At: at(10)},
	)

	got, err := e.Evaluate(gradeRule(types.RuleOpGte, 90, ""), types.RetakeRuleHighest, sig)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if got != types.VerdictDemonstrated {
		t.Fatalf("Highest should pick 90: got %q", got)
	}
}

func TestRetakeRuleSimpleAverage(t *testing.T) {
	e := NewRuleEvaluator(newTestLogger(t))
	sig := attemptsSignal(
		types.GradeAttempt{Percent: 70, At: at(0)},
		types.GradeAttempt{Percent: 90, At: at(10)},
	)

	got, err := e.Evaluate(gradeRule(types.RuleOpEq, 80, ""), types.RetakeRuleSimpleAverage, sig)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if got != types.VerdictDemonstrated {
		t.Fatalf("average of 70 and 90 should be exactly 80: got %q", got)
	}
}

func TestRetakeRuleWeightedAverage(t *testing.T) {
	e := NewRuleEvaluator(newTestLogger(t))
	sig := attemptsSignal(
		types.GradeAttempt{Percent: 60, Weight: 1, At: at(0)},
		types.GradeAttempt{Percent: 90, Weight: 3, At: at(10)},
	)

	// (60*1 + 90*3) / 4 = 82.5
	got, err := e.Evaluate(gradeRule(types.RuleOpEq, 82.5, ""), types.RetakeRuleWeightedAverage, sig)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if got != types.VerdictDemonstrated {
		t.Fatalf("weighted average should be exactly 82.5: got %q", got)
	}
}

func TestRetakeRuleWeightedAverageDefaultsWeight(t *testing.T) {
	e := NewRuleEvaluator(newTestLogger(t))
	// Zero weights count as 1, so this degrades to a simple average.
	sig := attemptsSignal(
		types.GradeAttempt{Percent: 70, At: at(0)},
		types.GradeAttempt{Percent: 90, At: at(10)},
	)

	got, err := e.Evaluate(gradeRule(types.RuleOpEq, 80, ""), types.RetakeRuleWeightedAverage, sig)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if got != types.VerdictDemonstrated {
		t.Fatalf("unweighted attempts should average to 80: got %q", got)
	}
}

func TestRetakeRuleDecayingAverage(t *testing.T) {
	e := NewRuleEvaluator(newTestLogger(t))
	// Prior average 60, newest 100: 60*0.35 + 100*0.65 = 86, give or take
	// float rounding, so assert with loose bounds.
	sig := attemptsSignal(
		types.GradeAttempt{Percent: 60, At: at(0)},
		types.GradeAttempt{Percent: 100, At: at(10)},
	)

	got, err := e.Evaluate(gradeRule(types.RuleOpGte, 85, ""), types.RetakeRuleDecayingAverage, sig)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if got != types.VerdictDemonstrated {
		t.Fatalf("decaying average ~86 should meet gte 85: got %q", got)
	}
	got, err = e.Evaluate(gradeRule(types.RuleOpGt, 87, ""), types.RetakeRuleDecayingAverage, sig)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if got != types.VerdictAttemptedNotDemonstrated {
		t.Fatalf("decaying average ~86 should not exceed 87: got %q", got)
	}
}

func TestRetakeRuleDecayingAverageSingleAttempt(t *testing.T) {
	e := NewRuleEvaluator(newTestLogger(t))
	sig := attemptsSignal(types.GradeAttempt{Percent: 75, At: at(0)})

	got, err := e.Evaluate(gradeRule(types.RuleOpEq, 75, ""), types.RetakeRuleDecayingAverage, sig)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if got != types.VerdictDemonstrated {
		t.Fatalf("single attempt should pass through unchanged: got %q", got)
	}
}

func TestUnknownRetakeRule(t *testing.T) {
	e := NewRuleEvaluator(newTestLogger(t))
	sig := attemptsSignal(types.GradeAttempt{Percent: 75, At: at(0)})

	if _, err := e.Evaluate(gradeRule(types.RuleOpGte, 50, ""), "Median", sig); err == nil {
		t.Fatal("want error for unknown retake rule")
	}
}
