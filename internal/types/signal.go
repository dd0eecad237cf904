package types

import "time"

// GradeAttempt is one graded attempt at a content object, newest-last as
// returned by the grading source.
type GradeAttempt struct {
	Percent float64   `json:"percent"`
	Weight  float64   `json:"weight,omitempty"`
	At      time.Time `json:"at"`
}

// LearnerSignal is the latest known measurement for one (learner, object)
// pair, fetched from the grading/completion source. GradePercent is nil when
// no grade exists yet; Attempted reports whether any submission is on
// record. Attempts carries the graded-attempt history so retake rules can
// collapse it.
type LearnerSignal struct {
	GradePercent *float64       `json:"grade_percent,omitempty"`
	Attempted    bool           `json:"attempted"`
	MasteryLevel *string        `json:"mastery_level,omitempty"`
	Attempts     []GradeAttempt `json:"attempts,omitempty"`
}
