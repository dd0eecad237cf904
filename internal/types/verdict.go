package types

// Verdict is the tri-state demonstration outcome for one learner at one node.
type Verdict string

const (
	VerdictDemonstrated             Verdict = "demonstrated"
	VerdictPartiallyAttempted       Verdict = "partially_attempted"
	VerdictAttemptedNotDemonstrated Verdict = "attempted_not_demonstrated"
)

// Rank orders verdicts for aggregation: higher is better.
func (v Verdict) Rank() int {
	switch v {
	case VerdictDemonstrated:
		return 3
	case VerdictPartiallyAttempted:
		return 2
	case VerdictAttemptedNotDemonstrated:
		return 1
	default:
		return 0
	}
}

func (v Verdict) Valid() bool { return v.Rank() > 0 }

// NodeKind discriminates status records by tree granularity.
type NodeKind string

const (
	NodeKindCriterion  NodeKind = "criterion"
	NodeKindGroup      NodeKind = "group"
	NodeKindCompetency NodeKind = "competency"
)

func (k NodeKind) Valid() bool {
	switch k {
	case NodeKindCriterion, NodeKindGroup, NodeKindCompetency:
		return true
	}
	return false
}

// LogicOperator combines a group's children.
const (
	LogicOperatorAnd = "AND"
	LogicOperatorOr  = "OR"
)
