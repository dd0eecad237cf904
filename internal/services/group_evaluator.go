package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/competency-engine/internal/logger"
	"github.com/yungbote/competency-engine/internal/types"
)

// SignalSource is the grading/completion collaborator. A timeout or missing
// data maps to ErrSignalUnavailable, never a pipeline failure.
type SignalSource interface {
	GetLatestSignal(ctx context.Context, learnerID uuid.UUID, objectID string) (*types.LearnerSignal, error)
}

// NodeProblem is a contained per-node evaluation failure (unresolved rule,
// unsupported rule type). Reported alongside the result; siblings are
// unaffected.
type NodeProblem struct {
	Kind   types.NodeKind `json:"kind"`
	NodeID uuid.UUID      `json:"node_id"`
	Reason string         `json:"reason"`
}

// EvaluationResult holds every verdict one evaluation run produced. Nodes
// that were skipped by short-circuiting or were not yet evaluable are simply
// absent; no status record is written for them.
type EvaluationResult struct {
	CompetencyTagID uuid.UUID
	StartedAt       time.Time
	RootVerdict     types.Verdict
	RootEvaluated   bool
	Groups          map[uuid.UUID]types.Verdict
	Criteria        map[uuid.UUID]types.Verdict
	Problems        []NodeProblem
}

// GroupEvaluator recursively evaluates a criteria tree for one learner,
// depth-first, children in (ordering, id) sequence. Short-circuiting is a
// cost optimization only: with it disabled the group verdicts are identical,
// because aggregation freezes at the same stopping point either way.
type GroupEvaluator interface {
	Evaluate(ctx context.Context, tree *CriteriaTree, learnerID uuid.UUID) (*EvaluationResult, error)
}

type groupEvaluator struct {
	log          *logger.Logger
	resolver     RuleResolver
	rules        RuleEvaluator
	signals      SignalSource
	shortCircuit bool
}

func NewGroupEvaluator(baseLog *logger.Logger, resolver RuleResolver, rules RuleEvaluator, signals SignalSource, shortCircuit bool) GroupEvaluator {
	return &groupEvaluator{
		log:          baseLog.With("service", "GroupEvaluator"),
		resolver:     resolver,
		rules:        rules,
		signals:      signals,
		shortCircuit: shortCircuit,
	}
}

type evalRun struct {
	tree      *CriteriaTree
	learnerID uuid.UUID
	res       *EvaluationResult
	// sigCache deduplicates signal reads when several criteria reference
	// the same content object.
	sigCache map[string]*types.LearnerSignal
}

func (g *groupEvaluator) Evaluate(ctx context.Context, tree *CriteriaTree, learnerID uuid.UUID) (*EvaluationResult, error) {
	run := &evalRun{
		tree:      tree,
		learnerID: learnerID,
		res: &EvaluationResult{
			CompetencyTagID: tree.CompetencyTagID,
			StartedAt:       time.Now(),
			Groups:          map[uuid.UUID]types.Verdict{},
			Criteria:        map[uuid.UUID]types.Verdict{},
		},
		sigCache: map[string]*types.LearnerSignal{},
	}

	verdict, ok, err := g.evalGroup(ctx, run, tree.RootID)
	if err != nil {
		return nil, err
	}
	run.res.RootVerdict = verdict
	run.res.RootEvaluated = ok
	return run.res, nil
}

func (g *groupEvaluator) evalGroup(ctx context.Context, run *evalRun, groupID uuid.UUID) (types.Verdict, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	gn := run.tree.Groups[groupID]
	children := gn.Children
	if len(children) == 0 {
		return "", false, nil
	}

	op := types.LogicOperatorAnd
	if gn.Group.LogicOperator != nil {
		op = *gn.Group.LogicOperator
	} else if len(children) == 1 {
		// Pass-through: verdict equals the single child's verdict.
		v, ok, err := g.evalChild(ctx, run, children[0])
		if err != nil {
			return "", false, err
		}
		if ok {
			run.res.Groups[groupID] = v
		}
		return v, ok, nil
	}

	var result types.Verdict
	resolved := false
	var best, worst types.Verdict
	incomplete := false
	anyEvaluated := false

	for _, child := range children {
		if resolved && g.shortCircuit {
			break
		}
		v, ok, err := g.evalChild(ctx, run, child)
		if err != nil {
			return "", false, err
		}
		if !ok {
			incomplete = true
			continue
		}
		anyEvaluated = true
		if resolved {
			// Full-evaluation mode past the stopping point: verdicts are
			// still produced (and recorded) but cannot change the group
			// result, which keeps both modes verdict-equivalent.
			continue
		}
		switch op {
		case types.LogicOperatorAnd:
			if v != types.VerdictDemonstrated {
				if worst == "" || v.Rank() < worst.Rank() {
					worst = v
				}
				result = worst
				resolved = true
			}
		case types.LogicOperatorOr:
			if v == types.VerdictDemonstrated {
				result = types.VerdictDemonstrated
				resolved = true
			} else if best == "" || v.Rank() > best.Rank() {
				best = v
			}
		}
	}

	verdict, ok := settleGroup(op, result, resolved, best, incomplete, anyEvaluated)
	if ok {
		run.res.Groups[groupID] = verdict
	}
	return verdict, ok, nil
}

// settleGroup turns the aggregation state into a final group verdict.
func settleGroup(op string, result types.Verdict, resolved bool, best types.Verdict, incomplete, anyEvaluated bool) (types.Verdict, bool) {
	if resolved {
		return result, true
	}
	switch op {
	case types.LogicOperatorAnd:
		if !anyEvaluated {
			return "", false
		}
		if incomplete {
			// Everything evaluated so far is demonstrated but some children
			// have no signal yet: partial progress, not full demonstration.
			return types.VerdictPartiallyAttempted, true
		}
		return types.VerdictDemonstrated, true
	default: // OR
		if best != "" {
			return best, true
		}
		return "", false
	}
}

func (g *groupEvaluator) evalChild(ctx context.Context, run *evalRun, child ChildRef) (types.Verdict, bool, error) {
	if child.Kind == types.NodeKindGroup {
		return g.evalGroup(ctx, run, child.ID)
	}
	return g.evalCriterion(ctx, run, child.ID)
}

func (g *groupEvaluator) evalCriterion(ctx context.Context, run *evalRun, criterionID uuid.UUID) (types.Verdict, bool, error) {
	node := run.tree.Criteria[criterionID]

	rule, err := g.resolver.Resolve(run.tree, node)
	if err != nil {
		run.res.Problems = append(run.res.Problems, NodeProblem{
			Kind:   types.NodeKindCriterion,
			NodeID: criterionID,
			Reason: err.Error(),
		})
		g.log.Warn("Criterion rule unresolved",
			"criterion_id", criterionID,
			"learner_id", run.learnerID,
			"error", err)
		return "", false, nil
	}

	sig, err := g.fetchSignal(ctx, run, node.ObjectID)
	if err != nil {
		if errors.Is(err, ErrSignalUnavailable) {
			g.log.Debug("Learner signal unavailable, criterion left unevaluated",
				"criterion_id", criterionID,
				"object_id", node.ObjectID,
				"learner_id", run.learnerID)
			return "", false, nil
		}
		return "", false, err
	}

	verdict, err := g.rules.Evaluate(rule, node.Criterion.RetakeRule, sig)
	if err != nil {
		if errors.Is(err, ErrNotEvaluable) {
			return "", false, nil
		}
		run.res.Problems = append(run.res.Problems, NodeProblem{
			Kind:   types.NodeKindCriterion,
			NodeID: criterionID,
			Reason: err.Error(),
		})
		g.log.Warn("Criterion not evaluable",
			"criterion_id", criterionID,
			"learner_id", run.learnerID,
			"error", err)
		return "", false, nil
	}
	run.res.Criteria[criterionID] = verdict
	return verdict, true, nil
}

func (g *groupEvaluator) fetchSignal(ctx context.Context, run *evalRun, objectID string) (*types.LearnerSignal, error) {
	if sig, ok := run.sigCache[objectID]; ok {
		return sig, nil
	}
	sig, err := g.signals.GetLatestSignal(ctx, run.learnerID, objectID)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, ErrSignalUnavailable
	}
	if sig == nil {
		return nil, ErrSignalUnavailable
	}
	run.sigCache[objectID] = sig
	return sig, nil
}
