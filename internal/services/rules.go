package services

import (
	"fmt"

	"github.com/yungbote/competency-engine/internal/logger"
	"github.com/yungbote/competency-engine/internal/types"
)

// RuleResolver computes the effective rule for one criterion by walking the
// override cascade, most specific first:
//
//	criterion override → directly referenced profile → taxonomy-scoped
//	profile → course-scoped profile → organization-scoped profile → system
//	default.
//
// The tree preloads every candidate profile, so resolution is pure.
type RuleResolver interface {
	Resolve(tree *CriteriaTree, node *CriterionNode) (types.EffectiveRule, error)
}

type ruleResolver struct {
	log *logger.Logger
	// defaultRule is the system fallback (Grade >= 100% unless
	// reconfigured); nil when the deployment disabled it, in which case an
	// exhausted cascade is an UnresolvedRuleError.
	defaultRule *types.RulePayload
}

func NewRuleResolver(baseLog *logger.Logger, defaultRule *types.RulePayload) RuleResolver {
	return &ruleResolver{
		log:         baseLog.With("service", "RuleResolver"),
		defaultRule: defaultRule,
	}
}

func (r *ruleResolver) Resolve(tree *CriteriaTree, node *CriterionNode) (types.EffectiveRule, error) {
	c := node.Criterion

	if c.RuleTypeOverride != nil && len(c.RulePayloadOverride) > 0 {
		payload, err := types.ParseRulePayload(c.RulePayloadOverride)
		if err != nil {
			return types.EffectiveRule{}, fmt.Errorf("criterion %s override: %w", c.ID, err)
		}
		return types.EffectiveRule{
			RuleType: *c.RuleTypeOverride,
			Payload:  payload,
			Source:   types.RuleSourceOverride,
		}, nil
	}

	if c.RuleProfileID != nil {
		if p, ok := tree.DirectProfiles[*c.RuleProfileID]; ok {
			return fromProfile(c, p, types.RuleSourceDirectProfile)
		}
	}
	if len(tree.TaxonomyProfiles) > 0 {
		return fromProfile(c, tree.TaxonomyProfiles[0], types.RuleSourceTaxonomy)
	}
	if len(tree.CourseProfiles) > 0 {
		return fromProfile(c, tree.CourseProfiles[0], types.RuleSourceCourse)
	}
	if len(tree.OrgProfiles) > 0 {
		return fromProfile(c, tree.OrgProfiles[0], types.RuleSourceOrganization)
	}

	if r.defaultRule == nil {
		return types.EffectiveRule{}, &UnresolvedRuleError{CriterionID: c.ID}
	}
	r.log.Warn("No rule profile matched, applying system default",
		"criterion_id", c.ID,
		"competency_tag_id", tree.CompetencyTagID)
	return types.EffectiveRule{
		RuleType:       types.RuleTypeGrade,
		Payload:        *r.defaultRule,
		Source:         types.RuleSourceDefault,
		MissingProfile: true,
	}, nil
}

func fromProfile(c *types.Criterion, p *types.RuleProfile, source string) (types.EffectiveRule, error) {
	payload, err := types.ParseRulePayload(p.RulePayload)
	if err != nil {
		return types.EffectiveRule{}, fmt.Errorf("criterion %s profile %s: %w", c.ID, p.ID, err)
	}
	return types.EffectiveRule{
		RuleType: p.RuleType,
		Payload:  payload,
		Source:   source,
	}, nil
}
