package services

import (
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/competency-engine/internal/types"
)

func emptyTree() *CriteriaTree {
	return &CriteriaTree{
		CompetencyTagID: uuid.New(),
		TaxonomyID:      uuid.New(),
		Groups:          map[uuid.UUID]*GroupNode{},
		Criteria:        map[uuid.UUID]*CriterionNode{},
		DirectProfiles:  map[uuid.UUID]*types.RuleProfile{},
		BuiltAt:         time.Now(),
	}
}

func profileWith(op string, value float64) *types.RuleProfile {
	return &types.RuleProfile{
		ID:          uuid.New(),
		Name:        "test profile",
		RuleType:    types.RuleTypeGrade,
		RulePayload: datatypes.JSON([]byte(`{"op":"` + op + `","value":` + strconv.FormatFloat(value, 'f', -1, 64) + `}`)),
	}
}

func bareCriterion(tree *CriteriaTree) *CriterionNode {
	node := &CriterionNode{
		Criterion: &types.Criterion{
			ID:              uuid.New(),
			GroupID:         uuid.New(),
			CompetencyTagID: tree.CompetencyTagID,
			RetakeRule:      types.RetakeRuleMostRecent,
		},
		ObjectID: "block-v1:test+unit",
	}
	tree.Criteria[node.Criterion.ID] = node
	return node
}

func TestResolveOverrideWinsOverProfiles(t *testing.T) {
	tree := emptyTree()
	tree.CourseProfiles = []*types.RuleProfile{profileWith(types.RuleOpGte, 75)}

	node := bareCriterion(tree)
	overrideType := types.RuleTypeGrade
	node.Criterion.RuleTypeOverride = &overrideType
	node.Criterion.RulePayloadOverride = datatypes.JSON([]byte(`{"op":"gte","value":85}`))

	r := NewRuleResolver(newTestLogger(t), nil)
	rule, err := r.Resolve(tree, node)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if rule.Source != types.RuleSourceOverride {
		t.Fatalf("source: want=%q got=%q", types.RuleSourceOverride, rule.Source)
	}
	if rule.Payload.Value != 85 {
		t.Fatalf("value: want=85 got=%v", rule.Payload.Value)
	}
}

func TestResolveDirectProfileWinsOverScopedProfiles(t *testing.T) {
	tree := emptyTree()
	direct := profileWith(types.RuleOpGte, 90)
	tree.DirectProfiles[direct.ID] = direct
	tree.TaxonomyProfiles = []*types.RuleProfile{profileWith(types.RuleOpGte, 75)}

	node := bareCriterion(tree)
	node.Criterion.RuleProfileID = &direct.ID

	r := NewRuleResolver(newTestLogger(t), nil)
	rule, err := r.Resolve(tree, node)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if rule.Source != types.RuleSourceDirectProfile {
		t.Fatalf("source: want=%q got=%q", types.RuleSourceDirectProfile, rule.Source)
	}
	if rule.Payload.Value != 90 {
		t.Fatalf("value: want=90 got=%v", rule.Payload.Value)
	}
}

func TestResolveCascadeOrder(t *testing.T) {
	r := NewRuleResolver(newTestLogger(t), nil)

	tree := emptyTree()
	tree.TaxonomyProfiles = []*types.RuleProfile{profileWith(types.RuleOpGte, 90)}
	tree.CourseProfiles = []*types.RuleProfile{profileWith(types.RuleOpGte, 75)}
	tree.OrgProfiles = []*types.RuleProfile{profileWith(types.RuleOpGte, 85)}

	rule, err := r.Resolve(tree, bareCriterion(tree))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if rule.Source != types.RuleSourceTaxonomy {
		t.Fatalf("taxonomy should win: got %q", rule.Source)
	}

	tree.TaxonomyProfiles = nil
	rule, err = r.Resolve(tree, bareCriterion(tree))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if rule.Source != types.RuleSourceCourse {
		t.Fatalf("course should win next: got %q", rule.Source)
	}

	tree.CourseProfiles = nil
	rule, err = r.Resolve(tree, bareCriterion(tree))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if rule.Source != types.RuleSourceOrganization {
		t.Fatalf("org should win last: got %q", rule.Source)
	}
}

func TestResolveExhaustedCascadeWithoutDefault(t *testing.T) {
	r := NewRuleResolver(newTestLogger(t), nil)
	tree := emptyTree()
	node := bareCriterion(tree)

	_, err := r.Resolve(tree, node)
	var unresolved *UnresolvedRuleError
	if !errors.As(err, &unresolved) {
		t.Fatalf("want UnresolvedRuleError, got %v", err)
	}
	if unresolved.CriterionID != node.Criterion.ID {
		t.Fatalf("criterion id: want=%s got=%s", node.Criterion.ID, unresolved.CriterionID)
	}
}

func TestResolveFallsBackToSystemDefault(t *testing.T) {
	defaultRule := &types.RulePayload{Op: types.RuleOpGte, Value: 100, Scale: types.RuleScalePercent}
	r := NewRuleResolver(newTestLogger(t), defaultRule)
	tree := emptyTree()

	rule, err := r.Resolve(tree, bareCriterion(tree))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if rule.Source != types.RuleSourceDefault {
		t.Fatalf("source: want=%q got=%q", types.RuleSourceDefault, rule.Source)
	}
	if !rule.MissingProfile {
		t.Fatal("default fallback must be flagged as a missing profile")
	}
	if rule.Payload.Value != 100 {
		t.Fatalf("value: want=100 got=%v", rule.Payload.Value)
	}
}

func TestResolveMalformedOverridePayload(t *testing.T) {
	r := NewRuleResolver(newTestLogger(t), nil)
	tree := emptyTree()
	node := bareCriterion(tree)
	overrideType := types.RuleTypeGrade
	node.Criterion.RuleTypeOverride = &overrideType
	node.Criterion.RulePayloadOverride = datatypes.JSON([]byte(`{"value":85}`))

	if _, err := r.Resolve(tree, node); err == nil {
		t.Fatal("want error for payload without op")
	}
}
