package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/competency-engine/internal/logger"
	"github.com/yungbote/competency-engine/internal/repos"
	"github.com/yungbote/competency-engine/internal/types"
)

// ErrNoCriteriaTree reports a competency tag with no authored criteria
// groups in the requested scope.
var ErrNoCriteriaTree = errors.New("no criteria tree for competency")

// ChildRef points at one child of a group inside the tree arena. Children
// are stored pre-sorted by (ordering, id) so evaluation order is
// deterministic.
type ChildRef struct {
	Kind     types.NodeKind
	ID       uuid.UUID
	Ordering int
}

type GroupNode struct {
	Group    *types.CriteriaGroup
	Children []ChildRef
}

type CriterionNode struct {
	Criterion *types.Criterion
	// ObjectID is the content object behind the criterion's ObjectTag,
	// joined in at build time so evaluation needs no tagging reads.
	ObjectID string
}

// CriteriaTree is the immutable-at-evaluation-time arena for one
// (competency tag, course scope) pair. Nodes reference each other by id, not
// by pointer cycles, which keeps cycle detection explicit. Applicable rule
// profiles are preloaded so the resolver runs without I/O.
type CriteriaTree struct {
	CompetencyTagID uuid.UUID
	TaxonomyID      uuid.UUID
	CourseID        *string
	RootID          uuid.UUID
	Groups          map[uuid.UUID]*GroupNode
	Criteria        map[uuid.UUID]*CriterionNode

	DirectProfiles   map[uuid.UUID]*types.RuleProfile
	TaxonomyProfiles []*types.RuleProfile
	CourseProfiles   []*types.RuleProfile
	OrgProfiles      []*types.RuleProfile

	BuiltAt time.Time
}

type CriteriaService interface {
	// TreeFor returns the validated criteria tree for a competency tag,
	// from the process cache when warm. Returns ErrNoCriteriaTree when
	// nothing is authored, or a *ConfigurationError for a malformed tree.
	TreeFor(ctx context.Context, competencyTagID uuid.UUID, courseID *string) (*CriteriaTree, error)
	// Invalidate drops one cached tree; fired whenever authoring changes it.
	Invalidate(competencyTagID uuid.UUID, courseID *string)
	InvalidateAll()
}

type criteriaService struct {
	log         *logger.Logger
	groupRepo   repos.CriteriaGroupRepo
	critRepo    repos.CriterionRepo
	tagRepo     repos.TagRepo
	objTagRepo  repos.ObjectTagRepo
	profileRepo repos.RuleProfileRepo
	orgID       string

	mu    sync.RWMutex
	cache map[string]*CriteriaTree
}

func NewCriteriaService(
	baseLog *logger.Logger,
	groupRepo repos.CriteriaGroupRepo,
	critRepo repos.CriterionRepo,
	tagRepo repos.TagRepo,
	objTagRepo repos.ObjectTagRepo,
	profileRepo repos.RuleProfileRepo,
	orgID string,
) CriteriaService {
	return &criteriaService{
		log:         baseLog.With("service", "CriteriaService"),
		groupRepo:   groupRepo,
		critRepo:    critRepo,
		tagRepo:     tagRepo,
		objTagRepo:  objTagRepo,
		profileRepo: profileRepo,
		orgID:       orgID,
		cache:       map[string]*CriteriaTree{},
	}
}

func cacheKey(competencyTagID uuid.UUID, courseID *string) string {
	key := competencyTagID.String()
	if courseID != nil {
		key += "|" + *courseID
	}
	return key
}

func (s *criteriaService) TreeFor(ctx context.Context, competencyTagID uuid.UUID, courseID *string) (*CriteriaTree, error) {
	key := cacheKey(competencyTagID, courseID)
	s.mu.RLock()
	cached := s.cache[key]
	s.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	tree, err := s.build(ctx, competencyTagID, courseID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.cache[key] = tree
	s.mu.Unlock()
	return tree, nil
}

func (s *criteriaService) Invalidate(competencyTagID uuid.UUID, courseID *string) {
	s.mu.Lock()
	delete(s.cache, cacheKey(competencyTagID, courseID))
	s.mu.Unlock()
	s.log.Debug("Criteria tree invalidated", "competency_tag_id", competencyTagID)
}

func (s *criteriaService) InvalidateAll() {
	s.mu.Lock()
	s.cache = map[string]*CriteriaTree{}
	s.mu.Unlock()
	s.log.Debug("Criteria tree cache cleared")
}

func (s *criteriaService) build(ctx context.Context, competencyTagID uuid.UUID, courseID *string) (*CriteriaTree, error) {
	groups, err := s.groupRepo.GetByCompetencyTag(ctx, nil, competencyTagID, courseID)
	if err != nil {
		return nil, fmt.Errorf("load criteria groups: %w", err)
	}
	if len(groups) == 0 {
		return nil, ErrNoCriteriaTree
	}

	groupIDs := make([]uuid.UUID, 0, len(groups))
	for _, g := range groups {
		groupIDs = append(groupIDs, g.ID)
	}
	criteria, err := s.critRepo.GetByGroupIDs(ctx, nil, groupIDs)
	if err != nil {
		return nil, fmt.Errorf("load criteria: %w", err)
	}

	tree := &CriteriaTree{
		CompetencyTagID: competencyTagID,
		CourseID:        courseID,
		Groups:          make(map[uuid.UUID]*GroupNode, len(groups)),
		Criteria:        make(map[uuid.UUID]*CriterionNode, len(criteria)),
		DirectProfiles:  map[uuid.UUID]*types.RuleProfile{},
		BuiltAt:         time.Now(),
	}

	var roots []uuid.UUID
	for _, g := range groups {
		tree.Groups[g.ID] = &GroupNode{Group: g}
		if g.ParentID == nil {
			roots = append(roots, g.ID)
		}
	}
	switch len(roots) {
	case 1:
		tree.RootID = roots[0]
	case 0:
		return nil, &ConfigurationError{CompetencyTagID: competencyTagID, Reason: "no root group (parent cycle)"}
	default:
		return nil, &ConfigurationError{CompetencyTagID: competencyTagID, Reason: fmt.Sprintf("%d root groups, want exactly one", len(roots))}
	}

	for _, g := range groups {
		if g.ParentID == nil {
			continue
		}
		parent, ok := tree.Groups[*g.ParentID]
		if !ok {
			return nil, &ConfigurationError{
				CompetencyTagID: competencyTagID,
				Reason:          fmt.Sprintf("group %s references parent %s outside this competency's tree", g.ID, *g.ParentID),
			}
		}
		parent.Children = append(parent.Children, ChildRef{Kind: types.NodeKindGroup, ID: g.ID, Ordering: g.Ordering})
	}

	if err := s.attachCriteria(ctx, tree, criteria); err != nil {
		return nil, err
	}

	for _, gn := range tree.Groups {
		children := gn.Children
		sort.SliceStable(children, func(i, j int) bool {
			if children[i].Ordering != children[j].Ordering {
				return children[i].Ordering < children[j].Ordering
			}
			return children[i].ID.String() < children[j].ID.String()
		})
	}

	if err := validateTree(tree); err != nil {
		return nil, err
	}

	if err := s.loadProfiles(ctx, tree, criteria, courseID); err != nil {
		return nil, err
	}

	s.log.Debug("Criteria tree built",
		"competency_tag_id", competencyTagID,
		"groups", len(tree.Groups),
		"criteria", len(tree.Criteria))
	return tree, nil
}

func (s *criteriaService) attachCriteria(ctx context.Context, tree *CriteriaTree, criteria []*types.Criterion) error {
	objTagIDs := make([]uuid.UUID, 0, len(criteria))
	for _, c := range criteria {
		objTagIDs = append(objTagIDs, c.ObjectTagID)
	}
	objTags, err := s.objTagRepo.GetByIDs(ctx, nil, objTagIDs)
	if err != nil {
		return fmt.Errorf("load object tags: %w", err)
	}
	objectByID := make(map[uuid.UUID]string, len(objTags))
	for _, ot := range objTags {
		objectByID[ot.ID] = ot.ObjectID
	}

	for _, c := range criteria {
		group, ok := tree.Groups[c.GroupID]
		if !ok {
			// GetByGroupIDs only returns rows for known groups.
			continue
		}
		if c.CompetencyTagID != group.Group.CompetencyTagID {
			return &ConfigurationError{
				CompetencyTagID: tree.CompetencyTagID,
				Reason:          fmt.Sprintf("criterion %s tag does not match its group's competency tag", c.ID),
			}
		}
		objectID, ok := objectByID[c.ObjectTagID]
		if !ok {
			return &ConfigurationError{
				CompetencyTagID: tree.CompetencyTagID,
				Reason:          fmt.Sprintf("criterion %s references missing object tag %s", c.ID, c.ObjectTagID),
			}
		}
		tree.Criteria[c.ID] = &CriterionNode{Criterion: c, ObjectID: objectID}
		group.Children = append(group.Children, ChildRef{Kind: types.NodeKindCriterion, ID: c.ID, Ordering: c.Ordering})
	}
	return nil
}

func (s *criteriaService) loadProfiles(ctx context.Context, tree *CriteriaTree, criteria []*types.Criterion, courseID *string) error {
	directIDs := make([]uuid.UUID, 0)
	for _, c := range criteria {
		if c.RuleProfileID != nil {
			directIDs = append(directIDs, *c.RuleProfileID)
		}
	}
	direct, err := s.profileRepo.GetByIDs(ctx, nil, directIDs)
	if err != nil {
		return fmt.Errorf("load rule profiles: %w", err)
	}
	for _, p := range direct {
		tree.DirectProfiles[p.ID] = p
	}

	tag, err := s.tagRepo.GetByID(ctx, nil, tree.CompetencyTagID)
	if err != nil {
		return fmt.Errorf("load competency tag: %w", err)
	}
	if tag != nil {
		tree.TaxonomyID = tag.TaxonomyID
		tree.TaxonomyProfiles, err = s.profileRepo.GetByTaxonomyID(ctx, nil, tag.TaxonomyID)
		if err != nil {
			return fmt.Errorf("load taxonomy profiles: %w", err)
		}
	}
	if courseID != nil && *courseID != "" {
		tree.CourseProfiles, err = s.profileRepo.GetByCourseID(ctx, nil, *courseID)
		if err != nil {
			return fmt.Errorf("load course profiles: %w", err)
		}
	}
	if s.orgID != "" {
		tree.OrgProfiles, err = s.profileRepo.GetByOrgID(ctx, nil, s.orgID)
		if err != nil {
			return fmt.Errorf("load org profiles: %w", err)
		}
	}
	return nil
}

// validateTree enforces the structural invariants: reachability (no cycles,
// no orphans), operator presence on multi-child groups, and operator values.
func validateTree(tree *CriteriaTree) error {
	visited := map[uuid.UUID]bool{}
	stack := []uuid.UUID{tree.RootID}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[id] {
			return &ConfigurationError{CompetencyTagID: tree.CompetencyTagID, Reason: fmt.Sprintf("cycle through group %s", id)}
		}
		visited[id] = true
		gn := tree.Groups[id]
		for _, child := range gn.Children {
			if child.Kind == types.NodeKindGroup {
				stack = append(stack, child.ID)
			}
		}
	}
	if len(visited) != len(tree.Groups) {
		return &ConfigurationError{
			CompetencyTagID: tree.CompetencyTagID,
			Reason:          fmt.Sprintf("%d of %d groups unreachable from root (cycle or orphan)", len(tree.Groups)-len(visited), len(tree.Groups)),
		}
	}

	for id, gn := range tree.Groups {
		op := gn.Group.LogicOperator
		if op != nil && *op != types.LogicOperatorAnd && *op != types.LogicOperatorOr {
			return &ConfigurationError{
				CompetencyTagID: tree.CompetencyTagID,
				Reason:          fmt.Sprintf("group %s has unknown logic operator %q", id, *op),
			}
		}
		if op == nil && len(gn.Children) > 1 {
			return &ConfigurationError{
				CompetencyTagID: tree.CompetencyTagID,
				Reason:          fmt.Sprintf("group %s has %d children but no logic operator", id, len(gn.Children)),
			}
		}
	}
	return nil
}
