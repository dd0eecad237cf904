package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	redisclient "github.com/yungbote/competency-engine/internal/clients/redis"
	"github.com/yungbote/competency-engine/internal/logger"
	"github.com/yungbote/competency-engine/internal/repos"
	"github.com/yungbote/competency-engine/internal/services"
	"github.com/yungbote/competency-engine/internal/types"
)

// CriteriaHandler serves the read-only authoring surface: tree inspection,
// taxonomy discovery, and the cache invalidation hook the authoring system
// calls after it writes.
type CriteriaHandler struct {
	trees   services.CriteriaService
	taxRepo repos.TaxonomyRepo
	bus     redisclient.InvalidationBus
	log     *logger.Logger
}

func NewCriteriaHandler(
	trees services.CriteriaService,
	taxRepo repos.TaxonomyRepo,
	bus redisclient.InvalidationBus,
	baseLog *logger.Logger,
) *CriteriaHandler {
	return &CriteriaHandler{
		trees:   trees,
		taxRepo: taxRepo,
		bus:     bus,
		log:     baseLog.With("handler", "CriteriaHandler"),
	}
}

type criterionDTO struct {
	ID              string  `json:"id"`
	ObjectID        string  `json:"object_id"`
	Ordering        int     `json:"ordering"`
	RetakeRule      string  `json:"retake_rule"`
	RuleProfileID   *string `json:"rule_profile_id,omitempty"`
	HasRuleOverride bool    `json:"has_rule_override"`
}

type groupDTO struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Ordering      int            `json:"ordering"`
	LogicOperator *string        `json:"logic_operator,omitempty"`
	Groups        []groupDTO     `json:"groups,omitempty"`
	Criteria      []criterionDTO `json:"criteria,omitempty"`
}

type treeDTO struct {
	CompetencyTagID string   `json:"competency_tag_id"`
	TaxonomyID      string   `json:"taxonomy_id"`
	CourseID        *string  `json:"course_id,omitempty"`
	Root            groupDTO `json:"root"`
}

func renderGroup(tree *services.CriteriaTree, id uuid.UUID) groupDTO {
	node := tree.Groups[id]
	out := groupDTO{
		ID:            node.Group.ID.String(),
		Name:          node.Group.Name,
		Ordering:      node.Group.Ordering,
		LogicOperator: node.Group.LogicOperator,
	}
	for _, child := range node.Children {
		switch child.Kind {
		case types.NodeKindGroup:
			out.Groups = append(out.Groups, renderGroup(tree, child.ID))
		case types.NodeKindCriterion:
			crit := tree.Criteria[child.ID]
			dto := criterionDTO{
				ID:              crit.Criterion.ID.String(),
				ObjectID:        crit.ObjectID,
				Ordering:        crit.Criterion.Ordering,
				RetakeRule:      crit.Criterion.RetakeRule,
				HasRuleOverride: crit.Criterion.RuleTypeOverride != nil && len(crit.Criterion.RulePayloadOverride) > 0,
			}
			if crit.Criterion.RuleProfileID != nil {
				s := crit.Criterion.RuleProfileID.String()
				dto.RuleProfileID = &s
			}
			out.Criteria = append(out.Criteria, dto)
		}
	}
	return out
}

// GetTree returns the validated criteria tree for one competency tag, scoped
// to ?course= when present. A malformed tree surfaces as 422 so authoring
// tools can distinguish "not configured yet" from "configured wrong".
func (h *CriteriaHandler) GetTree(c *gin.Context) {
	tagID, err := uuid.Parse(c.Param("competencyTagID"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_competency_tag_id", err)
		return
	}
	var courseID *string
	if course := c.Query("course"); course != "" {
		courseID = &course
	}
	tree, err := h.trees.TreeFor(c.Request.Context(), tagID, courseID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNoCriteriaTree):
			RespondError(c, http.StatusNotFound, "criteria_not_found", err)
		case services.IsConfigurationError(err):
			RespondError(c, http.StatusUnprocessableEntity, "incomplete_setup", err)
		default:
			RespondError(c, http.StatusInternalServerError, "criteria_lookup_failed", err)
		}
		return
	}
	RespondOK(c, treeDTO{
		CompetencyTagID: tree.CompetencyTagID.String(),
		TaxonomyID:      tree.TaxonomyID.String(),
		CourseID:        tree.CourseID,
		Root:            renderGroup(tree, tree.RootID),
	})
}

// ListTaxonomies returns the taxonomies that hold competency tags.
func (h *CriteriaHandler) ListTaxonomies(c *gin.Context) {
	taxonomies, err := h.taxRepo.ListCompetencyTaxonomies(c.Request.Context(), nil)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "taxonomy_lookup_failed", err)
		return
	}
	RespondOK(c, gin.H{"taxonomies": taxonomies})
}

type invalidateRequest struct {
	CompetencyTagID *uuid.UUID `json:"competency_tag_id,omitempty"`
	CourseID        *string    `json:"course_id,omitempty"`
	All             bool       `json:"all,omitempty"`
}

// Invalidate drops cached criteria trees after an authoring change. With a
// redis bus configured the message fans out to every instance; otherwise
// only the local cache is dropped.
func (h *CriteriaHandler) Invalidate(c *gin.Context) {
	var req invalidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if !req.All && req.CompetencyTagID == nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", errors.New("competency_tag_id or all is required"))
		return
	}

	if h.bus != nil {
		msg := redisclient.InvalidationMessage{All: req.All, CourseID: req.CourseID}
		if req.CompetencyTagID != nil {
			msg.CompetencyTagID = *req.CompetencyTagID
		}
		if err := h.bus.Publish(c.Request.Context(), msg); err != nil {
			RespondError(c, http.StatusInternalServerError, "invalidation_publish_failed", err)
			return
		}
	} else if req.All {
		h.trees.InvalidateAll()
	} else {
		h.trees.Invalidate(*req.CompetencyTagID, req.CourseID)
	}
	RespondOK(c, gin.H{"invalidated": true})
}
