package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/competency-engine/internal/logger"
	"github.com/yungbote/competency-engine/internal/services"
	"github.com/yungbote/competency-engine/internal/types"
)

type StatusHandler struct {
	svc services.StatusService
	log *logger.Logger
}

func NewStatusHandler(svc services.StatusService, baseLog *logger.Logger) *StatusHandler {
	return &StatusHandler{svc: svc, log: baseLog.With("handler", "StatusHandler")}
}

type statusRecordDTO struct {
	NodeKind       string `json:"node_kind"`
	NodeID         string `json:"node_id"`
	Verdict        string `json:"verdict"`
	LastComputedAt string `json:"last_computed_at"`
}

func toStatusDTO(rec *types.StatusRecord) statusRecordDTO {
	return statusRecordDTO{
		NodeKind:       string(rec.NodeKind),
		NodeID:         rec.NodeID.String(),
		Verdict:        string(rec.Verdict),
		LastComputedAt: rec.LastComputedAt.UTC().Format("2006-01-02T15:04:05.000000Z"),
	}
}

// ListLearnerStatus returns every cached verdict for a learner, optionally
// filtered by node kind via ?kind=competency|group|criterion.
func (h *StatusHandler) ListLearnerStatus(c *gin.Context) {
	learnerID, err := uuid.Parse(c.Param("learnerID"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_learner_id", err)
		return
	}
	var recs []*types.StatusRecord
	if kindParam := c.Query("kind"); kindParam != "" {
		kind := types.NodeKind(kindParam)
		if !kind.Valid() {
			RespondError(c, http.StatusBadRequest, "invalid_node_kind", errors.New("kind must be competency, group, or criterion"))
			return
		}
		recs, err = h.svc.ListForLearnerByKind(c.Request.Context(), learnerID, kind)
	} else {
		recs, err = h.svc.ListForLearner(c.Request.Context(), learnerID)
	}
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "status_lookup_failed", err)
		return
	}
	out := make([]statusRecordDTO, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toStatusDTO(rec))
	}
	RespondOK(c, gin.H{"learner_id": learnerID, "records": out})
}

// GetCompetencyStatus returns the learner's cached verdict for one competency.
// A learner with no cached row has simply never been evaluated against it.
func (h *StatusHandler) GetCompetencyStatus(c *gin.Context) {
	learnerID, err := uuid.Parse(c.Param("learnerID"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_learner_id", err)
		return
	}
	tagID, err := uuid.Parse(c.Param("competencyTagID"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_competency_tag_id", err)
		return
	}
	rec, err := h.svc.GetCompetencyStatus(c.Request.Context(), learnerID, tagID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "status_lookup_failed", err)
		return
	}
	if rec == nil {
		RespondError(c, http.StatusNotFound, "status_not_found", errors.New("no cached verdict for this learner and competency"))
		return
	}
	RespondOK(c, toStatusDTO(rec))
}

// GetNodeStatus serves criterion- and group-level verdicts; the node kind
// comes from the route.
func (h *StatusHandler) GetNodeStatus(kind types.NodeKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		learnerID, err := uuid.Parse(c.Param("learnerID"))
		if err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_learner_id", err)
			return
		}
		nodeID, err := uuid.Parse(c.Param("nodeID"))
		if err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_node_id", err)
			return
		}
		rec, err := h.svc.GetNodeStatus(c.Request.Context(), learnerID, kind, nodeID)
		if err != nil {
			RespondError(c, http.StatusInternalServerError, "status_lookup_failed", err)
			return
		}
		if rec == nil {
			RespondError(c, http.StatusNotFound, "status_not_found", errors.New("no cached verdict for this node"))
			return
		}
		RespondOK(c, toStatusDTO(rec))
	}
}
