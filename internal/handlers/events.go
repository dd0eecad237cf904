package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/competency-engine/internal/logger"
	"github.com/yungbote/competency-engine/internal/services"
	"github.com/yungbote/competency-engine/internal/types"
)

type EventHandler struct {
	ingestor services.IngestorService
	log      *logger.Logger
}

func NewEventHandler(ingestor services.IngestorService, baseLog *logger.Logger) *EventHandler {
	return &EventHandler{ingestor: ingestor, log: baseLog.With("handler", "EventHandler")}
}

type enqueueEventRequest struct {
	EventID    *uuid.UUID     `json:"event_id,omitempty"`
	LearnerID  uuid.UUID      `json:"learner_id"`
	ObjectID   string         `json:"object_id"`
	CourseID   *string        `json:"course_id,omitempty"`
	EventType  string         `json:"event_type"`
	OccurredAt *time.Time     `json:"occurred_at,omitempty"`
	Metadata   datatypes.JSON `json:"metadata,omitempty"`
}

// Enqueue accepts a completion event for asynchronous evaluation. The call
// returns 202 once the event is durably queued; replays of an already-queued
// event_id are acknowledged the same way.
func (h *EventHandler) Enqueue(c *gin.Context) {
	var req enqueueEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	ev := &types.CompletionEvent{
		LearnerID: req.LearnerID,
		ObjectID:  req.ObjectID,
		CourseID:  req.CourseID,
		EventType: req.EventType,
		Metadata:  req.Metadata,
	}
	if req.EventID != nil {
		ev.ID = *req.EventID
	}
	if req.OccurredAt != nil {
		ev.OccurredAt = *req.OccurredAt
	}
	if err := h.ingestor.Enqueue(c.Request.Context(), ev); err != nil {
		RespondError(c, http.StatusBadRequest, "enqueue_failed", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"event_id": ev.ID, "status": types.EventStatusQueued})
}
