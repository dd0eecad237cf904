package app

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/competency-engine/internal/handlers"
	"github.com/yungbote/competency-engine/internal/logger"
	"github.com/yungbote/competency-engine/internal/server"
)

type Handlers struct {
	Healthcheck *handlers.HealthcheckHandler
	Status      *handlers.StatusHandler
	Events      *handlers.EventHandler
	Criteria    *handlers.CriteriaHandler
}

func wireHandlers(log *logger.Logger, reposet Repos, serviceset Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Healthcheck: handlers.NewHealthcheckHandler(),
		Status:      handlers.NewStatusHandler(serviceset.Status, log),
		Events:      handlers.NewEventHandler(serviceset.Ingestor, log),
		Criteria:    handlers.NewCriteriaHandler(serviceset.Criteria, reposet.Taxonomy, serviceset.Bus, log),
	}
}

func wireRouter(cfg Config, handlerset Handlers) *gin.Engine {
	return server.NewRouter(server.RouterConfig{
		HealthcheckHandler: handlerset.Healthcheck,
		StatusHandler:      handlerset.Status,
		EventHandler:       handlerset.Events,
		CriteriaHandler:    handlerset.Criteria,
		AllowOrigins:       cfg.AllowOrigins,
	})
}
