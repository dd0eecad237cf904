package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/yungbote/competency-engine/internal/handlers"
	"github.com/yungbote/competency-engine/internal/types"
)

type RouterConfig struct {
	HealthcheckHandler *handlers.HealthcheckHandler
	StatusHandler      *handlers.StatusHandler
	EventHandler       *handlers.EventHandler
	CriteriaHandler    *handlers.CriteriaHandler
	AllowOrigins       []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()
	router.Use(otelgin.Middleware("competency-engine"))

	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", cfg.HealthcheckHandler.Healthcheck)

	api := router.Group("/api")
	{
		// Intake
		api.POST("/events", cfg.EventHandler.Enqueue)

		// Learner status reads
		api.GET("/learners/:learnerID/status", cfg.StatusHandler.ListLearnerStatus)
		api.GET("/learners/:learnerID/competencies/:competencyTagID", cfg.StatusHandler.GetCompetencyStatus)
		api.GET("/learners/:learnerID/groups/:nodeID", cfg.StatusHandler.GetNodeStatus(types.NodeKindGroup))
		api.GET("/learners/:learnerID/criteria/:nodeID", cfg.StatusHandler.GetNodeStatus(types.NodeKindCriterion))

		// Criteria model
		api.GET("/taxonomies", cfg.CriteriaHandler.ListTaxonomies)
		api.GET("/competencies/:competencyTagID/criteria", cfg.CriteriaHandler.GetTree)
		api.POST("/criteria/invalidate", cfg.CriteriaHandler.Invalidate)
	}

	return router
}
