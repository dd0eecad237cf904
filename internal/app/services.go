package app

import (
	"os"
	"strings"

	"gorm.io/gorm"

	"github.com/yungbote/competency-engine/internal/clients/grading"
	redisclient "github.com/yungbote/competency-engine/internal/clients/redis"
	"github.com/yungbote/competency-engine/internal/logger"
	"github.com/yungbote/competency-engine/internal/services"
)

type Services struct {
	Criteria  services.CriteriaService
	Resolver  services.RuleResolver
	Rules     services.RuleEvaluator
	Evaluator services.GroupEvaluator
	Status    services.StatusService
	Ingestor  services.IngestorService
	Signals   *grading.Client
	Bus       redisclient.InvalidationBus
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, reposet Repos) (Services, error) {
	log.Info("Wiring services...")

	signals, err := grading.NewClient(log, cfg.SignalBaseURL, cfg.SignalTimeout)
	if err != nil {
		return Services{}, err
	}

	criteria := services.NewCriteriaService(
		log,
		reposet.CriteriaGroup,
		reposet.Criterion,
		reposet.Tag,
		reposet.ObjectTag,
		reposet.RuleProfile,
		cfg.OrgID,
	)
	resolver := services.NewRuleResolver(log, cfg.DefaultRule)
	rules := services.NewRuleEvaluator(log)
	evaluator := services.NewGroupEvaluator(log, resolver, rules, signals, cfg.ShortCircuit)
	status := services.NewStatusService(db, log, reposet.StatusRecord)
	ingestor := services.NewIngestorService(
		db,
		log,
		reposet.CompletionEvent,
		reposet.ObjectTag,
		reposet.Criterion,
		criteria,
		evaluator,
		status,
		cfg.WorkerCount,
		cfg.ClaimInterval,
	)

	// Redis is optional: a single instance invalidates its own cache fine.
	var bus redisclient.InvalidationBus
	if strings.TrimSpace(os.Getenv("REDIS_ADDR")) != "" {
		bus, err = redisclient.NewInvalidationBus(log)
		if err != nil {
			return Services{}, err
		}
	} else {
		log.Info("REDIS_ADDR not set, criteria invalidation stays instance-local")
	}

	return Services{
		Criteria:  criteria,
		Resolver:  resolver,
		Rules:     rules,
		Evaluator: evaluator,
		Status:    status,
		Ingestor:  ingestor,
		Signals:   signals,
		Bus:       bus,
	}, nil
}
