package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/competency-engine/internal/logger"
	"github.com/yungbote/competency-engine/internal/repos"
)

type Repos struct {
	Taxonomy        repos.TaxonomyRepo
	Tag             repos.TagRepo
	ObjectTag       repos.ObjectTagRepo
	CriteriaGroup   repos.CriteriaGroupRepo
	Criterion       repos.CriterionRepo
	RuleProfile     repos.RuleProfileRepo
	StatusRecord    repos.StatusRecordRepo
	CompletionEvent repos.CompletionEventRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Taxonomy:        repos.NewTaxonomyRepo(db, log),
		Tag:             repos.NewTagRepo(db, log),
		ObjectTag:       repos.NewObjectTagRepo(db, log),
		CriteriaGroup:   repos.NewCriteriaGroupRepo(db, log),
		Criterion:       repos.NewCriterionRepo(db, log),
		RuleProfile:     repos.NewRuleProfileRepo(db, log),
		StatusRecord:    repos.NewStatusRecordRepo(db, log),
		CompletionEvent: repos.NewCompletionEventRepo(db, log),
	}
}
