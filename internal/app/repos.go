package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/custrisk-backend/internal/data/repos"
	"github.com/yungbote/custrisk-backend/internal/platform/logger"
)

type Repos struct {
	Customer        repos.CustomerRepo
	CustomerFeature repos.CustomerFeatureRepo
	RiskPrediction  repos.RiskPredictionRepo
	Mitigation      repos.MitigationRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Customer:        repos.NewCustomerRepo(db, log),
		CustomerFeature: repos.NewCustomerFeatureRepo(db, log),
		RiskPrediction:  repos.NewRiskPredictionRepo(db, log),
		Mitigation:      repos.NewMitigationRepo(db, log),
	}
}
