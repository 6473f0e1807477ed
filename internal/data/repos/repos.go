package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/custrisk-backend/internal/data/repos/risk"
	"github.com/yungbote/custrisk-backend/internal/platform/logger"
)

type CustomerRepo = risk.CustomerRepo
type CustomerFeatureRepo = risk.CustomerFeatureRepo
type RiskPredictionRepo = risk.RiskPredictionRepo
type MitigationRepo = risk.MitigationRepo

type MitigationFilter = risk.MitigationFilter

func NewCustomerRepo(db *gorm.DB, baseLog *logger.Logger) CustomerRepo {
	return risk.NewCustomerRepo(db, baseLog)
}
func NewCustomerFeatureRepo(db *gorm.DB, baseLog *logger.Logger) CustomerFeatureRepo {
	return risk.NewCustomerFeatureRepo(db, baseLog)
}
func NewRiskPredictionRepo(db *gorm.DB, baseLog *logger.Logger) RiskPredictionRepo {
	return risk.NewRiskPredictionRepo(db, baseLog)
}
func NewMitigationRepo(db *gorm.DB, baseLog *logger.Logger) MitigationRepo {
	return risk.NewMitigationRepo(db, baseLog)
}
