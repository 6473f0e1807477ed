package domain

import "github.com/yungbote/custrisk-backend/internal/domain/risk"

type Customer = risk.Customer
type CustomerSnapshot = risk.CustomerSnapshot
type CustomerFeature = risk.CustomerFeature
type RiskPrediction = risk.RiskPrediction
type RiskDistribution = risk.RiskDistribution
type HighRiskEntry = risk.HighRiskEntry
type Mitigation = risk.Mitigation
type Event = risk.Event

type RiskLevel = risk.Level
type MitigationType = risk.MitigationType
type MitigationStatus = risk.MitigationStatus

const (
	RiskLow    = risk.LevelLow
	RiskMedium = risk.LevelMedium
	RiskHigh   = risk.LevelHigh

	MitigationFlag    = risk.MitigationFlag
	MitigationNote    = risk.MitigationNote
	MitigationAction  = risk.MitigationAction
	MitigationMonitor = risk.MitigationMonitor

	StatusPending    = risk.StatusPending
	StatusInProgress = risk.StatusInProgress
	StatusCompleted  = risk.StatusCompleted
	StatusCancelled  = risk.StatusCancelled

	ScopeAssessed   = risk.ScopeAssessed
	ScopeRegistered = risk.ScopeRegistered

	EventPredictionRecorded      = risk.EventPredictionRecorded
	EventMitigationCreated       = risk.EventMitigationCreated
	EventMitigationStatusChanged = risk.EventMitigationStatusChanged
	EventCustomerDeleted         = risk.EventCustomerDeleted
)

var (
	ErrNotFound          = risk.ErrNotFound
	ErrInvalidValue      = risk.ErrInvalidValue
	ErrInvalidRiskLevel  = risk.ErrInvalidRiskLevel
	ErrInvalidType       = risk.ErrInvalidType
	ErrInvalidStatus     = risk.ErrInvalidStatus
	ErrInvalidState      = risk.ErrInvalidState
	ErrPredictionFailed  = risk.ErrPredictionFailed
	ErrOracleTimeout     = risk.ErrOracleTimeout
	ErrOracleUnavailable = risk.ErrOracleUnavailable
)

var RiskLevels = risk.Levels

var (
	ParseRiskLevel        = risk.ParseLevel
	ParseMitigationType   = risk.ParseMitigationType
	ParseMitigationStatus = risk.ParseMitigationStatus
	IsValidation          = risk.IsValidation
)

// AllModels lists every persisted type, in dependency order.
func AllModels() []any {
	return []any{
		&Customer{},
		&CustomerFeature{},
		&RiskPrediction{},
		&Mitigation{},
	}
}
