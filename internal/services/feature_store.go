package services

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/custrisk-backend/internal/data/repos"
	types "github.com/yungbote/custrisk-backend/internal/domain"
	"github.com/yungbote/custrisk-backend/internal/platform/dbctx"
	"github.com/yungbote/custrisk-backend/internal/platform/logger"
)

type FeatureStore interface {
	RecordFeature(dbc dbctx.Context, customerID uuid.UUID, name string, value float64) (*types.CustomerFeature, error)
	// RecordFeatures appends every entry at one timestamp, all or nothing.
	RecordFeatures(dbc dbctx.Context, customerID uuid.UUID, features map[string]float64) ([]*types.CustomerFeature, error)
	CurrentFeatures(dbc dbctx.Context, customerID uuid.UUID) (map[string]float64, error)
	CurrentFeaturesFor(dbc dbctx.Context, customerIDs []uuid.UUID) (map[uuid.UUID]map[string]float64, error)
}

type featureStore struct {
	db        *gorm.DB
	log       *logger.Logger
	customers repos.CustomerRepo
	features  repos.CustomerFeatureRepo
	clock     Clock
}

func NewFeatureStore(db *gorm.DB, baseLog *logger.Logger, customers repos.CustomerRepo, features repos.CustomerFeatureRepo, clock Clock) FeatureStore {
	return &featureStore{
		db:        db,
		log:       baseLog.With("service", "FeatureStore"),
		customers: customers,
		features:  features,
		clock:     clock,
	}
}

func (s *featureStore) RecordFeature(dbc dbctx.Context, customerID uuid.UUID, name string, value float64) (*types.CustomerFeature, error) {
	rows, err := s.RecordFeatures(dbc, customerID, map[string]float64{name: value})
	if err != nil {
		return nil, err
	}
	return rows[0], nil
}

func (s *featureStore) RecordFeatures(dbc dbctx.Context, customerID uuid.UUID, features map[string]float64) ([]*types.CustomerFeature, error) {
	clean, err := cleanFeatures(features)
	if err != nil {
		return nil, err
	}
	if len(clean) == 0 {
		return []*types.CustomerFeature{}, nil
	}
	var out []*types.CustomerFeature
	err = dbctx.InTx(dbc, s.db, func(inner dbctx.Context) error {
		ok, err := s.customers.Exists(inner, customerID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: customer %s", types.ErrNotFound, customerID)
		}
		out, err = appendFeatures(inner, s.features, customerID, clean, s.clock.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// appendFeatures writes already-validated features without an existence check.
func appendFeatures(dbc dbctx.Context, repo repos.CustomerFeatureRepo, customerID uuid.UUID, clean map[string]float64, at time.Time) ([]*types.CustomerFeature, error) {
	names := make([]string, 0, len(clean))
	for name := range clean {
		names = append(names, name)
	}
	sort.Strings(names)
	rows := make([]*types.CustomerFeature, 0, len(names))
	for _, name := range names {
		rows = append(rows, &types.CustomerFeature{
			CustomerID: customerID,
			Name:       name,
			Value:      clean[name],
			RecordedAt: at,
		})
	}
	return repo.Append(dbc, rows)
}

func (s *featureStore) CurrentFeatures(dbc dbctx.Context, customerID uuid.UUID) (map[string]float64, error) {
	return s.features.Current(dbc, customerID)
}

func (s *featureStore) CurrentFeaturesFor(dbc dbctx.Context, customerIDs []uuid.UUID) (map[uuid.UUID]map[string]float64, error) {
	return s.features.CurrentFor(dbc, customerIDs)
}

func cleanFeatures(features map[string]float64) (map[string]float64, error) {
	out := make(map[string]float64, len(features))
	for raw, value := range features {
		name := strings.TrimSpace(raw)
		if name == "" {
			return nil, fmt.Errorf("%w: feature name is blank", types.ErrInvalidValue)
		}
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return nil, fmt.Errorf("%w: feature %q is not finite", types.ErrInvalidValue, name)
		}
		if _, dup := out[name]; dup {
			return nil, fmt.Errorf("%w: feature %q is supplied more than once", types.ErrInvalidValue, name)
		}
		out[name] = value
	}
	return out, nil
}
