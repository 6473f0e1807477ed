package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/custrisk-backend/internal/data/repos"
	types "github.com/yungbote/custrisk-backend/internal/domain"
	"github.com/yungbote/custrisk-backend/internal/observability"
	"github.com/yungbote/custrisk-backend/internal/platform/dbctx"
	"github.com/yungbote/custrisk-backend/internal/platform/logger"
)

// CustomerInput is both the create body and the update patch. Nil fields are left untouched
// on update; a supplied empty optional field clears it.
type CustomerInput struct {
	Name       *string
	Email      *string
	Phone      *string
	ExternalID *string
}

type CustomerService interface {
	Create(ctx context.Context, in CustomerInput, features map[string]float64) (*types.Customer, error)
	Update(ctx context.Context, id uuid.UUID, patch CustomerInput, features map[string]float64) (*types.Customer, error)
	// Delete removes the customer with its features, predictions and mitigations.
	Delete(ctx context.Context, id uuid.UUID) error
}

type customerService struct {
	db          *gorm.DB
	log         *logger.Logger
	customers   repos.CustomerRepo
	features    repos.CustomerFeatureRepo
	predictions repos.RiskPredictionRepo
	mitigations repos.MitigationRepo
	cache       StatsCache
	publisher   EventPublisher
	metrics     *observability.Metrics
	clock       Clock
}

func NewCustomerService(
	db *gorm.DB,
	baseLog *logger.Logger,
	customers repos.CustomerRepo,
	features repos.CustomerFeatureRepo,
	predictions repos.RiskPredictionRepo,
	mitigations repos.MitigationRepo,
	opts WorkflowOptions,
) CustomerService {
	return &customerService{
		db:          db,
		log:         baseLog.With("service", "CustomerService"),
		customers:   customers,
		features:    features,
		predictions: predictions,
		mitigations: mitigations,
		cache:       opts.Cache,
		publisher:   opts.Publisher,
		metrics:     opts.Metrics,
		clock:       opts.Clock,
	}
}

func optional(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}

func (s *customerService) Create(ctx context.Context, in CustomerInput, features map[string]float64) (*types.Customer, error) {
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", types.ErrInvalidValue)
	}
	clean, err := cleanFeatures(features)
	if err != nil {
		return nil, err
	}
	now := s.clock.now()
	c := &types.Customer{
		ID:         uuid.New(),
		Name:       strings.TrimSpace(*in.Name),
		Email:      optional(in.Email),
		Phone:      optional(in.Phone),
		ExternalID: optional(in.ExternalID),
		CreatedAt:  now,
	}
	err = dbctx.InTx(dbctx.New(ctx), s.db, func(inner dbctx.Context) error {
		if _, err := s.customers.Create(inner, []*types.Customer{c}); err != nil {
			return err
		}
		if len(clean) == 0 {
			return nil
		}
		_, err := appendFeatures(inner, s.features, c.ID, clean, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	invalidateStats(ctx, s.log, s.cache)
	s.log.Info("customer created", "customer_id", c.ID, "external_id", derefString(c.ExternalID), "features", len(clean))
	return c, nil
}

func (s *customerService) Update(ctx context.Context, id uuid.UUID, patch CustomerInput, features map[string]float64) (*types.Customer, error) {
	updates := map[string]interface{}{}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name cannot be blank", types.ErrInvalidValue)
		}
		updates["name"] = name
	}
	if patch.Email != nil {
		updates["email"] = optional(patch.Email)
	}
	if patch.Phone != nil {
		updates["phone"] = optional(patch.Phone)
	}
	if patch.ExternalID != nil {
		updates["external_id"] = optional(patch.ExternalID)
	}
	clean, err := cleanFeatures(features)
	if err != nil {
		return nil, err
	}
	now := s.clock.now()
	updates["updated_at"] = now

	var out *types.Customer
	err = dbctx.InTx(dbctx.New(ctx), s.db, func(inner dbctx.Context) error {
		ok, err := s.customers.UpdateFields(inner, id, updates)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: customer %s", types.ErrNotFound, id)
		}
		if len(clean) > 0 {
			if _, err := appendFeatures(inner, s.features, id, clean, now); err != nil {
				return err
			}
		}
		out, err = s.customers.GetByID(inner, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("%w: customer %s", types.ErrNotFound, id)
	}
	s.log.Info("customer updated", "customer_id", id, "fields", len(updates)-1, "features", len(clean))
	return out, nil
}

func (s *customerService) Delete(ctx context.Context, id uuid.UUID) error {
	var counts [3]int64
	err := dbctx.InTx(dbctx.New(ctx), s.db, func(inner dbctx.Context) error {
		ok, err := s.customers.Exists(inner, id)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: customer %s", types.ErrNotFound, id)
		}
		if counts[0], err = s.mitigations.DeleteByCustomer(inner, id); err != nil {
			return err
		}
		if counts[1], err = s.predictions.DeleteByCustomer(inner, id); err != nil {
			return err
		}
		if counts[2], err = s.features.DeleteByCustomer(inner, id); err != nil {
			return err
		}
		_, err = s.customers.Delete(inner, id)
		return err
	})
	if err != nil {
		return err
	}
	s.log.Info("customer deleted",
		"customer_id", id,
		"mitigations", counts[0],
		"predictions", counts[1],
		"features", counts[2],
	)
	invalidateStats(ctx, s.log, s.cache)
	emit(ctx, s.log, s.publisher, s.metrics, types.Event{
		Type:       types.EventCustomerDeleted,
		CustomerID: id,
		EntityID:   id,
		OccurredAt: s.clock.now(),
	})
	return nil
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
