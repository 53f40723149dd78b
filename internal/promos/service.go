// Package promos manages promo codes for the admin surface.
package promos

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"ms-checkout/internal/logger"
	"ms-checkout/internal/models"
	"ms-checkout/internal/store"
)

var (
	ErrInvalidPromo  = errors.New("invalid promo code")
	ErrPromoNotFound = errors.New("promo code not found")
	ErrDuplicateCode = errors.New("promo code already exists")
)

var codePattern = regexp.MustCompile(`^[A-Z0-9_-]+$`)

type Repository interface {
	ListPromos(ctx context.Context) ([]models.PromoCode, error)
	GetPromo(ctx context.Context, code string) (*models.PromoCode, error)
	CreatePromo(ctx context.Context, promo *models.PromoCode) error
	UpdatePromo(ctx context.Context, promo *models.PromoCode) error
	DeletePromo(ctx context.Context, code string) error
}

// PromoInput is the admin payload for create and update.
type PromoInput struct {
	Code      string     `json:"code" validate:"required,max=64,promocode"`
	Kind      string     `json:"kind" validate:"required,oneof=percentage fixed_amount"`
	Value     float64    `json:"value" validate:"gt=0"`
	Status    string     `json:"status" validate:"omitempty,oneof=draft active scheduled expired"`
	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
}

type Service struct {
	repo     Repository
	validate *validator.Validate
	log      *logger.Logger
}

func NewService(repo Repository, log *logger.Logger) *Service {
	v := validator.New()
	_ = v.RegisterValidation("promocode", func(fl validator.FieldLevel) bool {
		return codePattern.MatchString(fl.Field().String())
	})
	return &Service{repo: repo, validate: v, log: log}
}

func (s *Service) List(ctx context.Context) ([]models.PromoCode, error) {
	return s.repo.ListPromos(ctx)
}

func (s *Service) Get(ctx context.Context, code string) (*models.PromoCode, error) {
	promo, err := s.repo.GetPromo(ctx, normalize(code))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrPromoNotFound
	}
	return promo, err
}

func (s *Service) Create(ctx context.Context, in PromoInput) (*models.PromoCode, error) {
	promo, err := s.build(in)
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreatePromo(ctx, promo); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrDuplicateCode
		}
		return nil, err
	}
	s.log.Info("PROMO", fmt.Sprintf("Promo %s created (%s %v)", promo.Code, promo.Kind, promo.Value))
	return promo, nil
}

// Update replaces the editable fields of an existing code. The code in the
// path wins over the one in the body.
func (s *Service) Update(ctx context.Context, code string, in PromoInput) (*models.PromoCode, error) {
	in.Code = code
	promo, err := s.build(in)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdatePromo(ctx, promo); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrPromoNotFound
		}
		return nil, err
	}
	s.log.Info("PROMO", fmt.Sprintf("Promo %s updated", promo.Code))
	return s.Get(ctx, promo.Code)
}

func (s *Service) Delete(ctx context.Context, code string) error {
	err := s.repo.DeletePromo(ctx, normalize(code))
	if errors.Is(err, store.ErrNotFound) {
		return ErrPromoNotFound
	}
	if err == nil {
		s.log.Info("PROMO", fmt.Sprintf("Promo %s deleted", normalize(code)))
	}
	return err
}

func (s *Service) build(in PromoInput) (*models.PromoCode, error) {
	in.Code = normalize(in.Code)
	in.Kind = strings.ToLower(strings.TrimSpace(in.Kind))
	in.Status = strings.ToLower(strings.TrimSpace(in.Status))

	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPromo, err)
	}
	if models.PromoKind(in.Kind) == models.PromoPercentage && in.Value > 100 {
		return nil, fmt.Errorf("%w: percentage cannot exceed 100", ErrInvalidPromo)
	}
	if in.StartDate != nil && in.EndDate != nil && in.EndDate.Before(*in.StartDate) {
		return nil, fmt.Errorf("%w: end date is before start date", ErrInvalidPromo)
	}

	status := models.PromoStatus(in.Status)
	if status == "" {
		status = models.PromoDraft
	}
	return &models.PromoCode{
		Code:      in.Code,
		Kind:      models.PromoKind(in.Kind),
		Value:     in.Value,
		Status:    status,
		StartDate: in.StartDate,
		EndDate:   in.EndDate,
	}, nil
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
