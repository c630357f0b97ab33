package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ninerxsolution/trading-market/internal/models"
	"github.com/ninerxsolution/trading-market/internal/pkg/apperror"
)

type ListingRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	Update(ctx context.Context, id uuid.UUID, mutate func(l *models.Listing) error) (*models.Listing, error)
}

type UpdateListingInput struct {
	Price *float64
	Stock *int
}

type ListingService struct {
	repo ListingRepository
	now  func() time.Time
}

func NewListingService(repo ListingRepository) *ListingService {
	return &ListingService{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *ListingService) GetListing(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	l, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	return l, nil
}

// UpdateListing меняет цену и остаток. Статус выводится из остатка:
// 0 - SOLD_OUT, пополнение SOLD_OUT или INACTIVE объявления возвращает ACTIVE.
func (s *ListingService) UpdateListing(ctx context.Context, id models.Identity, listingID uuid.UUID, in UpdateListingInput) (*models.Listing, error) {
	if in.Price == nil && in.Stock == nil {
		return nil, apperror.New(apperror.ErrCodeValidation, "нужно указать price или stock")
	}
	if in.Price != nil && *in.Price <= 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "цена должна быть больше 0")
	}
	if in.Stock != nil && *in.Stock < 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "остаток не может быть отрицательным")
	}

	l, err := s.repo.Update(ctx, listingID, func(l *models.Listing) error {
		if !id.IsAdmin() && l.SellerID != id.UserID {
			return apperror.ErrForbidden
		}
		now := s.now()
		if in.Price != nil {
			l.Price = *in.Price
			l.UpdatedAt = now
		}
		if in.Stock != nil {
			l.SetStock(*in.Stock, now)
		}
		return nil
	})
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	return l, nil
}
