package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ninerxsolution/trading-market/internal/models"
	"github.com/ninerxsolution/trading-market/internal/repository/common"
)

var ErrListingNotFound = errors.New("listing not found")

const listingColumns = `id, seller_id, item_id, price, stock, status, created_at, updated_at`

type ListingRepository struct {
	db *sqlx.DB
}

func NewListingRepository(db *sqlx.DB) *ListingRepository {
	return &ListingRepository{db: db}
}

func (r *ListingRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	return common.GetByID[models.Listing](ctx, r.db, "listings", listingColumns, id, ErrListingNotFound)
}

// Create сохраняет объявление. Каталог ведётся внешней системой,
// метод нужен для её синхронизации и для тестов.
func (r *ListingRepository) Create(ctx context.Context, l *models.Listing) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO listings (`+listingColumns+`)
		VALUES (:id, :seller_id, :item_id, :price, :stock, :status, :created_at, :updated_at)
	`, l)
	if err != nil {
		return fmt.Errorf("listing repository: create: %w", err)
	}
	return nil
}

// Update блокирует объявление, даёт mutate изменить его и сохраняет результат.
func (r *ListingRepository) Update(ctx context.Context, id uuid.UUID, mutate func(l *models.Listing) error) (*models.Listing, error) {
	var updated *models.Listing

	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		listing, err := common.LockByID[models.Listing](ctx, tx, "listings", listingColumns, id, ErrListingNotFound)
		if err != nil {
			return err
		}
		if err := mutate(listing); err != nil {
			return err
		}
		if err := updateListing(ctx, tx, listing); err != nil {
			return err
		}
		updated = listing
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func updateListing(ctx context.Context, tx *sqlx.Tx, l *models.Listing) error {
	_, err := tx.NamedExecContext(ctx, `
		UPDATE listings SET price = :price, stock = :stock, status = :status, updated_at = :updated_at
		WHERE id = :id
	`, l)
	if err != nil {
		return fmt.Errorf("listing repository: update: %w", err)
	}
	return nil
}
