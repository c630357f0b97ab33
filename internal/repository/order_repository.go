package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ninerxsolution/trading-market/internal/models"
	"github.com/ninerxsolution/trading-market/internal/repository/common"
)

var (
	ErrOrderNotFound          = errors.New("order not found")
	ErrListingAlreadyReserved = errors.New("listing already has an active order")
	ErrInsufficientStock      = errors.New("insufficient stock")
	ErrTradeAlreadyRecorded   = errors.New("trade history already recorded for order")
)

const (
	orderColumns = `id, listing_id, item_id, seller_id, buyer_id, price, quantity, status,
		proof_images, dispute_reason, admin_notes, expires_at, created_at, updated_at`

	activeOrderIndex = "orders_one_active_per_listing"
)

// Стороны сделки для фильтра списка заказов.
const (
	OrderSideBuyer  = "buyer"
	OrderSideSeller = "seller"
)

// OrderFilter ограничивает выборку заказов.
// UserID == nil означает все заказы (для администратора).
type OrderFilter struct {
	UserID *uuid.UUID
	Side   string
	Status models.OrderStatus
	Limit  int
	Offset int
}

type OrderRepository struct {
	db *sqlx.DB
}

func NewOrderRepository(db *sqlx.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func activeStatuses() interface{} {
	out := make([]string, len(models.ActiveOrderStatuses))
	for i, s := range models.ActiveOrderStatuses {
		out[i] = string(s)
	}
	return pq.Array(out)
}

func (r *OrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return common.GetByID[models.Order](ctx, r.db, "orders", orderColumns, id, ErrOrderNotFound)
}

// Reserve создаёт заказ по объявлению в одной транзакции.
// Строка объявления блокируется, поэтому параллельные резервации одного
// объявления выполняются строго по очереди. build получает заблокированное
// объявление, проверяет предусловия и собирает заказ; его ошибка откатывает транзакцию.
func (r *OrderRepository) Reserve(ctx context.Context, listingID uuid.UUID, build func(l *models.Listing) (*models.Order, error)) (*models.Order, error) {
	var created *models.Order

	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		listing, err := common.LockByID[models.Listing](ctx, tx, "listings", listingColumns, listingID, ErrListingNotFound)
		if err != nil {
			return err
		}

		order, err := build(listing)
		if err != nil {
			return err
		}

		var busy bool
		if err := tx.GetContext(ctx, &busy,
			`SELECT EXISTS (SELECT 1 FROM orders WHERE listing_id = $1 AND status = ANY($2))`,
			listingID, activeStatuses(),
		); err != nil {
			return fmt.Errorf("order repository: check active order: %w", err)
		}
		if busy {
			return ErrListingAlreadyReserved
		}

		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO orders (`+orderColumns+`)
			VALUES (:id, :listing_id, :item_id, :seller_id, :buyer_id, :price, :quantity, :status,
				:proof_images, :dispute_reason, :admin_notes, :expires_at, :created_at, :updated_at)
		`, order); err != nil {
			if common.IsUniqueViolation(err, activeOrderIndex) {
				return ErrListingAlreadyReserved
			}
			return fmt.Errorf("order repository: insert: %w", err)
		}

		created = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

// ApplyTransition блокирует объявление и заказ (всегда в этом порядке),
// передаёт текущий заказ в decide и атомарно применяет полученный переход.
func (r *OrderRepository) ApplyTransition(ctx context.Context, orderID uuid.UUID, decide func(o *models.Order) (*models.Transition, error)) (*models.Order, error) {
	var updated *models.Order

	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var listingID uuid.UUID
		if err := tx.GetContext(ctx, &listingID, `SELECT listing_id FROM orders WHERE id = $1`, orderID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrOrderNotFound
			}
			return fmt.Errorf("order repository: get listing id: %w", err)
		}

		listing, err := common.LockByID[models.Listing](ctx, tx, "listings", listingColumns, listingID, ErrListingNotFound)
		if err != nil {
			return err
		}
		order, err := common.LockByID[models.Order](ctx, tx, "orders", orderColumns, orderID, ErrOrderNotFound)
		if err != nil {
			return err
		}

		plan, err := decide(order)
		if err != nil {
			return err
		}

		now := time.Now().UTC()

		if plan.SettleStock {
			if !listing.Settle(order.Quantity, now) {
				return ErrInsufficientStock
			}
			if err := updateListing(ctx, tx, listing); err != nil {
				return err
			}
			if err := insertTradeHistory(ctx, tx, models.NewTradeHistory(order, now)); err != nil {
				return err
			}
		}

		if plan.Penalty > 0 {
			if err := applyReputationPenalty(ctx, tx, plan.Penalty, now, order.BuyerID, order.SellerID); err != nil {
				return err
			}
		}

		order.Apply(plan, now)

		if _, err := tx.NamedExecContext(ctx, `
			UPDATE orders SET
				status = :status,
				proof_images = :proof_images,
				dispute_reason = :dispute_reason,
				admin_notes = :admin_notes,
				expires_at = :expires_at,
				updated_at = :updated_at
			WHERE id = :id
		`, order); err != nil {
			return fmt.Errorf("order repository: update status: %w", err)
		}

		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// EscalateExpired переводит просроченные активные заказы в DISPUTE одним
// условным UPDATE. Уже переведённые строки условию не соответствуют,
// поэтому параллельные вызовы не применяют эскалацию дважды.
func (r *OrderRepository) EscalateExpired(ctx context.Context, now time.Time, reason string) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.SelectContext(ctx, &orders, `
		UPDATE orders SET
			status = $1,
			dispute_reason = $2,
			expires_at = NULL,
			updated_at = $3
		WHERE status = ANY($4) AND expires_at < $3
		RETURNING `+orderColumns,
		models.OrderStatusDispute, reason, now, activeStatuses(),
	)
	if err != nil {
		return nil, fmt.Errorf("order repository: escalate expired: %w", err)
	}
	return orders, nil
}

// List возвращает заказы по фильтру, новые первыми.
func (r *OrderRepository) List(ctx context.Context, f OrderFilter) ([]models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE 1=1`
	args := []interface{}{}
	argIndex := 1

	if f.UserID != nil {
		switch f.Side {
		case OrderSideBuyer:
			query += fmt.Sprintf(" AND buyer_id = $%d", argIndex)
		case OrderSideSeller:
			query += fmt.Sprintf(" AND seller_id = $%d", argIndex)
		default:
			query += fmt.Sprintf(" AND (buyer_id = $%d OR seller_id = $%d)", argIndex, argIndex)
		}
		args = append(args, *f.UserID)
		argIndex++
	}

	if f.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIndex)
		args = append(args, f.Status)
		argIndex++
	}

	query += " ORDER BY created_at DESC"

	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
		args = append(args, f.Limit, f.Offset)
	}

	orders := []models.Order{}
	if err := r.db.SelectContext(ctx, &orders, query, args...); err != nil {
		return nil, fmt.Errorf("order repository: list: %w", err)
	}
	return orders, nil
}
