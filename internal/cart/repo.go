package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/freshlane/pkg/db/models"
	"github.com/angelmondragon/freshlane/pkg/enums"
	pkgerrors "github.com/angelmondragon/freshlane/pkg/errors"
)

// Repository defines the persistence surface required by the cart service.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, cart *models.Cart) error
	Find(ctx context.Context, id uuid.UUID) (*models.Cart, error)
	Lock(ctx context.Context, id uuid.UUID) (*models.Cart, error)
	SaveTotals(ctx context.Context, cart *models.Cart) error
	Items(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error)
	SaveItem(ctx context.Context, item *models.CartItem) error
	DeleteItem(ctx context.Context, cartID, itemID uuid.UUID) error
	MarkCheckedOut(ctx context.Context, id uuid.UUID, at time.Time) error
	ExpireBefore(ctx context.Context, now time.Time, limit int) (int64, error)
	AbandonIdleSince(ctx context.Context, cutoff, now time.Time, limit int) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a cart repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, cart *models.Cart) error {
	if cart.ID == uuid.Nil {
		cart.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(cart).Error
}

func (r *repository) Find(ctx context.Context, id uuid.UUID) (*models.Cart, error) {
	return r.first(r.db.WithContext(ctx), id)
}

func (r *repository) Lock(ctx context.Context, id uuid.UUID) (*models.Cart, error) {
	return r.first(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *repository) first(q *gorm.DB, id uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	if err := q.Where("id = ?", id).First(&cart).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}
		return nil, err
	}
	return &cart, nil
}

// SaveTotals writes the computed totals, coupons, status and activity stamps.
func (r *repository) SaveTotals(ctx context.Context, cart *models.Cart) error {
	return r.db.WithContext(ctx).
		Model(cart).
		Select(
			"status", "abandoned_at", "fulfillment_type", "subtotal", "tax_amount", "shipping_amount",
			"discount_amount", "total_amount", "total_weight_kg", "items_count",
			"coupon_codes", "last_activity_at", "expires_at", "updated_at",
		).
		Updates(cart).Error
}

func (r *repository) Items(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error) {
	var items []models.CartItem
	err := r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&items).Error
	return items, err
}

// SaveItem inserts a new line or overwrites an existing one.
func (r *repository) SaveItem(ctx context.Context, item *models.CartItem) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
		return r.db.WithContext(ctx).Create(item).Error
	}
	return r.db.WithContext(ctx).Save(item).Error
}

func (r *repository) DeleteItem(ctx context.Context, cartID, itemID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND cart_id = ?", itemID, cartID).
		Delete(&models.CartItem{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	return nil
}

func (r *repository) MarkCheckedOut(ctx context.Context, id uuid.UUID, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ? AND status IN ?", id, []enums.CartStatus{enums.CartStatusActive, enums.CartStatusAbandoned}).
		Updates(map[string]any{
			"status":         enums.CartStatusCheckedOut,
			"checked_out_at": at,
			"updated_at":     at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "cart is no longer active")
	}
	return nil
}

// ExpireBefore flips up to limit open carts whose expiry has passed.
func (r *repository) ExpireBefore(ctx context.Context, now time.Time, limit int) (int64, error) {
	open := []enums.CartStatus{enums.CartStatusActive, enums.CartStatusAbandoned}
	ids, err := r.idsWhere(ctx, open, "expires_at IS NOT NULL AND expires_at <= ?", now, limit)
	if err != nil || len(ids) == 0 {
		return 0, err
	}
	res := r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id IN ? AND status IN ?", ids, open).
		Updates(map[string]any{"status": enums.CartStatusExpired, "updated_at": now})
	return res.RowsAffected, res.Error
}

// AbandonIdleSince flips up to limit active carts untouched since cutoff.
func (r *repository) AbandonIdleSince(ctx context.Context, cutoff, now time.Time, limit int) (int64, error) {
	active := []enums.CartStatus{enums.CartStatusActive}
	ids, err := r.idsWhere(ctx, active, "last_activity_at < ?", cutoff, limit)
	if err != nil || len(ids) == 0 {
		return 0, err
	}
	res := r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id IN ? AND status = ?", ids, enums.CartStatusActive).
		Updates(map[string]any{
			"status":       enums.CartStatusAbandoned,
			"abandoned_at": now,
			"updated_at":   now,
		})
	return res.RowsAffected, res.Error
}

func (r *repository) idsWhere(ctx context.Context, statuses []enums.CartStatus, cond string, at time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	q := r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("status IN ?", statuses).
		Where(cond, at.UTC()).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	return ids, q.Pluck("id", &ids).Error
}
