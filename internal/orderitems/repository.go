package orderitems

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/freshlane/pkg/db/models"
	"github.com/angelmondragon/freshlane/pkg/enums"
	pkgerrors "github.com/angelmondragon/freshlane/pkg/errors"
)

// Repository persists order lines.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds an order item repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Find loads an item without locking it.
func (r *Repository) Find(ctx context.Context, id uuid.UUID) (*models.OrderItem, error) {
	return r.find(ctx, r.db.WithContext(ctx), id)
}

// Lock loads an item with SELECT ... FOR UPDATE.
func (r *Repository) Lock(ctx context.Context, id uuid.UUID) (*models.OrderItem, error) {
	return r.find(ctx, r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

// LockOrder locks the parent order row with SELECT ... FOR UPDATE.
func (r *Repository) LockOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, err
	}
	return &order, nil
}

func (r *Repository) find(_ context.Context, q *gorm.DB, id uuid.UUID) (*models.OrderItem, error) {
	var item models.OrderItem
	if err := q.Where("id = ?", id).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order item not found")
		}
		return nil, err
	}
	return &item, nil
}

// ListByOrder returns every line of an order in creation order.
func (r *Repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// ListBackordered returns backordered lines, optionally scoped to one order.
func (r *Repository) ListBackordered(ctx context.Context, orderID *uuid.UUID, limit int) ([]models.OrderItem, error) {
	q := r.db.WithContext(ctx).
		Where("status = ?", enums.OrderItemStatusBackordered).
		Order("created_at ASC")
	if orderID != nil {
		q = q.Where("order_id = ?", *orderID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var items []models.OrderItem
	if err := q.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// Create inserts the items, assigning ids where missing.
func (r *Repository) Create(ctx context.Context, items ...*models.OrderItem) error {
	for _, item := range items {
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
		if err := r.db.WithContext(ctx).Create(item).Error; err != nil {
			return err
		}
	}
	return nil
}

// Update applies column updates to one item.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	res := r.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order item not found")
	}
	return nil
}
