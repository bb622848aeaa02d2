package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/freshlane/pkg/db/models"
	"github.com/angelmondragon/freshlane/pkg/enums"
	pkgerrors "github.com/angelmondragon/freshlane/pkg/errors"
	"github.com/angelmondragon/freshlane/pkg/pagination"
)

// ListFilters narrows List. Zero values mean no filter.
type ListFilters struct {
	BuyerID  *uuid.UUID
	VendorID *uuid.UUID
	Status   *enums.OrderStatus
	Overdue  bool
}

// Repository persists orders and their status history.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
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

// Create inserts a new order.
func (r *Repository) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

// Find loads an order without locking it.
func (r *Repository) Find(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return r.find(r.db.WithContext(ctx), id)
}

// Lock loads an order with SELECT ... FOR UPDATE.
func (r *Repository) Lock(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return r.find(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

// FindByCart returns the order a cart was checked out into, or nil.
func (r *Repository) FindByCart(ctx context.Context, cartID uuid.UUID) (*models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Order("created_at ASC").
		Limit(1).
		Find(&rows).Error
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return &rows[0], nil
}

func (r *Repository) find(q *gorm.DB, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := q.Where("id = ?", id).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, err
	}
	return &order, nil
}

// SaveTransition writes the status, its timestamp and cancellation fields.
func (r *Repository) SaveTransition(ctx context.Context, order *models.Order) error {
	columns := []string{"status", "updated_at", "cancelled_by", "cancellation_reason"}
	if col := models.OrderStatusColumn(order.Status); col != "" {
		columns = append(columns, col)
	}
	res := r.db.WithContext(ctx).
		Model(order).
		Select(columns).
		Updates(order)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return nil
}

// UpdatePayment mirrors the invoice's paid-to-date onto the order.
func (r *Repository) UpdatePayment(ctx context.Context, orderID uuid.UUID, paid decimal.Decimal, status enums.PaymentStatus) error {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]any{
			"paid_amount":    paid,
			"payment_status": status,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return nil
}

// SetPaymentDueDate records when payment for the order falls due.
func (r *Repository) SetPaymentDueDate(ctx context.Context, orderID uuid.UUID, due time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Update("payment_due_date", due.UTC())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return nil
}

// AppendHistory inserts an audit row.
func (r *Repository) AppendHistory(ctx context.Context, entry *models.OrderStatusHistory) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

// History returns the audit trail for an order, oldest first.
func (r *Repository) History(ctx context.Context, orderID uuid.UUID) ([]models.OrderStatusHistory, error) {
	var rows []models.OrderStatusHistory
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

// List returns non-archived orders newest first, keyed by a created_at/id cursor.
func (r *Repository) List(ctx context.Context, filters ListFilters, params pagination.Params, now time.Time) ([]models.Order, string, error) {
	q := r.db.WithContext(ctx).Model(&models.Order{}).Where("archived = ?", false)
	if filters.BuyerID != nil {
		q = q.Where("buyer_id = ?", *filters.BuyerID)
	}
	if filters.VendorID != nil {
		q = q.Where("vendor_id = ?", *filters.VendorID)
	}
	if filters.Status != nil {
		q = q.Where("status = ?", *filters.Status)
	}
	if filters.Overdue {
		q = q.Where("payment_due_date IS NOT NULL AND payment_due_date < ?", now.UTC()).
			Where("payment_status IN ?", []enums.PaymentStatus{enums.PaymentStatusPending, enums.PaymentStatusPartiallyPaid})
	}
	cursor, err := pagination.Decode(params.Cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	if cursor != nil {
		q = q.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	size := params.Size()
	var rows []models.Order
	if err := q.Order("created_at DESC").Order("id DESC").Limit(size + 1).Find(&rows).Error; err != nil {
		return nil, "", err
	}
	page, next := pagination.Trim(rows, size, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	return page, next, nil
}
