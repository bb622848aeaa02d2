package invoices

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

// Repository handles invoice and payment persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, invoice *models.Invoice, items []models.InvoiceItem) error
	Find(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	Lock(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	FindByOrder(ctx context.Context, orderID uuid.UUID) (*models.Invoice, error)
	Items(ctx context.Context, invoiceID uuid.UUID) ([]models.InvoiceItem, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	LastNumber(ctx context.Context, prefix string) (string, error)
	LatestChild(ctx context.Context, parentID uuid.UUID) (*models.Invoice, error)
	ListRecurringParents(ctx context.Context, limit int) ([]models.Invoice, error)
	ListOverdueCandidates(ctx context.Context, now time.Time, limit int) ([]models.Invoice, error)
	FindPaymentByRef(ctx context.Context, txnRef string) (*models.Payment, error)
	CreatePayment(ctx context.Context, payment *models.Payment) error
	Payments(ctx context.Context, invoiceID uuid.UUID) ([]models.Payment, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an invoice repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, invoice *models.Invoice, items []models.InvoiceItem) error {
	if invoice.ID == uuid.Nil {
		invoice.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(invoice).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		if items[i].ID == uuid.Nil {
			items[i].ID = uuid.New()
		}
		items[i].InvoiceID = invoice.ID
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *repository) Find(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	return r.first(r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *repository) Lock(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	return r.first(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id))
}

// FindByOrder returns the live invoice billed for an order.
func (r *repository) FindByOrder(ctx context.Context, orderID uuid.UUID) (*models.Invoice, error) {
	return r.first(r.db.WithContext(ctx).
		Where("order_id = ? AND archived = ? AND status <> ?", orderID, false, enums.InvoiceStatusCancelled))
}

func (r *repository) first(q *gorm.DB) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := q.First(&invoice).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
		}
		return nil, err
	}
	return &invoice, nil
}

func (r *repository) Items(ctx context.Context, invoiceID uuid.UUID) ([]models.InvoiceItem, error) {
	var items []models.InvoiceItem
	err := r.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("sort_order ASC").
		Find(&items).Error
	return items, err
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	res := r.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
	}
	return nil
}

// LastNumber returns the highest invoice number carrying prefix, or "".
func (r *repository) LastNumber(ctx context.Context, prefix string) (string, error) {
	var numbers []string
	err := r.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Where("invoice_number LIKE ?", prefix+"%").
		Order("invoice_number DESC").
		Limit(1).
		Pluck("invoice_number", &numbers).Error
	if err != nil || len(numbers) == 0 {
		return "", err
	}
	return numbers[0], nil
}

// LatestChild returns the newest generated child of a recurring invoice, or nil.
func (r *repository) LatestChild(ctx context.Context, parentID uuid.UUID) (*models.Invoice, error) {
	var rows []models.Invoice
	err := r.db.WithContext(ctx).
		Where("parent_invoice_id = ?", parentID).
		Order("invoice_date DESC").
		Limit(1).
		Find(&rows).Error
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return &rows[0], nil
}

func (r *repository) ListRecurringParents(ctx context.Context, limit int) ([]models.Invoice, error) {
	var rows []models.Invoice
	q := r.db.WithContext(ctx).
		Where("is_recurring = ? AND parent_invoice_id IS NULL AND archived = ?", true, false).
		Where("status <> ?", enums.InvoiceStatusCancelled).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	return rows, q.Find(&rows).Error
}

// ListOverdueCandidates returns unpaid invoices past their due date that are
// not yet marked overdue. Balances are checked by the caller.
func (r *repository) ListOverdueCandidates(ctx context.Context, now time.Time, limit int) ([]models.Invoice, error) {
	var rows []models.Invoice
	q := r.db.WithContext(ctx).
		Where("due_date < ? AND archived = ?", now.UTC(), false).
		Where("status IN ?", []enums.InvoiceStatus{
			enums.InvoiceStatusSent,
			enums.InvoiceStatusViewed,
			enums.InvoiceStatusPartial,
		}).
		Order("due_date ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	return rows, q.Find(&rows).Error
}

// FindPaymentByRef returns the payment with txnRef, or nil when none exists.
func (r *repository) FindPaymentByRef(ctx context.Context, txnRef string) (*models.Payment, error) {
	var rows []models.Payment
	if err := r.db.WithContext(ctx).Where("transaction_ref = ?", txnRef).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (r *repository) CreatePayment(ctx context.Context, payment *models.Payment) error {
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repository) Payments(ctx context.Context, invoiceID uuid.UUID) ([]models.Payment, error) {
	var rows []models.Payment
	err := r.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("paid_at ASC").
		Find(&rows).Error
	return rows, err
}
