package inventory

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/freshlane/pkg/db/models"
	"github.com/angelmondragon/freshlane/pkg/enums"
	pkgerrors "github.com/angelmondragon/freshlane/pkg/errors"
	"github.com/angelmondragon/freshlane/pkg/metrics"
)

const maxReleaseAttempts = 5

// Line is a quantity of one product held in one warehouse.
type Line struct {
	ProductID   uuid.UUID
	WarehouseID uuid.UUID
	Quantity    int
}

// Ledger mutates stock counters with single conditional statements, so
// concurrent callers never oversell. Every mutation appends a movement row.
type Ledger struct {
	db      *gorm.DB
	now     func() time.Time
	metrics *metrics.EngineMetrics
}

// NewLedger builds a ledger tied to the provided GORM DB.
func NewLedger(db *gorm.DB, m *metrics.EngineMetrics) *Ledger {
	return &Ledger{db: db, now: time.Now, metrics: m}
}

// WithTx returns a ledger bound to the provided transaction.
func (l *Ledger) WithTx(tx *gorm.DB) *Ledger {
	return &Ledger{db: tx, now: l.now, metrics: l.metrics}
}

// WithClock overrides the clock used for timestamps.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	return &Ledger{db: l.db, now: now, metrics: l.metrics}
}

// Reserve moves qty from available to reserved, or fails with INSUFFICIENT_STOCK
// without touching the record.
func (l *Ledger) Reserve(ctx context.Context, productID, warehouseID uuid.UUID, qty int, orderID *uuid.UUID) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "reservation quantity must be positive")
	}
	now := l.now().UTC()
	res := l.db.WithContext(ctx).
		Model(&models.InventoryRecord{}).
		Where("product_id = ? AND warehouse_id = ? AND quantity_available >= ?", productID, warehouseID, qty).
		Updates(map[string]any{
			"quantity_reserved":  gorm.Expr("quantity_reserved + ?", qty),
			"quantity_available": gorm.Expr("quantity_available - ?", qty),
			"updated_at":         now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		l.metrics.IncReservation("insufficient")
		return l.shortfall(ctx, productID, warehouseID, qty)
	}
	l.metrics.IncReservation("reserved")
	return l.recordMovement(ctx, productID, warehouseID, enums.InventoryMovementReserve, qty, "reserve", orderID, now)
}

// Release returns up to qty reserved units to available. Releasing more than
// is reserved clamps at zero, and the movement records what was actually
// released.
func (l *Ledger) Release(ctx context.Context, productID, warehouseID uuid.UUID, qty int, orderID *uuid.UUID) error {
	if qty <= 0 {
		return nil
	}
	for attempt := 0; attempt < maxReleaseAttempts; attempt++ {
		record, err := l.Get(ctx, productID, warehouseID)
		if err != nil {
			return err
		}
		released := min(qty, record.QuantityReserved)
		if released == 0 {
			return nil
		}

		now := l.now().UTC()
		res := l.db.WithContext(ctx).
			Model(&models.InventoryRecord{}).
			Where("product_id = ? AND warehouse_id = ? AND quantity_reserved >= ?", productID, warehouseID, released).
			Updates(map[string]any{
				"quantity_reserved":  gorm.Expr("quantity_reserved - ?", released),
				"quantity_available": gorm.Expr("quantity_on_hand - quantity_reserved + ?", released),
				"updated_at":         now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 1 {
			return l.recordMovement(ctx, productID, warehouseID, enums.InventoryMovementRelease, released, "release", orderID, now)
		}
		// another release lowered the reservation first; read it again
	}
	return pkgerrors.New(pkgerrors.CodeConflict, "inventory record changed during release").
		WithDetails(map[string]any{"product_id": productID, "warehouse_id": warehouseID})
}

// AdjustOnHand applies a physical stock change. The adjustment is refused when
// it would leave less on hand than is already reserved.
func (l *Ledger) AdjustOnHand(ctx context.Context, productID, warehouseID uuid.UUID, delta int, reason string) (*models.InventoryRecord, error) {
	if delta == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "adjustment must be non-zero")
	}
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "adjustment reason is required")
	}
	now := l.now().UTC()
	updates := map[string]any{
		"quantity_on_hand":   gorm.Expr("quantity_on_hand + ?", delta),
		"quantity_available": gorm.Expr("quantity_on_hand + ? - quantity_reserved", delta),
		"updated_at":         now,
	}
	if delta > 0 {
		updates["last_restocked_at"] = now
	}
	res := l.db.WithContext(ctx).
		Model(&models.InventoryRecord{}).
		Where("product_id = ? AND warehouse_id = ? AND quantity_on_hand + ? >= quantity_reserved", productID, warehouseID, delta).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		record, err := l.Get(ctx, productID, warehouseID)
		if err != nil {
			return nil, err
		}
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, "adjustment would drop on-hand below reserved").
			WithDetails(map[string]any{
				"product_id":   productID,
				"warehouse_id": warehouseID,
				"on_hand":      record.QuantityOnHand,
				"reserved":     record.QuantityReserved,
				"delta":        delta,
			})
	}
	if err := l.recordMovement(ctx, productID, warehouseID, enums.InventoryMovementAdjust, delta, reason, nil, now); err != nil {
		return nil, err
	}
	return l.Get(ctx, productID, warehouseID)
}

// Consume ships reserved units out of the warehouse: reserved and on-hand
// both drop by qty, so available is unchanged.
func (l *Ledger) Consume(ctx context.Context, productID, warehouseID uuid.UUID, qty int, orderID *uuid.UUID) error {
	if qty <= 0 {
		return nil
	}
	now := l.now().UTC()
	res := l.db.WithContext(ctx).
		Model(&models.InventoryRecord{}).
		Where("product_id = ? AND warehouse_id = ? AND quantity_reserved >= ?", productID, warehouseID, qty).
		Updates(map[string]any{
			"quantity_reserved": gorm.Expr("quantity_reserved - ?", qty),
			"quantity_on_hand":  gorm.Expr("quantity_on_hand - ?", qty),
			"updated_at":        now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		record, err := l.Get(ctx, productID, warehouseID)
		if err != nil {
			return err
		}
		return pkgerrors.New(pkgerrors.CodeInvalidState, "cannot consume more than is reserved").
			WithDetails(map[string]any{
				"product_id":   productID,
				"warehouse_id": warehouseID,
				"requested":    qty,
				"reserved":     record.QuantityReserved,
			})
	}
	return l.recordMovement(ctx, productID, warehouseID, enums.InventoryMovementConsume, qty, "delivered", orderID, now)
}

// ReserveLines reserves every line or none. Quantities are summed per
// (product, warehouse) and taken in ascending key order so concurrent callers
// lock rows in the same sequence. Lines already taken are released when a
// later one fails.
func (l *Ledger) ReserveLines(ctx context.Context, lines []Line, orderID *uuid.UUID) error {
	merged, err := Aggregate(lines)
	if err != nil {
		return err
	}
	taken := make([]Line, 0, len(merged))
	for _, line := range merged {
		if err := l.Reserve(ctx, line.ProductID, line.WarehouseID, line.Quantity, orderID); err != nil {
			if rerr := l.ReleaseLines(ctx, taken, orderID); rerr != nil {
				return errors.Join(err, rerr)
			}
			return err
		}
		taken = append(taken, line)
	}
	return nil
}

// ReleaseLines releases every line, in the same key order as ReserveLines.
func (l *Ledger) ReleaseLines(ctx context.Context, lines []Line, orderID *uuid.UUID) error {
	merged, err := Aggregate(lines)
	if err != nil {
		return err
	}
	for _, line := range merged {
		if err := l.Release(ctx, line.ProductID, line.WarehouseID, line.Quantity, orderID); err != nil {
			return err
		}
	}
	return nil
}

// Get loads the record for a product in a warehouse.
func (l *Ledger) Get(ctx context.Context, productID, warehouseID uuid.UUID) (*models.InventoryRecord, error) {
	var record models.InventoryRecord
	err := l.db.WithContext(ctx).
		Where("product_id = ? AND warehouse_id = ?", productID, warehouseID).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound(productID, warehouseID)
		}
		return nil, err
	}
	return &record, nil
}

// Create inserts a stock record with available derived from on-hand and reserved.
func (l *Ledger) Create(ctx context.Context, record *models.InventoryRecord) (*models.InventoryRecord, error) {
	if record.QuantityOnHand < 0 || record.QuantityReserved < 0 || record.QuantityReserved > record.QuantityOnHand {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reserved must be between zero and on-hand")
	}
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	record.QuantityAvailable = record.QuantityOnHand - record.QuantityReserved
	if err := l.db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, err
	}
	return record, nil
}

// LowStock lists records in the warehouse at or below their reorder point.
func (l *Ledger) LowStock(ctx context.Context, warehouseID uuid.UUID) ([]models.InventoryRecord, error) {
	var records []models.InventoryRecord
	if err := l.db.WithContext(ctx).
		Where("warehouse_id = ? AND quantity_available <= reorder_point", warehouseID).
		Order("quantity_available ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// OutOfStock lists records in the warehouse with nothing available.
func (l *Ledger) OutOfStock(ctx context.Context, warehouseID uuid.UUID) ([]models.InventoryRecord, error) {
	var records []models.InventoryRecord
	if err := l.db.WithContext(ctx).
		Where("warehouse_id = ? AND quantity_available <= 0", warehouseID).
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// Movements returns the movement log for a product in a warehouse, oldest first.
func (l *Ledger) Movements(ctx context.Context, productID, warehouseID uuid.UUID) ([]models.InventoryMovement, error) {
	var rows []models.InventoryMovement
	if err := l.db.WithContext(ctx).
		Where("product_id = ? AND warehouse_id = ?", productID, warehouseID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Aggregate sums quantities per (product, warehouse) and sorts the result by key.
func Aggregate(lines []Line) ([]Line, error) {
	type key struct{ product, warehouse uuid.UUID }
	totals := map[key]int{}
	for _, line := range lines {
		if line.Quantity < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "line quantity cannot be negative")
		}
		if line.Quantity == 0 {
			continue
		}
		totals[key{line.ProductID, line.WarehouseID}] += line.Quantity
	}
	out := make([]Line, 0, len(totals))
	for k, qty := range totals {
		out = append(out, Line{ProductID: k.product, WarehouseID: k.warehouse, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProductID != out[j].ProductID {
			return out[i].ProductID.String() < out[j].ProductID.String()
		}
		return out[i].WarehouseID.String() < out[j].WarehouseID.String()
	})
	return out, nil
}

func (l *Ledger) shortfall(ctx context.Context, productID, warehouseID uuid.UUID, qty int) error {
	record, err := l.Get(ctx, productID, warehouseID)
	if err != nil {
		return err
	}
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
		WithDetails(map[string]any{
			"product_id":   productID,
			"warehouse_id": warehouseID,
			"requested":    qty,
			"available":    record.QuantityAvailable,
		})
}

func (l *Ledger) recordMovement(ctx context.Context, productID, warehouseID uuid.UUID, kind enums.InventoryMovementKind, qty int, reason string, orderID *uuid.UUID, at time.Time) error {
	movement := models.InventoryMovement{
		ID:          uuid.New(),
		ProductID:   productID,
		WarehouseID: warehouseID,
		Kind:        kind,
		Quantity:    qty,
		Reason:      reason,
		OrderID:     orderID,
		CreatedAt:   at,
	}
	return l.db.WithContext(ctx).Create(&movement).Error
}

func notFound(productID, warehouseID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "inventory record not found").
		WithDetails(map[string]any{"product_id": productID, "warehouse_id": warehouseID})
}
