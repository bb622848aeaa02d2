package orderitems

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/freshlane/internal/inventory"
	"github.com/angelmondragon/freshlane/internal/notifications"
	"github.com/angelmondragon/freshlane/internal/pricing"
	"github.com/angelmondragon/freshlane/pkg/db"
	"github.com/angelmondragon/freshlane/pkg/db/models"
	"github.com/angelmondragon/freshlane/pkg/enums"
	pkgerrors "github.com/angelmondragon/freshlane/pkg/errors"
	"github.com/angelmondragon/freshlane/pkg/logger"
	"github.com/angelmondragon/freshlane/pkg/outbox/payloads"
)

// TrackerParams wires the tracker's collaborators.
type TrackerParams struct {
	Repository *Repository
	Ledger     *inventory.Ledger
	Catalog    pricing.Catalog
	Pricing    *pricing.Engine
	TxRunner   db.TxRunner
	Notifier   notifications.Notifier
	Logger     *logger.Logger
	Clock      func() time.Time
}

// Tracker drives per-line fulfillment: reservation, picking, delivery,
// returns and the backorder and substitution branches.
type Tracker struct {
	repo     *Repository
	ledger   *inventory.Ledger
	catalog  pricing.Catalog
	pricing  *pricing.Engine
	tx       db.TxRunner
	notifier notifications.Notifier
	logg     *logger.Logger
	now      func() time.Time
}

// NewTracker validates the params and builds a tracker.
func NewTracker(p TrackerParams) (*Tracker, error) {
	if p.Repository == nil {
		return nil, errors.New("order item repository required")
	}
	if p.Ledger == nil {
		return nil, errors.New("inventory ledger required")
	}
	if p.Catalog == nil {
		return nil, errors.New("catalog required")
	}
	if p.Pricing == nil {
		return nil, errors.New("pricing engine required")
	}
	if p.TxRunner == nil {
		return nil, errors.New("transaction runner required")
	}
	if p.Notifier == nil {
		p.Notifier = notifications.Discard{}
	}
	if p.Logger == nil {
		p.Logger = logger.Nop()
	}
	if p.Clock == nil {
		p.Clock = time.Now
	}
	return &Tracker{
		repo:     p.Repository,
		ledger:   p.Ledger,
		catalog:  p.Catalog,
		pricing:  p.Pricing,
		tx:       p.TxRunner,
		notifier: p.Notifier,
		logg:     p.Logger,
		now:      p.Clock,
	}, nil
}

// SubstitutionInput swaps a line for a different product.
type SubstitutionInput struct {
	ItemID      uuid.UUID
	ProductID   uuid.UUID
	WarehouseID *uuid.UUID
	Reason      string
	ActorID     uuid.UUID
	ActorRole   enums.ActorRole
}

// DeliveryResult reports how much of the line reached the buyer.
type DeliveryResult struct {
	Item               *models.OrderItem
	FullyDelivered     bool
	PartiallyDelivered bool
}

// RecheckResult summarizes a backorder sweep.
type RecheckResult struct {
	Checked  int
	Restored int
}

// Get loads one item.
func (t *Tracker) Get(ctx context.Context, itemID uuid.UUID) (*models.OrderItem, error) {
	return t.repo.Find(ctx, itemID)
}

// ListByOrder returns every line of an order.
func (t *Tracker) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error) {
	return t.repo.ListByOrder(ctx, orderID)
}

// CreateSubstitution clones the line's quantity onto a new pending line for
// another product, priced from the catalog. The source releases its stock and
// becomes substituted. The substitute can itself be substituted later.
func (t *Tracker) CreateSubstitution(ctx context.Context, input SubstitutionInput) (*models.OrderItem, error) {
	reason := strings.TrimSpace(input.Reason)
	if input.ItemID == uuid.Nil || input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item and product ids required")
	}
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "substitution reason is required")
	}

	source, err := t.repo.Find(ctx, input.ItemID)
	if err != nil {
		return nil, err
	}
	if !source.Status.CanBeSubstituted() {
		return nil, invalidState(source, "item cannot be substituted")
	}
	if source.ProductID == input.ProductID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "substitute must be a different product")
	}

	// quote before opening the transaction; the catalog reads outside it
	product, price, err := t.pricing.QuoteLine(ctx, t.catalog, input.ProductID, source.Quantity)
	if err != nil {
		return nil, err
	}

	warehouseID := source.WarehouseID
	if input.WarehouseID != nil && *input.WarehouseID != uuid.Nil {
		warehouseID = *input.WarehouseID
	}

	var substitute *models.OrderItem
	err = t.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := t.repo.WithTx(tx)
		locked, err := lockLine(ctx, repo, source.ID)
		if err != nil {
			return err
		}
		if !locked.Status.CanBeSubstituted() {
			return invalidState(locked, "item cannot be substituted")
		}
		if locked.ReservedQty > 0 {
			if err := t.ledger.WithTx(tx).Release(ctx, locked.ProductID, locked.WarehouseID, locked.ReservedQty, &locked.OrderID); err != nil {
				return err
			}
		}
		if err := repo.Update(ctx, locked.ID, map[string]any{
			"status":         enums.OrderItemStatusSubstituted,
			"reserved_qty":   0,
			"is_backordered": false,
		}); err != nil {
			return err
		}

		originalID := locked.ID
		substitute = &models.OrderItem{
			OrderID:            locked.OrderID,
			ProductID:          product.ID,
			WarehouseID:        warehouseID,
			SKU:                product.SKU,
			Name:               product.Name,
			Unit:               product.Unit,
			WeightKg:           product.WeightKg,
			Quantity:           locked.Quantity,
			UnitPrice:          price.UnitPrice,
			CostPrice:          product.CostPrice,
			DiscountAmount:     price.Savings(),
			TaxAmount:          price.TaxAmount,
			Subtotal:           price.Subtotal,
			Total:              price.Total,
			Status:             enums.OrderItemStatusPending,
			IsSubstitution:     true,
			OriginalItemID:     &originalID,
			SubstitutionReason: &reason,
		}
		return repo.Create(ctx, substitute)
	})
	if err != nil {
		return nil, err
	}

	logCtx := t.logg.WithOrderID(ctx, source.OrderID.String())
	logCtx = t.logg.WithFields(logCtx, map[string]any{
		"item_id":       source.ID.String(),
		"substitute_id": substitute.ID.String(),
	})
	t.logg.Info(logCtx, "order item substituted")

	t.notifier.Notify(ctx, notifications.Notification{
		Event:         enums.EventOrderItemSubstituted,
		AggregateType: enums.AggregateOrderItem,
		AggregateID:   source.ID,
		Actor:         notifications.Actor(input.ActorID, input.ActorRole),
		Data: payloads.OrderItemSubstitutedEvent{
			OrderID:          source.OrderID,
			OriginalItemID:   source.ID,
			SubstituteItemID: substitute.ID,
			OriginalSKU:      source.SKU,
			SubstituteSKU:    substitute.SKU,
			Reason:           reason,
		},
		OccurredAt: t.now().UTC(),
	})
	return t.repo.Find(ctx, substitute.ID)
}

// ConfirmItem reserves stock for a pending or backordered line. A shortfall
// parks the line as backordered instead of failing.
func (t *Tracker) ConfirmItem(ctx context.Context, itemID uuid.UUID) (*models.OrderItem, error) {
	var (
		item        *models.OrderItem
		backordered bool
	)
	err := t.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := t.repo.WithTx(tx)
		locked, err := lockLine(ctx, repo, itemID)
		if err != nil {
			return err
		}
		switch locked.Status {
		case enums.OrderItemStatusPending, enums.OrderItemStatusBackordered:
		default:
			return invalidState(locked, "only pending or backordered items can be confirmed")
		}

		need := locked.Quantity - locked.ReservedQty
		if need > 0 {
			err = t.ledger.WithTx(tx).Reserve(ctx, locked.ProductID, locked.WarehouseID, need, &locked.OrderID)
		}
		switch {
		case err == nil:
			if err := repo.Update(ctx, locked.ID, map[string]any{
				"status":         enums.OrderItemStatusConfirmed,
				"reserved_qty":   locked.Quantity,
				"is_backordered": false,
			}); err != nil {
				return err
			}
		case pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock):
			if locked.Status != enums.OrderItemStatusBackordered {
				backordered = true
				if err := repo.Update(ctx, locked.ID, map[string]any{
					"status":         enums.OrderItemStatusBackordered,
					"is_backordered": true,
				}); err != nil {
					return err
				}
			}
		default:
			return err
		}

		item, err = repo.Find(ctx, locked.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if backordered {
		t.logg.Warn(t.logg.WithOrderID(ctx, item.OrderID.String()), "order item backordered")
		t.notifier.Notify(ctx, notifications.Notification{
			Event:         enums.EventOrderItemBackordered,
			AggregateType: enums.AggregateOrderItem,
			AggregateID:   item.ID,
			Data: payloads.OrderItemBackorderedEvent{
				OrderID:  item.OrderID,
				ItemID:   item.ID,
				SKU:      item.SKU,
				Quantity: item.Quantity,
			},
			OccurredAt: t.now().UTC(),
		})
	}
	return item, nil
}

// RecheckBackorders retries reservation for backordered lines, optionally
// scoped to one order. Lines still short stay backordered.
func (t *Tracker) RecheckBackorders(ctx context.Context, orderID *uuid.UUID, limit int) (RecheckResult, error) {
	items, err := t.repo.ListBackordered(ctx, orderID, limit)
	if err != nil {
		return RecheckResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list backordered items")
	}
	var (
		result RecheckResult
		errs   error
	)
	for _, candidate := range items {
		result.Checked++
		item, err := t.ConfirmItem(ctx, candidate.ID)
		if err != nil {
			// the line may have been cancelled or substituted meanwhile
			if pkgerrors.IsCode(err, pkgerrors.CodeInvalidState) {
				continue
			}
			errs = multierr.Append(errs, err)
			continue
		}
		if item.Status == enums.OrderItemStatusConfirmed {
			result.Restored++
		}
	}
	return result, errs
}

// MarkPicked records qty picked from the shelf for a ready line; nil picks
// the full quantity.
func (t *Tracker) MarkPicked(ctx context.Context, itemID uuid.UUID, qty *int) (*models.OrderItem, error) {
	return t.mutate(ctx, itemID, func(_ *gorm.DB, item *models.OrderItem) (map[string]any, error) {
		if !item.Status.CanTransitionTo(enums.OrderItemStatusPicked) {
			return nil, invalidState(item, "item is not ready for picking")
		}
		picked := item.Quantity
		if qty != nil {
			picked = *qty
		}
		if picked <= 0 || picked > item.Quantity {
			return nil, quantityError("picked quantity must be between 1 and the ordered quantity", picked, item.Quantity)
		}
		return map[string]any{
			"status":     enums.OrderItemStatusPicked,
			"picked_qty": picked,
		}, nil
	})
}

// MarkPacked records qty packed; nil packs everything picked.
func (t *Tracker) MarkPacked(ctx context.Context, itemID uuid.UUID, qty *int) (*models.OrderItem, error) {
	return t.mutate(ctx, itemID, func(_ *gorm.DB, item *models.OrderItem) (map[string]any, error) {
		if item.Status != enums.OrderItemStatusPicked {
			return nil, invalidState(item, "item must be picked before packing")
		}
		packed := item.PickedQty
		if qty != nil {
			packed = *qty
		}
		if packed <= 0 || packed > item.PickedQty {
			return nil, quantityError("packed quantity must be between 1 and the picked quantity", packed, item.PickedQty)
		}
		return map[string]any{
			"status":     enums.OrderItemStatusPacked,
			"packed_qty": packed,
		}, nil
	})
}

// MarkShipped hands a packed line to the carrier.
func (t *Tracker) MarkShipped(ctx context.Context, itemID uuid.UUID) (*models.OrderItem, error) {
	return t.mutate(ctx, itemID, func(_ *gorm.DB, item *models.OrderItem) (map[string]any, error) {
		if !item.Status.CanTransitionTo(enums.OrderItemStatusShipped) {
			return nil, invalidState(item, "only packed items can ship")
		}
		return map[string]any{"status": enums.OrderItemStatusShipped}, nil
	})
}

// MarkDelivered records qty handed to the buyer; nil delivers everything
// packed. Delivered units leave the warehouse and the rest of the
// reservation is released. The order itself is not advanced.
func (t *Tracker) MarkDelivered(ctx context.Context, itemID uuid.UUID, qty *int) (DeliveryResult, error) {
	item, err := t.mutate(ctx, itemID, func(tx *gorm.DB, item *models.OrderItem) (map[string]any, error) {
		if !item.Status.CanTransitionTo(enums.OrderItemStatusDelivered) {
			return nil, invalidState(item, "only packed or shipped items can be delivered")
		}
		delivered := item.PackedQty
		if qty != nil {
			delivered = *qty
		}
		if delivered <= 0 || delivered > item.PackedQty {
			return nil, quantityError("delivered quantity must be between 1 and the packed quantity", delivered, item.PackedQty)
		}
		ledger := t.ledger.WithTx(tx)
		consumed := min(delivered, item.ReservedQty)
		if err := ledger.Consume(ctx, item.ProductID, item.WarehouseID, consumed, &item.OrderID); err != nil {
			return nil, err
		}
		if left := item.ReservedQty - consumed; left > 0 {
			if err := ledger.Release(ctx, item.ProductID, item.WarehouseID, left, &item.OrderID); err != nil {
				return nil, err
			}
		}
		return map[string]any{
			"status":        enums.OrderItemStatusDelivered,
			"delivered_qty": delivered,
			"reserved_qty":  0,
		}, nil
	})
	if err != nil {
		return DeliveryResult{}, err
	}
	return DeliveryResult{
		Item:               item,
		FullyDelivered:     item.IsFullyDelivered(),
		PartiallyDelivered: item.IsPartiallyDelivered(),
	}, nil
}

// RecordReturn books returned and damaged units against a delivered line.
func (t *Tracker) RecordReturn(ctx context.Context, itemID uuid.UUID, returned, damaged int) (*models.OrderItem, error) {
	if returned < 0 || damaged < 0 || returned+damaged == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "returned and damaged quantities must be non-negative and not both zero")
	}
	return t.mutate(ctx, itemID, func(_ *gorm.DB, item *models.OrderItem) (map[string]any, error) {
		if item.Status != enums.OrderItemStatusDelivered {
			return nil, invalidState(item, "returns are only accepted on delivered items")
		}
		if returned+damaged > item.ReturnableQty() {
			return nil, quantityError("return exceeds delivered quantity", returned+damaged, item.ReturnableQty())
		}
		return map[string]any{
			"returned_qty": item.ReturnedQty + returned,
			"damaged_qty":  item.DamagedQty + damaged,
		}, nil
	})
}

// Cancel drops a line that has not shipped and releases its stock.
func (t *Tracker) Cancel(ctx context.Context, itemID uuid.UUID) (*models.OrderItem, error) {
	return t.mutate(ctx, itemID, func(tx *gorm.DB, item *models.OrderItem) (map[string]any, error) {
		if !item.Status.CanTransitionTo(enums.OrderItemStatusCancelled) {
			return nil, invalidState(item, "item can no longer be cancelled")
		}
		if item.ReservedQty > 0 {
			if err := t.ledger.WithTx(tx).Release(ctx, item.ProductID, item.WarehouseID, item.ReservedQty, &item.OrderID); err != nil {
				return nil, err
			}
		}
		return map[string]any{
			"status":         enums.OrderItemStatusCancelled,
			"reserved_qty":   0,
			"is_backordered": false,
		}, nil
	})
}

func (t *Tracker) mutate(ctx context.Context, itemID uuid.UUID, fn func(tx *gorm.DB, item *models.OrderItem) (map[string]any, error)) (*models.OrderItem, error) {
	if itemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}
	var out *models.OrderItem
	err := t.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := t.repo.WithTx(tx)
		item, err := lockLine(ctx, repo, itemID)
		if err != nil {
			return err
		}
		updates, err := fn(tx, item)
		if err != nil {
			return err
		}
		if len(updates) > 0 {
			updates["updated_at"] = t.now().UTC()
			if err := repo.Update(ctx, item.ID, updates); err != nil {
				return err
			}
		}
		out, err = repo.Find(ctx, item.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// lockLine locks the parent order and then the line, the order the order
// service takes them in. Lines of closed orders are refused.
func lockLine(ctx context.Context, repo *Repository, itemID uuid.UUID) (*models.OrderItem, error) {
	current, err := repo.Find(ctx, itemID)
	if err != nil {
		return nil, err
	}
	order, err := repo.LockOrder(ctx, current.OrderID)
	if err != nil {
		return nil, err
	}
	item, err := repo.Lock(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if orderClosed(order.Status) {
		return nil, pkgerrors.Newf(pkgerrors.CodeInvalidState, "order is %s", order.Status).
			WithDetails(map[string]any{"item_id": item.ID, "order_status": order.Status})
	}
	return item, nil
}

func orderClosed(status enums.OrderStatus) bool {
	switch status {
	case enums.OrderStatusCancelled, enums.OrderStatusRefunded, enums.OrderStatusCompleted:
		return true
	}
	return false
}

func invalidState(item *models.OrderItem, msg string) error {
	return pkgerrors.New(pkgerrors.CodeInvalidState, msg).
		WithDetails(map[string]any{"item_id": item.ID, "status": item.Status})
}

func quantityError(msg string, got, limit int) error {
	return pkgerrors.New(pkgerrors.CodeValidation, msg).
		WithDetails(map[string]any{"quantity": got, "limit": limit})
}
