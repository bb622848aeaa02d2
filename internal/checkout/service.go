package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/freshlane/internal/cart"
	"github.com/angelmondragon/freshlane/internal/inventory"
	"github.com/angelmondragon/freshlane/internal/notifications"
	"github.com/angelmondragon/freshlane/internal/orderitems"
	"github.com/angelmondragon/freshlane/internal/orders"
	"github.com/angelmondragon/freshlane/pkg/db"
	"github.com/angelmondragon/freshlane/pkg/db/models"
	dbtypes "github.com/angelmondragon/freshlane/pkg/db/types"
	"github.com/angelmondragon/freshlane/pkg/enums"
	pkgerrors "github.com/angelmondragon/freshlane/pkg/errors"
	"github.com/angelmondragon/freshlane/pkg/logger"
	"github.com/angelmondragon/freshlane/pkg/outbox/payloads"
)

const (
	orderNumberConstraint = "ux_orders_order_number"
	orderNumberAttempts   = 3
)

// Service converts carts into submitted orders.
type Service interface {
	Checkout(ctx context.Context, input Input) (*Result, error)
}

// Input carries the buyer's delivery details for the new order.
type Input struct {
	CartID               uuid.UUID
	BuyerID              uuid.UUID
	DeliveryAddress      *string
	DeliveryDate         *time.Time
	DeliveryInstructions *string
	Notes                *string
	IsUrgent             bool
	Metadata             map[string]string
}

// Result is the submitted order. Replayed is set when the cart had already
// been checked out and the existing order is returned instead.
type Result struct {
	Order    models.Order       `json:"order"`
	Items    []models.OrderItem `json:"items"`
	Warnings []string           `json:"warnings,omitempty"`
	Replayed bool               `json:"replayed"`
}

type ServiceParams struct {
	Carts    cart.Repository
	Pricer   *cart.Pricer
	Orders   *orders.Repository
	Items    *orderitems.Repository
	Ledger   *inventory.Ledger
	TxRunner db.TxRunner
	Notifier notifications.Notifier
	Logger   *logger.Logger
	Clock    func() time.Time
}

type service struct {
	carts    cart.Repository
	pricer   *cart.Pricer
	orders   *orders.Repository
	items    *orderitems.Repository
	ledger   *inventory.Ledger
	tx       db.TxRunner
	notifier notifications.Notifier
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(p ServiceParams) (Service, error) {
	switch {
	case p.Carts == nil:
		return nil, errors.New("cart repository required")
	case p.Pricer == nil:
		return nil, errors.New("cart pricer required")
	case p.Orders == nil:
		return nil, errors.New("orders repository required")
	case p.Items == nil:
		return nil, errors.New("order items repository required")
	case p.Ledger == nil:
		return nil, errors.New("inventory ledger required")
	case p.TxRunner == nil:
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
	return &service{
		carts:    p.Carts,
		pricer:   p.Pricer,
		orders:   p.Orders,
		items:    p.Items,
		ledger:   p.Ledger,
		tx:       p.TxRunner,
		notifier: p.Notifier,
		logg:     p.Logger,
		now:      p.Clock,
	}, nil
}

// Checkout re-prices the cart and writes the order, its lines and the
// draft→submitted history row in one transaction. Stock is not reserved
// here; confirmation does that.
func (s *service) Checkout(ctx context.Context, input Input) (*Result, error) {
	if input.CartID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart id required")
	}
	ctx = s.logg.WithField(ctx, "cart_id", input.CartID.String())

	var result *Result
	var err error
	for attempt := 0; attempt < orderNumberAttempts; attempt++ {
		result, err = s.checkoutOnce(ctx, input)
		if err == nil || !db.IsUniqueViolation(err, orderNumberConstraint) {
			break
		}
		s.logg.Warn(s.logg.WithField(ctx, "attempt", attempt+1), "order number taken, retrying")
	}
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeInternal) || pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
			s.logg.Error(ctx, "checkout failed", err)
		}
		return nil, err
	}
	if result.Replayed {
		s.logg.Info(s.logg.WithOrderID(ctx, result.Order.ID.String()), "checkout replayed")
		return result, nil
	}

	s.logg.Info(s.logg.WithFields(s.logg.WithOrderID(ctx, result.Order.ID.String()), map[string]any{
		"order_number": result.Order.OrderNumber,
		"total_amount": result.Order.TotalAmount.String(),
	}), "order submitted")
	s.notifier.Notify(ctx, notifications.Notification{
		Event:         enums.EventOrderPlaced,
		AggregateType: enums.AggregateOrder,
		AggregateID:   result.Order.ID,
		Actor:         notifications.Actor(result.Order.BuyerID, enums.ActorRoleBuyer),
		Data: payloads.OrderPlacedEvent{
			OrderID:     result.Order.ID,
			OrderNumber: result.Order.OrderNumber,
			BuyerID:     result.Order.BuyerID,
			VendorID:    result.Order.VendorID,
			TotalAmount: result.Order.TotalAmount,
			ItemCount:   len(result.Items),
		},
		OccurredAt: *result.Order.SubmittedAt,
	})
	return result, nil
}

func (s *service) checkoutOnce(ctx context.Context, input Input) (*Result, error) {
	now := s.now().UTC()
	var result *Result
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		carts := s.carts.WithTx(tx)
		orderRepo := s.orders.WithTx(tx)
		itemRepo := s.items.WithTx(tx)

		c, err := carts.Lock(ctx, input.CartID)
		if err != nil {
			return err
		}
		if c.Status == enums.CartStatusCheckedOut {
			replay, err := s.replay(ctx, orderRepo, itemRepo, c, input.BuyerID)
			if err != nil {
				return err
			}
			result = replay
			return nil
		}
		if err := cart.CheckWritable(c, input.BuyerID, now); err != nil {
			return err
		}
		if c.FulfillmentType == enums.FulfillmentTypeDelivery && blank(input.DeliveryAddress) {
			return pkgerrors.New(pkgerrors.CodeValidation, "delivery address required for delivery orders")
		}

		lines, err := carts.Items(ctx, c.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart items")
		}
		if len(lines) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}
		quote, err := s.pricer.Quote(ctx, tx, c, lines, now)
		if err != nil {
			return err
		}

		number, err := orders.NewOrderNumber(now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate order number")
		}
		order := buildOrder(c, quote, input, number, now)
		if _, err := orderRepo.Create(ctx, order); err != nil {
			return err
		}

		items := make([]*models.OrderItem, 0, len(quote.Items))
		for _, line := range quote.Items {
			items = append(items, buildItem(order.ID, line, quote.Products[line.ProductID]))
		}
		if err := itemRepo.Create(ctx, items...); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order items")
		}

		buyer := c.BuyerID
		note := "order submitted from cart"
		metadata := dbtypes.JSONMap{"cart_id": c.ID.String()}
		for k, v := range input.Metadata {
			metadata[k] = v
		}
		if err := orderRepo.AppendHistory(ctx, &models.OrderStatusHistory{
			OrderID:        order.ID,
			PreviousStatus: enums.OrderStatusDraft,
			Status:         enums.OrderStatusSubmitted,
			ActorID:        &buyer,
			ActorRole:      enums.ActorRoleBuyer,
			Note:           &note,
			Metadata:       metadata,
			CreatedAt:      now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append order history")
		}
		if err := carts.MarkCheckedOut(ctx, c.ID, now); err != nil {
			return err
		}

		result = &Result{
			Order:    *order,
			Items:    derefItems(items),
			Warnings: s.stockWarnings(ctx, tx, items),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// replay returns the order a checked-out cart already produced.
func (s *service) replay(ctx context.Context, orderRepo *orders.Repository, itemRepo *orderitems.Repository, c *models.Cart, buyerID uuid.UUID) (*Result, error) {
	if buyerID != uuid.Nil && c.BuyerID != buyerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "cart belongs to another buyer")
	}
	order, err := orderRepo.FindByCart(ctx, c.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load checked out order")
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidState, "cart is checked_out")
	}
	items, err := itemRepo.ListByOrder(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order items")
	}
	return &Result{Order: *order, Items: items, Replayed: true}, nil
}

// stockWarnings flags lines the warehouse cannot currently cover. They are
// advisory: short lines backorder at confirmation.
func (s *service) stockWarnings(ctx context.Context, tx *gorm.DB, items []*models.OrderItem) []string {
	ledger := s.ledger.WithTx(tx)
	var warnings []string
	for _, item := range items {
		record, err := ledger.Get(ctx, item.ProductID, item.WarehouseID)
		if err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
				warnings = append(warnings, fmt.Sprintf("%s: not stocked in warehouse", item.SKU))
			}
			continue
		}
		if record.QuantityAvailable < item.Quantity {
			warnings = append(warnings, fmt.Sprintf("%s: only %d available", item.SKU, record.QuantityAvailable))
		}
	}
	return warnings
}

func buildOrder(c *models.Cart, quote *cart.Quote, input Input, number string, now time.Time) *models.Order {
	cartID := c.ID
	submitted := now
	return &models.Order{
		OrderNumber:          number,
		BuyerID:              c.BuyerID,
		VendorID:             c.VendorID,
		CartID:               &cartID,
		Status:               enums.OrderStatusSubmitted,
		PaymentStatus:        enums.PaymentStatusPending,
		FulfillmentType:      c.FulfillmentType,
		Subtotal:             quote.Totals.Subtotal,
		TaxAmount:            quote.Totals.TaxAmount,
		DeliveryFee:          quote.Totals.Shipping,
		DiscountAmount:       quote.Totals.DiscountAmount,
		TotalAmount:          quote.Totals.Total,
		PaidAmount:           decimal.Zero,
		IsUrgent:             input.IsUrgent,
		DeliveryAddress:      trimmed(input.DeliveryAddress),
		DeliveryDate:         input.DeliveryDate,
		DeliveryInstructions: trimmed(input.DeliveryInstructions),
		Notes:                trimmed(input.Notes),
		SubmittedAt:          &submitted,
	}
}

func buildItem(orderID uuid.UUID, line models.CartItem, product *models.Product) *models.OrderItem {
	return &models.OrderItem{
		OrderID:        orderID,
		ProductID:      line.ProductID,
		WarehouseID:    line.WarehouseID,
		SKU:            product.SKU,
		Name:           product.Name,
		Unit:           product.Unit,
		WeightKg:       product.WeightKg,
		Quantity:       line.Quantity,
		UnitPrice:      line.UnitPrice,
		CostPrice:      product.CostPrice,
		DiscountAmount: line.Savings(),
		TaxAmount:      line.TaxAmount,
		Subtotal:       line.Subtotal,
		Total:          line.Total,
		Status:         enums.OrderItemStatusPending,
	}
}

func derefItems(items []*models.OrderItem) []models.OrderItem {
	out := make([]models.OrderItem, 0, len(items))
	for _, item := range items {
		out = append(out, *item)
	}
	return out
}

func blank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

func trimmed(s *string) *string {
	if blank(s) {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
