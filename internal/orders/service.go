package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/freshlane/internal/inventory"
	"github.com/angelmondragon/freshlane/internal/notifications"
	"github.com/angelmondragon/freshlane/internal/orderitems"
	"github.com/angelmondragon/freshlane/pkg/db"
	"github.com/angelmondragon/freshlane/pkg/db/models"
	"github.com/angelmondragon/freshlane/pkg/enums"
	pkgerrors "github.com/angelmondragon/freshlane/pkg/errors"
	"github.com/angelmondragon/freshlane/pkg/logger"
	"github.com/angelmondragon/freshlane/pkg/metrics"
	"github.com/angelmondragon/freshlane/pkg/outbox/payloads"
	"github.com/angelmondragon/freshlane/pkg/pagination"
)

// Service drives the order lifecycle.
type Service interface {
	Transition(ctx context.Context, input TransitionInput) (*models.OrderStatusHistory, error)
	AdvanceIfDelivered(ctx context.Context, orderID uuid.UUID, actorID uuid.UUID, role enums.ActorRole) (*models.OrderStatusHistory, error)
	Get(ctx context.Context, orderID uuid.UUID) (*Detail, error)
	List(ctx context.Context, filters ListFilters, params pagination.Params) (*Page, error)
	History(ctx context.Context, orderID uuid.UUID) ([]models.OrderStatusHistory, error)
}

// TransitionInput asks to move an order to Status.
type TransitionInput struct {
	OrderID   uuid.UUID
	Status    enums.OrderStatus
	Note      string
	ActorID   uuid.UUID
	ActorRole enums.ActorRole
	Metadata  map[string]string
}

// Detail is an order with its lines.
type Detail struct {
	Order models.Order       `json:"order"`
	Items []models.OrderItem `json:"items"`
}

// Page is one page of List results.
type Page struct {
	Orders     []models.Order `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// ServiceParams wires the order service.
type ServiceParams struct {
	Orders   *Repository
	Items    *orderitems.Repository
	Ledger   *inventory.Ledger
	TxRunner db.TxRunner
	Notifier notifications.Notifier
	Logger   *logger.Logger
	Metrics  *metrics.EngineMetrics
	Clock    func() time.Time
}

type service struct {
	orders   *Repository
	items    *orderitems.Repository
	ledger   *inventory.Ledger
	tx       db.TxRunner
	notifier notifications.Notifier
	logg     *logger.Logger
	metrics  *metrics.EngineMetrics
	now      func() time.Time
}

// NewService builds the order service with the required dependencies.
func NewService(p ServiceParams) (Service, error) {
	if p.Orders == nil {
		return nil, errors.New("orders repository required")
	}
	if p.Items == nil {
		return nil, errors.New("order items repository required")
	}
	if p.Ledger == nil {
		return nil, errors.New("inventory ledger required")
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
	return &service{
		orders:   p.Orders,
		items:    p.Items,
		ledger:   p.Ledger,
		tx:       p.TxRunner,
		notifier: p.Notifier,
		logg:     p.Logger,
		metrics:  p.Metrics,
		now:      p.Clock,
	}, nil
}

func (s *service) Transition(ctx context.Context, input TransitionInput) (*models.OrderStatusHistory, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	req := Request{
		Target:    input.Status,
		Note:      input.Note,
		ActorID:   input.ActorID,
		ActorRole: input.ActorRole,
		Metadata:  input.Metadata,
	}
	decision, err := s.transition(ctx, input.OrderID, req, nil)
	if err != nil {
		return nil, err
	}
	return &decision.History, nil
}

// AdvanceIfDelivered moves an in-transit order to delivered once every line
// is settled with at least one delivered. Otherwise it returns nil, nil.
func (s *service) AdvanceIfDelivered(ctx context.Context, orderID uuid.UUID, actorID uuid.UUID, role enums.ActorRole) (*models.OrderStatusHistory, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	req := Request{
		Target:    enums.OrderStatusDelivered,
		Note:      "all items delivered",
		ActorID:   actorID,
		ActorRole: role,
	}
	ready := func(order *models.Order, items []models.OrderItem) bool {
		return order.Status == enums.OrderStatusInTransit && DeliveryComplete(items)
	}
	decision, err := s.transition(ctx, orderID, req, ready)
	if err != nil || decision == nil {
		return nil, err
	}
	return &decision.History, nil
}

// transition locks the order, decides and executes the commands in one
// transaction. A guard returning false skips the transition.
func (s *service) transition(ctx context.Context, orderID uuid.UUID, req Request, guard func(*models.Order, []models.OrderItem) bool) (*Decision, error) {
	var decision *Decision
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		orders := s.orders.WithTx(tx)
		items := s.items.WithTx(tx)

		order, err := orders.Lock(ctx, orderID)
		if err != nil {
			return err
		}
		lines, err := items.ListByOrder(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order items")
		}
		if guard != nil && !guard(order, lines) {
			return nil
		}

		d, err := Decide(*order, lines, req, s.now())
		if err != nil {
			return err
		}
		if err := s.execute(ctx, tx, &d); err != nil {
			return err
		}
		if err := orders.SaveTransition(ctx, &d.Order); err != nil {
			return err
		}
		if err := orders.AppendHistory(ctx, &d.History); err != nil {
			return err
		}
		decision = &d
		return nil
	})
	if err != nil {
		s.metrics.IncTransition(string(req.Target), transitionOutcome(err))
		logCtx := s.logg.WithOrderID(ctx, orderID.String())
		logCtx = s.logg.WithField(logCtx, "target_status", string(req.Target))
		if isRejection(err) {
			s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "order transition rejected")
		} else {
			s.logg.Error(logCtx, "order transition failed", err)
		}
		return nil, err
	}
	if decision == nil {
		return nil, nil
	}

	s.metrics.IncTransition(string(req.Target), "ok")
	logCtx := s.logg.WithOrderID(ctx, orderID.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"from_status": decision.Previous,
		"to_status":   decision.Order.Status,
	})
	s.logg.Info(logCtx, "order transitioned")
	s.dispatch(ctx, decision)
	return decision, nil
}

func (s *service) execute(ctx context.Context, tx *gorm.DB, d *Decision) error {
	ledger := s.ledger.WithTx(tx)
	items := s.items.WithTx(tx)
	orderID := d.Order.ID
	for _, cmd := range d.Commands {
		switch cmd.Kind {
		case CommandReserveStock:
			if err := ledger.ReserveLines(ctx, cmd.Lines, &orderID); err != nil {
				return err
			}
		case CommandReleaseStock:
			if err := ledger.ReleaseLines(ctx, cmd.Lines, &orderID); err != nil {
				return err
			}
		case CommandSetItems:
			for _, id := range cmd.ItemIDs {
				if err := items.Update(ctx, id, itemUpdates(cmd.ItemStatus)); err != nil {
					return err
				}
			}
		case CommandNotify:
		}
	}
	return nil
}

// itemUpdates returns the columns written when a transition moves a line.
func itemUpdates(status enums.OrderItemStatus) map[string]any {
	updates := map[string]any{"status": status}
	switch status {
	case enums.OrderItemStatusConfirmed:
		updates["reserved_qty"] = gorm.Expr("quantity")
		updates["is_backordered"] = false
	case enums.OrderItemStatusCancelled:
		updates["reserved_qty"] = 0
		updates["is_backordered"] = false
	}
	return updates
}

func (s *service) dispatch(ctx context.Context, d *Decision) {
	for _, cmd := range d.Commands {
		if cmd.Kind != CommandNotify {
			continue
		}
		note := ""
		if d.History.Note != nil {
			note = *d.History.Note
		}
		actorID := uuid.Nil
		if d.History.ActorID != nil {
			actorID = *d.History.ActorID
		}
		s.notifier.Notify(ctx, notifications.Notification{
			Event:         enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   d.Order.ID,
			Actor:         notifications.Actor(actorID, d.History.ActorRole),
			Data: payloads.OrderStatusChangedEvent{
				OrderID:        d.Order.ID,
				OrderNumber:    d.Order.OrderNumber,
				BuyerID:        d.Order.BuyerID,
				VendorID:       d.Order.VendorID,
				PreviousStatus: d.Previous,
				Status:         d.Order.Status,
				Note:           note,
				ChangedAt:      d.History.CreatedAt,
			},
			OccurredAt: d.History.CreatedAt,
		})
	}
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*Detail, error) {
	order, err := s.orders.Find(ctx, orderID)
	if err != nil {
		return nil, err
	}
	items, err := s.items.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order items")
	}
	return &Detail{Order: *order, Items: items}, nil
}

func (s *service) List(ctx context.Context, filters ListFilters, params pagination.Params) (*Page, error) {
	rows, next, err := s.orders.List(ctx, filters, params, s.now())
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return &Page{Orders: rows, NextCursor: next}, nil
}

func (s *service) History(ctx context.Context, orderID uuid.UUID) ([]models.OrderStatusHistory, error) {
	if _, err := s.orders.Find(ctx, orderID); err != nil {
		return nil, err
	}
	rows, err := s.orders.History(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order history")
	}
	return rows, nil
}

func isRejection(err error) bool {
	typed := pkgerrors.As(err)
	if typed == nil {
		return false
	}
	switch typed.Code() {
	case pkgerrors.CodeValidation, pkgerrors.CodeNotFound, pkgerrors.CodeInvalidTransition,
		pkgerrors.CodeInvalidState, pkgerrors.CodeInsufficientStock:
		return true
	}
	return false
}

func transitionOutcome(err error) string {
	switch {
	case pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition):
		return "invalid_transition"
	case pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock):
		return "insufficient_stock"
	case pkgerrors.IsCode(err, pkgerrors.CodeInvalidState):
		return "invalid_state"
	case pkgerrors.IsCode(err, pkgerrors.CodeTimeout):
		return "timeout"
	default:
		return "error"
	}
}
