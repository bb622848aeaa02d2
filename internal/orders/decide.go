package orders

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/freshlane/internal/inventory"
	"github.com/angelmondragon/freshlane/pkg/db/models"
	dbtypes "github.com/angelmondragon/freshlane/pkg/db/types"
	"github.com/angelmondragon/freshlane/pkg/enums"
	pkgerrors "github.com/angelmondragon/freshlane/pkg/errors"
)

// CommandKind names a side effect the service runs inside the transition.
type CommandKind string

const (
	CommandReserveStock CommandKind = "reserve_stock"
	CommandReleaseStock CommandKind = "release_stock"
	CommandSetItems     CommandKind = "set_items"
	CommandNotify       CommandKind = "notify"
)

// Command is one side effect of a transition.
type Command struct {
	Kind       CommandKind
	Lines      []inventory.Line
	ItemIDs    []uuid.UUID
	ItemStatus enums.OrderItemStatus
}

// Request is a transition asked for by an actor.
type Request struct {
	Target    enums.OrderStatus
	Note      string
	ActorID   uuid.UUID
	ActorRole enums.ActorRole
	Metadata  map[string]string
}

// Decision is the outcome of Decide: the order as it should be persisted,
// its audit row, and the commands to execute in the same transaction.
type Decision struct {
	Order    models.Order
	Previous enums.OrderStatus
	History  models.OrderStatusHistory
	Commands []Command
}

// Decide validates a transition and computes its effects without touching
// storage. items are the order's current lines.
func Decide(order models.Order, items []models.OrderItem, req Request, now time.Time) (Decision, error) {
	if !req.Target.IsValid() {
		return Decision{}, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown order status %q", req.Target)
	}
	if order.Archived {
		return Decision{}, pkgerrors.New(pkgerrors.CodeInvalidState, "order is archived")
	}
	if !order.Status.CanTransitionTo(req.Target) {
		return Decision{}, pkgerrors.Newf(pkgerrors.CodeInvalidTransition, "cannot move order from %s to %s", order.Status, req.Target).
			WithDetails(map[string]any{
				"from":    order.Status,
				"to":      req.Target,
				"allowed": order.Status.Successors(),
			})
	}

	now = now.UTC()
	previous := order.Status
	next := order
	next.Status = req.Target
	next.StampStatus(req.Target, now)
	next.UpdatedAt = now

	note := strings.TrimSpace(req.Note)
	role := req.ActorRole
	if role == "" {
		role = enums.ActorRoleSystem
	}

	var commands []Command
	switch req.Target {
	case enums.OrderStatusConfirmed:
		var (
			lines []inventory.Line
			ids   []uuid.UUID
		)
		for _, item := range items {
			if item.Status != enums.OrderItemStatusPending {
				continue
			}
			if need := item.Quantity - item.ReservedQty; need > 0 {
				lines = append(lines, inventory.Line{ProductID: item.ProductID, WarehouseID: item.WarehouseID, Quantity: need})
			}
			ids = append(ids, item.ID)
		}
		if len(lines) > 0 {
			commands = append(commands, Command{Kind: CommandReserveStock, Lines: lines})
		}
		if len(ids) > 0 {
			commands = append(commands, Command{Kind: CommandSetItems, ItemIDs: ids, ItemStatus: enums.OrderItemStatusConfirmed})
		}

	case enums.OrderStatusCancelled:
		var (
			lines []inventory.Line
			ids   []uuid.UUID
		)
		for _, item := range items {
			if item.Status.HasLeftWarehouse() {
				return Decision{}, pkgerrors.New(pkgerrors.CodeInvalidState, "order has items that already left the warehouse").
					WithDetails(map[string]any{"item_id": item.ID, "item_status": item.Status})
			}
			if !item.Status.CanTransitionTo(enums.OrderItemStatusCancelled) {
				continue
			}
			if item.ReservedQty > 0 {
				lines = append(lines, inventory.Line{ProductID: item.ProductID, WarehouseID: item.WarehouseID, Quantity: item.ReservedQty})
			}
			ids = append(ids, item.ID)
		}
		if len(lines) > 0 {
			commands = append(commands, Command{Kind: CommandReleaseStock, Lines: lines})
		}
		if len(ids) > 0 {
			commands = append(commands, Command{Kind: CommandSetItems, ItemIDs: ids, ItemStatus: enums.OrderItemStatusCancelled})
		}
		if req.ActorID != uuid.Nil {
			actor := req.ActorID
			next.CancelledBy = &actor
		}
		if note != "" {
			reason := note
			next.CancellationReason = &reason
		}

	case enums.OrderStatusPreparing:
		commands = appendCascade(commands, items, enums.OrderItemStatusConfirmed, enums.OrderItemStatusPreparing)
	case enums.OrderStatusReadyForPickup:
		commands = appendCascade(commands, items, enums.OrderItemStatusPreparing, enums.OrderItemStatusReady)
	case enums.OrderStatusRefunded:
		commands = appendCascade(commands, items, enums.OrderItemStatusDelivered, enums.OrderItemStatusRefunded)
	}
	commands = append(commands, Command{Kind: CommandNotify})

	history := models.OrderStatusHistory{
		ID:             uuid.New(),
		OrderID:        order.ID,
		PreviousStatus: previous,
		Status:         req.Target,
		ActorRole:      role,
		Metadata:       dbtypes.JSONMap{},
		CreatedAt:      now,
	}
	for k, v := range req.Metadata {
		history.Metadata[k] = v
	}
	if req.ActorID != uuid.Nil {
		actor := req.ActorID
		history.ActorID = &actor
	}
	if note != "" {
		history.Note = &note
	}

	return Decision{Order: next, Previous: previous, History: history, Commands: commands}, nil
}

// appendCascade moves every item sitting in from to to.
func appendCascade(commands []Command, items []models.OrderItem, from, to enums.OrderItemStatus) []Command {
	var ids []uuid.UUID
	for _, item := range items {
		if item.Status == from {
			ids = append(ids, item.ID)
		}
	}
	if len(ids) == 0 {
		return commands
	}
	return append(commands, Command{Kind: CommandSetItems, ItemIDs: ids, ItemStatus: to})
}

// DeliveryComplete reports whether every line is settled and at least one
// reached the buyer.
func DeliveryComplete(items []models.OrderItem) bool {
	delivered := false
	for _, item := range items {
		if !item.Status.IsSettled() {
			return false
		}
		if item.Status == enums.OrderItemStatusDelivered {
			delivered = true
		}
	}
	return delivered
}
