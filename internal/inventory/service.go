package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/freshlane/pkg/db"
	"github.com/angelmondragon/freshlane/pkg/db/models"
	pkgerrors "github.com/angelmondragon/freshlane/pkg/errors"
	"github.com/angelmondragon/freshlane/pkg/logger"
)

// Service exposes ledger operations that run in their own transaction.
type Service interface {
	Get(ctx context.Context, productID, warehouseID uuid.UUID) (*models.InventoryRecord, error)
	Adjust(ctx context.Context, input AdjustInput) (*models.InventoryRecord, error)
	Reserve(ctx context.Context, lines []Line, orderID *uuid.UUID) error
	Release(ctx context.Context, lines []Line, orderID *uuid.UUID) error
	LowStock(ctx context.Context, warehouseID uuid.UUID) ([]models.InventoryRecord, error)
}

// AdjustInput is a physical stock change such as a delivery or a write-off.
type AdjustInput struct {
	ProductID   uuid.UUID
	WarehouseID uuid.UUID
	Delta       int
	Reason      string
}

type service struct {
	ledger *Ledger
	tx     db.TxRunner
	logg   *logger.Logger
}

// NewService builds the inventory service with the required dependencies.
func NewService(ledger *Ledger, tx db.TxRunner, logg *logger.Logger) (Service, error) {
	if ledger == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{ledger: ledger, tx: tx, logg: logg}, nil
}

func (s *service) Get(ctx context.Context, productID, warehouseID uuid.UUID) (*models.InventoryRecord, error) {
	if productID == uuid.Nil || warehouseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product and warehouse ids required")
	}
	return s.ledger.Get(ctx, productID, warehouseID)
}

func (s *service) Adjust(ctx context.Context, input AdjustInput) (*models.InventoryRecord, error) {
	if input.ProductID == uuid.Nil || input.WarehouseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product and warehouse ids required")
	}
	var record *models.InventoryRecord
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		updated, err := s.ledger.WithTx(tx).AdjustOnHand(ctx, input.ProductID, input.WarehouseID, input.Delta, input.Reason)
		if err != nil {
			return err
		}
		record = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	if record.NeedsReorder() {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"product_id":   record.ProductID.String(),
			"warehouse_id": record.WarehouseID.String(),
			"available":    record.QuantityAvailable,
		})
		s.logg.Warn(logCtx, "inventory at or below reorder point")
	}
	return record, nil
}

func (s *service) Reserve(ctx context.Context, lines []Line, orderID *uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.ledger.WithTx(tx).ReserveLines(ctx, lines, orderID)
	})
}

func (s *service) Release(ctx context.Context, lines []Line, orderID *uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.ledger.WithTx(tx).ReleaseLines(ctx, lines, orderID)
	})
}

func (s *service) LowStock(ctx context.Context, warehouseID uuid.UUID) ([]models.InventoryRecord, error) {
	if warehouseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "warehouse id required")
	}
	return s.ledger.LowStock(ctx, warehouseID)
}
