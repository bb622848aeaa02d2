// Package app assembles the engine services shared by the api and cron-worker
// binaries.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/freshlane/internal/cart"
	"github.com/angelmondragon/freshlane/internal/catalog"
	"github.com/angelmondragon/freshlane/internal/checkout"
	"github.com/angelmondragon/freshlane/internal/inventory"
	"github.com/angelmondragon/freshlane/internal/invoices"
	"github.com/angelmondragon/freshlane/internal/notifications"
	"github.com/angelmondragon/freshlane/internal/orderitems"
	"github.com/angelmondragon/freshlane/internal/orders"
	"github.com/angelmondragon/freshlane/internal/pricing"
	"github.com/angelmondragon/freshlane/pkg/config"
	"github.com/angelmondragon/freshlane/pkg/db"
	"github.com/angelmondragon/freshlane/pkg/logger"
	"github.com/angelmondragon/freshlane/pkg/metrics"
	"github.com/angelmondragon/freshlane/pkg/outbox"
)

// Params are the process-level resources the services are built on.
type Params struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         *db.Client
	Registerer prometheus.Registerer
}

// Services is the assembled engine.
type Services struct {
	Catalog    *catalog.Repository
	Carts      cart.Service
	Checkout   checkout.Service
	Orders     orders.Service
	Tracker    *orderitems.Tracker
	Invoices   invoices.Service
	Inventory  inventory.Service
	Outbox     *outbox.Repository
	Dispatcher *notifications.Dispatcher
	Metrics    *metrics.EngineMetrics
}

// Build wires every service and starts the notification dispatcher. Callers
// must Close the result.
func Build(p Params) (*Services, error) {
	if p.Config == nil {
		return nil, errors.New("config required")
	}
	if p.DB == nil {
		return nil, errors.New("db client required")
	}
	logg := p.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	cfg := p.Config
	conn := p.DB.DB()
	engineMetrics := metrics.NewEngineMetrics(p.Registerer)

	outboxRepo := outbox.NewRepository(conn)
	sink, err := notifications.NewOutboxSink(p.DB, outbox.NewService(outboxRepo, logg))
	if err != nil {
		return nil, fmt.Errorf("notification sink: %w", err)
	}
	dispatcher, err := notifications.NewDispatcher(sink, notifications.Options{
		QueueSize: cfg.Notify.QueueSize,
		Workers:   cfg.Notify.Workers,
	}, logg, engineMetrics)
	if err != nil {
		return nil, fmt.Errorf("notification dispatcher: %w", err)
	}

	threshold, perKg, shippingCap, taxRate := cfg.Pricing.Decimals()
	engine := pricing.NewEngine(pricing.Rules{
		FreeShippingThreshold: threshold,
		PerKgRate:             perKg,
		ShippingCap:           shippingCap,
		DefaultTaxRate:        taxRate,
	})

	catalogRepo := catalog.NewRepository(conn)
	cartRepo := cart.NewRepository(conn)
	orderRepo := orders.NewRepository(conn)
	itemRepo := orderitems.NewRepository(conn)
	ledger := inventory.NewLedger(conn, engineMetrics)

	pricer, err := cart.NewPricer(engine, catalogRepo)
	if err != nil {
		return nil, fmt.Errorf("cart pricer: %w", err)
	}
	carts, err := cart.NewService(cart.ServiceParams{
		Repository:   cartRepo,
		Catalog:      catalogRepo,
		Pricer:       pricer,
		TxRunner:     p.DB,
		Logger:       logg,
		TTL:          cfg.Cart.TTL,
		AbandonAfter: cfg.Cart.AbandonAfter,
	})
	if err != nil {
		return nil, fmt.Errorf("cart service: %w", err)
	}
	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Carts:    cartRepo,
		Pricer:   pricer,
		Orders:   orderRepo,
		Items:    itemRepo,
		Ledger:   ledger,
		TxRunner: p.DB,
		Notifier: dispatcher,
		Logger:   logg,
	})
	if err != nil {
		return nil, fmt.Errorf("checkout service: %w", err)
	}
	orderService, err := orders.NewService(orders.ServiceParams{
		Orders:   orderRepo,
		Items:    itemRepo,
		Ledger:   ledger,
		TxRunner: p.DB,
		Notifier: dispatcher,
		Logger:   logg,
		Metrics:  engineMetrics,
	})
	if err != nil {
		return nil, fmt.Errorf("order service: %w", err)
	}
	tracker, err := orderitems.NewTracker(orderitems.TrackerParams{
		Repository: itemRepo,
		Ledger:     ledger,
		Catalog:    catalogRepo,
		Pricing:    engine,
		TxRunner:   p.DB,
		Notifier:   dispatcher,
		Logger:     logg,
	})
	if err != nil {
		return nil, fmt.Errorf("order item tracker: %w", err)
	}
	invoiceService, err := invoices.NewService(invoices.ServiceParams{
		Repository:    invoices.NewRepository(conn),
		Orders:        orderRepo,
		Items:         itemRepo,
		TxRunner:      p.DB,
		Notifier:      dispatcher,
		Logger:        logg,
		Metrics:       engineMetrics,
		DefaultTerms:  cfg.Invoicing.DefaultTermsDays,
		DueSoonWindow: cfg.Invoicing.DueSoonWindow,
	})
	if err != nil {
		return nil, fmt.Errorf("invoice service: %w", err)
	}
	inventoryService, err := inventory.NewService(ledger, p.DB, logg)
	if err != nil {
		return nil, fmt.Errorf("inventory service: %w", err)
	}

	dispatcher.Start()
	return &Services{
		Catalog:    catalogRepo,
		Carts:      carts,
		Checkout:   checkoutService,
		Orders:     orderService,
		Tracker:    tracker,
		Invoices:   invoiceService,
		Inventory:  inventoryService,
		Outbox:     outboxRepo,
		Dispatcher: dispatcher,
		Metrics:    engineMetrics,
	}, nil
}

// Close drains queued notifications into the outbox.
func (s *Services) Close(ctx context.Context) error {
	if s == nil || s.Dispatcher == nil {
		return nil
	}
	return s.Dispatcher.Close(ctx)
}
