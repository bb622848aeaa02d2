package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/freshlane/pkg/logger"
)

const (
	recurringInvoicesName = "recurring-invoices"
	overdueInvoicesName   = "overdue-invoices"
	defaultInvoiceBatch   = 200
)

type recurringGenerator interface {
	GenerateDueRecurring(ctx context.Context, now time.Time, limit int) (int, error)
}

type overdueMarker interface {
	MarkOverdue(ctx context.Context, now time.Time, limit int) (int, error)
}

type invoiceScheduler interface {
	recurringGenerator
	overdueMarker
}

// InvoiceJobParams configure both invoice jobs. Invoices is normally the
// invoices.Service.
type InvoiceJobParams struct {
	Logger    *logger.Logger
	Invoices  invoiceScheduler
	BatchSize int
	Clock     func() time.Time
}

type invoiceJobBase struct {
	logg  *logger.Logger
	batch int
	now   func() time.Time
}

func newInvoiceJobBase(params InvoiceJobParams) (invoiceJobBase, error) {
	if params.Logger == nil {
		return invoiceJobBase{}, fmt.Errorf("logger required")
	}
	if params.Invoices == nil {
		return invoiceJobBase{}, fmt.Errorf("invoice service required")
	}
	base := invoiceJobBase{logg: params.Logger, batch: params.BatchSize, now: params.Clock}
	if base.batch <= 0 {
		base.batch = defaultInvoiceBatch
	}
	if base.now == nil {
		base.now = time.Now
	}
	return base, nil
}

type recurringInvoicesJob struct {
	invoiceJobBase
	svc recurringGenerator
}

// NewRecurringInvoicesJob generates the next child for recurring invoices
// whose next date has arrived.
func NewRecurringInvoicesJob(params InvoiceJobParams) (Job, error) {
	base, err := newInvoiceJobBase(params)
	if err != nil {
		return nil, err
	}
	return &recurringInvoicesJob{invoiceJobBase: base, svc: params.Invoices}, nil
}

func (j *recurringInvoicesJob) Name() string { return recurringInvoicesName }

func (j *recurringInvoicesJob) Run(ctx context.Context) error {
	created, err := j.svc.GenerateDueRecurring(ctx, j.now().UTC(), j.batch)
	if created > 0 {
		j.logg.Info(j.logg.WithField(ctx, "created", created), "recurring invoices generated")
	}
	return err
}

type overdueInvoicesJob struct {
	invoiceJobBase
	svc overdueMarker
}

// NewOverdueInvoicesJob flags unpaid invoices past their due date.
func NewOverdueInvoicesJob(params InvoiceJobParams) (Job, error) {
	base, err := newInvoiceJobBase(params)
	if err != nil {
		return nil, err
	}
	return &overdueInvoicesJob{invoiceJobBase: base, svc: params.Invoices}, nil
}

func (j *overdueInvoicesJob) Name() string { return overdueInvoicesName }

func (j *overdueInvoicesJob) Run(ctx context.Context) error {
	_, err := j.svc.MarkOverdue(ctx, j.now().UTC(), j.batch)
	return err
}
