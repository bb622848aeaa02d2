package app

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/freshlane/pkg/config"
	"github.com/angelmondragon/freshlane/pkg/db/dbtest"
)

func TestBuildRequiresResources(t *testing.T) {
	_, err := Build(Params{})
	assert.Error(t, err)

	_, err = Build(Params{Config: &config.Config{}})
	assert.Error(t, err)
}

func TestBuildWiresEveryService(t *testing.T) {
	client, _ := dbtest.Client(t)
	cfg := &config.Config{
		Pricing: config.PricingConfig{
			FreeShippingThreshold: "500.00",
			PerKgRate:             "2.00",
			ShippingCap:           "50.00",
			DefaultTaxRate:        "0.10",
		},
		Invoicing: config.InvoicingConfig{DefaultTermsDays: 30},
		Notify:    config.NotifyConfig{QueueSize: 8, Workers: 1},
	}
	reg := prometheus.NewRegistry()

	services, err := Build(Params{Config: cfg, DB: client, Registerer: reg})
	require.NoError(t, err)
	t.Cleanup(func() { _ = services.Close(context.Background()) })

	assert.NotNil(t, services.Carts)
	assert.NotNil(t, services.Checkout)
	assert.NotNil(t, services.Orders)
	assert.NotNil(t, services.Tracker)
	assert.NotNil(t, services.Invoices)
	assert.NotNil(t, services.Inventory)
	assert.NotNil(t, services.Catalog)
	assert.NotNil(t, services.Outbox)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Empty(t, families, "counters stay unexported until first observation")

	require.NoError(t, services.Close(context.Background()))
	require.NoError(t, services.Close(context.Background()))
}
