package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/freshlane/api/controllers"
	cartcontrollers "github.com/angelmondragon/freshlane/api/controllers/cart"
	inventorycontrollers "github.com/angelmondragon/freshlane/api/controllers/inventory"
	invoicecontrollers "github.com/angelmondragon/freshlane/api/controllers/invoices"
	ordercontrollers "github.com/angelmondragon/freshlane/api/controllers/orders"
	"github.com/angelmondragon/freshlane/api/middleware"
	"github.com/angelmondragon/freshlane/internal/cart"
	"github.com/angelmondragon/freshlane/internal/checkout"
	"github.com/angelmondragon/freshlane/internal/inventory"
	"github.com/angelmondragon/freshlane/internal/invoices"
	"github.com/angelmondragon/freshlane/internal/orders"
	"github.com/angelmondragon/freshlane/pkg/config"
	"github.com/angelmondragon/freshlane/pkg/enums"
	"github.com/angelmondragon/freshlane/pkg/logger"
	"github.com/angelmondragon/freshlane/pkg/metrics"
	pkgredis "github.com/angelmondragon/freshlane/pkg/redis"
)

// Dependencies are the services the API mounts. Nil services answer with an
// internal error instead of panicking.
type Dependencies struct {
	DB          controllers.Pinger
	Redis       controllers.Pinger
	Idempotency pkgredis.IdempotencyStore

	Carts     cart.Service
	Checkout  checkout.Service
	Orders    orders.Service
	Items     ordercontrollers.ItemTracker
	Invoices  invoices.Service
	Inventory inventory.Service
	Products  inventorycontrollers.ProductLookup

	Gatherer    prometheus.Gatherer
	HTTPMetrics *metrics.HTTPMetrics
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, deps.HTTPMetrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":    deps.DB,
			"redis": deps.Redis,
		}))
	})
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	idempotent := middleware.Idempotency(deps.Idempotency, logg)
	buyers := middleware.RequireRoles(logg, enums.ActorRoleBuyer, enums.ActorRoleAdmin)
	sellers := middleware.RequireRoles(logg, enums.ActorRoleVendor, enums.ActorRoleAdmin)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/carts", func(r chi.Router) {
			r.Use(buyers)
			r.With(idempotent).Post("/", cartcontrollers.Create(deps.Carts, logg))
			r.Get("/{cartId}", cartcontrollers.Fetch(deps.Carts, logg))
			r.With(idempotent).Post("/{cartId}/items", cartcontrollers.AddItem(deps.Carts, logg))
			r.Patch("/{cartId}/items/{itemId}", cartcontrollers.UpdateItem(deps.Carts, logg))
			r.Delete("/{cartId}/items/{itemId}", cartcontrollers.RemoveItem(deps.Carts, logg))
			r.Delete("/{cartId}/items", cartcontrollers.Clear(deps.Carts, logg))
			r.Put("/{cartId}/fulfillment", cartcontrollers.SetFulfillment(deps.Carts, logg))
			r.With(idempotent).Post("/{cartId}/coupons", cartcontrollers.ApplyCoupon(deps.Carts, logg))
			r.Delete("/{cartId}/coupons/{code}", cartcontrollers.RemoveCoupon(deps.Carts, logg))
			r.With(idempotent).Post("/{cartId}/checkout", cartcontrollers.Checkout(deps.Checkout, logg))
		})

		items := ordercontrollers.ItemRoutes{Orders: deps.Orders, Tracker: deps.Items, Logger: logg}
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", ordercontrollers.List(deps.Orders, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(deps.Orders, logg))
			r.Get("/{orderId}/history", ordercontrollers.History(deps.Orders, logg))
			r.With(idempotent).Post("/{orderId}/transitions", ordercontrollers.Transition(deps.Orders, logg))

			r.Group(func(r chi.Router) {
				r.Use(sellers)
				r.Post("/{orderId}/backorders/recheck", items.RecheckBackorders())
				r.With(idempotent).Post("/{orderId}/items/{itemId}/substitutions", items.Substitute())
				r.With(idempotent).Post("/{orderId}/items/{itemId}/pick", items.Pick())
				r.With(idempotent).Post("/{orderId}/items/{itemId}/pack", items.Pack())
				r.With(idempotent).Post("/{orderId}/items/{itemId}/ship", items.Ship())
				r.With(idempotent).Post("/{orderId}/items/{itemId}/deliver", items.Deliver())
				r.With(idempotent).Post("/{orderId}/items/{itemId}/returns", items.Return())
			})
		})

		invoiceRoutes := invoicecontrollers.Handlers{Invoices: deps.Invoices, Orders: deps.Orders, Logger: logg}
		r.Route("/invoices", func(r chi.Router) {
			r.With(sellers, idempotent).Post("/", invoiceRoutes.Create())
			r.Get("/{invoiceId}", invoiceRoutes.Detail())
			r.Get("/{invoiceId}/summary", invoiceRoutes.Summary())
			r.With(sellers, idempotent).Post("/{invoiceId}/payments", invoiceRoutes.RecordPayment())
			r.With(sellers, idempotent).Post("/{invoiceId}/recurring", invoiceRoutes.GenerateRecurring())
			r.With(sellers).Post("/{invoiceId}/send", invoiceRoutes.Send())
			r.Post("/{invoiceId}/view", invoiceRoutes.View())
		})

		inventoryRoutes := inventorycontrollers.Handlers{Inventory: deps.Inventory, Products: deps.Products, Logger: logg}
		r.Route("/inventory", func(r chi.Router) {
			r.Use(sellers)
			r.With(idempotent).Post("/adjustments", inventoryRoutes.Adjust())
			r.Get("/warehouses/{warehouseId}/low-stock", inventoryRoutes.LowStock())
			r.Get("/{productId}/{warehouseId}", inventoryRoutes.Get())
		})
	})

	return r
}
