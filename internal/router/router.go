package router

import (
	"net/http"

	"storefront/internal/handler"
	"storefront/internal/metrics"
	"storefront/internal/middleware"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Handlers bundles the HTTP handlers the router mounts. Sandbox is nil unless
// the sandbox gateway is in use.
type Handlers struct {
	Product  *handler.ProductHandler
	Checkout *handler.CheckoutHandler
	Admin    *handler.AdminHandler
	Sandbox  *handler.SandboxHandler
}

// Options carries the cross-cutting dependencies of the router.
type Options struct {
	APIKey      string
	RateLimiter *middleware.RateLimiter
	Metrics     *metrics.Metrics
	Logger      zerolog.Logger
}

// New creates a new HTTP router with all routes and middleware configured.
func New(h Handlers, opts Options) http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.Metrics(opts.Metrics))

	// Health check endpoint (no authentication required)
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy"}`))
	}).Methods(http.MethodGet)
	r.Handle("/metrics", opts.Metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/products", h.Product.List).Methods(http.MethodGet)
	api.HandleFunc("/products/{id}", h.Product.GetByID).Methods(http.MethodGet)

	checkout := api.PathPrefix("/checkout").Subrouter()
	checkout.Use(opts.RateLimiter.Middleware)
	checkout.HandleFunc("/sessions", h.Checkout.Begin).Methods(http.MethodPost)
	checkout.HandleFunc("/sessions/{token}/complete", h.Checkout.Complete).Methods(http.MethodPost)

	if h.Sandbox != nil {
		api.HandleFunc("/sandbox/sessions/{token}/pay", h.Sandbox.Pay).Methods(http.MethodPost)
	}

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.APIKeyAuth(opts.APIKey, opts.Logger))
	admin.HandleFunc("/products", h.Admin.ListProducts).Methods(http.MethodGet)
	admin.HandleFunc("/products", h.Admin.CreateProduct).Methods(http.MethodPost)
	admin.HandleFunc("/products/{id}", h.Admin.UpdateProduct).Methods(http.MethodPut)
	admin.HandleFunc("/products/{id}", h.Admin.DeleteProduct).Methods(http.MethodDelete)
	admin.HandleFunc("/products/{id}/active", h.Admin.SetProductActive).Methods(http.MethodPut)
	admin.HandleFunc("/products/{id}/inventory", h.Admin.ChangeInventory).Methods(http.MethodPost)
	admin.HandleFunc("/orders", h.Admin.ListOrders).Methods(http.MethodGet)
	admin.HandleFunc("/orders/{id}", h.Admin.GetOrder).Methods(http.MethodGet)
	admin.HandleFunc("/orders/{id}/status", h.Admin.UpdateOrderStatus).Methods(http.MethodPut)
	admin.HandleFunc("/inventory/logs", h.Admin.ListInventoryLogs).Methods(http.MethodGet)
	admin.HandleFunc("/inventory/reconcile", h.Admin.Reconcile).Methods(http.MethodGet)
	admin.HandleFunc("/stats", h.Admin.Stats).Methods(http.MethodGet)

	// Apply middleware in order: Recovery -> Logging -> CORS -> router
	var handler http.Handler = r
	handler = middleware.CORS(handler)
	handler = middleware.Logging(opts.Logger)(handler)
	handler = middleware.Recovery(opts.Logger)(handler)

	return handler
}
