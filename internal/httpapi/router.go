package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const maxRequestBodySize = 1 << 20

// Metrics is the optional metrics collaborator: a request middleware and the scrape endpoint.
type Metrics interface {
	Middleware(next http.Handler) http.Handler
	Handler() http.Handler
}

type Options struct {
	Carts          CartService
	Orders         OrderService
	Auth           Authenticator
	Metrics        Metrics
	Log            *slog.Logger
	RequestTimeout time.Duration
}

func NewRouter(opts Options) http.Handler {
	carts := &cartHandler{carts: opts.Carts, log: opts.Log}
	orders := &orderHandler{orders: opts.Orders, log: opts.Log}

	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(opts.Log))
	r.Use(middleware.Recoverer)
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware)
	}
	r.Use(middleware.Timeout(timeout))
	r.Use(middleware.RequestSize(maxRequestBodySize))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(authenticate(opts.Auth))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", carts.getCart)
			r.Delete("/", carts.clear)
			r.Put("/items/{productID}", carts.setItem)
			r.Delete("/items/{productID}", carts.removeItem)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", orders.placeOrder)
			r.With(requireAdmin).Get("/", orders.listAllOrders)
			r.Get("/mine", orders.listMyOrders)
			r.Get("/{orderID}", orders.getOrder)
			r.With(requireAdmin).Patch("/{orderID}/status", orders.updateStatus)
			r.Post("/{orderID}/cancel", orders.cancelOrder)
		})
	})

	return otelhttp.NewHandler(r, "storefront",
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/health" && r.URL.Path != "/metrics"
		}),
	)
}
