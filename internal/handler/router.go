package handler

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/efreitasn/cogexchange/internal/service"
)

// Services bundles the services the router exposes.
type Services struct {
	Accounts *service.AccountService
	Trades   *service.TradeService
	Orders   *service.OrderService
	Alerts   *service.AlertService
	Market   *service.MarketService
	Admin    *service.AdminService
	Webhooks *service.WebhookService
}

// Options carries the non-service parts of the HTTP surface.
type Options struct {
	CORSOrigins []string
	Stream      http.Handler // websocket upgrade endpoint, optional
	Metrics     http.Handler // Prometheus scrape endpoint, optional
}

// NewRouter creates a chi router with all routes registered, request
// logging, panic recovery, Content-Type validation and CORS.
func NewRouter(svc Services, opts Options, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := chi.NewRouter()

	// Global middleware.
	r.Use(middleware.Recoverer)
	r.Use(requestLogging(logger.With(zap.String("component", "http"))))
	r.Use(contentTypeJSON)

	accountH := NewAccountHandler(svc.Accounts, svc.Orders, svc.Alerts, svc.Trades)
	orderH := NewOrderHandler(svc.Orders, svc.Trades)
	alertH := NewAlertHandler(svc.Alerts)
	marketH := NewMarketHandler(svc.Market)
	webhookH := NewWebhookHandler(svc.Webhooks)
	adminH := NewAdminHandler(svc.Admin)

	// Health check.
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Account routes.
	r.Post("/accounts", accountH.Register)
	r.Get("/accounts/{account_id}/balance", accountH.GetBalance)
	r.Get("/accounts/{account_id}/portfolio", accountH.GetPortfolio)
	r.Get("/accounts/{account_id}/orders", accountH.ListOrders)
	r.Get("/accounts/{account_id}/alerts", accountH.ListAlerts)
	r.Get("/accounts/{account_id}/fills", accountH.ListFills)
	r.Get("/leaderboard", accountH.Leaderboard)

	// Trading routes.
	r.Post("/trades", orderH.Trade)
	r.Post("/orders", orderH.PlaceOrder)
	r.Get("/orders/{order_id}", orderH.GetOrder)
	r.Delete("/orders/{order_id}", orderH.CancelOrder)

	// Alert routes.
	r.Post("/alerts", alertH.Create)
	r.Get("/alerts/{alert_id}", alertH.Get)
	r.Delete("/alerts/{alert_id}", alertH.Cancel)

	// Market routes.
	r.Get("/instruments", marketH.ListInstruments)
	r.Get("/instruments/{symbol}", marketH.GetInstrument)
	r.Get("/instruments/{symbol}/history", marketH.GetHistory)
	r.Get("/activity", marketH.GetActivity)
	r.Post("/activity", marketH.RecordActivity)

	// Webhook routes.
	r.Post("/webhooks", webhookH.Upsert)
	r.Get("/webhooks", webhookH.List)
	r.Delete("/webhooks/{webhook_id}", webhookH.Delete)

	// Admin routes.
	r.Route("/admin", func(r chi.Router) {
		r.Use(adminH.requireAdmin)
		r.Get("/tick-period", adminH.GetTickPeriod)
		r.Put("/tick-period", adminH.SetTickPeriod)
		r.Put("/instruments/{symbol}/price", adminH.SetPrice)
		r.Post("/reset", adminH.Reset)
	})

	if opts.Stream != nil {
		r.Method(http.MethodGet, "/ws", opts.Stream)
	}
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Admin-Token"},
	})
	return c.Handler(r)
}

// requestLogging returns middleware that logs each request's method, path,
// status code, and duration.
func requestLogging(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

// Hijack passes the websocket upgrade through to the underlying writer.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// contentTypeJSON is middleware that validates Content-Type for POST, PUT,
// and PATCH requests that carry a body. If the Content-Type header doesn't
// start with "application/json", it returns 400 Bad Request before the
// handler runs.
func contentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if (r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch) && r.ContentLength != 0 {
			ct := r.Header.Get("Content-Type")
			if ct == "" || !strings.HasPrefix(ct, "application/json") {
				WriteError(w, http.StatusBadRequest, "invalid_request",
					"Content-Type must be application/json")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
