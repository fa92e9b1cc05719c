// Package api provides the HTTP REST API server for FRJAR.ai.
//
// It exposes endpoints for the product catalog, today-price estimates,
// bulk market verification, forecasts, supplier search, the assistant
// chat, and a WebSocket event stream.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/frjar/frjarai/internal/app"
	"github.com/frjar/frjarai/internal/catalog"
	"github.com/frjar/frjarai/internal/config"
	"github.com/frjar/frjarai/internal/export"
	"github.com/frjar/frjarai/internal/market"
	"github.com/frjar/frjarai/internal/supplier"
	"github.com/frjar/frjarai/pkg/models"
	"github.com/frjar/frjarai/pkg/utils"
)

const (
	maxBodyBytes   = 1 << 20
	maxVerifyItems = 500
	xlsxType       = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Server is the HTTP API server.
type Server struct {
	router  chi.Router
	cfg     *config.Config
	app     *app.App
	wsHub   *WSHub
	logger  *slog.Logger
	version string
}

// NewServer creates a configured API server over the wired application.
func NewServer(a *app.App, version string) *Server {
	logger := a.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if version == "" {
		version = "dev"
	}
	s := &Server{
		cfg:     a.Config,
		app:     a,
		wsHub:   NewWSHub(logger),
		logger:  logger,
		version: version,
	}
	s.router = s.buildRouter()
	return s
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *WSHub {
	return s.wsHub
}

// ListenAndServe starts the HTTP server and shuts it down gracefully when
// ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go s.wsHub.Run(ctx)
	if s.app.Cache != nil {
		s.app.Cache.StartJanitor(ctx, 10*time.Minute)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api server listening", "addr", addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/ws", s.handleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(10 * time.Minute))

			r.Get("/catalog", s.handleCatalog)
			r.Post("/estimate", s.handleEstimate)
			r.Post("/verify", s.handleVerify)
			r.Post("/verify/export", s.handleVerifyExport)
			r.Post("/forecast", s.handleForecast)
			r.Get("/suppliers/search", s.handleSupplierSearch)
			r.Post("/chat", s.handleChat)

			r.Get("/config", s.handleGetConfig)
			r.Get("/config/keys", s.handleGetConfigKeys)
		})
	})

	return r
}

// ============================================================
// Request / Response types
// ============================================================

// APIResponse is the standard JSON envelope.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// EstimateRequest is the body for POST /api/v1/estimate. Inline stats
// take precedence over a catalog lookup by product name.
type EstimateRequest struct {
	Product string               `json:"product"`
	City    string               `json:"city,omitempty"`
	Stats   *models.ProductStats `json:"stats,omitempty"`
}

// VerifyRequest is the body for POST /api/v1/verify and /verify/export.
// Export accepts already verified rows to skip the chain entirely.
type VerifyRequest struct {
	Items []models.VerifyItem `json:"items"`
	Rows  []models.MarketRow  `json:"rows,omitempty"`
}

// VerifyResponse is returned by POST /api/v1/verify.
type VerifyResponse struct {
	Requested int                `json:"requested"`
	Verified  int                `json:"verified"`
	Rows      []models.MarketRow `json:"rows"`
}

// ForecastRequest is the body for POST /api/v1/forecast.
type ForecastRequest struct {
	Product   string  `json:"product"`
	BasePrice float64 `json:"base_price,omitempty"`
}

// ChatRequest is the body for POST /api/v1/chat.
type ChatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// ChatResponse is returned by POST /api/v1/chat.
type ChatResponse struct {
	SessionID string `json:"session_id"`
	Reply     string `json:"reply"`
}

// SupplierSearchResponse is returned by GET /api/v1/suppliers/search.
type SupplierSearchResponse struct {
	Query   string                `json:"query"`
	City    string                `json:"city,omitempty"`
	Results []supplier.Suggestion `json:"results"`
}

// ============================================================
// Handlers
// ============================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]any{
			"status":           "ok",
			"version":          s.version,
			"time_ast":         utils.FormatDateTimeAST(utils.NowAST()),
			"providers":        s.app.Chain.Names(),
			"catalog_products": s.app.Catalog.Len(),
			"ws_clients":       s.wsHub.ClientCount(),
		},
	})
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: map[string]any{
			"query":   q,
			"results": s.app.Catalog.Search(q),
		}})
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: map[string]any{
		"materials": s.app.Catalog.Materials(),
		"products":  s.app.Catalog.Len(),
		"cities":    models.Cities,
	}})
}

func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	var req EstimateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var est models.PriceEstimate
	switch {
	case req.Stats != nil:
		stats := *req.Stats
		if stats.Name == "" {
			stats.Name = strings.TrimSpace(req.Product)
		}
		if stats.Name == "" {
			writeError(w, http.StatusBadRequest, "stats.name or product is required")
			return
		}
		est = s.app.Estimator.EstimateTodayPrice(r.Context(), stats, req.City)
	case strings.TrimSpace(req.Product) != "":
		var err error
		est, err = s.app.EstimateProduct(r.Context(), req.Product, req.City)
		if errors.Is(err, catalog.ErrNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("product %q not in catalog", req.Product))
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	default:
		writeError(w, http.StatusBadRequest, "product is required")
		return
	}

	s.wsHub.Broadcast(WSMessage{
		Type: EventEstimateComplete,
		Data: map[string]any{
			"product":      est.Product,
			"city":         est.City,
			"today_price":  est.TodayPrice,
			"model_source": est.ModelSource,
		},
	})
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: est})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rows, ok := s.verify(w, r, req.Items)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: VerifyResponse{
		Requested: len(req.Items),
		Verified:  len(rows),
		Rows:      rows,
	}})
}

func (s *Server) handleVerifyExport(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rows := req.Rows
	if len(rows) == 0 {
		var ok bool
		if rows, ok = s.verify(w, r, req.Items); !ok {
			return
		}
	}

	var buf bytes.Buffer
	if err := export.WriteMarketReport(&buf, rows); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeXLSX(w, "market_report.xlsx", buf.Bytes())
}

// verify runs the bulk verifier, streaming progress to WebSocket clients.
func (s *Server) verify(w http.ResponseWriter, r *http.Request, items []models.VerifyItem) ([]models.MarketRow, bool) {
	if len(items) == 0 {
		writeError(w, http.StatusBadRequest, "items are required")
		return nil, false
	}
	if len(items) > maxVerifyItems {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("at most %d items per request", maxVerifyItems))
		return nil, false
	}

	reqID := middleware.GetReqID(r.Context())
	rows, err := s.app.Verifier.VerifyAll(r.Context(), items, func(done, total int) {
		s.wsHub.Broadcast(WSMessage{
			Type: EventVerifyProgress,
			Data: map[string]any{"request_id": reqID, "done": done, "total": total},
		})
	})
	if err != nil {
		writeError(w, http.StatusGatewayTimeout, "verification interrupted: "+err.Error())
		return nil, false
	}
	return rows, true
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	var req ForecastRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Product = strings.TrimSpace(req.Product)
	if req.Product == "" {
		writeError(w, http.StatusBadRequest, "product is required")
		return
	}
	if req.BasePrice <= 0 {
		if e, err := s.app.Catalog.Find(req.Product); err == nil {
			req.BasePrice = e.Product.Average
		}
	}

	fc, err := s.app.Forecaster.Forecast(r.Context(), req.Product, req.BasePrice)
	if errors.Is(err, market.ErrNoForecast) {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusGatewayTimeout, err.Error())
		return
	}

	if strings.EqualFold(r.URL.Query().Get("format"), "xlsx") {
		var buf bytes.Buffer
		if err := export.WriteForecast(&buf, fc); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeXLSX(w, "forecast.xlsx", buf.Bytes())
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: fc})
}

func (s *Server) handleSupplierSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	city := strings.TrimSpace(r.URL.Query().Get("city"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}

	hits, err := s.app.Suppliers.Search(r.Context(), q)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: SupplierSearchResponse{
		Query:   q,
		City:    city,
		Results: supplier.FilterByCity(hits, city),
	}})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	if req.SessionID == "" {
		req.SessionID = middleware.GetReqID(r.Context())
	}

	reply, err := s.app.Assistant.Ask(r.Context(), req.SessionID, req.Message)
	if err != nil {
		writeError(w, http.StatusGatewayTimeout, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: ChatResponse{
		SessionID: req.SessionID,
		Reply:     reply,
	}})
}

// ============================================================
// Helpers
// ============================================================

// requestLogger logs one structured line per request.
func requestLogger(l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			l.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"elapsed", time.Since(start).Round(time.Millisecond),
				"request_id", middleware.GetReqID(r.Context()))
		})
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Warn("failed to write JSON response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}

func writeXLSX(w http.ResponseWriter, filename string, data []byte) {
	w.Header().Set("Content-Type", xlsxType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
