// Package httpapi is the HTTP and websocket boundary of the lending coordinator.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/Freeeeeet/campus_lending/internal/auth"
	"github.com/Freeeeeet/campus_lending/internal/model"
	"github.com/Freeeeeet/campus_lending/internal/realtime"
	"github.com/Freeeeeet/campus_lending/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Pinger reports whether the backing store answers
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	lending  *service.BorrowService
	hub      *realtime.Hub
	tokens   *auth.TokenManager
	store    Pinger
	gatherer prometheus.Gatherer
	logger   *zap.Logger
}

func NewServer(
	lending *service.BorrowService,
	hub *realtime.Hub,
	tokens *auth.TokenManager,
	store Pinger,
	gatherer prometheus.Gatherer,
	logger *zap.Logger,
) *Server {
	return &Server{
		lending:  lending,
		hub:      hub,
		tokens:   tokens,
		store:    store,
		gatherer: gatherer,
		logger:   logger,
	}
}

// Routes returns the root handler
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	// Borrower kiosk
	mux.HandleFunc("POST /api/borrow/request", s.submitRequest)
	mux.HandleFunc("PUT /api/borrow/arrive/{id}", s.markArrived)
	mux.HandleFunc("GET /api/borrow/status/{id}", s.getTransaction)

	// Admin desk
	mux.Handle("GET /api/borrow/pending-requests", s.requireAdmin(s.listPending))
	mux.Handle("PUT /api/borrow/accept/{id}", s.requireAdmin(s.acceptRequest))
	mux.Handle("PUT /api/borrow/reject/{id}", s.requireAdmin(s.rejectRequest))
	mux.Handle("GET /api/borrow/scan/{barcode}", s.requireAdmin(s.scanBarcode))
	mux.Handle("PUT /api/borrow/complete/{id}", s.requireAdmin(s.completeWithScan))
	mux.Handle("POST /api/borrow/direct-lending", s.requireAdmin(s.directLending))
	mux.Handle("PUT /api/borrow/return/{id}", s.requireAdmin(s.returnItem))
	mux.Handle("GET /api/admin/history-log", s.requireAdmin(s.historyLog))
	mux.Handle("GET /api/admin/current-loans", s.requireAdmin(s.currentLoans))
	mux.Handle("GET /api/admin/top-lending-items", s.requireAdmin(s.topLendingItems))

	mux.HandleFunc("GET /ws", s.serveWS)
	mux.HandleFunc("GET /healthz", s.healthz)
	if s.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	return s.logging(mux)
}

// serveWS upgrades the connection. A valid admin token unlocks the admin room.
func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	canJoinAdmin := false
	if raw, err := auth.FromRequest(r); err == nil {
		if _, err := s.tokens.ParseAdmin(raw); err == nil {
			canJoinAdmin = true
		}
	}

	s.hub.ServeWS(w, r, canJoinAdmin)
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn("Health check failed", zap.Error(err))
		writeFail(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}

	writeOK(w, http.StatusOK, map[string]int{
		"admin_connections": s.hub.Registry().Count(model.AdminRoom),
	}, "ok")
}
