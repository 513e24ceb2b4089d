package httpadapter

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/responder-dispatch-service/internal/domain"
)

const serviceName = "responder-dispatch-service"

// Dispatcher is the dispatch surface the HTTP API exposes.
type Dispatcher interface {
	Dispatch(ctx context.Context, req domain.IncidentRequest) (domain.DispatchRecord, error)
	Get(ctx context.Context, id string) (domain.DispatchRecord, error)
	Recent(ctx context.Context, limit int) ([]domain.DispatchRecord, error)
	Catalog() *domain.StationCatalog
	ProviderName() string
}

// Server exposes the dispatch API alongside health, readiness, and metrics
// endpoints.
type Server struct {
	httpServer *http.Server
	dispatcher Dispatcher
	version    string
	logger     *slog.Logger
}

// NewServer creates an HTTP server. Every route answers cross-origin
// requests, since the incident console calls the API from the browser.
func NewServer(addr, version string, dispatcher Dispatcher, ready sharedobs.ReadinessChecker, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      withCORS(mux),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		dispatcher: dispatcher,
		version:    version,
		logger:     logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /{$}", s.handleInfo)
	mux.HandleFunc("POST /calculate", s.handleCalculate)
	mux.HandleFunc("GET /stations", s.handleStations)
	mux.HandleFunc("GET /dispatches", s.handleListDispatches)
	mux.HandleFunc("GET /dispatches/{id}", s.handleGetDispatch)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
