// internal/api/server.go
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/Musing-io/musing-protocol/internal/utils/logger"
)

// AccountHeader carries the caller identity.
const AccountHeader = "X-Account"

type ctxKey int

const requestIDKey ctxKey = iota

// ServerConfig holds server configuration
type ServerConfig struct {
	Addr           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig(addr string) ServerConfig {
	return ServerConfig{
		Addr:           addr,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    60 * time.Second,
		RequestTimeout: 5 * time.Second,
	}
}

// Server exposes the bond engine over JSON/HTTP.
type Server struct {
	router   *mux.Router
	server   *http.Server
	handlers *Handlers
	config   ServerConfig
	logger   *logger.Logger
}

// NewServer wires routes for h. metrics may be nil.
func NewServer(config ServerConfig, h *Handlers, metrics http.Handler, log *zap.Logger) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		handlers: h,
		config:   config,
		logger:   logger.Wrap(log.Named("api")),
	}
	s.setupRoutes(metrics)
	s.server = &http.Server{
		Addr:         config.Addr,
		Handler:      s.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}
	return s
}

func (s *Server) setupRoutes(metrics http.Handler) {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.requestLoggingMiddleware)
	s.router.Use(s.timeoutMiddleware)

	if metrics != nil {
		s.router.Handle("/metrics", metrics).Methods(http.MethodGet)
	}

	s.router.HandleFunc("/health", s.handlers.Health).Methods(http.MethodGet)

	v1 := s.router.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/init", s.handlers.Init).Methods(http.MethodPost)

	v1.HandleFunc("/economies", s.handlers.CreateEconomy).Methods(http.MethodPost)
	v1.HandleFunc("/economies", s.handlers.ListEconomies).Methods(http.MethodGet)
	v1.HandleFunc("/economies/{token}", s.handlers.GetEconomy).Methods(http.MethodGet)
	v1.HandleFunc("/economies/{token}/price", s.handlers.Price).Methods(http.MethodGet)
	v1.HandleFunc("/economies/{token}/reserve", s.handlers.ReserveBalance).Methods(http.MethodGet)
	v1.HandleFunc("/economies/{token}/quote", s.handlers.Quote).Methods(http.MethodGet)
	v1.HandleFunc("/economies/{token}/buy", s.handlers.Buy).Methods(http.MethodPost)
	v1.HandleFunc("/economies/{token}/sell", s.handlers.Sell).Methods(http.MethodPost)
	v1.HandleFunc("/economies/{token}/trades", s.handlers.Trades).Methods(http.MethodGet)
	v1.HandleFunc("/economies/{token}/snapshots", s.handlers.Snapshots).Methods(http.MethodGet)
	v1.HandleFunc("/economies/{token}/balance/{account}", s.handlers.TokenBalance).Methods(http.MethodGet)

	v1.HandleFunc("/reserve/approve", s.handlers.Approve).Methods(http.MethodPost)
	v1.HandleFunc("/reserve/transfer", s.handlers.Transfer).Methods(http.MethodPost)
	v1.HandleFunc("/reserve/balance/{account}", s.handlers.ReserveAccountBalance).Methods(http.MethodGet)

	s.router.NotFoundHandler = http.HandlerFunc(s.handlers.NotFound)
	s.router.MethodNotAllowedHandler = http.HandlerFunc(s.handlers.MethodNotAllowed)
}

// ServeHTTP makes the server usable with httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()[:8]
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, requestID)))
	})
}

func (s *Server) requestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)

		s.logger.WithOperation(r.Method+" "+r.URL.Path).Debug("Request served",
			zap.String("request_id", requestID(r)),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", wrapper.statusCode),
			zap.Duration("duration", time.Since(start)),
			zap.String("account", r.Header.Get(AccountHeader)))
	})
}

func (s *Server) timeoutMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.config.RequestTimeout <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), s.config.RequestTimeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Serve accepts connections on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("HTTP server listening", zap.String("addr", ln.Addr().String()))
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAndServe listens on the configured address.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func requestID(r *http.Request) string {
	if id, ok := r.Context().Value(requestIDKey).(string); ok {
		return id
	}
	return "unknown"
}

// responseWrapper captures HTTP status codes for logging
type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWrapper) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
