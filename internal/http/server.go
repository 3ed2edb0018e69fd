package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"expenseflow/internal/log"
	"expenseflow/internal/middleware/ratelimit"
	"expenseflow/internal/middleware/security"
	"expenseflow/internal/middleware/trace"
	"expenseflow/internal/services"
)

// Config tunes the server middleware. Zero values select defaults.
type Config struct {
	RateLimitPerMinute int
	TrustedProxies     []string
	Logger             *log.Logger
}

type Server struct {
	http.Server
	svc      *services.TransactionService
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	logger   *log.Logger
	events   *log.StructuredLogger
	handler  http.Handler

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
// svc may be unconfigured; requests then fail with a configuration error.
func NewServer(addr string, svc *services.TransactionService, cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Discard()
	}

	limits := ratelimit.DefaultConfig()
	if cfg.RateLimitPerMinute > 0 {
		limits.RequestsPerMinute = cfg.RateLimitPerMinute
	}

	s := &Server{
		svc:      svc,
		limiter:  ratelimit.NewLimiter(limits),
		detector: security.NewDetector(),
		logger:   logger.WithComponent(log.ComponentHTTP),
	}
	s.events = log.NewStructuredLogger(logger)
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, logger)

	for _, cidr := range cfg.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			s.logger.Warn("Ignoring trusted proxy", log.FieldError, err.Error())
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)

	var h http.Handler = mux
	h = s.limiter.Middleware(s.detector.ExtractClientIP, isPost, s.rejectRateLimited)(h)
	h = log.Middleware(logger)(h)
	h = security.NewHeadersMiddleware(security.APIHeadersConfig()).Middleware(h)
	h = s.flagSuspicious(h)
	h = s.recoverer(h)
	h = s.tracer.Middleware(h)
	h = withCORS(h)
	s.handler = h

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// HTTPHandler returns the full middleware chain, for adapters that do not
// listen on a socket.
func (s *Server) HTTPHandler() http.Handler { return s.handler }

// Shutdown stops the limiter cleanup and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// Close stops background work without serving; used when the server never
// listened.
func (s *Server) Close() error {
	s.limiter.Stop()
	return s.Server.Close()
}

func isPost(r *http.Request) bool { return r.Method == http.MethodPost }

func (s *Server) rejectRateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	TooManyRequestsError().Write(w)
}

func (s *Server) flagSuspicious(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.detector.DetectSuspiciousRequest(r) {
			s.logger.WithComponent(log.ComponentSecurity).WarnContext(r.Context(), "Suspicious request",
				log.FieldRequestID, trace.GetRequestID(r.Context()),
				log.FieldClientIP, s.detector.ExtractClientIP(r),
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				log.FieldUserAgent, r.Header.Get("User-Agent"))
		}
		next.ServeHTTP(w, r)
	})
}

// recoverer turns a panic into a generic 500. The panic value is logged,
// never written to the client.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				s.logger.ErrorContext(r.Context(), "Panic while handling request",
					log.FieldRequestID, trace.GetRequestID(r.Context()),
					"panic", v)
				InternalServerError().Write(w)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if !s.svc.Configured() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not configured"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
