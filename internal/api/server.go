package api

import (
	"context"
	"net/http"
	"time"

	"pricecollector/config"
	"pricecollector/internal/metrics"
	"pricecollector/pkg/price"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// PriceReader is the read side of the store.
type PriceReader interface {
	QueryDailyPrices(ctx context.Context, asset price.Asset, from, to price.Date) ([]price.DailyPrice, error)
	LatestInstantPrice(ctx context.Context, asset price.Asset) (price.Observation, bool, error)
}

// CacheReader returns the raw cached snapshot document.
type CacheReader interface {
	Read() ([]byte, error)
}

// Server serves stored prices read-only.
type Server struct {
	store  PriceReader
	cache  CacheReader
	hub    *Hub
	logger *zap.Logger
	now    func() time.Time

	globalLimit *RateLimiter
	storeLimit  *RateLimiter
	cacheLimit  *RateLimiter
}

func NewServer(store PriceReader, cache CacheReader, hub *Hub, cfg config.ServerConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if hub == nil {
		hub = NewHub(logger)
	}
	return &Server{
		store:       store,
		cache:       cache,
		hub:         hub,
		logger:      logger,
		now:         time.Now,
		globalLimit: NewRateLimiter("global", cfg.GlobalLimit, "Too many requests, please try again later.", logger),
		storeLimit:  NewRateLimiter("store", cfg.StoreLimit, "Too many database requests, please try again later.", logger),
		cacheLimit:  NewRateLimiter("cache", cfg.CacheLimit, "Too many cache requests, please try again later.", logger),
	}
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(metrics.Middleware, corsMiddleware)
	r.NotFoundHandler = http.HandlerFunc(handleNotFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(handleMethodNotAllowed)

	// unlimited
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	limited := r.NewRoute().Subrouter()
	limited.Use(s.globalLimit.Handler)

	limited.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	limited.HandleFunc("/ws/current", s.hub.ServeWS).Methods(http.MethodGet)
	limited.Handle("/api/daily/{symbol}", s.storeLimit.Handler(http.HandlerFunc(s.handleDaily))).Methods(http.MethodGet)
	limited.Handle("/api/current/{symbol}", s.storeLimit.Handler(http.HandlerFunc(s.handleCurrent))).Methods(http.MethodGet)
	limited.Handle("/api/current", s.storeLimit.Handler(http.HandlerFunc(s.handleCurrentAll))).Methods(http.MethodGet)
	limited.Handle("/api/current-cache", s.cacheLimit.Handler(http.HandlerFunc(s.handleCurrentCache))).Methods(http.MethodGet)

	return r
}

// StartCleanup evicts idle per-client limiters every interval until ctx ends.
func (s *Server) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				s.globalLimit.Cleanup(now)
				s.storeLimit.Cleanup(now)
				s.cacheLimit.Cleanup(now)
			}
		}
	}()
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		next.ServeHTTP(w, r)
	})
}
