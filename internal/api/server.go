// internal/api/server.go
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/bondcurve/internal/curve"
	"github.com/rovshanmuradov/bondcurve/internal/engine"
	"github.com/rovshanmuradov/bondcurve/internal/metrics"
	"github.com/rovshanmuradov/bondcurve/internal/storage"
)

// Engine is the part of engine.Engine served over HTTP.
type Engine interface {
	CreateCurve(ctx context.Context, req engine.CreateRequest) (*curve.Curve, error)
	Curve(ctx context.Context, mint solana.PublicKey) (*curve.Curve, error)
	Reserves(ctx context.Context, mint solana.PublicKey) (curve.Reserves, error)
	MigrationStatus(ctx context.Context, mint solana.PublicKey) (curve.MigrationStatus, error)
	SpotPrice(ctx context.Context, mint solana.PublicKey) (uint64, error)

	QuoteBuy(ctx context.Context, mint solana.PublicKey, amount uint64) (engine.Quote, error)
	QuoteSell(ctx context.Context, mint solana.PublicKey, amount uint64) (engine.Quote, error)
	QuoteTokensForValue(ctx context.Context, mint solana.PublicKey, value uint64) (uint64, error)

	Buy(ctx context.Context, req engine.BuyRequest) (engine.BuyResult, error)
	Sell(ctx context.Context, req engine.SellRequest) (engine.SellResult, error)
	Migrate(ctx context.Context, mint solana.PublicKey) (engine.MigrationRecord, error)

	Deposit(ctx context.Context, account solana.PublicKey, amount uint64) (uint64, error)
	Balance(ctx context.Context, account, mint solana.PublicKey) (engine.Balance, error)
}

var _ Engine = (*engine.Engine)(nil)

// Config captures the dependencies required to construct the server.
type Config struct {
	Engine  Engine
	History storage.History
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// Server exposes the engine as a JSON API.
type Server struct {
	engine  Engine
	history storage.History
	metrics *metrics.Metrics
	logger  *zap.Logger

	router http.Handler
}

func New(cfg Config) *Server {
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}
	if cfg.History == nil {
		cfg.History = storage.NewMemoryHistory()
	}
	s := &Server{
		engine:  cfg.Engine,
		history: cfg.History,
		metrics: cfg.Metrics,
		logger:  cfg.Logger.Named("api"),
	}
	s.router = s.buildRouter()
	return s
}

// Handler exposes the configured HTTP router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(s.requestLogger)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", s.metrics.Handler())

	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(s.instrument)

		v1.Post("/curves", s.createCurve)
		v1.Route("/curves/{mint}", func(c chi.Router) {
			c.Get("/", s.getCurve)
			c.Get("/status", s.getStatus)
			c.Get("/price", s.getPrice)
			c.Get("/quote/buy", s.quoteBuy)
			c.Get("/quote/sell", s.quoteSell)
			c.Get("/quote/tokens", s.quoteTokens)
			c.Post("/buy", s.buy)
			c.Post("/sell", s.sell)
			c.Post("/migrate", s.migrate)
			c.Get("/trades", s.listTrades)
			c.Get("/migration", s.getMigration)
		})
		v1.Route("/accounts/{account}", func(a chi.Router) {
			a.Post("/deposit", s.deposit)
			a.Get("/balance", s.balance)
		})
	})

	return r
}

// instrument counts requests by their route pattern, known only once chi
// has routed them.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		s.metrics.ObserveRequest(route, r.Method, ww.Status(), time.Since(start))
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Debug("Request served",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", chimw.GetReqID(r.Context())))
	})
}
