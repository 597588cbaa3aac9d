// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging, panic recovery, metrics, compression,
// CORS, security headers, idempotency, and rate limiting.
//
// Design goals:
//   - Observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-library-backend/internal/config"
	"github.com/tbourn/go-library-backend/internal/http/handlers"
	"github.com/tbourn/go-library-backend/internal/http/middleware"
	"github.com/tbourn/go-library-backend/internal/notify"
	"github.com/tbourn/go-library-backend/internal/repo"
	"github.com/tbourn/go-library-backend/internal/services"
)

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine: observability (tracing, metrics), idempotency and rate limiting,
// compression, CORS and security headers, health and metrics endpoints, and
// the versioned public API.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: structured access logs
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Gzip compression
//  8. Idempotency validator (before rate limiter to allow bypass on replay)
//  9. Rate limiter (per member/IP, bypass on replay)
//  10. CORS and security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured access logging
	r.Use(middleware.Logger())

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Compress JSON responses
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// 8) Idempotency validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
		},
		func(ctx context.Context, memberID, scope, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, memberID, scope, key, now)
			if err != nil {
				// A miss is expected; a storage failure is not. Either way the
				// request proceeds as a first use, but the failure gets logged.
				if !errors.Is(err, repo.ErrNotFound) {
					log.Warn().Err(err).Str("scope", scope).Msg("idempotency lookup failed")
				}
				return false, nil
			}
			return rec != nil, nil
		},
	))

	// 9) Token-bucket rate limiter per member/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByMemberOrIP())
	r.Use(rl.Handler())

	// 10) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps
		// tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Member-ID", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist.
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Member-ID", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Dependency injection: services ← repo/db
	resvSvc := services.NewReservationService(db, &notify.StoreSink{DB: db})

	circSvc := services.NewCirculationService(db, resvSvc)
	circSvc.LoanPeriod = cfg.Lending.LoanPeriod
	circSvc.RenewalCap = cfg.Lending.RenewalCap

	loanSvc := services.NewLoanService(db)
	loanSvc.RenewalPeriod = cfg.Lending.RenewalPeriod

	xferSvc := services.NewTransferService(db)
	xferSvc.Timeout = cfg.Lending.TransferTimeout

	feeSvc := services.NewFeeService(db)
	feeSvc.DailyRate = cfg.Lending.DailyLateFee

	invSvc := services.NewCopyService(db)
	memSvc := services.NewMemberService(db)

	h := handlers.New(circSvc, loanSvc, resvSvc, xferSvc, invSvc, memSvc, feeSvc, db, cfg.IdempotencyTTL)

	// Public API
	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	api := groupWithPrefix(r, apiBase)
	{
		// Circulation
		api.POST("/checkouts", h.Checkout)
		api.POST("/returns", h.Return)
		api.POST("/loans/:id/renew", h.RenewLoan)

		// Inventory
		api.POST("/copies", h.CreateCopy)
		api.DELETE("/copies/:id", h.DeleteCopy)
		api.GET("/copies/lookup", h.LookupCopy)
		api.GET("/copies", h.ListAvailableCopies)

		// Catalog
		api.POST("/items", h.CreateItem)
		api.GET("/items/:id", h.GetItem)

		// Reservations
		api.POST("/reservations", h.CreateReservation)
		api.DELETE("/reservations/:id", h.CancelReservation)
		api.GET("/reservations", h.ListReservations)

		// Transfers
		api.POST("/transfers/:id/dispatch", h.DispatchTransfer)
		api.GET("/transfers", h.ListTransfers)

		// Membership
		api.POST("/members", h.RegisterMember)
		api.POST("/members/:id/approve", h.ApproveMember)
		api.POST("/members/:id/block", h.BlockMember)
		api.GET("/members/:id", h.GetMember)
		api.GET("/members/code/:code", h.GetMemberByCode)
		api.GET("/members/:id/loans", h.ListMemberLoans)
		api.GET("/members/:id/notifications", h.ListNotifications)
		api.DELETE("/notifications/:id", h.DeleteNotification)

		// Journal
		api.GET("/transactions", h.ListTransactions)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
