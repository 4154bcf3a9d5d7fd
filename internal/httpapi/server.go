// Package httpapi is the HTTP façade over the credit platform: project and
// reading ingestion, credit runs, balance queries, and bill offsets.
package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/solarshare/solarshare/internal/creditrun"
	"github.com/solarshare/solarshare/internal/metrics"
	"github.com/solarshare/solarshare/pkg/engine"
	"github.com/solarshare/solarshare/pkg/ledger"
	"github.com/solarshare/solarshare/pkg/plant"
)

// ErrServerConfig is returned when the server is built without its dependencies.
var ErrServerConfig = errors.New("httpapi: invalid server configuration")

// Config carries the HTTP-facing knobs.
type Config struct {
	AllowedOrigins []string
}

// Dependencies are the collaborators the handlers delegate to.
type Dependencies struct {
	Plants   *plant.Service
	Credits  *ledger.Service
	Runner   *creditrun.Runner
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
}

// Server owns the gin router and its handlers.
type Server struct {
	cfg     Config
	plants  *plant.Service
	credits *ledger.Service
	runner  *creditrun.Runner
	metrics *metrics.Metrics
	gather  prometheus.Gatherer
	logger  *zap.Logger
}

// NewServer validates dependencies and builds a Server.
func NewServer(cfg Config, deps Dependencies) (*Server, error) {
	if deps.Plants == nil {
		return nil, fmt.Errorf("%w: plant service is required", ErrServerConfig)
	}
	if deps.Credits == nil {
		return nil, fmt.Errorf("%w: ledger service is required", ErrServerConfig)
	}
	if deps.Runner == nil {
		return nil, fmt.Errorf("%w: credit runner is required", ErrServerConfig)
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:     cfg,
		plants:  deps.Plants,
		credits: deps.Credits,
		runner:  deps.Runner,
		metrics: deps.Metrics,
		gather:  deps.Gatherer,
		logger:  logger,
	}, nil
}

// Router assembles the gin engine with middleware and routes.
func (server *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(server.requestLogger())
	if len(server.cfg.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins: server.cfg.AllowedOrigins,
			AllowMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowHeaders: []string{"Content-Type", "Origin", "Accept"},
			MaxAge:       12 * time.Hour,
		}))
	}

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if server.gather != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(server.gather, promhttp.HandlerOpts{})))
	}

	api := router.Group("/api")
	api.POST("/projects", server.handleRegisterProject)
	api.GET("/projects/:projectID", server.handleGetProject)
	api.POST("/projects/:projectID/allocations", server.handleCreateAllocation)
	api.GET("/projects/:projectID/allocations", server.handleListAllocations)
	api.PUT("/projects/:projectID/readings", server.handleUpsertReading)
	api.POST("/projects/:projectID/readings/validate", server.handleValidateReading)
	api.POST("/projects/:projectID/credit-runs", server.handleCreditRun)
	api.POST("/calculations", server.handleCalculation)
	api.GET("/users/:userID/credits", server.handleUserCredits)
	api.GET("/users/:userID/ledger", server.handleUserLedger)
	api.POST("/users/:userID/bill-offsets", server.handleBillOffset)

	return router
}

func (server *Server) requestLogger() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()
		server.logger.Info("http request",
			zap.String("method", ctx.Request.Method),
			zap.String("path", ctx.FullPath()),
			zap.Int("status", ctx.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

func errorResponse(code string, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}

// respondError maps domain errors onto HTTP statuses. Capacity anomalies
// are server-side faults: an allocation larger than its project must not
// exist, so a calculation hitting one is alertable.
func (server *Server) respondError(ctx *gin.Context, err error) {
	var insufficient ledger.InsufficientCreditsError
	if errors.As(err, &insufficient) {
		ctx.JSON(http.StatusConflict, gin.H{
			"error": gin.H{
				"code":            "insufficient_credits",
				"message":         insufficient.Error(),
				"available_cents": insufficient.AvailableCents.Int64(),
				"requested_cents": insufficient.RequestedCents.Int64(),
			},
		})
		return
	}

	switch {
	case errors.Is(err, plant.ErrProjectNotFound),
		errors.Is(err, plant.ErrReadingNotFound),
		errors.Is(err, ledger.ErrEntryNotFound):
		ctx.JSON(http.StatusNotFound, errorResponse("not_found", err.Error()))
	case errors.Is(err, plant.ErrProjectExists),
		errors.Is(err, plant.ErrAllocationExists),
		errors.Is(err, plant.ErrAllocationExceedsCapacity),
		errors.Is(err, plant.ErrReadingNotValidated),
		errors.Is(err, ledger.ErrDuplicateEntry),
		errors.Is(err, ledger.ErrEntryCancelled),
		errors.Is(err, ledger.ErrEntryConflict):
		ctx.JSON(http.StatusConflict, errorResponse("conflict", err.Error()))
	case errors.Is(err, engine.ErrCapacityExceeded):
		server.logger.Error("capacity anomaly", zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, errorResponse("capacity_anomaly", err.Error()))
	case errors.Is(err, engine.ErrInvalidParameters),
		errors.Is(err, engine.ErrInvalidRange),
		errors.Is(err, plant.ErrInvalidProject),
		errors.Is(err, plant.ErrInvalidAllocation),
		errors.Is(err, plant.ErrInvalidReading),
		errors.Is(err, plant.ErrInvalidPeriod),
		errors.Is(err, ledger.ErrInvalidUserID),
		errors.Is(err, ledger.ErrInvalidBillID),
		errors.Is(err, ledger.ErrInvalidRefID),
		errors.Is(err, ledger.ErrInvalidEntryType),
		errors.Is(err, ledger.ErrInvalidEntryInput),
		errors.Is(err, ledger.ErrInvalidAmountCents),
		errors.Is(err, ledger.ErrInvalidMetadataJSON):
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_request", err.Error()))
	default:
		server.logger.Error("request failed", zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, errorResponse("internal", "internal error"))
	}
}
