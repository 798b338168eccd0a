package api

import (
	"encoding/json"
	"time"

	"github.com/labstack/echo/v4"

	"ChainPilot/internal/domain/models"
	domrepo "ChainPilot/internal/domain/repository"
	icache "ChainPilot/internal/service/cache"
	"ChainPilot/internal/services/execution"
	"ChainPilot/internal/services/risk"
	"ChainPilot/internal/usecase"
	xhttp "ChainPilot/pkg/http"
	xlogger "ChainPilot/pkg/logger"
)

// OpsHandler serves the operator API: pipeline status, breaker state,
// executor statistics, recent orders, and the pause/resume switch.
type OpsHandler struct {
	logger    *xlogger.Logger
	bank      *risk.Bank
	exec      *execution.Executor
	collector *usecase.SignalCollector
	storage   domrepo.Storage
	cache     icache.BytesCache
}

func NewOpsHandler(logger *xlogger.Logger, bank *risk.Bank, exec *execution.Executor, collector *usecase.SignalCollector, storage domrepo.Storage) *OpsHandler {
	return &OpsHandler{
		logger:    logger,
		bank:      bank,
		exec:      exec,
		collector: collector,
		storage:   storage,
	}
}

// SetCache injects a response cache for the orders listing.
func (h *OpsHandler) SetCache(c icache.BytesCache) { h.cache = c }

func (h *OpsHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
	g := e.Group("/api/v1")
	g.GET("/status", h.Status)
	g.GET("/breakers", h.Breakers)
	g.GET("/stats", h.Stats)
	g.GET("/orders", h.Orders)
	g.POST("/pause", h.Pause)
	g.POST("/resume", h.Resume)
}

func (h *OpsHandler) Health(c echo.Context) error {
	status := "ok"
	if h.storage != nil {
		if err := h.storage.Health(c.Request().Context()); err != nil {
			status = "degraded"
		}
	}
	return xhttp.SuccessResponse(c, map[string]string{"status": status})
}

func (h *OpsHandler) Status(c echo.Context) error {
	snap := h.bank.Snapshot()
	stats := h.exec.Stats()
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"stream_connected": h.collector.IsConnected(),
		"can_trade":        snap.CanTrade,
		"paused":           snap.Paused,
		"pause_reason":     snap.PauseReason,
		"queue_depth":      stats.QueueDepth,
		"in_flight":        stats.InFlight,
	})
}

func (h *OpsHandler) Breakers(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.bank.Snapshot())
}

func (h *OpsHandler) Stats(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.exec.Stats())
}

func (h *OpsHandler) Orders(c echo.Context) error {
	req := &models.OrdersRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if h.storage == nil {
		return xhttp.SuccessResponse(c, []*models.Order{})
	}

	now := time.Now()
	from := xhttp.ParseTimeDefault(c.QueryParam("from"), now.Add(-24*time.Hour))
	to := xhttp.ParseTimeDefault(c.QueryParam("to"), now)

	cacheKey := "orders:" + req.Status + ":" + c.QueryParam("from") + ":" + c.QueryParam("to")
	if h.cache != nil {
		if b, ok, err := h.cache.GetBytes(cacheKey); err == nil && ok {
			var cached []*models.Order
			if json.Unmarshal(b, &cached) == nil {
				return xhttp.SuccessResponse(c, cached)
			}
		}
	}

	orders, err := h.storage.QueryOrders(c.Request().Context(), req.Status, from, to, req.Limit)
	if err != nil {
		h.logger.Error("query orders failed", xlogger.Error(err))
		return xhttp.InternalServerErrorResponse(c)
	}
	if h.cache != nil {
		if b, err := json.Marshal(orders); err == nil {
			_ = h.cache.SetBytes(cacheKey, b, 5*time.Second)
		}
	}
	return xhttp.SuccessResponse(c, orders)
}

func (h *OpsHandler) Pause(c echo.Context) error {
	req := &models.PauseRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	h.bank.Pause(req.Reason)
	h.logger.Warn("trading paused", xlogger.String("reason", req.Reason))
	return xhttp.SuccessResponse(c, h.bank.Snapshot())
}

func (h *OpsHandler) Resume(c echo.Context) error {
	req := &models.ResumeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	h.bank.Resume(models.BreakerKind(req.Reset))
	h.logger.Info("trading resumed", xlogger.String("reset", req.Reset))
	return xhttp.SuccessResponse(c, h.bank.Snapshot())
}
