package api

import (
	"errors"
	"net/http"

	models "PredPull/internal/domain/models"
	domrepo "PredPull/internal/domain/repository"
	"PredPull/internal/usecase"
	xhttp "PredPull/pkg/http"
	xlogger "PredPull/pkg/logger"
	"PredPull/pkg/queue"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// PipelineEchoHandler exposes the batch pipeline and the real-time
// ingestion service over HTTP.
type PipelineEchoHandler struct {
	logger   *xlogger.Logger
	pipe     *usecase.Pipeline
	realtime *usecase.RealtimeIngestor
	catalog  *usecase.TokenCatalog
	store    domrepo.Storage
	redis    *redis.Client      // nil when redis is disabled
	runQueue queue.QueueService // nil when redis is disabled
}

func NewPipelineEchoHandler(
	logger *xlogger.Logger,
	pipe *usecase.Pipeline,
	realtime *usecase.RealtimeIngestor,
	catalog *usecase.TokenCatalog,
	store domrepo.Storage,
	redisClient *redis.Client,
	runQueue queue.QueueService,
) *PipelineEchoHandler {
	return &PipelineEchoHandler{
		logger:   logger,
		pipe:     pipe,
		realtime: realtime,
		catalog:  catalog,
		store:    store,
		redis:    redisClient,
		runQueue: runQueue,
	}
}

func (h *PipelineEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api")
	g.POST("/pipeline/start", h.Start)
	g.POST("/pipeline/enqueue", h.Enqueue)
	g.GET("/pipeline/status", h.Status)

	g.POST("/realtime/connect", h.Connect)
	g.POST("/realtime/disconnect", h.Disconnect)
	g.POST("/realtime/subscribe", h.Subscribe)
	g.POST("/realtime/unsubscribe", h.Unsubscribe)
	g.POST("/realtime/subscribe-all", h.SubscribeAll)
	g.GET("/realtime/status", h.RealtimeStatus)
}

func (h *PipelineEchoHandler) Start(c echo.Context) error {
	req := &models.StartPipelineRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	runID, err := h.pipe.Start(req.Protocol, req.Config())
	if err != nil {
		if errors.Is(err, usecase.ErrAlreadyRunning) {
			return xhttp.AppErrorResponse(c,
				xhttp.NewAppError("ERR_ALREADY_RUNNING", "", err.Error(), http.StatusConflict))
		}
		if errors.Is(err, usecase.ErrUnknownProtocol) {
			return xhttp.AppErrorResponse(c,
				xhttp.BadRequestError(err.Error()))
		}
		h.logger.Error("pipeline start failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.CreatedResponse(c, map[string]string{"runId": runID, "protocol": req.Protocol})
}

// Enqueue defers a run through the redis-backed queue; the worker retries
// while another run holds the protocol.
func (h *PipelineEchoHandler) Enqueue(c echo.Context) error {
	if h.runQueue == nil {
		return xhttp.AppErrorResponse(c,
			xhttp.NewAppError("ERR_QUEUE_DISABLED", "", "run queue requires redis", http.StatusServiceUnavailable))
	}
	req := &models.StartPipelineRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.runQueue.PublishMessage(c.Request().Context(), "pipeline.run", req); err != nil {
		h.logger.Error("run enqueue failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("enqueue failed"))
	}
	return xhttp.DataResponse(c, http.StatusAccepted, map[string]string{"protocol": req.Protocol})
}

func (h *PipelineEchoHandler) Status(c echo.Context) error {
	protocol := c.QueryParam("protocol")
	if protocol == "" {
		protocol = models.ProtocolPolymarket
	}
	return xhttp.SuccessResponse(c, h.pipe.GetStatus(protocol))
}

func (h *PipelineEchoHandler) Connect(c echo.Context) error {
	if err := h.realtime.Connect(c.Request().Context()); err != nil {
		h.logger.Error("realtime connect failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("connect failed"))
	}
	return xhttp.SuccessResponse(c, h.realtime.Status())
}

func (h *PipelineEchoHandler) Disconnect(c echo.Context) error {
	if err := h.realtime.Disconnect(); err != nil {
		h.logger.Error("realtime disconnect failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("disconnect failed"))
	}
	return xhttp.SuccessResponse(c, h.realtime.Status())
}

func (h *PipelineEchoHandler) Subscribe(c echo.Context) error {
	req := &models.SubscribeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.realtime.Subscribe(c.Request().Context(), req.AssetIDs); err != nil {
		h.logger.Error("subscribe failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("subscribe failed"))
	}
	return xhttp.SuccessResponse(c, h.realtime.Status())
}

func (h *PipelineEchoHandler) Unsubscribe(c echo.Context) error {
	req := &models.SubscribeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.realtime.Unsubscribe(c.Request().Context(), req.AssetIDs); err != nil {
		h.logger.Error("unsubscribe failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("unsubscribe failed"))
	}
	return xhttp.SuccessResponse(c, h.realtime.Status())
}

func (h *PipelineEchoHandler) RealtimeStatus(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.realtime.Status())
}

// SubscribeAll bulk-subscribes to every active market's tokens; the
// stream chunks the actual subscribe frames. An optional ?limit= caps
// the number of tokens taken from the catalog, and ?refresh=true drops
// the cached set so the token list is refetched first.
func (h *PipelineEchoHandler) SubscribeAll(c echo.Context) error {
	ctx := c.Request().Context()
	if c.QueryParam("refresh") == "true" {
		h.catalog.Invalidate(ctx)
	}
	tokens, err := h.catalog.ActiveTokens(ctx)
	if err != nil {
		h.logger.Error("active token resolve failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("token catalog unavailable"))
	}
	if limit := xhttp.ParseIntDefault(c.QueryParam("limit"), 0); limit > 0 && limit < len(tokens) {
		tokens = tokens[:limit]
	}
	if len(tokens) == 0 {
		return xhttp.SuccessResponse(c, h.realtime.Status())
	}
	if err := h.realtime.Subscribe(ctx, tokens); err != nil {
		h.logger.Error("bulk subscribe failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("subscribe failed"))
	}
	return xhttp.SuccessResponse(c, h.realtime.Status())
}

func (h *PipelineEchoHandler) Health(c echo.Context) error {
	ctx := c.Request().Context()
	checks := map[string]string{"storage": "ok"}
	healthy := true
	if err := h.store.Health(ctx); err != nil {
		checks["storage"] = err.Error()
		healthy = false
	}
	if h.redis != nil {
		checks["redis"] = "ok"
		if err := h.redis.Ping(ctx).Err(); err != nil {
			checks["redis"] = err.Error()
			healthy = false
		}
	}
	if !healthy {
		return xhttp.DataResponse(c, http.StatusServiceUnavailable, checks)
	}
	return xhttp.SuccessResponse(c, checks)
}
