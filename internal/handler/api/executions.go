package api

import (
	"ScanRunner/internal/contract"
	models "ScanRunner/internal/domain/models"
	"ScanRunner/internal/domain/service"
	"ScanRunner/internal/usecase"
	"ScanRunner/pkg/config"
	xhttp "ScanRunner/pkg/http"
	xlogger "ScanRunner/pkg/logger"
	"ScanRunner/pkg/queue"

	"github.com/labstack/echo/v4"
)

// ExecutionsHandler exposes the execution boundary over HTTP.
type ExecutionsHandler struct {
	logger   *xlogger.Logger
	pipeline *usecase.Pipeline
	queue    queue.QueueService
	cfg      *config.Config
	registry service.Registry
	detector *contract.Detector
}

func NewExecutionsHandler(logger *xlogger.Logger, pipeline *usecase.Pipeline, q queue.QueueService, cfg *config.Config, registry service.Registry) *ExecutionsHandler {
	return &ExecutionsHandler{
		logger:   logger,
		pipeline: pipeline,
		queue:    q,
		cfg:      cfg,
		registry: registry,
		detector: contract.New(),
	}
}

func (h *ExecutionsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/executions", h.Execute)
	g.POST("/executions/async", h.ExecuteAsync)
	g.GET("/scanners", h.Scanners)
}

type executionResponse struct {
	Signals []models.AggregatedSignal `json:"signals"`
	Summary models.ExecutionSummary   `json:"summary"`
	Report  *models.ExecutionReport   `json:"report"`
}

// Execute runs the requested scanners synchronously and returns the
// aggregated signals with the full diagnostic report.
func (h *ExecutionsHandler) Execute(c echo.Context) error {
	req := &models.ExecuteRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	execCfg, err := usecase.ConfigFromRequest(req, h.cfg.Scanners, h.cfg.Execution.Symbols, h.cfg.Execution.Lookback)
	if err != nil {
		return xhttp.BadRequestResponse(c, err.Error())
	}
	execCfg.Overrides = usecase.MergeOverrides(usecase.CatalogParams(h.cfg.Scanners), req.Overrides)

	result, report, err := h.pipeline.Run(c.Request().Context(), execCfg)
	if err != nil {
		h.logger.Error("execution failed", xlogger.Error(err))
		resp := &executionResponse{Report: report}
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()).WithParam("report", resp.Report))
	}

	return xhttp.SuccessResponse(c, &executionResponse{
		Signals: result.Signals,
		Summary: result.Summary,
		Report:  report,
	})
}

// ExecuteAsync validates the request and enqueues it for the queue
// workers. The response only acknowledges acceptance.
func (h *ExecutionsHandler) ExecuteAsync(c echo.Context) error {
	req := &models.ExecuteRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if h.queue == nil {
		return xhttp.AppErrorResponse(c, xhttp.InternalError("async execution queue not configured"))
	}
	// reject unknown scanners and bad dates before accepting the job
	if _, err := usecase.ConfigFromRequest(req, h.cfg.Scanners, h.cfg.Execution.Symbols, h.cfg.Execution.Lookback); err != nil {
		return xhttp.BadRequestResponse(c, err.Error())
	}

	if err := h.queue.PublishMessage(c.Request().Context(), usecase.ExecutionMessageType, req); err != nil {
		h.logger.Error("enqueue execution failed", xlogger.Error(err))
		return xhttp.InternalServerErrorResponse(c)
	}
	return xhttp.CreatedResponse(c, map[string]interface{}{
		"status":   "queued",
		"scanners": req.Scanners,
	})
}

// Scanners lists the catalog with each entry's detected contract.
func (h *ExecutionsHandler) Scanners(c echo.Context) error {
	out := make([]models.ScannerInfoResponse, 0, len(h.cfg.Scanners))
	for _, sc := range h.cfg.Scanners {
		info := models.ScannerInfoResponse{
			ID:      sc.ID,
			Weight:  sc.Weight,
			Enabled: sc.Enabled,
		}
		if src, err := h.registry.Source(sc.ID); err == nil {
			if ct, fail := h.detector.Detect(sc.ID, src); fail == nil {
				info.Entry = ct.Entry
				info.Variant = string(ct.Variant)
				info.Suspension = string(ct.Suspension)
				info.Model = string(ct.Model())
			}
		}
		out = append(out, info)
	}
	return xhttp.SuccessResponse(c, out)
}

var _ xhttp.Handler = (*ExecutionsHandler)(nil)
