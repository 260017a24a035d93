package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"FolioPulse/internal/domain/models"
	"FolioPulse/internal/usecase"
	xhttp "FolioPulse/pkg/http"
	xlogger "FolioPulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

const maxImportBytes = 10 << 20

// PortfolioHandler exposes the tracker over Echo.
type PortfolioHandler struct {
	logger  *xlogger.Logger
	tracker *usecase.Tracker
}

func NewPortfolioHandler(logger *xlogger.Logger, tracker *usecase.Tracker) *PortfolioHandler {
	return &PortfolioHandler{logger: logger, tracker: tracker}
}

func (h *PortfolioHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)

	g := e.Group("/api")
	g.GET("/portfolio", h.Portfolio)
	g.GET("/portfolio/history", h.History)
	g.GET("/portfolio/breakdown", h.Breakdown)

	g.POST("/holdings", h.AddHolding)
	g.DELETE("/holdings/:id", h.RemoveHolding)
	g.POST("/holdings/:id/refresh", h.RefreshHolding)

	g.POST("/refresh", h.RefreshAll)
	g.POST("/refresh/range", h.RefreshRange)
	g.POST("/refresh/stop", h.StopRefresh)
	g.PUT("/range", h.SelectRange)

	g.GET("/auto-refresh", h.AutoRefresh)
	g.PUT("/auto-refresh", h.UpdateAutoRefresh)

	g.GET("/export", h.Export)
	g.POST("/import", h.Import)

	g.GET("/ui-state", h.UIState)
	g.PATCH("/ui-state", h.PatchUIState)
}

func (h *PortfolioHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"status":   "ok",
		"busy":     h.tracker.Busy(),
		"holdings": len(h.tracker.View("", false).Holdings),
	})
}

func (h *PortfolioHandler) Portfolio(c echo.Context) error {
	req := &models.PortfolioRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return xhttp.SuccessResponse(c, h.tracker.View(models.SortField(req.Sort), req.Dir == "desc"))
}

func (h *PortfolioHandler) History(c echo.Context) error {
	r, err := h.rangeParam(c)
	if err != nil {
		return h.fail(c, "history", err)
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"range":   r,
		"history": h.tracker.History(r),
	})
}

func (h *PortfolioHandler) Breakdown(c echo.Context) error {
	r, err := h.rangeParam(c)
	if err != nil {
		return h.fail(c, "breakdown", err)
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"range":  r,
		"series": h.tracker.Breakdown(r),
	})
}

func (h *PortfolioHandler) AddHolding(c echo.Context) error {
	req := &models.AddHoldingRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	holding, err := h.tracker.AddHolding(c.Request().Context(), usecase.AddParams{
		Symbol:       req.Symbol,
		Qty:          req.Qty,
		AvgPrice:     req.AvgPrice,
		Fetch:        req.Fetch == nil || *req.Fetch,
		LastUpdated:  req.LastUpdated,
		CurrentPrice: req.CurrentPrice,
	})
	if err != nil {
		return h.fail(c, "add holding", err)
	}
	return xhttp.CreatedResponse(c, holding)
}

func (h *PortfolioHandler) RemoveHolding(c echo.Context) error {
	req := &models.HoldingPathRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.tracker.RemoveHolding(req.ID); err != nil {
		return h.fail(c, "remove holding", err)
	}
	return xhttp.NoContentResponse(c)
}

func (h *PortfolioHandler) RefreshHolding(c echo.Context) error {
	req := &models.HoldingPathRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if _, ok := h.tracker.Holding(req.ID); !ok {
		return h.fail(c, "refresh holding", usecase.ErrHoldingNotFound)
	}
	h.tracker.Go(func(ctx context.Context) {
		if _, err := h.tracker.RefreshOne(ctx, req.ID); err != nil {
			h.logger.Warn("refresh holding", xlogger.String("id", req.ID), xlogger.Error(err))
		}
	})
	return xhttp.AcceptedResponse(c, map[string]interface{}{"id": req.ID, "range": h.tracker.SelectedRange()})
}

func (h *PortfolioHandler) RefreshAll(c echo.Context) error {
	req := &models.RefreshRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	id := h.tracker.StartRefreshAll(req.Force)
	return xhttp.AcceptedResponse(c, map[string]interface{}{"sessionId": id, "range": h.tracker.SelectedRange(), "force": req.Force})
}

func (h *PortfolioHandler) RefreshRange(c echo.Context) error {
	req := &models.RangeRefreshRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	r, err := models.ParseRange(req.Range)
	if err != nil {
		return h.fail(c, "refresh range", usecase.InvalidRange(req.Range))
	}
	id, err := h.tracker.StartRefreshForRange(r, req.Force)
	if err != nil {
		return h.fail(c, "refresh range", err)
	}
	return xhttp.AcceptedResponse(c, map[string]interface{}{"sessionId": id, "range": r, "force": req.Force})
}

func (h *PortfolioHandler) StopRefresh(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]bool{"stopped": h.tracker.Stop()})
}

func (h *PortfolioHandler) SelectRange(c echo.Context) error {
	req := &models.SelectRangeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	r, err := models.ParseRange(req.Range)
	if err != nil {
		return h.fail(c, "select range", usecase.InvalidRange(req.Range))
	}
	if err := h.tracker.SetSelectedRange(r); err != nil {
		return h.fail(c, "select range", err)
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{"range": r})
}

func (h *PortfolioHandler) AutoRefresh(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.tracker.AutoRefresh())
}

func (h *PortfolioHandler) UpdateAutoRefresh(c echo.Context) error {
	req := &models.AutoRefreshRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if req.IntervalMinutes != nil {
		if err := h.tracker.SetAutoRefreshInterval(c.Request().Context(), *req.IntervalMinutes); err != nil {
			return h.fail(c, "auto refresh interval", err)
		}
	}
	if req.Enabled != nil {
		h.tracker.SetAutoRefresh(*req.Enabled)
	}
	return xhttp.SuccessResponse(c, h.tracker.AutoRefresh())
}

func (h *PortfolioHandler) Export(c echo.Context) error {
	blob, err := h.tracker.ExportSnapshot()
	if err != nil {
		return h.fail(c, "export", err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="portfolio.json"`)
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSONCharsetUTF8, blob)
}

func (h *PortfolioHandler) Import(c echo.Context) error {
	blob, err := io.ReadAll(io.LimitReader(c.Request().Body, maxImportBytes))
	if err != nil {
		return xhttp.BadRequestResponse(c, xhttp.Malformed(err))
	}
	n, err := h.tracker.ImportSnapshot(blob)
	if err != nil {
		return h.fail(c, "import", err)
	}
	return xhttp.SuccessResponse(c, map[string]int{"count": n})
}

func (h *PortfolioHandler) UIState(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.tracker.UIState(c.Request().Context()))
}

func (h *PortfolioHandler) PatchUIState(c echo.Context) error {
	var patch map[string]json.RawMessage
	if err := json.NewDecoder(c.Request().Body).Decode(&patch); err != nil {
		return xhttp.BadRequestResponse(c, xhttp.Malformed(err))
	}
	st, err := h.tracker.PatchUIState(c.Request().Context(), patch)
	if err != nil {
		return h.fail(c, "ui state", err)
	}
	return xhttp.SuccessResponse(c, st)
}

func (h *PortfolioHandler) rangeParam(c echo.Context) (models.Range, error) {
	req := &models.RangeQuery{}
	if err := c.Bind(req); err != nil || req.Range == "" {
		return h.tracker.SelectedRange(), nil
	}
	r, err := models.ParseRange(req.Range)
	if err != nil {
		return "", usecase.InvalidRange(req.Range)
	}
	return r, nil
}

// fail maps usecase errors onto the AppError envelope.
func (h *PortfolioHandler) fail(c echo.Context, op string, err error) error {
	appErr := toAppError(err)
	if appErr.Status >= http.StatusInternalServerError {
		h.logger.Error(op+" failed", xlogger.Error(err))
	} else {
		h.logger.Debug(op+" rejected", xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}

func toAppError(err error) *xhttp.AppError {
	var (
		ve *usecase.ValidationError
		fe *usecase.FetchError
	)
	switch {
	case errors.As(err, &ve):
		appErr := xhttp.BadRequestError(ve.Error()).WithField(ve.Field).WithError(err)
		if ve.Index >= 0 {
			appErr.WithParam("index", ve.Index)
		}
		return appErr
	case errors.Is(err, usecase.ErrHoldingNotFound):
		return xhttp.NotFoundError(err.Error()).WithError(err)
	case errors.Is(err, usecase.ErrDuplicateID):
		return xhttp.ConflictError(err.Error()).WithError(err)
	case errors.As(err, &fe):
		return xhttp.BadGatewayError(fe.Error()).WithError(err)
	default:
		return xhttp.InternalError("Something went wrong").WithError(err)
	}
}
