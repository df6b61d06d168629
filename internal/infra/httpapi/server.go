// internal/infra/httpapi/server.go
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"ticket_dispatcher/internal/app"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
)

const defaultTicketsLimit = 50

type Handlers struct {
	admin  *app.AdminService
	logger *logrus.Entry
	// baseCtx outlives requests; manual polls run on it, not on the request.
	baseCtx      context.Context
	cycleTimeout time.Duration
}

// NewServer builds the read-mostly status API around admin. Polls triggered
// over HTTP run on ctx bounded by cycleTimeout, so a client that goes away
// does not interrupt a cycle.
func NewServer(ctx context.Context, admin *app.AdminService, cycleTimeout time.Duration, log *logrus.Entry) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.WithFields(logrus.Fields{
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency_ms": v.Latency.Milliseconds(),
			}).Debug("HTTP request")
			return nil
		},
	}))

	setupRoutes(e, &Handlers{admin: admin, logger: log, baseCtx: ctx, cycleTimeout: cycleTimeout})
	return e
}

func setupRoutes(e *echo.Echo, h *Handlers) {
	e.GET("/healthz", h.Health)

	api := e.Group("/api/v1")
	api.GET("/stats", h.GetStats)
	api.GET("/cursor", h.GetCursor)
	api.GET("/tickets", h.ListTickets)
	api.POST("/poll", h.TriggerPoll)
}

func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) GetStats(c echo.Context) error {
	st, err := h.admin.Stats(c.Request().Context())
	if err != nil {
		h.logger.WithError(err).Error("h.admin.Stats")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	resp := map[string]any{
		"total":  st.Total,
		"sent":   st.Sent,
		"failed": st.Failed,
	}
	if pct, ok := st.SuccessRate(); ok {
		resp["successRate"] = pct
	} else {
		resp["successRate"] = nil
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handlers) GetCursor(c echo.Context) error {
	next, err := h.admin.Cursor(c.Request().Context())
	if err != nil {
		h.logger.WithError(err).Error("h.admin.Cursor")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]int{"cursor": next})
}

func (h *Handlers) ListTickets(c echo.Context) error {
	limit := defaultTicketsLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "limit must be a non-negative integer"})
		}
		limit = n
	}

	records, err := h.admin.Tickets(c.Request().Context(), limit)
	if err != nil {
		h.logger.WithError(err).Error("h.admin.Tickets")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, records)
}

func (h *Handlers) TriggerPoll(c echo.Context) error {
	ctx, cancel := context.WithTimeout(h.baseCtx, h.cycleTimeout)
	defer cancel()

	res, err := h.admin.TriggerPoll(ctx)
	if errors.Is(err, app.ErrCycleInProgress) {
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	}
	if err != nil {
		h.logger.WithError(err).Error("h.admin.TriggerPoll")
		body := map[string]any{"error": err.Error()}
		if res != nil {
			body["result"] = res
		}
		return c.JSON(http.StatusBadGateway, body)
	}
	return c.JSON(http.StatusOK, res)
}

// Serve runs e on addr until ctx is cancelled, then shuts it down gracefully.
func Serve(ctx context.Context, e *echo.Echo, addr string, log *logrus.Entry) error {
	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("HTTP status API listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
