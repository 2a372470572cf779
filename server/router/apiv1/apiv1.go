// Package apiv1 exposes the calendar assistant over REST plus a
// websocket stream for live diffs.
package apiv1

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"golang.org/x/net/websocket"

	"github.com/voicecal/voicecal/internal/profile"
	"github.com/voicecal/voicecal/plugin/ics"
	"github.com/voicecal/voicecal/server/broadcast"
	"github.com/voicecal/voicecal/server/internal/observability"
	"github.com/voicecal/voicecal/server/middleware"
	"github.com/voicecal/voicecal/server/service/assistant"
	"github.com/voicecal/voicecal/server/timezone"
	"github.com/voicecal/voicecal/store"
)

const defaultHistoryLimit = 100

// APIV1Service registers and serves the v1 routes.
type APIV1Service struct {
	profile   *profile.Profile
	store     *store.Store
	assistant *assistant.Service
	hub       *broadcast.Hub
	limiter   *middleware.RateLimiter
	logger    *slog.Logger
}

// NewAPIV1Service creates the v1 route handler group.
func NewAPIV1Service(p *profile.Profile, st *store.Store, as *assistant.Service, hub *broadcast.Hub) *APIV1Service {
	return &APIV1Service{
		profile:   p,
		store:     st,
		assistant: as,
		hub:       hub,
		limiter:   middleware.NewRateLimiter(),
		logger:    slog.Default(),
	}
}

// RegisterRoutes attaches the v1 routes to the echo server.
func (s *APIV1Service) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1", middleware.JWTAuth(s.profile))
	g.GET("/events", s.listEvents)
	g.POST("/events/mutate", s.mutate)
	g.GET("/history", s.history)
	g.GET("/export.ics", s.exportICS)
	g.POST("/assistant/command", s.command, middleware.RateLimit(s.limiter))
	g.GET("/stream", s.stream)
}

func (s *APIV1Service) listEvents(c echo.Context) error {
	userID := middleware.UserID(c)
	events, err := s.store.List(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list events").SetInternal(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"user_id": userID, "events": events})
}

// mutate applies a raw mutation payload. Domain failures come back in
// the result envelope with HTTP 200; only infrastructure failures map
// to HTTP errors.
func (s *APIV1Service) mutate(c echo.Context) error {
	userID := middleware.UserID(c)
	rc := observability.NewRequestContext(s.logger, userID)
	ctx := observability.WithRequestContext(c.Request().Context(), rc)

	payload, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read request body").SetInternal(err)
	}

	result, err := s.store.ApplyPayload(ctx, userID, payload)
	if err != nil {
		rc.Error("mutation failed", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to apply mutation").SetInternal(err)
	}

	rc.Info("mutation applied",
		slog.String("status", result.Status),
		slog.Int64(observability.LogFieldDuration, rc.DurationMs()))
	return c.JSON(http.StatusOK, result)
}

func (s *APIV1Service) history(c echo.Context) error {
	userID := middleware.UserID(c)
	limit := defaultHistoryLimit
	if v := c.QueryParam("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = parsed
	}

	history, err := s.store.History(c.Request().Context(), userID, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to query history").SetInternal(err)
	}
	return c.JSON(http.StatusOK, history)
}

func (s *APIV1Service) exportICS(c echo.Context) error {
	userID := middleware.UserID(c)
	events, err := s.store.List(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list events").SetInternal(err)
	}
	return c.Blob(http.StatusOK, "text/calendar; charset=utf-8", []byte(ics.Export(events, userID)))
}

type commandRequest struct {
	Text string `json:"text"`
	Tz   string `json:"tz"`
}

func (s *APIV1Service) command(c echo.Context) error {
	userID := middleware.UserID(c)
	rc := observability.NewRequestContext(s.logger, userID)
	ctx := observability.WithRequestContext(c.Request().Context(), rc)

	var req commandRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request").SetInternal(err)
	}
	if req.Text == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text is required")
	}
	tz := timezone.Normalize(req.Tz, s.profile.DefaultTimezone)

	outcome, err := s.assistant.HandleText(ctx, userID, req.Text, tz)
	if err != nil {
		rc.Error("assistant turn failed", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to handle command").SetInternal(err)
	}

	rc.Info("assistant turn finished",
		slog.String("outcome", outcome.Status),
		slog.Int64(observability.LogFieldDuration, rc.DurationMs()))
	return c.JSON(http.StatusOK, outcome)
}

// stream pushes mutation diffs and reminders for the authenticated
// user over a websocket until the client disconnects.
func (s *APIV1Service) stream(c echo.Context) error {
	userID := middleware.UserID(c)
	websocket.Handler(func(ws *websocket.Conn) {
		defer ws.Close()
		sub := s.hub.Subscribe(userID)
		defer sub.Close()

		for data := range sub.C {
			if err := websocket.Message.Send(ws, string(data)); err != nil {
				return
			}
		}
	}).ServeHTTP(c.Response(), c.Request())
	return nil
}
