package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"secadvisor/internal/metrics"
)

type PingResponse struct {
	Status           string `json:"status"`
	TimeOfLastUpdate int64  `json:"time_of_last_update"`
}

// Server exposes the invocation handler over HTTP.
type Server struct {
	inv     *InvocationHandler
	started time.Time
}

func NewServer(inv *InvocationHandler) *Server {
	return &Server{inv: inv, started: time.Now()}
}

func (s *Server) RegisterRoutes(e *echo.Echo) {
	e.POST("/invocations", s.Invocations)
	e.GET("/ping", s.Ping)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
}

// Invocations accepts {"prompt": "..."}. An empty body is an empty payload.
func (s *Server) Invocations(c echo.Context) error {
	var payload map[string]any
	dec := json.NewDecoder(c.Request().Body)
	if err := dec.Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload").SetInternal(err)
	}
	// only whitespace may follow the object
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload: trailing data")
	}

	msg, err := s.inv.Handle(c.Request().Context(), payload)
	if err != nil {
		// left to echo's error handler, which answers 500
		return err
	}
	return c.JSON(http.StatusOK, msg)
}

func (s *Server) Ping(c echo.Context) error {
	return c.JSON(http.StatusOK, PingResponse{
		Status:           "Healthy",
		TimeOfLastUpdate: s.started.Unix(),
	})
}
