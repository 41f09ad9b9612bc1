// Package api serves topic status and manual run triggers over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/bakkerme/digestbot/internal/core"
	"github.com/bakkerme/digestbot/internal/runner"
)

// Runner is the part of *runner.Runner the server drives.
type Runner interface {
	Topics() []string
	Status() []runner.TopicStatus
	RunTopic(ctx context.Context, topic string) (*core.RunResult, error)
}

type Server struct {
	logger  *slog.Logger
	runner  Runner
	version string
	echo    *echo.Echo
}

func NewServer(logger *slog.Logger, r Runner, version string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info("http request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
			return nil
		},
	}))

	s := &Server{logger: logger, runner: r, version: version, echo: e}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.echo.Group("/api/v1")
	api.GET("/health", s.handleHealth)
	api.GET("/topics", s.handleTopics)
	api.POST("/topics/:name/run", s.handleRunTopic)
}

func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	err := s.echo.Start(addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "digestbot",
		"version": s.version,
	})
}

func (s *Server) handleTopics(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"topics": s.runner.Status(),
	})
}

type runResponse struct {
	Result *core.RunResult `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

func (s *Server) handleRunTopic(c echo.Context) error {
	topic := c.Param("name")
	if !s.hasTopic(topic) {
		return c.JSON(http.StatusNotFound, runResponse{Error: "unknown topic " + topic})
	}

	// The run outlives a dropped client; publishing must not stop halfway.
	ctx := context.WithoutCancel(c.Request().Context())
	result, err := s.runner.RunTopic(ctx, topic)
	resp := runResponse{Result: result}
	if err != nil {
		resp.Error = err.Error()
	}

	var (
		cfgErr  *core.ConfigurationError
		saveErr *core.StoreSaveError
	)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, resp)
	case errors.Is(err, runner.ErrRunInProgress):
		return c.JSON(http.StatusConflict, resp)
	case errors.As(err, &cfgErr):
		return c.JSON(http.StatusUnprocessableEntity, resp)
	case errors.As(err, &saveErr):
		s.logger.Error("manual run could not persist seen set", "topic", topic, "error", err)
		return c.JSON(http.StatusInternalServerError, resp)
	default:
		return c.JSON(http.StatusInternalServerError, resp)
	}
}

func (s *Server) hasTopic(topic string) bool {
	for _, t := range s.runner.Topics() {
		if t == topic {
			return true
		}
	}
	return false
}
