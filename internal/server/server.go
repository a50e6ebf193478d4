// Package server provides the HTTP API for treefind.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/treefind/treefind/internal/finder"
	"go.uber.org/zap"
)

// Registry names the repositories searched when a request names none.
type Registry interface {
	// Repositories returns the sorted names of all repositories with commits.
	Repositories() ([]string, error)
}

// Config holds HTTP server configuration.
type Config struct {
	Host         string
	Port         int
	DefaultLimit int
}

// Server exposes the find endpoint over HTTP.
type Server struct {
	echo     *echo.Echo
	finder   *finder.Finder
	registry Registry
	logger   *zap.Logger
	config   *Config
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
}

// healthBody is the response body for GET /health.
type healthBody struct {
	Status string `json:"status"`
}

// New creates a new HTTP server.
func New(f *finder.Finder, registry Registry, logger *zap.Logger, cfg *Config) (*Server, error) {
	if f == nil {
		return nil, fmt.Errorf("finder cannot be nil")
	}
	if registry == nil {
		return nil, fmt.Errorf("registry cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg == nil {
		cfg = &Config{
			Host:         "localhost",
			Port:         8710,
			DefaultLimit: finder.DefaultLimit,
		}
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = finder.DefaultLimit
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:     e,
		finder:   f,
		registry: registry,
		logger:   logger,
		config:   cfg,
	}
	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.GET("/find", s.handleFind)
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, healthBody{Status: "ok"})
}

// handleFind runs a find request parsed from query parameters:
// pathPattern (required), repos (repeatable, comma-splittable; absent means
// every registry repository), revision, and limit.
func (s *Server) handleFind(c echo.Context) error {
	start := time.Now()

	req := &finder.Request{
		PathPattern: c.QueryParam("pathPattern"),
		Revision:    c.QueryParam("revision"),
		Limit:       s.config.DefaultLimit,
	}
	for _, value := range c.QueryParams()["repos"] {
		for _, name := range strings.Split(value, ",") {
			if name != "" {
				req.Repos = append(req.Repos, name)
			}
		}
	}

	if raw := c.QueryParam("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			findRequests.WithLabelValues(outcomeClientError).Inc()
			return c.JSON(http.StatusBadRequest, errorBody{
				Error: (&finder.MissingParameterError{Name: "limit"}).Error(),
			})
		}
		req.Limit = limit
	}

	if len(req.Repos) == 0 && req.PathPattern != "" {
		names, err := s.registry.Repositories()
		if err != nil {
			s.logger.Error("repository scan failed", zap.Error(err))
			findRequests.WithLabelValues(outcomeError).Inc()
			return c.JSON(http.StatusInternalServerError, errorBody{Error: "failed to list repositories"})
		}
		if len(names) == 0 {
			// Nothing hosted yet: an empty result, not a client error.
			findRequests.WithLabelValues(outcomeOK).Inc()
			return c.JSON(http.StatusOK, &finder.Response{
				Pattern: req.PathPattern,
				Results: []finder.RepoResult{},
			})
		}
		req.Repos = names
	}

	resp, err := s.finder.Find(c.Request().Context(), req)
	if err != nil {
		var missing *finder.MissingParameterError
		if errors.As(err, &missing) {
			findRequests.WithLabelValues(outcomeClientError).Inc()
			return c.JSON(http.StatusBadRequest, errorBody{Error: err.Error()})
		}
		s.logger.Error("find failed",
			zap.String("pattern", req.PathPattern),
			zap.Strings("repos", req.Repos),
			zap.Error(err))
		findRequests.WithLabelValues(outcomeError).Inc()
		return c.JSON(http.StatusInternalServerError, errorBody{Error: "find failed"})
	}

	findRequests.WithLabelValues(outcomeOK).Inc()
	findDuration.Observe(time.Since(start).Seconds())
	findMatches.Observe(float64(resp.TotalCount))

	s.logger.Debug("find completed",
		zap.String("pattern", resp.Pattern),
		zap.Int("total_count", resp.TotalCount),
		zap.Bool("limit_hit", resp.LimitHit),
		zap.Duration("duration", time.Since(start)))

	return c.JSON(http.StatusOK, resp)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
