// Package api serves the published board over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"opsboard/internal/board"
	"opsboard/internal/logger"
	"opsboard/internal/refresh"
)

// Boards is what the handlers need from the refresh loop.
type Boards interface {
	Current() *board.Board
	RunOnce(ctx context.Context) (*board.Board, error)
}

type handler struct {
	boards Boards
	log    logger.Logger
}

// NewRouter builds the gin engine. gatherer backs /metrics; nil uses the
// default registry.
func NewRouter(boards Boards, gatherer prometheus.Gatherer, log logger.Logger, debug bool) *gin.Engine {
	if log == nil {
		log = logger.NewNop()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	h := &handler{boards: boards, log: log}
	r := gin.New()
	r.Use(recovery(log), requestLog(log))

	r.GET("/healthz", h.health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	v1 := r.Group("/api")
	v1.GET("/board", h.board)
	v1.GET("/reports/:name", h.report)
	v1.POST("/refresh", h.refresh)
	return r
}

func (h *handler) health(c *gin.Context) {
	b := h.boards.Current()
	body := gin.H{"status": "ok", "ready": b != nil}
	if b != nil {
		body["cycle_id"] = b.CycleID
		body["generated_at"] = b.GeneratedAt
		body["partial"] = b.Partial
	}
	c.JSON(http.StatusOK, body)
}

func (h *handler) board(c *gin.Context) {
	b := h.boards.Current()
	if b == nil {
		notReady(c)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *handler) report(c *gin.Context) {
	b := h.boards.Current()
	if b == nil {
		notReady(c)
		return
	}
	name := c.Param("name")
	r, ok := b.Report(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown report", "report": name})
		return
	}
	c.JSON(http.StatusOK, r)
}

// refresh runs a cycle inline. A cycle already in flight is not waited for;
// the caller gets 409 and the board currently published.
func (h *handler) refresh(c *gin.Context) {
	b, err := h.boards.RunOnce(c.Request.Context())
	switch {
	case errors.Is(err, refresh.ErrBusy):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "board": h.boards.Current()})
	case err != nil:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, b)
	}
}

func notReady(c *gin.Context) {
	c.Header("Retry-After", "5")
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": "board not ready"})
}

func recovery(log logger.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.Error("Panic recovered",
			logger.String("path", c.Request.URL.Path),
			logger.Any("panic", recovered),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	})
}

func requestLog(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []logger.Field{
			logger.String("method", c.Request.Method),
			logger.String("path", c.Request.URL.Path),
			logger.Int("status", c.Writer.Status()),
			logger.Duration("duration", time.Since(start)),
			logger.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			log.Error("HTTP request with errors", append(fields, logger.Strings("errors", c.Errors.Errors()))...)
			return
		}
		if c.Request.URL.Path == "/healthz" || c.Request.URL.Path == "/metrics" {
			log.Debug("HTTP request", fields...)
			return
		}
		log.Info("HTTP request", fields...)
	}
}
