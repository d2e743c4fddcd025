// Package api exposes the job lifecycle over HTTP. Jobs are asynchronous:
// submission returns an ID immediately and clients poll status until a
// terminal state, then fetch results.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/threatforge/threatforge/internal/job"
	"github.com/threatforge/threatforge/internal/types"
)

// Server wraps the HTTP listener around a job manager.
type Server struct {
	manager *job.Manager
	logger  *slog.Logger
	http    *http.Server
}

// Options configures the server listener.
type Options struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// NewServer builds the server and its routes.
func NewServer(manager *job.Manager, logger *slog.Logger, opts Options) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		manager: manager,
		logger:  logger.With("component", "api"),
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	router.GET("/healthz", s.handleHealth)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/jobs", s.handleSubmit)
		v1.GET("/jobs", s.handleList)
		v1.POST("/jobs/:id/replay", s.handleReplay)
		v1.GET("/jobs/:id/status", s.handleStatus)
		v1.GET("/jobs/:id/results", s.handleResults)
		v1.GET("/jobs/:id/trail", s.handleTrail)
		v1.POST("/jobs/:id/cancel", s.handleCancel)
	}

	s.http = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", opts.Host, opts.Port),
		Handler:      router,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	}

	return s
}

// Run serves until the listener fails or Shutdown is called.
func (s *Server) Run() error {
	s.logger.Info("http server listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleSubmit(c *gin.Context) {
	var sub job.Submission
	if err := c.ShouldBindJSON(&sub); err != nil {
		writeError(c, types.NewError(types.SUBMISSION_INVALID, "malformed request body: "+err.Error()))
		return
	}

	id, err := s.manager.StartNew(c.Request.Context(), sub)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"job_id": id})
}

func (s *Server) handleReplay(c *gin.Context) {
	id, ok := parseJobID(c)
	if !ok {
		return
	}

	var sub job.Submission
	if err := c.ShouldBindJSON(&sub); err != nil {
		writeError(c, types.NewError(types.SUBMISSION_INVALID, "malformed request body: "+err.Error()))
		return
	}

	if err := s.manager.StartReplay(c.Request.Context(), id, sub); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"job_id": id})
}

func (s *Server) handleStatus(c *gin.Context) {
	id, ok := parseJobID(c)
	if !ok {
		return
	}

	status, err := s.manager.GetStatus(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

func (s *Server) handleResults(c *gin.Context) {
	id, ok := parseJobID(c)
	if !ok {
		return
	}

	results, err := s.manager.GetResults(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, results)
}

func (s *Server) handleTrail(c *gin.Context) {
	id, ok := parseJobID(c)
	if !ok {
		return
	}

	trail, err := s.manager.GetTrail(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, trail)
}

func (s *Server) handleCancel(c *gin.Context) {
	id, ok := parseJobID(c)
	if !ok {
		return
	}

	if err := s.manager.Cancel(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"job_id": id, "cancelling": true})
}

func (s *Server) handleList(c *gin.Context) {
	entries, err := s.manager.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"jobs": entries})
}

func parseJobID(c *gin.Context) (types.ID, bool) {
	id, err := types.ParseID(c.Param("id"))
	if err != nil {
		writeError(c, types.NewError(types.SUBMISSION_INVALID, "invalid job id"))
		return "", false
	}
	return id, true
}

// writeError maps domain error codes onto HTTP statuses. Unknown errors
// surface as 500 with the message intact; codes the client can act on
// keep their code in the body.
func writeError(c *gin.Context, err error) {
	var forgeErr *types.ForgeError
	if !errors.As(err, &forgeErr) {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": err.Error(),
			"code":  types.INTERNAL_ERROR,
		})
		return
	}

	status := http.StatusInternalServerError
	switch forgeErr.Code {
	case types.JOB_NOT_FOUND:
		status = http.StatusNotFound
	case types.SUBMISSION_INVALID, types.VALIDATION_FAILED:
		status = http.StatusBadRequest
	case types.JOB_ALREADY_ACTIVE:
		status = http.StatusConflict
	case types.JOB_CANCELLED:
		status = http.StatusConflict
	case types.JOB_POLL_TIMEOUT:
		status = http.StatusRequestTimeout
	}

	c.JSON(status, gin.H{
		"error": forgeErr.Message,
		"code":  forgeErr.Code,
	})
}
