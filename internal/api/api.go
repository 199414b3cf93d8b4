package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/spigell/cv-ranker/internal/intake"
	"github.com/spigell/cv-ranker/internal/logger"
	"github.com/spigell/cv-ranker/internal/metrics"
	"github.com/spigell/cv-ranker/internal/models"
	"github.com/spigell/cv-ranker/internal/orchestrator"
)

const (
	StatusProcessing = "PROCESSING"
	StatusPending    = "PENDING"
	StatusRunning    = "RUNNING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"

	defaultMaxUploadMemory = 32 << 20
)

// Jobs is the orchestration surface used by the handlers.
type Jobs interface {
	Submit(ctx context.Context, docs []models.DocumentRef, jobDescription string) (string, error)
	Status(ctx context.Context, jobID string) (models.Job, error)
}

// Stager filters and stores uploads before a batch is submitted.
type Stager interface {
	Stage(ctx context.Context, uploads []intake.Upload) ([]models.DocumentRef, error)
	Release(ctx context.Context, refs []models.DocumentRef)
	Filters() []intake.Filter
}

type Config struct {
	Addr            string `mapstructure:"addr"`
	MaxUploadMemory int64  `mapstructure:"max-upload-memory"`
}

type Handler struct {
	jobs    Jobs
	stager  Stager
	metrics *metrics.Metrics
	logger  *zap.Logger
}

type AnalyzeResponse struct {
	TaskID  string `json:"task_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type ResultResponse struct {
	TaskID string                     `json:"task_id"`
	Status string                     `json:"status"`
	Result *models.ConsolidatedReport `json:"result,omitempty"`
	Error  string                     `json:"error,omitempty"`
}

func NewHandler(jobs Jobs, stager Stager, m *metrics.Metrics, log *zap.Logger) *Handler {
	return &Handler{
		jobs:    jobs,
		stager:  stager,
		metrics: m,
		logger:  logger.WithFields(log, zap.String("component", "api")),
	}
}

// NewRouter registers all routes on a fresh gin engine.
func NewRouter(h *Handler, cfg Config) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(h.logger))

	router.MaxMultipartMemory = cfg.MaxUploadMemory
	if router.MaxMultipartMemory <= 0 {
		router.MaxMultipartMemory = defaultMaxUploadMemory
	}

	router.GET("/health", h.Health)
	router.GET("/metrics", h.Metrics)

	v1 := router.Group("/api/v1")
	v1.POST("/analyze", h.Analyze)
	v1.GET("/result/:task_id", h.Result)
	v1.GET("/filters", h.Filters)

	return router
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

// Analyze accepts a multipart batch of resumes and a job description.
func (h *Handler) Analyze(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid multipart form: %v", err)})
		return
	}

	jobDescription := strings.TrimSpace(c.PostForm("job_description"))
	if jobDescription == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "job_description is required"})
		return
	}

	files := form.File["files"]
	if len(files) < 2 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least 2 files are required"})
		return
	}

	uploads, err := readUploads(files)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()

	refs, err := h.stager.Stage(ctx, uploads)
	if err != nil {
		h.logger.Error("staging uploads failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not store uploaded files"})
		return
	}

	id, err := h.jobs.Submit(ctx, refs, jobDescription)
	if err != nil {
		h.stager.Release(context.WithoutCancel(ctx), refs)

		switch {
		case errors.Is(err, orchestrator.ErrInvalidBatch):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, orchestrator.ErrShuttingDown):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		default:
			h.logger.Error("submitting batch failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not submit batch"})
		}
		return
	}

	c.JSON(http.StatusAccepted, AnalyzeResponse{
		TaskID:  id,
		Status:  StatusProcessing,
		Message: fmt.Sprintf("Processing %d resumes", len(refs)),
	})
}

func readUploads(files []*multipart.FileHeader) ([]intake.Upload, error) {
	uploads := make([]intake.Upload, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", fh.Filename, err)
		}

		content, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", fh.Filename, err)
		}

		uploads = append(uploads, intake.Upload{Filename: fh.Filename, Content: content})
	}
	return uploads, nil
}

// Result reports the state of a job and embeds the report once it is ready.
func (h *Handler) Result(c *gin.Context) {
	id := c.Param("task_id")

	job, err := h.jobs.Status(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("reading job status failed", append(logger.JobFields(id, ""), zap.Error(err))...)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not read job status"})
		return
	}

	c.JSON(http.StatusOK, NewResultResponse(job))
}

// NewResultResponse maps a job onto the status labels exposed to clients.
func NewResultResponse(job models.Job) ResultResponse {
	resp := ResultResponse{TaskID: job.ID}

	switch job.State {
	case models.JobSucceeded:
		resp.Status = StatusCompleted
		resp.Result = job.Report
	case models.JobFailed:
		resp.Status = StatusFailed
		resp.Error = job.FailureReason
	case models.JobRunning:
		resp.Status = StatusRunning
	default:
		resp.Status = StatusPending
	}

	return resp
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) Metrics(c *gin.Context) {
	c.JSON(http.StatusOK, h.metrics.Snapshot())
}

// Filters lists the intake filter chain with its runtime state.
func (h *Handler) Filters(c *gin.Context) {
	c.JSON(http.StatusOK, intake.Describe(h.stager.Filters()))
}
