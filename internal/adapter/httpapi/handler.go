// Package httpapi is the HTTP submission and status-polling surface.
package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github-repo-judge/internal/common"
	"github-repo-judge/internal/domain"
	"github-repo-judge/internal/port"
	"github-repo-judge/pkg/logger"
	"github-repo-judge/pkg/metrics"
)

// QueueStats is the optional health view of a queue.
type QueueStats interface {
	Len() int
	Processing() int
}

type Handler struct {
	queue       port.JobQueue
	repoStore   port.Repository
	leaderboard port.Leaderboard
	logger      logger.Logger
}

// NewHandler wires the routes onto router. repoStore may be nil; the
// evaluation and leaderboard routes then answer 404.
func NewHandler(router *gin.Engine, queue port.JobQueue, repoStore port.Repository) *Handler {
	h := &Handler{
		queue:     queue,
		repoStore: repoStore,
		logger:    logger.Get().Named("httpapi"),
	}
	if lb, ok := repoStore.(port.Leaderboard); ok {
		h.leaderboard = lb
	}

	router.POST("/submissions", h.Submit)
	router.GET("/jobs/:id", h.JobStatus)
	router.GET("/evaluations/:submission_id", h.GetEvaluation)
	router.GET("/leaderboard", h.Leaderboard)
	router.GET("/healthz", h.Health)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	return h
}

// NewRouter returns a gin engine with recovery and request logging.
func NewRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger.Get().Named("http")))
	return router
}

func requestLogger(l logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		l.Debug(c.Request.Context(), "request",
			logger.String("method", c.Request.Method),
			logger.String("path", c.FullPath()),
			logger.Int("status", c.Writer.Status()),
			logger.Duration("elapsed", time.Since(start)),
		)
	}
}

type submitRequest struct {
	SubmissionID string        `json:"submission_id"`
	RepoURL      string        `json:"repo_url" binding:"required"`
	TeamName     string        `json:"team_name"`
	Rubric       domain.Rubric `json:"rubric"`
	VerifyBuild  bool          `json:"verify_build"`
}

// Submit 接收提交，立即返回 job id
func (h *Handler) Submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ref, err := domain.ParseRepoURL(req.RepoURL)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(req.SubmissionID) == "" {
		req.SubmissionID = uuid.NewString()
	}

	jobID := h.queue.Submit(domain.JobPayload{
		SubmissionID: req.SubmissionID,
		RepoURL:      ref.URL(),
		TeamName:     req.TeamName,
		Rubric:       req.Rubric,
		VerifyBuild:  req.VerifyBuild,
	})
	h.logger.Info(c.Request.Context(), "submission queued",
		logger.String("job_id", jobID),
		logger.String("submission_id", req.SubmissionID),
		logger.String("repo", ref.FullName()),
	)

	c.JSON(http.StatusAccepted, gin.H{
		"job_id":        jobID,
		"submission_id": req.SubmissionID,
		"status":        domain.JobPending,
	})
}

// JobStatus 轮询任务状态: {status, result|error}
func (h *Handler) JobStatus(c *gin.Context) {
	job, ok := h.queue.Status(strings.TrimSpace(c.Param("id")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	resp := gin.H{
		"job_id":        job.ID,
		"submission_id": job.Payload.SubmissionID,
		"status":        job.Status,
		"created_at":    job.CreatedAt,
	}
	switch job.Status {
	case domain.JobCompleted:
		resp["result"] = job.Result
		resp["finished_at"] = job.FinishedAt
	case domain.JobFailed:
		resp["error"] = job.Error
		resp["finished_at"] = job.FinishedAt
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetEvaluation(c *gin.Context) {
	if h.repoStore == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "persistence disabled"})
		return
	}
	rec, err := h.repoStore.FindEvaluation(c.Request.Context(), c.Param("submission_id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *Handler) Leaderboard(c *gin.Context) {
	if h.leaderboard == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "leaderboard unavailable"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit <= 0 || limit > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 100"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()
	recs, err := h.leaderboard.TopEvaluations(ctx, limit)
	if err != nil {
		h.writeError(c, err)
		return
	}

	rows := make([]gin.H, 0, len(recs))
	for i, r := range recs {
		rows = append(rows, gin.H{
			"rank":          i + 1,
			"submission_id": r.SubmissionID,
			"team_name":     r.TeamName,
			"total_score":   r.TotalScore,
			"placeholder":   r.Placeholder,
		})
	}
	c.JSON(http.StatusOK, gin.H{"entries": rows})
}

func (h *Handler) Health(c *gin.Context) {
	resp := gin.H{"status": "ok"}
	if qs, ok := h.queue.(QueueStats); ok {
		resp["queue_depth"] = qs.Len()
		resp["processing"] = qs.Processing()
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch common.CodeOf(err) {
	case common.ErrCodeNotFound:
		status = http.StatusNotFound
	case common.ErrCodeInvalidInput:
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		h.logger.Error(c.Request.Context(), "request failed", logger.Error(err))
	}
	c.JSON(status, gin.H{"error": common.MessageOf(err)})
}
