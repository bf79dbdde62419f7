// Package api implements the submission HTTP surface (C6): accept
// code, enqueue it, and let clients poll for the result.
package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/iamjoytank/docker-code-runner/internal/apierr"
	"github.com/iamjoytank/docker-code-runner/internal/catalog"
	"github.com/iamjoytank/docker-code-runner/internal/queue"
	"github.com/iamjoytank/docker-code-runner/pkg/models"
)

// StandardResponse is the JSON envelope every handler replies with.
type StandardResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// maxCodeBytes bounds a single submission's source size.
const maxCodeBytes = 256 * 1024

// Handler holds the dependencies every route needs.
type Handler struct {
	Queue   *queue.Queue
	Catalog *catalog.Catalog
}

// NewHandler wires a Handler to its collaborators.
func NewHandler(q *queue.Queue, cat *catalog.Catalog) *Handler {
	return &Handler{Queue: q, Catalog: cat}
}

// Run handles POST /run: validates the submission, enqueues it, and
// returns 202 with the new job's id. It never blocks on execution.
func (h *Handler) Run(c *gin.Context) {
	var sub models.Submission
	if err := c.ShouldBindJSON(&sub); err != nil {
		c.JSON(http.StatusBadRequest, StandardResponse{
			Success: false,
			Error:   "invalid request body",
			Code:    "INVALID_REQUEST",
		})
		return
	}

	if strings.TrimSpace(sub.Code) == "" {
		c.JSON(http.StatusBadRequest, StandardResponse{
			Success: false,
			Error:   "code must not be empty",
			Code:    "VALIDATION_ERROR",
		})
		return
	}
	if len(sub.Code) > maxCodeBytes {
		c.JSON(http.StatusBadRequest, StandardResponse{
			Success: false,
			Error:   "code exceeds maximum submission size",
			Code:    "VALIDATION_ERROR",
		})
		return
	}

	if _, err := h.Catalog.Resolve(sub.Language); err != nil {
		c.JSON(http.StatusBadRequest, StandardResponse{
			Success: false,
			Error:   err.Error(),
			Code:    "UNSUPPORTED_LANGUAGE",
		})
		return
	}

	job, err := h.Queue.Submit(c.Request.Context(), sub.Language, sub.Code)
	if err != nil {
		c.JSON(http.StatusInternalServerError, StandardResponse{
			Success: false,
			Error:   "failed to enqueue job",
			Code:    "ENQUEUE_FAILED",
		})
		return
	}

	c.JSON(http.StatusAccepted, StandardResponse{
		Success: true,
		Data: gin.H{
			"jobId": job.ID,
			"state": job.State,
		},
	})
}

// Result handles GET /results/:jobId: a non-blocking poll for a job's
// current state and, once terminal, its output or failure reason.
func (h *Handler) Result(c *gin.Context) {
	jobID := c.Param("jobId")

	job, err := h.Queue.Get(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, apierr.ErrNotFound) {
			c.JSON(http.StatusNotFound, StandardResponse{
				Success: false,
				Error:   "job not found",
				Code:    "NOT_FOUND",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, StandardResponse{
			Success: false,
			Error:   "failed to fetch job",
			Code:    "QUEUE_ERROR",
		})
		return
	}

	c.JSON(http.StatusOK, StandardResponse{
		Success: true,
		Data: gin.H{
			"jobId":    job.ID,
			"language": job.Language,
			"state":    job.State,
			"output":   job.Output,
			"error":    job.Error,
		},
	})
}

// Languages handles GET /languages: lists every tag the catalog can
// resolve, so a client can discover valid `language` values.
func (h *Handler) Languages(c *gin.Context) {
	c.JSON(http.StatusOK, StandardResponse{
		Success: true,
		Data:    gin.H{"languages": h.Catalog.Tags()},
	})
}

// HealthStatus is the literal wire shape of GET /health from spec.md
// §6: {server:"OK", redis:"OK"} on success, {server:"OK",
// redis:"ERROR", error} on broker failure.
type HealthStatus struct {
	Server string `json:"server"`
	Redis  string `json:"redis"`
	Error  string `json:"error,omitempty"`
}

// Health handles GET /health on the fully-wired router.
func (h *Handler) Health(c *gin.Context) {
	if err := h.Queue.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, HealthStatus{
			Server: "OK",
			Redis:  "ERROR",
			Error:  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, HealthStatus{Server: "OK", Redis: "OK"})
}
