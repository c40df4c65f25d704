package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"exam-backend/internal/progress"
	"exam-backend/internal/shared/server/middleware"
	"exam-backend/internal/shared/server/respond"
)

const (
	contentTypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Handler wires HTTP handlers to the jobs service.
type Handler struct {
	Svc         *Service
	Broadcaster *progress.Broadcaster
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, broadcaster *progress.Broadcaster) *Handler {
	return &Handler{Svc: svc, Broadcaster: broadcaster}
}

// RegisterRoutes attaches job routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/jobs", h.createJob)
	rg.GET("/jobs", h.listJobs)
	rg.GET("/jobs/:id", h.getJob)
	rg.DELETE("/jobs/:id", h.deleteJob)
	rg.GET("/jobs/:id/download", h.downloadResult)
	rg.GET("/jobs/:id/answer-key", h.downloadAnswerKey)
	rg.GET("/jobs/:id/events", h.streamEvents)
}

func (h *Handler) createJob(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "a PDF file is required", nil)
		return
	}
	defer file.Close()

	in := CreateInput{
		FileName: header.Filename,
		File:     file,
		Label:    c.PostForm("label"),
		Subject:  c.PostForm("subject"),
	}
	intFields := []struct {
		name     string
		dst      *int
		required bool
	}{
		{"pageStart", &in.PageStart, true},
		{"pageEnd", &in.PageEnd, true},
		{"questionStart", &in.QuestionStart, true},
		{"questionEnd", &in.QuestionEnd, true},
		{"year", &in.Year, false},
	}
	for _, f := range intFields {
		raw := strings.TrimSpace(c.PostForm(f.name))
		if raw == "" {
			if f.required {
				respond.Error(c, http.StatusBadRequest, "validation_error", f.name+" is required", []map[string]string{
					{"field": f.name, "issue": "required"},
				})
				return
			}
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", f.name+" must be an integer", []map[string]string{
				{"field": f.name, "issue": "not_a_number"},
			})
			return
		}
		*f.dst = v
	}

	ctx := middleware.ContextWithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	job, err := h.Svc.Create(ctx, in)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			respond.Error(c, http.StatusBadRequest, "validation_error", verr.Message, []map[string]string{
				{"field": verr.Field, "issue": verr.Message},
			})
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to create job", nil)
		return
	}

	respond.JSON(c, http.StatusAccepted, job)
}

func (h *Handler) getJob(c *gin.Context) {
	job, err := h.Svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "job not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch job", nil)
		}
		return
	}
	respond.OK(c, job)
}

func (h *Handler) listJobs(c *gin.Context) {
	filter := ListFilter{Status: c.Query("status")}
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			filter.Limit = v
		}
	}
	if raw := c.Query("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			filter.Offset = v
		}
	}
	if raw := c.Query("sinceHours"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			filter.Since = time.Now().UTC().Add(-time.Duration(v) * time.Hour)
		}
	}

	jobs, total, err := h.Svc.List(c.Request.Context(), filter)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list jobs", nil)
		return
	}
	if jobs == nil {
		jobs = []Job{}
	}
	respond.OK(c, gin.H{"jobs": jobs, "total": total})
}

func (h *Handler) deleteJob(c *gin.Context) {
	err := h.Svc.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "job not found", nil)
		case errors.Is(err, ErrConflict):
			respond.Error(c, http.StatusConflict, "job_processing", "job is still processing and cannot be deleted", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to delete job", nil)
		}
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) downloadResult(c *gin.Context) {
	h.download(c, contentTypeDOCX, h.Svc.Result)
}

func (h *Handler) downloadAnswerKey(c *gin.Context) {
	h.download(c, contentTypeXLSX, h.Svc.AnswerKey)
}

func (h *Handler) download(c *gin.Context, contentType string, open func(ctx context.Context, jobID string) (Download, error)) {
	dl, err := open(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "job or artifact not found", nil)
		case errors.Is(err, ErrNotCompleted):
			respond.Error(c, http.StatusConflict, "not_completed", "job has not completed yet", nil)
		case errors.Is(err, ErrExpired):
			respond.Error(c, http.StatusGone, "expired", "job artifacts expired and were cleaned up", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to open artifact", nil)
		}
		return
	}
	defer dl.Body.Close()

	c.Header("Content-Type", contentType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(dl.FileName)))
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, dl.Body); err != nil {
		// Response already started; nothing left but to drop the connection.
		_ = c.Error(err)
	}
}

// streamEvents serves the job's progress feed as server-sent events. The
// stream ends when the job reaches a terminal state or the client goes away.
func (h *Handler) streamEvents(c *gin.Context) {
	jobID := c.Param("id")
	job, err := h.Svc.Get(c.Request.Context(), jobID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "job not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch job", nil)
		}
		return
	}

	listenerID := middleware.RequestIDFromContext(c)
	ch := h.Broadcaster.Subscribe(listenerID, jobID)
	defer h.Broadcaster.Unsubscribe(listenerID)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	// Current state first so late subscribers do not miss the snapshot.
	c.SSEvent(snapshotKind(job), snapshotEvent(job))
	c.Writer.Flush()
	if job.IsTerminal() {
		return
	}

	clientGone := c.Request.Context().Done()
	for {
		select {
		case <-clientGone:
			return
		case ev, open := <-ch:
			if !open {
				return
			}
			c.SSEvent(ev.Kind, ev)
			c.Writer.Flush()
			if ev.Kind == progress.KindComplete || ev.Kind == progress.KindError {
				return
			}
		}
	}
}

func snapshotKind(job Job) string {
	switch job.Status {
	case StatusCompleted:
		return progress.KindComplete
	case StatusFailed:
		return progress.KindError
	default:
		return progress.KindProgress
	}
}

func snapshotEvent(job Job) progress.Event {
	switch job.Status {
	case StatusCompleted:
		ev := progress.Complete(job.OutputFilename, job.TotalQuestions, job.DiagramCount)
		ev.JobID = job.ID
		return ev
	case StatusFailed:
		ev := progress.Error(job.ErrorMessage, job.ErrorDetail)
		ev.JobID = job.ID
		return ev
	default:
		ev := progress.Progress(job.Progress, job.CurrentStep)
		ev.JobID = job.ID
		return ev
	}
}
