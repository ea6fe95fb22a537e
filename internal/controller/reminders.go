package controller

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"chronoloom/internal/models"
	"chronoloom/internal/query"
	"chronoloom/internal/repository"
	"chronoloom/internal/service"
	"chronoloom/pkg/logger"
)

// Pinger is a dependency the readiness check pings.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the reminder API.
type Handler struct {
	svc      *service.Reminders
	location *time.Location
	checks   map[string]Pinger
}

// New returns a handler. loc is the zone long-form dates are searched in;
// checks are pinged by Ready.
func New(svc *service.Reminders, loc *time.Location, checks map[string]Pinger) *Handler {
	if loc == nil {
		loc = time.Local
	}
	return &Handler{svc: svc, location: loc, checks: checks}
}

// ListReminders returns reminders filtered by ?frequency=, searched by ?q=
// and ordered by ?sort=createdAt|completedAt&order=asc|desc. Without sort
// parameters insertion order is kept.
func (h *Handler) ListReminders(c *gin.Context) {
	q := query.Query{
		Text:      c.Query("q"),
		Frequency: c.Query("frequency"),
		Location:  h.location,
	}
	if tz := c.Query("tz"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
			return
		}
		q.Location = loc
	}
	if sortBy, order := c.Query("sort"), c.Query("order"); sortBy != "" || order != "" {
		field, dir, err := query.ParseSort(sortBy, order)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
			return
		}
		q.SortBy, q.Order = field, dir
	}
	c.JSON(http.StatusOK, h.svc.List(c.Request.Context(), q))
}

// GetReminder returns one reminder by id.
func (h *Handler) GetReminder(c *gin.Context) {
	r, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err, "GetReminder failed")
		return
	}
	c.JSON(http.StatusOK, r)
}

// CreateReminder (auth): stores a reminder and returns it with the reconcile outcome.
func (h *Handler) CreateReminder(c *gin.Context) {
	var body models.ReminderInput
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}
	r, res, err := h.svc.Create(c.Request.Context(), body)
	if err != nil {
		writeError(c, err, "CreateReminder failed")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"reminder": r, "reconcile": res})
}

// UpdateReminder (auth): replaces the editable fields of a reminder.
func (h *Handler) UpdateReminder(c *gin.Context) {
	var body models.ReminderInput
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}
	r, res, err := h.svc.Update(c.Request.Context(), c.Param("id"), body)
	if err != nil {
		writeError(c, err, "UpdateReminder failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"reminder": r, "reconcile": res})
}

// CompleteReminder (auth): marks a reminder completed.
func (h *Handler) CompleteReminder(c *gin.Context) {
	r, res, err := h.svc.Complete(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err, "CompleteReminder failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"reminder": r, "reconcile": res})
}

// DeleteReminder (auth): removes a reminder and cancels its notification.
func (h *Handler) DeleteReminder(c *gin.Context) {
	id := c.Param("id")
	res, err := h.svc.Delete(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "DeleteReminder failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "reconcile": res})
}

// Reconcile (auth): runs a reconcile pass now.
func (h *Handler) Reconcile(c *gin.Context) {
	res, err := h.svc.Resync(c.Request.Context(), service.TriggerManual)
	if err != nil {
		writeError(c, err, "Reconcile failed")
		return
	}
	c.JSON(http.StatusOK, res)
}

// GetPushToken (auth) returns the registered device token.
func (h *Handler) GetPushToken(c *gin.Context) {
	token, err := h.svc.PushToken(c.Request.Context())
	if err != nil {
		writeError(c, err, "GetPushToken failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// PutPushToken (auth) registers the device token notifications are sent to.
func (h *Handler) PutPushToken(c *gin.Context) {
	var body struct {
		Token string `json:"token"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}
	if err := h.svc.RegisterPushToken(c.Request.Context(), body.Token); err != nil {
		writeError(c, err, "PutPushToken failed")
		return
	}
	c.Status(http.StatusNoContent)
}

// Health returns 200 if the process is alive. Used by load balancers.
func (h *Handler) Health(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

// Ready returns 200 if every configured backend answers a ping.
func (h *Handler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			logger.Warn(ctx, "Readiness check failed", "dependency", name, "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": name + " unavailable"})
			return
		}
	}
	c.String(http.StatusOK, "OK")
}

func writeError(c *gin.Context, err error, msg string) {
	ctx := c.Request.Context()
	switch {
	case errors.Is(err, models.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Reminder not found"})
	case errors.Is(err, repository.ErrStorage):
		logger.Error(ctx, msg, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Storage unavailable"})
	case isContextErr(err):
		logger.Debug(ctx, msg, "error", err)
		c.Status(http.StatusServiceUnavailable)
	default:
		logger.Error(ctx, msg, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
