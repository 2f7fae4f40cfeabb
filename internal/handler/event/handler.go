package event

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/arpatel/calendar-api/internal/handler"
	"github.com/arpatel/calendar-api/internal/model"
	"github.com/arpatel/calendar-api/internal/repository"
	"github.com/arpatel/calendar-api/internal/service/event"
	apperrors "github.com/arpatel/calendar-api/pkg/errors"
)

type Handler struct {
	service       *event.Service
	notifications repository.NotificationRepository
}

func NewHandler(service *event.Service, notifications repository.NotificationRepository) *Handler {
	return &Handler{service: service, notifications: notifications}
}

func (h *Handler) CreateEvent(c *gin.Context) {
	var req model.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	created, conflicts, err := h.service.CreateEvent(c.Request.Context(), &req)
	if err != nil {
		if apperrors.IsConflict(err) {
			c.JSON(http.StatusConflict, handler.NewConflictResponse(err.Error(), gin.H{"conflicts": conflicts}))
			return
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(gin.H{
		"event":     created,
		"conflicts": conflicts,
	}))
}

func (h *Handler) GetEvent(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid event ID"))
		return
	}

	found, err := h.service.GetEvent(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(found))
}

func (h *Handler) ListEvents(c *gin.Context) {
	filters := &model.EventFilters{
		OwnerKind: c.Query("owner_kind"),
		Category:  c.Query("category"),
	}
	if id := c.Query("owner_id"); id != "" {
		ownerID, err := uuid.Parse(id)
		if err != nil {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid owner ID"))
			return
		}
		filters.OwnerID = ownerID
	}
	if status := c.Query("status"); status != "" {
		filters.Status = model.EventStatus(status)
	}
	if date := c.Query("start_date"); date != "" {
		t, err := time.Parse(time.RFC3339, date)
		if err != nil {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid start_date"))
			return
		}
		filters.StartDate = t
	}
	if date := c.Query("end_date"); date != "" {
		t, err := time.Parse(time.RFC3339, date)
		if err != nil {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid end_date"))
			return
		}
		filters.EndDate = t
	}

	events, err := h.service.ListEvents(c.Request.Context(), filters)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(events))
}

func (h *Handler) UpdateEvent(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid event ID"))
		return
	}

	var req model.UpdateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	updated, conflicts, err := h.service.UpdateEvent(c.Request.Context(), id, &req)
	if err != nil {
		if apperrors.IsConflict(err) {
			c.JSON(http.StatusConflict, handler.NewConflictResponse(err.Error(), gin.H{"conflicts": conflicts}))
			return
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{
		"event":     updated,
		"conflicts": conflicts,
	}))
}

func (h *Handler) CancelEvent(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid event ID"))
		return
	}

	if err := h.service.CancelEvent(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"cancelled": true}))
}

func (h *Handler) DeleteEvent(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid event ID"))
		return
	}

	if err := h.service.DeleteEvent(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"deleted": true}))
}

func (h *Handler) ListOccurrences(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid event ID"))
		return
	}

	from, to, err := windowParams(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	occurrences, err := h.service.ListOccurrences(c.Request.Context(), id, from, to)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(occurrences))
}

type detachOccurrenceRequest struct {
	OccurrenceStart time.Time `json:"occurrence_start" binding:"required"`
}

func (h *Handler) DetachOccurrence(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid event ID"))
		return
	}

	var req detachOccurrenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	exception, err := h.service.DetachOccurrence(c.Request.Context(), id, req.OccurrenceStart)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(exception))
}

func (h *Handler) CheckConflicts(c *gin.Context) {
	var req model.CheckConflictsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	conflicts, err := h.service.CheckConflicts(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{
		"has_conflicts": len(conflicts) > 0,
		"conflicts":     conflicts,
	}))
}

func (h *Handler) BulkUpdateStatus(c *gin.Context) {
	var req model.BulkUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	updated, err := h.service.BulkUpdateStatus(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"updated": updated}))
}

type addAttendeeRequest struct {
	UserID uuid.UUID          `json:"user_id" binding:"required"`
	Email  string             `json:"email" binding:"required,email"`
	Role   model.AttendeeRole `json:"role" binding:"omitempty,oneof=organizer attendee optional"`
}

func (h *Handler) AddAttendee(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid event ID"))
		return
	}

	var req addAttendeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	attendee, err := h.service.AddAttendee(c.Request.Context(), id, req.UserID, req.Email, req.Role)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(attendee))
}

// ListNotifications exposes the event's notification rows, delivered and
// undelivered, for troubleshooting.
func (h *Handler) ListNotifications(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid event ID"))
		return
	}

	notifications, err := h.notifications.ListForEvent(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(notifications))
}

func windowParams(c *gin.Context) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	from := now
	to := now.AddDate(0, 3, 0)

	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		from = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to = t
	}
	return from, to, nil
}

func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch apperrors.CodeOf(err) {
	case apperrors.ErrNotFound:
		status = http.StatusNotFound
	case apperrors.ErrBadRequest, apperrors.ErrValidation:
		status = http.StatusBadRequest
	case apperrors.ErrConflict:
		status = http.StatusConflict
	}
	c.JSON(status, handler.NewErrorResponse(err.Error()))
}
