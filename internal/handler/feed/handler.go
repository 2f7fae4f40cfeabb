package feed

import (
	"fmt"
	"net/http"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/teambition/rrule-go"

	"github.com/arpatel/calendar-api/internal/handler"
	"github.com/arpatel/calendar-api/internal/model"
	"github.com/arpatel/calendar-api/internal/repository"
	"github.com/arpatel/calendar-api/internal/service/recurrence"
	"github.com/arpatel/calendar-api/pkg/logger"
)

const (
	feedLookbehind = 30 * 24 * time.Hour
	feedLookahead  = 365 * 24 * time.Hour

	icsTimeLayout = "20060102T150405Z"
)

// Handler serves an owner's calendar as an ICS feed. Recurring events are
// emitted as a single VEVENT with an RRULE, detached slots as EXDATEs plus
// their own standalone VEVENT.
type Handler struct {
	events repository.EventRepository
	logger *logger.Logger
}

func NewHandler(events repository.EventRepository, log *logger.Logger) *Handler {
	return &Handler{events: events, logger: log}
}

func (h *Handler) Calendar(c *gin.Context) {
	ownerKind := c.Param("owner_kind")
	ownerID, err := uuid.Parse(c.Param("owner_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid owner ID"))
		return
	}

	now := time.Now().UTC()
	events, err := h.events.ListByOwnerInWindow(c.Request.Context(), ownerKind, ownerID, now.Add(-feedLookbehind), now.Add(feedLookahead))
	if err != nil {
		h.logger.Error(err, "failed to load events for feed",
			"owner_kind", ownerKind,
			"owner_id", ownerID.String())
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse("failed to build feed"))
		return
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)

	for _, ev := range events {
		if ev.Status == model.EventStatusCancelled {
			continue
		}
		if err := h.addEvent(c, cal, ev); err != nil {
			h.logger.Error(err, "skipping event in feed", "event_id", ev.ID.String())
		}
	}

	c.Data(http.StatusOK, "text/calendar; charset=utf-8", []byte(cal.Serialize()))
}

func (h *Handler) addEvent(c *gin.Context, cal *ics.Calendar, ev *model.Event) error {
	ve := cal.AddEvent(ev.ID.String())
	ve.SetDtStampTime(time.Now().UTC())
	ve.SetSummary(ev.Title)
	if ev.Description != "" {
		ve.SetDescription(ev.Description)
	}
	ve.SetStatus(ics.ObjectStatusConfirmed)

	if ev.IsAllDay {
		ve.SetAllDayStartAt(ev.StartTime)
		if ev.EndTime != nil {
			ve.SetAllDayEndAt(*ev.EndTime)
		}
	} else {
		ve.SetStartAt(ev.StartTime)
		if ev.EndTime != nil {
			ve.SetEndAt(*ev.EndTime)
		}
	}

	rule := ev.Recurrence()
	if rule.Type == model.RecurrenceNone {
		return nil
	}

	rruleStr, err := rruleFor(ev, rule)
	if err != nil {
		return err
	}
	ve.SetProperty(ics.ComponentPropertyRrule, rruleStr)

	exceptions, err := h.events.ListExceptions(c.Request.Context(), ev.ID)
	if err != nil {
		return fmt.Errorf("failed to list exceptions: %w", err)
	}
	for _, slot := range recurrence.DetachedTimes(exceptions) {
		ve.AddProperty(ics.ComponentPropertyExdate, slot.UTC().Format(icsTimeLayout))
	}
	return nil
}

func rruleFor(ev *model.Event, rule model.RecurrenceRule) (string, error) {
	opt := rrule.ROption{
		Interval: rule.Interval,
		Dtstart:  ev.StartTime.UTC(),
	}
	switch rule.Type {
	case model.RecurrenceDaily:
		opt.Freq = rrule.DAILY
	case model.RecurrenceWeekly:
		opt.Freq = rrule.WEEKLY
	case model.RecurrenceMonthly:
		opt.Freq = rrule.MONTHLY
	case model.RecurrenceYearly:
		opt.Freq = rrule.YEARLY
	default:
		return "", fmt.Errorf("unsupported recurrence type %q", rule.Type)
	}
	if ev.RecurrenceEndDate != nil {
		opt.Until = ev.RecurrenceEndDate.UTC()
	}
	if ev.RecurrenceCount != nil {
		opt.Count = *ev.RecurrenceCount
	}

	r, err := rrule.NewRRule(opt)
	if err != nil {
		return "", fmt.Errorf("failed to build recurrence rule: %w", err)
	}
	return r.OrigOptions.RRuleString(), nil
}
