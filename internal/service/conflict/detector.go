package conflict

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/arpatel/calendar-api/internal/model"
	"github.com/arpatel/calendar-api/internal/repository"
	"github.com/arpatel/calendar-api/internal/service/recurrence"
)

const (
	exceptionCacheTTL     = 30 * time.Second
	exceptionCacheCleanup = 5 * time.Minute
)

// Conflict pairs the clashing event with the concrete occurrence that
// overlaps the candidate window.
type Conflict struct {
	Event      *model.Event     `json:"event"`
	Occurrence model.Occurrence `json:"occurrence"`
}

// Detector finds scheduled events of one owner that overlap a candidate
// time window. Read-only; safe for concurrent use.
type Detector struct {
	events     repository.EventRepository
	exceptions *cache.Cache
}

func NewDetector(events repository.EventRepository) *Detector {
	return &Detector{
		events:     events,
		exceptions: cache.New(exceptionCacheTTL, exceptionCacheCleanup),
	}
}

// FindConflicts returns every scheduled occurrence of the owner whose
// [start, end) interval overlaps [candidateStart, candidateEnd). Touching
// endpoints do not overlap. Cancelled and completed events never conflict,
// nor does the event named by excludeID. An empty result is the normal
// no-conflict outcome, not an error.
func (d *Detector) FindConflicts(ctx context.Context, ownerKind string, ownerID uuid.UUID, candidateStart, candidateEnd time.Time, excludeID *uuid.UUID) ([]Conflict, error) {
	if !candidateStart.Before(candidateEnd) {
		return nil, nil
	}

	events, err := d.events.ListByOwnerInWindow(ctx, ownerKind, ownerID, candidateStart, candidateEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to query owner events: %w", err)
	}

	var conflicts []Conflict
	for _, ev := range events {
		if ev.Status != model.EventStatusScheduled {
			continue
		}
		if excludeID != nil && ev.ID == *excludeID {
			continue
		}

		var detached []time.Time
		if ev.IsRecurring {
			detached, err = d.detachedTimes(ctx, ev.ID)
			if err != nil {
				return nil, err
			}
		}

		for _, occ := range recurrence.Expand(ev, candidateStart, candidateEnd, detached) {
			if overlaps(occ, candidateStart, candidateEnd) {
				conflicts = append(conflicts, Conflict{Event: ev, Occurrence: occ})
			}
		}
	}

	sort.Slice(conflicts, func(i, j int) bool {
		return conflicts[i].Occurrence.StartTime.Before(conflicts[j].Occurrence.StartTime)
	})
	return conflicts, nil
}

// overlaps applies the half-open interval rule: [a1,a2) and [b1,b2)
// conflict iff a1 < b2 && b1 < a2.
func overlaps(occ model.Occurrence, candidateStart, candidateEnd time.Time) bool {
	occStart, occEnd := occ.Span()
	return occStart.Before(candidateEnd) && candidateStart.Before(occEnd)
}

func (d *Detector) detachedTimes(ctx context.Context, seriesID uuid.UUID) ([]time.Time, error) {
	key := seriesID.String()
	if cached, found := d.exceptions.Get(key); found {
		return cached.([]time.Time), nil
	}

	rows, err := d.events.ListExceptions(ctx, seriesID)
	if err != nil {
		return nil, fmt.Errorf("failed to list series exceptions: %w", err)
	}

	times := recurrence.DetachedTimes(rows)
	d.exceptions.Set(key, times, cache.DefaultExpiration)
	return times, nil
}
