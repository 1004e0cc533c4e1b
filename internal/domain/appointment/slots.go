package appointment

import (
	"sort"
	"time"

	"github.com/homerepairhub/repair-scheduler/internal/models"
)

const (
	MinSlotDurationMinutes = 15
	MaxSlotDurationMinutes = 240

	MinAppointmentWindowMinutes = 15
	MaxAppointmentWindowMinutes = 8 * 60
)

// SlotQuery is a consistent snapshot of the inputs the slot engine needs.
// ComputeAvailableSlots is a pure function of it: calling it twice with the
// same snapshot yields identical output.
type SlotQuery struct {
	FromUtc time.Time
	ToUtc   time.Time

	// 0 means "use each rule's own slot duration".
	SlotDurationMinutes int

	Now      time.Time
	Location *time.Location
}

func parseHM(hm string) (h, m int, ok bool) {
	t, err := time.Parse("15:04", hm)
	if err != nil {
		return 0, 0, false
	}
	return t.Hour(), t.Minute(), true
}

func ruleBoundsForDay(rule models.AvailabilityRule, day time.Time, loc *time.Location) (time.Time, time.Time, bool) {
	sh, sm, ok := parseHM(rule.StartTime)
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	eh, em, ok := parseHM(rule.EndTime)
	if !ok {
		return time.Time{}, time.Time{}, false
	}

	start := time.Date(day.Year(), day.Month(), day.Day(), sh, sm, 0, 0, loc)
	end := time.Date(day.Year(), day.Month(), day.Day(), eh, em, 0, 0, loc)
	if !start.Before(end) {
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

// ComputeAvailableSlots derives the ordered bookable windows for a provider:
// recurring rules minus one-off exceptions minus blocking appointments,
// sliced into back-to-back slots anchored at each rule's start.
func ComputeAvailableSlots(
	rules []models.AvailabilityRule,
	exceptions []models.AvailabilityException,
	blocking []models.ServiceAppointment,
	q SlotQuery,
) []Window {

	loc := q.Location
	if loc == nil {
		loc = time.UTC
	}

	seen := make(map[time.Time]bool)
	var slots []Window

	fromLocal := q.FromUtc.In(loc)
	dayCursor := time.Date(fromLocal.Year(), fromLocal.Month(), fromLocal.Day(), 0, 0, 0, 0, loc)

	for ; dayCursor.Before(q.ToUtc.In(loc)); dayCursor = dayCursor.AddDate(0, 0, 1) {
		weekday := int(dayCursor.Weekday())

		for _, rule := range rules {
			if rule.Weekday != weekday {
				continue
			}

			durMinutes := q.SlotDurationMinutes
			if durMinutes == 0 {
				durMinutes = rule.SlotDurationMinutes
			}
			if durMinutes < MinSlotDurationMinutes || durMinutes > MaxSlotDurationMinutes {
				continue
			}
			dur := time.Duration(durMinutes) * time.Minute

			ruleStart, ruleEnd, ok := ruleBoundsForDay(rule, dayCursor, loc)
			if !ok {
				continue
			}

			for cursor := ruleStart; !cursor.Add(dur).After(ruleEnd); cursor = cursor.Add(dur) {
				slot := Window{Start: cursor.UTC(), End: cursor.Add(dur).UTC()}

				if slot.Start.Before(q.FromUtc) || slot.End.After(q.ToUtc) {
					continue
				}
				if slot.Start.Before(q.Now) {
					continue
				}
				if overlapsException(slot, exceptions) || overlapsBlocking(slot, blocking, nil) {
					continue
				}
				if seen[slot.Start] {
					continue
				}
				seen[slot.Start] = true
				slots = append(slots, slot)
			}
		}
	}

	sort.Slice(slots, func(i, j int) bool {
		return slots[i].Start.Before(slots[j].Start)
	})
	return slots
}

func overlapsException(w Window, exceptions []models.AvailabilityException) bool {
	for _, e := range exceptions {
		if w.Overlaps(Window{Start: e.StartsAtUtc, End: e.EndsAtUtc}) {
			return true
		}
	}
	return false
}

func overlapsBlocking(w Window, appointments []models.ServiceAppointment, skip *models.ServiceAppointment) bool {
	for i := range appointments {
		ap := &appointments[i]
		if skip != nil && ap.ID == skip.ID {
			continue
		}
		if w.Overlaps(Window{Start: ap.WindowStartUtc, End: ap.WindowEndUtc}) {
			return true
		}
	}
	return false
}

// WindowWithinRules reports whether the window fits entirely inside some
// recurring rule on its weekday, interpreted in the provider's timezone.
func WindowWithinRules(rules []models.AvailabilityRule, w Window, loc *time.Location) bool {
	if loc == nil {
		loc = time.UTC
	}

	startLocal := w.Start.In(loc)
	day := time.Date(startLocal.Year(), startLocal.Month(), startLocal.Day(), 0, 0, 0, 0, loc)

	for _, rule := range rules {
		if rule.Weekday != int(day.Weekday()) {
			continue
		}
		ruleStart, ruleEnd, ok := ruleBoundsForDay(rule, day, loc)
		if !ok {
			continue
		}
		if !w.Start.Before(ruleStart) && !w.End.After(ruleEnd) {
			return true
		}
	}
	return false
}

// FirstConflicting returns the first blocking appointment overlapping the
// window, ignoring excludeID (used when revalidating a reschedule).
func FirstConflicting(w Window, appointments []models.ServiceAppointment, excludeID *models.ServiceAppointment) *models.ServiceAppointment {
	for i := range appointments {
		ap := &appointments[i]
		if excludeID != nil && ap.ID == excludeID.ID {
			continue
		}
		if w.Overlaps(Window{Start: ap.WindowStartUtc, End: ap.WindowEndUtc}) {
			return ap
		}
	}
	return nil
}
