package appointment

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homerepairhub/repair-scheduler/internal/models"
)

// Monday in UTC, far in the future so "slot in the past" never trips.
var monday = time.Date(2030, 1, 7, 0, 0, 0, 0, time.UTC)

func mondayRule(start, end string, slotMinutes int) models.AvailabilityRule {
	return models.AvailabilityRule{
		Weekday:             int(time.Monday),
		StartTime:           start,
		EndTime:             end,
		SlotDurationMinutes: slotMinutes,
	}
}

func slotQuery(fromHour, toHour int) SlotQuery {
	return SlotQuery{
		FromUtc:  monday.Add(time.Duration(fromHour) * time.Hour),
		ToUtc:    monday.Add(time.Duration(toHour) * time.Hour),
		Now:      monday,
		Location: time.UTC,
	}
}

func TestComputeAvailableSlotsBasic(t *testing.T) {
	rules := []models.AvailabilityRule{mondayRule("08:00", "18:00", 60)}

	slots := ComputeAvailableSlots(rules, nil, nil, slotQuery(9, 12))

	require.Len(t, slots, 3)
	assert.Equal(t, monday.Add(9*time.Hour), slots[0].Start)
	assert.Equal(t, monday.Add(10*time.Hour), slots[1].Start)
	assert.Equal(t, monday.Add(11*time.Hour), slots[2].Start)
	assert.Equal(t, monday.Add(12*time.Hour), slots[2].End)
}

func TestComputeAvailableSlotsDeterministic(t *testing.T) {
	rules := []models.AvailabilityRule{mondayRule("08:00", "18:00", 60)}
	q := slotQuery(8, 18)

	first := ComputeAvailableSlots(rules, nil, nil, q)
	second := ComputeAvailableSlots(rules, nil, nil, q)

	assert.Equal(t, first, second)
}

func TestComputeAvailableSlotsExcludesExceptions(t *testing.T) {
	rules := []models.AvailabilityRule{mondayRule("08:00", "12:00", 60)}
	exceptions := []models.AvailabilityException{{
		StartsAtUtc: monday.Add(9 * time.Hour),
		EndsAtUtc:   monday.Add(10 * time.Hour),
	}}

	slots := ComputeAvailableSlots(rules, exceptions, nil, slotQuery(8, 12))

	require.Len(t, slots, 3)
	for _, s := range slots {
		assert.NotEqual(t, monday.Add(9*time.Hour), s.Start)
	}
}

func TestComputeAvailableSlotsExcludesBlockingAppointments(t *testing.T) {
	rules := []models.AvailabilityRule{mondayRule("08:00", "12:00", 60)}
	blocking := []models.ServiceAppointment{{
		WindowStartUtc: monday.Add(10*time.Hour + 30*time.Minute),
		WindowEndUtc:   monday.Add(11*time.Hour + 30*time.Minute),
	}}

	slots := ComputeAvailableSlots(rules, nil, blocking, slotQuery(8, 12))

	// 10:00-11:00 and 11:00-12:00 both overlap the booked window
	require.Len(t, slots, 2)
	assert.Equal(t, monday.Add(8*time.Hour), slots[0].Start)
	assert.Equal(t, monday.Add(9*time.Hour), slots[1].Start)
}

func TestComputeAvailableSlotsSkipsPast(t *testing.T) {
	rules := []models.AvailabilityRule{mondayRule("08:00", "12:00", 60)}

	q := slotQuery(8, 12)
	q.Now = monday.Add(9*time.Hour + 30*time.Minute)

	slots := ComputeAvailableSlots(rules, nil, nil, q)

	require.Len(t, slots, 2)
	assert.Equal(t, monday.Add(10*time.Hour), slots[0].Start)
}

func TestComputeAvailableSlotsDedupesOverlappingRules(t *testing.T) {
	rules := []models.AvailabilityRule{
		mondayRule("08:00", "12:00", 60),
		mondayRule("08:00", "10:00", 60),
	}

	slots := ComputeAvailableSlots(rules, nil, nil, slotQuery(8, 12))

	require.Len(t, slots, 4)
	for i := 1; i < len(slots); i++ {
		assert.True(t, slots[i-1].Start.Before(slots[i].Start))
	}
}

func TestComputeAvailableSlotsRespectsTimezone(t *testing.T) {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)

	// 08:00 in São Paulo is 11:00 UTC (UTC-3)
	rules := []models.AvailabilityRule{mondayRule("08:00", "10:00", 60)}
	q := SlotQuery{
		FromUtc:  monday,
		ToUtc:    monday.Add(24 * time.Hour),
		Now:      monday,
		Location: loc,
	}

	slots := ComputeAvailableSlots(rules, nil, nil, q)

	require.Len(t, slots, 2)
	assert.Equal(t, monday.Add(11*time.Hour), slots[0].Start)
	assert.Equal(t, monday.Add(12*time.Hour), slots[1].Start)
}

func TestComputeAvailableSlotsOverridesRuleDuration(t *testing.T) {
	rules := []models.AvailabilityRule{mondayRule("08:00", "10:00", 60)}

	q := slotQuery(8, 10)
	q.SlotDurationMinutes = 30

	slots := ComputeAvailableSlots(rules, nil, nil, q)
	assert.Len(t, slots, 4)
}

func TestWindowWithinRules(t *testing.T) {
	rules := []models.AvailabilityRule{mondayRule("08:00", "18:00", 60)}

	inside := Window{Start: monday.Add(9 * time.Hour), End: monday.Add(10 * time.Hour)}
	spillsOver := Window{Start: monday.Add(17 * time.Hour), End: monday.Add(19 * time.Hour)}
	wrongDay := Window{Start: monday.Add(24 * time.Hour).Add(9 * time.Hour), End: monday.Add(24 * time.Hour).Add(10 * time.Hour)}

	assert.True(t, WindowWithinRules(rules, inside, time.UTC))
	assert.False(t, WindowWithinRules(rules, spillsOver, time.UTC))
	assert.False(t, WindowWithinRules(rules, wrongDay, time.UTC))
}

func TestFirstConflictingSkipsExcluded(t *testing.T) {
	self := models.ServiceAppointment{
		WindowStartUtc: monday.Add(9 * time.Hour),
		WindowEndUtc:   monday.Add(10 * time.Hour),
	}
	self.ID = uuid.New()

	other := models.ServiceAppointment{
		WindowStartUtc: monday.Add(9*time.Hour + 30*time.Minute),
		WindowEndUtc:   monday.Add(10*time.Hour + 30*time.Minute),
	}
	other.ID = uuid.New()

	w := Window{Start: monday.Add(9 * time.Hour), End: monday.Add(10 * time.Hour)}

	got := FirstConflicting(w, []models.ServiceAppointment{self, other}, &self)
	require.NotNil(t, got)
	assert.Equal(t, other.ID, got.ID)

	assert.Nil(t, FirstConflicting(w, []models.ServiceAppointment{self}, &self))
}
