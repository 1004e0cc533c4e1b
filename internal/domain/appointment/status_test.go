package appointment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/homerepairhub/repair-scheduler/internal/httperr"
)

func TestStatusTransitions(t *testing.T) {
	testCases := []struct {
		name    string
		from    Status
		to      Status
		allowed bool
	}{
		{"pending to confirmed", StatusPendingProviderConfirmation, StatusConfirmed, true},
		{"pending to rejected", StatusPendingProviderConfirmation, StatusRejectedByProvider, true},
		{"pending to expired", StatusPendingProviderConfirmation, StatusExpiredWithoutProviderAction, true},
		{"pending straight to arrived", StatusPendingProviderConfirmation, StatusArrived, false},
		{"confirmed to arrived", StatusConfirmed, StatusArrived, true},
		{"confirmed to reschedule by client", StatusConfirmed, StatusRescheduleRequestedByClient, true},
		{"confirmed to completed", StatusConfirmed, StatusCompleted, false},
		{"reschedule request accepted", StatusRescheduleRequestedByProvider, StatusRescheduleConfirmed, true},
		{"reschedule request declined", StatusRescheduleRequestedByClient, StatusConfirmed, true},
		{"arrived to in_progress", StatusArrived, StatusInProgress, true},
		{"arrived to cancelled", StatusArrived, StatusCancelledByClient, false},
		{"in_progress to completed", StatusInProgress, StatusCompleted, true},
		{"completed is terminal", StatusCompleted, StatusConfirmed, false},
		{"rejected is terminal", StatusRejectedByProvider, StatusConfirmed, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.allowed, CanTransition(tc.from, tc.to))

			err := EnsureTransition(tc.from, tc.to)
			if tc.allowed {
				assert.NoError(t, err)
			} else {
				assert.True(t, httperr.IsBusiness(err, "invalid_state"))
			}
		})
	}
}

func TestBlockingAndTerminalArePartitioned(t *testing.T) {
	all := []Status{
		StatusPendingProviderConfirmation,
		StatusConfirmed,
		StatusRescheduleRequestedByClient,
		StatusRescheduleRequestedByProvider,
		StatusRescheduleConfirmed,
		StatusArrived,
		StatusInProgress,
		StatusCompleted,
		StatusRejectedByProvider,
		StatusExpiredWithoutProviderAction,
		StatusCancelledByClient,
		StatusCancelledByProvider,
	}

	for _, s := range all {
		// every status is either blocking or terminal, never both
		assert.NotEqual(t, s.IsBlocking(), s.IsTerminal(), "status %s", s)
	}

	assert.Len(t, BlockingStatuses(), 7)
}

func TestCanCancel(t *testing.T) {
	assert.NoError(t, CanCancel(StatusPendingProviderConfirmation))
	assert.NoError(t, CanCancel(StatusConfirmed))
	assert.NoError(t, CanCancel(StatusRescheduleRequestedByClient))

	assert.Error(t, CanCancel(StatusArrived))
	assert.Error(t, CanCancel(StatusInProgress))
	assert.Error(t, CanCancel(StatusCompleted))
	assert.Error(t, CanCancel(StatusCancelledByClient))
}

func TestOperationalTransitions(t *testing.T) {
	onTheWay := OpOnTheWay
	onSite := OpOnSite
	inService := OpInService
	waiting := OpWaitingParts

	// first report may be on_the_way or directly on_site
	assert.True(t, CanAdvanceOperational(nil, OpOnTheWay))
	assert.True(t, CanAdvanceOperational(nil, OpOnSite))
	assert.False(t, CanAdvanceOperational(nil, OpInService))

	assert.True(t, CanAdvanceOperational(&onTheWay, OpOnSite))
	assert.True(t, CanAdvanceOperational(&onSite, OpInService))
	assert.True(t, CanAdvanceOperational(&inService, OpWaitingParts))
	assert.True(t, CanAdvanceOperational(&waiting, OpInService))
	assert.True(t, CanAdvanceOperational(&inService, OpCompleted))

	assert.False(t, CanAdvanceOperational(&onTheWay, OpInService))
	assert.False(t, CanAdvanceOperational(&waiting, OpCompleted))
	assert.False(t, CanAdvanceOperational(&onSite, OpOnTheWay))
}

func TestWindowOverlap(t *testing.T) {
	base := time.Date(2030, 1, 7, 9, 0, 0, 0, time.UTC)

	a := Window{Start: base, End: base.Add(time.Hour)}
	b := Window{Start: base.Add(30 * time.Minute), End: base.Add(90 * time.Minute)}
	c := Window{Start: base.Add(time.Hour), End: base.Add(2 * time.Hour)}

	assert.True(t, a.Overlaps(b))
	assert.True(t, b.Overlaps(a))

	// back-to-back windows do not conflict
	assert.False(t, a.Overlaps(c))
	assert.False(t, c.Overlaps(a))
}

func TestWindowSameUTCDay(t *testing.T) {
	start := time.Date(2030, 1, 7, 23, 0, 0, 0, time.UTC)

	assert.True(t, Window{Start: start, End: start.Add(time.Hour)}.SameUTCDay())
	assert.False(t, Window{Start: start, End: start.Add(2 * time.Hour)}.SameUTCDay())
}
