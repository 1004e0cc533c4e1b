package appointment

import "github.com/homerepairhub/repair-scheduler/internal/httperr"

// ===============================
// Appointment Status
// ===============================

type Status string

const (
	StatusPendingProviderConfirmation   Status = "pending_provider_confirmation"
	StatusConfirmed                     Status = "confirmed"
	StatusRescheduleRequestedByClient   Status = "reschedule_requested_by_client"
	StatusRescheduleRequestedByProvider Status = "reschedule_requested_by_provider"
	StatusRescheduleConfirmed           Status = "reschedule_confirmed"
	StatusArrived                       Status = "arrived"
	StatusInProgress                    Status = "in_progress"
	StatusCompleted                     Status = "completed"
	StatusRejectedByProvider            Status = "rejected_by_provider"
	StatusExpiredWithoutProviderAction  Status = "expired_without_provider_action"
	StatusCancelledByClient             Status = "cancelled_by_client"
	StatusCancelledByProvider           Status = "cancelled_by_provider"
)

// transitions is the single source of truth for legal status changes.
var transitions = map[Status][]Status{
	StatusPendingProviderConfirmation: {
		StatusConfirmed,
		StatusRejectedByProvider,
		StatusExpiredWithoutProviderAction,
		StatusCancelledByClient,
		StatusCancelledByProvider,
	},
	StatusConfirmed: {
		StatusRescheduleRequestedByClient,
		StatusRescheduleRequestedByProvider,
		StatusArrived,
		StatusExpiredWithoutProviderAction,
		StatusCancelledByClient,
		StatusCancelledByProvider,
	},
	StatusRescheduleRequestedByClient: {
		StatusRescheduleConfirmed,
		StatusConfirmed,
		StatusCancelledByClient,
		StatusCancelledByProvider,
	},
	StatusRescheduleRequestedByProvider: {
		StatusRescheduleConfirmed,
		StatusConfirmed,
		StatusCancelledByClient,
		StatusCancelledByProvider,
	},
	StatusRescheduleConfirmed: {
		StatusRescheduleRequestedByClient,
		StatusRescheduleRequestedByProvider,
		StatusArrived,
		StatusExpiredWithoutProviderAction,
		StatusCancelledByClient,
		StatusCancelledByProvider,
	},
	StatusArrived: {
		StatusInProgress,
	},
	StatusInProgress: {
		StatusCompleted,
	},
}

func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// EnsureTransition is the single-point runtime check for status changes.
func EnsureTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return httperr.ErrBusiness("invalid_state")
	}
	return nil
}

func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted,
		StatusRejectedByProvider,
		StatusExpiredWithoutProviderAction,
		StatusCancelledByClient,
		StatusCancelledByProvider:
		return true
	}
	return false
}

// IsBlocking reports whether the status reserves the provider's window
// against double-booking.
func (s Status) IsBlocking() bool {
	switch s {
	case StatusPendingProviderConfirmation,
		StatusConfirmed,
		StatusRescheduleRequestedByClient,
		StatusRescheduleRequestedByProvider,
		StatusRescheduleConfirmed,
		StatusArrived,
		StatusInProgress:
		return true
	}
	return false
}

// IsConfirmedVisit reports whether the provider has already committed to the
// window; overlaps with these report request_window_conflict instead of
// slot_unavailable.
func (s Status) IsConfirmedVisit() bool {
	switch s {
	case StatusConfirmed, StatusRescheduleConfirmed, StatusArrived, StatusInProgress:
		return true
	}
	return false
}

func (s Status) ExecutionStarted() bool {
	return s == StatusArrived || s == StatusInProgress
}

// BlockingStatuses returns the raw status values used in SQL filters.
func BlockingStatuses() []string {
	return []string{
		string(StatusPendingProviderConfirmation),
		string(StatusConfirmed),
		string(StatusRescheduleRequestedByClient),
		string(StatusRescheduleRequestedByProvider),
		string(StatusRescheduleConfirmed),
		string(StatusArrived),
		string(StatusInProgress),
	}
}

func InitialStatus() Status {
	return StatusPendingProviderConfirmation
}

// CanCancel allows cancellation from any non-terminal state where execution
// has not started yet.
func CanCancel(current Status) error {
	if current.IsTerminal() || current.ExecutionStarted() {
		return httperr.ErrBusiness("invalid_state")
	}
	return nil
}

func CanRequestReschedule(current Status) error {
	if current != StatusConfirmed && current != StatusRescheduleConfirmed {
		return httperr.ErrBusiness("invalid_state")
	}
	return nil
}
