package appointment

// ===============================
// Operational Status (sub-state)
// ===============================

type OperationalStatus string

const (
	OpOnTheWay     OperationalStatus = "on_the_way"
	OpOnSite       OperationalStatus = "on_site"
	OpInService    OperationalStatus = "in_service"
	OpWaitingParts OperationalStatus = "waiting_parts"
	OpCompleted    OperationalStatus = "completed"
)

func ParseOperationalStatus(s string) (OperationalStatus, bool) {
	switch OperationalStatus(s) {
	case OpOnTheWay, OpOnSite, OpInService, OpWaitingParts, OpCompleted:
		return OperationalStatus(s), true
	}
	return "", false
}

var opTransitions = map[OperationalStatus][]OperationalStatus{
	OpOnTheWay:     {OpOnSite},
	OpOnSite:       {OpInService},
	OpInService:    {OpWaitingParts, OpCompleted},
	OpWaitingParts: {OpInService},
}

// initial operational statuses; the provider may skip on_the_way when
// checking in directly at the site.
var opInitial = []OperationalStatus{OpOnTheWay, OpOnSite}

// CanAdvanceOperational validates a sub-state move. current is nil before
// the first report.
func CanAdvanceOperational(current *OperationalStatus, next OperationalStatus) bool {
	if current == nil {
		for _, s := range opInitial {
			if s == next {
				return true
			}
		}
		return false
	}
	for _, s := range opTransitions[*current] {
		if s == next {
			return true
		}
	}
	return false
}
