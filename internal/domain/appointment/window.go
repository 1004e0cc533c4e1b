package appointment

import "time"

// Window is a half-open UTC interval [Start, End).
type Window struct {
	Start time.Time `json:"window_start_utc"`
	End   time.Time `json:"window_end_utc"`
}

func (w Window) Valid() bool {
	return w.Start.Before(w.End)
}

func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Overlaps uses the open-interval sense: touching edges do not conflict.
func (w Window) Overlaps(o Window) bool {
	return w.Start.Before(o.End) && o.Start.Before(w.End)
}

func (w Window) SameUTCDay() bool {
	ys, ms, ds := w.Start.UTC().Date()
	ye, me, de := w.End.UTC().Date()
	return ys == ye && ms == me && ds == de
}
