package jobs

import (
	"context"
	"log"
	"time"

	appointmentuc "github.com/homerepairhub/repair-scheduler/internal/usecase/appointment"
	scopechangeuc "github.com/homerepairhub/repair-scheduler/internal/usecase/scopechange"
)

// Sweeper periodically expires overdue appointments and pending scope
// changes. It is the safety net behind the lazy expiry checks done inline
// by the use cases.
type Sweeper struct {
	appointments *appointmentuc.ExpireAppointments
	scopeChanges *scopechangeuc.ExpireScopeChanges

	interval time.Duration
}

func NewSweeper(
	appointments *appointmentuc.ExpireAppointments,
	scopeChanges *scopechangeuc.ExpireScopeChanges,
	interval time.Duration,
) *Sweeper {
	return &Sweeper{
		appointments: appointments,
		scopeChanges: scopeChanges,
		interval:     interval,
	}
}

// Run blocks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("expiry sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	if n, err := s.appointments.Execute(sweepCtx); err != nil {
		log.Println("appointment expiry sweep:", err)
	} else if n > 0 {
		log.Printf("expired %d appointments", n)
	}

	if n, err := s.scopeChanges.Execute(sweepCtx); err != nil {
		log.Println("scope change expiry sweep:", err)
	} else if n > 0 {
		log.Printf("expired %d scope changes", n)
	}
}
