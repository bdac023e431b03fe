package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/Daryana-2906/pills-bot/db"
	"github.com/jmhodges/clock"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	DefaultPollInterval    = 60 * time.Second
	DefaultDispatchTimeout = 10 * time.Second
)

var errDispatchTimeout = errors.New("dispatch timed out")

// Store is the part of the medication store the scheduler reads and
// mutates on every tick.
type Store interface {
	UsersDueAt(timeOfDay string) ([]int64, error)
	ActiveDueAt(usr int64, timeOfDay string) ([]db.Medication, error)
	Deactivate(id int64) error
}

// Sender delivers one notification text to the user.
type Sender func(usr int64, text string) error

// Scheduler polls the store at a fixed cadence and notifies every user
// whose reminder time matches the current minute. Reminders are matched
// by exact HH:MM string equality, so the poll interval must not exceed
// one minute.
type Scheduler struct {
	store    Store
	send     Sender
	logger   *zap.SugaredLogger
	interval time.Duration
	timeout  time.Duration
	clk      clock.Clock
}

func NewScheduler(s Store, send Sender, l *zap.SugaredLogger, interval, timeout time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if timeout <= 0 {
		timeout = DefaultDispatchTimeout
	}

	return &Scheduler{
		store:    s,
		send:     send,
		logger:   l,
		interval: interval,
		timeout:  timeout,
		clk:      clock.New(),
	}
}

// Run evaluates due reminders once per interval until ctx is done. The
// first evaluation happens immediately.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Infof("notification service started, polling every %v", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.tick(s.clk.Now())

		select {
		case <-ctx.Done():
			s.logger.Info("notification service stopped")
			return
		case <-ticker.C:
		}
	}
}

// tick runs a single due-reminder evaluation at the given wall-clock
// moment. Failures are logged and never abort the remaining reminders.
func (s *Scheduler) tick(now time.Time) {
	timeOfDay := now.Format("15:04")
	weekday := isoWeekday(now)

	users, err := s.store.UsersDueAt(timeOfDay)
	if err != nil {
		s.logger.Errorw("failed fetching due users", "err", err)
		return
	}

	for _, usr := range users {
		meds, err := s.store.ActiveDueAt(usr, timeOfDay)
		if err != nil {
			s.logger.Errorw("failed fetching due medications", "user", usr, "err", err)
			continue
		}

		for _, med := range meds {
			var eligible bool
			switch med.Frequency {
			case db.FreqOnce:
				// Deactivate before dispatch so a one-shot reminder can
				// never fire twice, even if the send below fails.
				if err := s.store.Deactivate(med.ID); err != nil {
					s.logger.Errorw("failed deactivating one-shot reminder", "id", med.ID, "err", err)
					continue
				}
				eligible = true
			case db.FreqWeekdays:
				eligible = weekday < 5
			case db.FreqWeekends:
				eligible = weekday >= 5
			default:
				eligible = true // daily
			}

			if !eligible {
				continue
			}

			if err := s.dispatch(usr, med); err != nil {
				s.logger.Errorw("failed sending notification", "user", usr, "id", med.ID, "err", err)
				continue
			}

			s.logger.Infow("notification sent", "user", usr, "id", med.ID)
		}
	}
}

// dispatch attempts exactly one send, bounded by the dispatch timeout.
func (s *Scheduler) dispatch(usr int64, med db.Medication) error {
	done := make(chan error, 1)
	go func() {
		done <- s.send(usr, formatNotification(med))
	}()

	select {
	case err := <-done:
		return err
	case <-s.clk.After(s.timeout):
		return errDispatchTimeout
	}
}

func formatNotification(med db.Medication) string {
	return fmt.Sprintf("⏰ Time to take your medication!\n\n💊 %s\n📏 Dosage: %s", med.Name, med.Dosage)
}

// isoWeekday maps time.Weekday to ISO ordinals: Monday=0 … Sunday=6.
func isoWeekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}
