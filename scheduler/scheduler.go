// Package scheduler runs the daily forwarding job at a fixed local time.
package scheduler

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
)

var timeRegex = regexp.MustCompile(`^([01][0-9]|2[0-3]):([0-5][0-9])$`)

// Scheduler triggers one job daily at an HH:MM time in a timezone. Jobs run
// serially on cron's goroutine, which is what keeps runs from overlapping.
type Scheduler struct {
	cron     *cron.Cron
	location *time.Location
}

// New creates a scheduler for the given timezone.
func New(timezone string) (*Scheduler, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		location: loc,
	}, nil
}

// Location returns the scheduler's timezone.
func (s *Scheduler) Location() *time.Location {
	return s.location
}

// Schedule registers the daily job at the given HH:MM time.
func (s *Scheduler) Schedule(timeStr string, fn func()) error {
	hour, minute, err := parseTime(timeStr)
	if err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(buildCronSpec(hour, minute), fn); err != nil {
		return fmt.Errorf("add cron job: %w", err)
	}
	return nil
}

// Start begins the scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func parseTime(timeStr string) (int, int, error) {
	matches := timeRegex.FindStringSubmatch(timeStr)
	if len(matches) != 3 {
		return 0, 0, fmt.Errorf("invalid time format: %q (expected HH:MM)", timeStr)
	}
	hour, _ := strconv.Atoi(matches[1])
	minute, _ := strconv.Atoi(matches[2])
	return hour, minute, nil
}

func buildCronSpec(hour, minute int) string {
	// Cron format: minute hour day month weekday
	return fmt.Sprintf("%d %d * * *", minute, hour)
}
