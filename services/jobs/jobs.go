// Package jobs runs the periodic maintenance tasks of the API process.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/class"
)

// PolicyChecker is implemented by class.Service.
type PolicyChecker interface {
	CheckEnrollmentPolicy(ctx context.Context, fix bool) (class.PolicyReport, error)
}

type Scheduler struct {
	cron    *cron.Cron
	logger  core.Logger
	timeout time.Duration
}

func NewScheduler(logger core.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger:  logger,
		timeout: 10 * time.Minute,
	}
}

// ScheduleEnrollmentPolicy registers the enrollment policy check on schedule.
// an empty schedule disables it.
func (s *Scheduler) ScheduleEnrollmentPolicy(schedule string, checker PolicyChecker, fix bool) error {
	if schedule == "" {
		s.logger.Info("enrollment policy check disabled")
		return nil
	}
	if _, err := s.cron.AddFunc(schedule, func() { s.CheckEnrollmentPolicy(checker, fix) }); err != nil {
		return errors.Wrapf(err, "scheduling enrollment policy check %q", schedule)
	}
	s.logger.Info(fmt.Sprintf("enrollment policy check scheduled: %q (fix=%v)", schedule, fix))
	return nil
}

// CheckEnrollmentPolicy runs one check and logs its report.
func (s *Scheduler) CheckEnrollmentPolicy(checker PolicyChecker, fix bool) class.PolicyReport {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	report, err := checker.CheckEnrollmentPolicy(ctx, fix)
	if err != nil {
		s.logger.Error("enrollment policy check failed", err)
		return report
	}
	msg := fmt.Sprintf("enrollment policy checked: %d classes, %d violations, %d fixed",
		report.Classes, len(report.Violations), report.Fixed)
	if len(report.Violations) > report.Fixed {
		s.logger.Warn(msg)
	} else {
		s.logger.Info(msg)
	}
	return report
}

func (s *Scheduler) Entries() int { return len(s.cron.Entries()) }

func (s *Scheduler) Start() { s.cron.Start() }

// Stop stops scheduling and waits for the running jobs, up to ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn("jobs still running at shutdown")
	}
}
