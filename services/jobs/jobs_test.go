package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/campus/core/class"
	"github.com/trezcool/campus/tests"
)

type fakeChecker struct {
	report class.PolicyReport
	err    error
	fixes  []bool
}

func (f *fakeChecker) CheckEnrollmentPolicy(_ context.Context, fix bool) (class.PolicyReport, error) {
	f.fixes = append(f.fixes, fix)
	return f.report, f.err
}

func TestScheduler_ScheduleEnrollmentPolicy(t *testing.T) {
	logger := new(testutil.Logger)
	s := NewScheduler(logger)
	checker := new(fakeChecker)

	require.NoError(t, s.ScheduleEnrollmentPolicy("", checker, false))
	assert.Equal(t, 0, s.Entries(), "an empty schedule disables the job")

	assert.Error(t, s.ScheduleEnrollmentPolicy("every now & then", checker, false))
	assert.Equal(t, 0, s.Entries())

	require.NoError(t, s.ScheduleEnrollmentPolicy("0 2 * * *", checker, true))
	assert.Equal(t, 1, s.Entries())

	s.Start()
	s.Stop(context.Background())
	assert.Empty(t, checker.fixes, "nothing runs before 2 AM")
}

func TestScheduler_CheckEnrollmentPolicy(t *testing.T) {
	t.Run("violations left unfixed are warned about", func(t *testing.T) {
		logger := new(testutil.Logger)
		checker := &fakeChecker{report: class.PolicyReport{
			Classes:    3,
			Violations: []class.PolicyViolation{{EnrollmentID: "e1", Reason: class.ReasonClassEnded}},
		}}

		report := NewScheduler(logger).CheckEnrollmentPolicy(checker, false)
		assert.Len(t, report.Violations, 1)
		assert.Equal(t, []bool{false}, checker.fixes)
		assert.Equal(t, []string{"WARN: enrollment policy checked: 3 classes, 1 violations, 0 fixed"}, logger.Entries())
	})

	t.Run("fixed", func(t *testing.T) {
		logger := new(testutil.Logger)
		checker := &fakeChecker{report: class.PolicyReport{
			Classes:    1,
			Violations: []class.PolicyViolation{{EnrollmentID: "e1", Reason: class.ReasonClassInactive}},
			Fixed:      1,
		}}

		NewScheduler(logger).CheckEnrollmentPolicy(checker, true)
		assert.Equal(t, []string{"INFO: enrollment policy checked: 1 classes, 1 violations, 1 fixed"}, logger.Entries())
	})

	t.Run("errors are logged", func(t *testing.T) {
		logger := new(testutil.Logger)
		checker := &fakeChecker{err: errors.New("db down")}

		NewScheduler(logger).CheckEnrollmentPolicy(checker, true)
		assert.Equal(t, []string{"ERROR: enrollment policy check failed"}, logger.Entries())
	})
}
