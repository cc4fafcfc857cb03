// file: internals/features/sessions/scheduling/service/generate_sessions_service_test.go
package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"halaqat_backend/internals/errs"
	circleModel "halaqat_backend/internals/features/circles/model"
)

// The fixed clock sits on Sunday 2026-02-01 08:00 UTC.

func TestBulkCreateSessions(t *testing.T) {
	db := newTestDB(t)
	svc := NewSchedulerService(db, fixedClock())
	academyID := uuid.New()
	qc := seedGroupCircle(t, db, academyID)

	out, err := svc.BulkCreateSessions(context.Background(), BulkCreateInput{
		AcademyID: academyID,
		CircleID:  qc.QuranCircleID,
		WeeklySlots: []circleModel.WeeklySlot{
			{Day: "monday", Time: "10:00"},
			{Day: "wednesday", Time: "16:30"},
		},
		StartDate: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	// two Mondays and two Wednesdays fall in the range
	require.Len(t, out.Created, 4)
	assert.Empty(t, out.Errors)
	for _, row := range out.Created {
		wd := row.QuranSessionScheduledAt.Weekday()
		assert.Contains(t, []time.Weekday{time.Monday, time.Wednesday}, wd)
	}
}

func TestBulkCreateSkipsPastOccurrences(t *testing.T) {
	db := newTestDB(t)
	clk := fixedClock()
	svc := NewSchedulerService(db, clk)
	academyID := uuid.New()
	qc := seedGroupCircle(t, db, academyID)

	// Sunday 07:00 is an hour before "now" on the first day of the range
	out, err := svc.BulkCreateSessions(context.Background(), BulkCreateInput{
		AcademyID:   academyID,
		CircleID:    qc.QuranCircleID,
		WeeklySlots: []circleModel.WeeklySlot{{Day: "sunday", Time: "07:00"}},
		StartDate:   time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2026, 2, 8, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, out.Created, 1)
	assert.Equal(t, time.Date(2026, 2, 8, 7, 0, 0, 0, time.UTC), out.Created[0].QuranSessionScheduledAt)
}

func TestBulkCreateCollectsFailures(t *testing.T) {
	db := newTestDB(t)
	svc := NewSchedulerService(db, fixedClock())
	academyID := uuid.New()
	qc := seedGroupCircle(t, db, academyID)

	// occupy Monday 10:00 with another circle of the same teacher
	blocker := circleModel.QuranCircleModel{
		QuranCircleAcademyID: academyID,
		QuranCircleTeacherID: qc.QuranCircleTeacherID,
		QuranCircleName:      "حلقة أخرى",
		QuranCircleStatus:    "active",
	}
	require.NoError(t, db.Create(&blocker).Error)
	_, err := svc.CreateGroupSession(context.Background(), CreateGroupSessionInput{
		AcademyID:   academyID,
		CircleID:    blocker.QuranCircleID,
		ScheduledAt: time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	out, err := svc.BulkCreateSessions(context.Background(), BulkCreateInput{
		AcademyID:   academyID,
		CircleID:    qc.QuranCircleID,
		WeeklySlots: nil,
	})
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindInvalidSchedule))

	out, err = svc.BulkCreateSessions(context.Background(), BulkCreateInput{
		AcademyID:   academyID,
		CircleID:    qc.QuranCircleID,
		WeeklySlots: []circleModel.WeeklySlot{{Day: "monday", Time: "10:00"}},
		StartDate:   time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	// the occupied Monday fails, the next one still books
	require.Len(t, out.Created, 1)
	require.Len(t, out.Errors, 1)
	assert.Equal(t, time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC), out.Errors[0].ScheduledAt)
}

func TestGenerateExactGroupSessions(t *testing.T) {
	db := newTestDB(t)
	svc := NewSchedulerService(db, fixedClock())
	academyID := uuid.New()
	qc := seedGroupCircle(t, db, academyID)

	sched := circleModel.CircleScheduleModel{
		CircleScheduleAcademyID: academyID,
		CircleScheduleCircleID:  &qc.QuranCircleID,
		CircleScheduleStatus:    "active",
	}
	require.NoError(t, sched.SetWeeklySlots([]circleModel.WeeklySlot{
		{Day: "tuesday", Time: "17:00"},
		{Day: "thursday", Time: "17:00"},
	}))
	require.NoError(t, db.Create(&sched).Error)

	out, err := svc.GenerateExactGroupSessions(context.Background(), academyID, &sched, 5, nil)
	require.NoError(t, err)
	require.Len(t, out.Created, 5)
	assert.Empty(t, out.Errors)

	// occurrences come out in chronological slot order
	for i := 1; i < len(out.Created); i++ {
		assert.True(t, out.Created[i-1].QuranSessionScheduledAt.Before(out.Created[i].QuranSessionScheduledAt))
	}
	for _, row := range out.Created {
		wd := row.QuranSessionScheduledAt.Weekday()
		assert.Contains(t, []time.Weekday{time.Tuesday, time.Thursday}, wd)
	}
}

func TestGenerateExactRequiresCircleLink(t *testing.T) {
	db := newTestDB(t)
	svc := NewSchedulerService(db, fixedClock())

	sched := circleModel.CircleScheduleModel{
		CircleScheduleAcademyID: uuid.New(),
		CircleScheduleStatus:    "active",
	}
	require.NoError(t, sched.SetWeeklySlots([]circleModel.WeeklySlot{{Day: "monday", Time: "10:00"}}))

	_, err := svc.GenerateExactGroupSessions(context.Background(), sched.CircleScheduleAcademyID, &sched, 3, nil)
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindInvalidSchedule))
}

func TestCreateIndividualScheduleGeneratesQuota(t *testing.T) {
	db := newTestDB(t)
	svc := NewSchedulerService(db, fixedClock())
	academyID := uuid.New()
	ic := seedIndividualCircle(t, db, academyID, 3)

	sched, out, err := svc.CreateIndividualCircleSchedule(context.Background(), CreateIndividualScheduleInput{
		AcademyID:          academyID,
		IndividualCircleID: ic.IndividualCircleID,
		WeeklySlots:        []circleModel.WeeklySlot{{Day: "monday", Time: "10:00"}},
	})
	require.NoError(t, err)
	require.NotNil(t, sched)
	require.NotNil(t, out)
	// generation stops at the remaining quota, not the calendar
	assert.Len(t, out.Created, 3)

	quota, err := svc.GetRemainingIndividualSessions(context.Background(), academyID, ic.IndividualCircleID)
	require.NoError(t, err)
	assert.Equal(t, 0, quota.Remaining)
}

func TestCreateIndividualScheduleRejectsBadDay(t *testing.T) {
	db := newTestDB(t)
	svc := NewSchedulerService(db, fixedClock())
	academyID := uuid.New()
	ic := seedIndividualCircle(t, db, academyID, 3)

	_, _, err := svc.CreateIndividualCircleSchedule(context.Background(), CreateIndividualScheduleInput{
		AcademyID:          academyID,
		IndividualCircleID: ic.IndividualCircleID,
		WeeklySlots:        []circleModel.WeeklySlot{{Day: "someday", Time: "10:00"}},
	})
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindInvalidSchedule))
}
