// file: internals/features/sessions/scheduling/service/generate_sessions_service.go
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"halaqat_backend/internals/errs"
	circleModel "halaqat_backend/internals/features/circles/model"
	"halaqat_backend/internals/features/sessions/scheduling/model"
)

// Walking a weekly pattern stops after a year of calendar days even if
// fewer sessions than requested were produced.
const maxGenerateDays = 365

/* =========================
   Bulk create (group)
========================= */

type BulkCreateInput struct {
	AcademyID       uuid.UUID
	CircleID        uuid.UUID
	WeeklySlots     []circleModel.WeeklySlot
	StartDate       time.Time
	EndDate         time.Time
	DurationMinutes *int
	CreatedBy       *uuid.UUID
}

// BulkCreateSessions expands slot x week over the date range and books
// one group session per occurrence. Past occurrences are skipped; each
// unit runs in its own transaction and a failure records an error entry
// without aborting the rest.
func (s *SchedulerService) BulkCreateSessions(ctx context.Context, in BulkCreateInput) (*BulkResult, error) {
	if len(in.WeeklySlots) == 0 {
		return nil, errs.InvalidSchedule("لا توجد مواعيد أسبوعية")
	}
	if in.EndDate.Before(in.StartDate) {
		return nil, errs.InvalidSchedule("تاريخ النهاية قبل تاريخ البداية")
	}

	now := s.Clock.Now()
	out := &BulkResult{}
	start := dayOf(in.StartDate)
	end := dayOf(in.EndDate)
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		for _, slot := range in.WeeklySlots {
			wd, ok := slot.Weekday()
			if !ok || day.Weekday() != wd {
				continue
			}
			at := atSlotTime(day, slot)
			if !at.After(now) {
				continue
			}
			row, err := s.CreateGroupSession(ctx, CreateGroupSessionInput{
				AcademyID:       in.AcademyID,
				CircleID:        in.CircleID,
				ScheduledAt:     at,
				DurationMinutes: in.DurationMinutes,
				CreatedBy:       in.CreatedBy,
			})
			if err != nil {
				out.Errors = append(out.Errors, BulkError{ScheduledAt: at, Reason: errs.UserMessage(err)})
				continue
			}
			out.Created = append(out.Created, *row)
		}
	}
	return out, nil
}

/* =========================
   Exact-count generation (group)
========================= */

// GenerateExactGroupSessions walks the schedule's weekly slots day by
// day and books group sessions until `count` succeed or the walk
// exhausts a year. Conflicting occurrences are skipped, not retried.
func (s *SchedulerService) GenerateExactGroupSessions(ctx context.Context, academyID uuid.UUID, schedule *circleModel.CircleScheduleModel, count int, createdBy *uuid.UUID) (*BulkResult, error) {
	if schedule.CircleScheduleCircleID == nil {
		return nil, errs.InvalidSchedule("الجدول غير مرتبط بحلقة")
	}
	circleID := *schedule.CircleScheduleCircleID
	return s.generateExact(ctx, schedule, count, func(at time.Time) (*model.QuranSessionModel, error) {
		row, err := s.CreateGroupSession(ctx, CreateGroupSessionInput{
			AcademyID:       academyID,
			CircleID:        circleID,
			ScheduledAt:     at,
			DurationMinutes: schedule.CircleScheduleDefaultDurationMinutes,
			CreatedBy:       createdBy,
		})
		if err != nil {
			return nil, err
		}
		return row, nil
	})
}

/* =========================
   Schedule + generation in one step (individual)
========================= */

type CreateIndividualScheduleInput struct {
	AcademyID          uuid.UUID
	IndividualCircleID uuid.UUID
	WeeklySlots        []circleModel.WeeklySlot
	StartsAt           *time.Time
	DurationMinutes    *int
	CreatedBy          *uuid.UUID
}

// CreateIndividualCircleSchedule persists the weekly pattern and then
// generates sessions for the circle's full remaining quota.
func (s *SchedulerService) CreateIndividualCircleSchedule(ctx context.Context, in CreateIndividualScheduleInput) (*circleModel.CircleScheduleModel, *BulkResult, error) {
	if len(in.WeeklySlots) == 0 {
		return nil, nil, errs.InvalidSchedule("لا توجد مواعيد أسبوعية")
	}
	for _, slot := range in.WeeklySlots {
		if _, ok := slot.Weekday(); !ok {
			return nil, nil, errs.InvalidSchedule("اسم اليوم غير صالح: " + slot.Day)
		}
	}

	var ic circleModel.IndividualCircleModel
	if err := s.DB.WithContext(ctx).
		Where("individual_circle_id = ? AND individual_circle_academy_id = ?", in.IndividualCircleID, in.AcademyID).
		Take(&ic).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil, errs.NotFound("الحلقة الفردية غير موجودة")
		}
		return nil, nil, err
	}

	sched := circleModel.CircleScheduleModel{
		CircleScheduleAcademyID:              in.AcademyID,
		CircleScheduleCircleID:               &in.IndividualCircleID,
		CircleScheduleStartsAt:               in.StartsAt,
		CircleScheduleDefaultDurationMinutes: in.DurationMinutes,
		CircleScheduleStatus:                 "active",
	}
	if err := sched.SetWeeklySlots(in.WeeklySlots); err != nil {
		return nil, nil, errs.Wrap(errs.KindInvalidSchedule, "مواعيد الجدول غير صالحة", err)
	}
	if err := s.DB.WithContext(ctx).Create(&sched).Error; err != nil {
		return nil, nil, err
	}

	quota, err := s.GetRemainingIndividualSessions(ctx, in.AcademyID, in.IndividualCircleID)
	if err != nil {
		return &sched, nil, err
	}
	result, err := s.generateExact(ctx, &sched, quota.Remaining, func(at time.Time) (*model.QuranSessionModel, error) {
		row, err := s.CreateIndividualSession(ctx, CreateIndividualSessionInput{
			AcademyID:          in.AcademyID,
			IndividualCircleID: in.IndividualCircleID,
			ScheduledAt:        at,
			DurationMinutes:    sched.CircleScheduleDefaultDurationMinutes,
			CreatedBy:          in.CreatedBy,
		})
		if err != nil {
			return nil, err
		}
		return row, nil
	})
	if err != nil {
		return &sched, nil, err
	}
	return &sched, result, nil
}

/* =========================
   Walker
========================= */

func (s *SchedulerService) generateExact(ctx context.Context, schedule *circleModel.CircleScheduleModel, count int, book func(at time.Time) (*model.QuranSessionModel, error)) (*BulkResult, error) {
	if count <= 0 {
		return &BulkResult{}, nil
	}
	slots, err := schedule.WeeklySlots()
	if err != nil {
		return nil, errs.Wrap(errs.KindInvalidSchedule, "مواعيد الجدول غير صالحة", err)
	}
	if len(slots) == 0 {
		return nil, errs.InvalidSchedule("لا توجد مواعيد أسبوعية في الجدول")
	}

	start := s.Clock.Now()
	if schedule.CircleScheduleStartsAt != nil && schedule.CircleScheduleStartsAt.After(start) {
		start = *schedule.CircleScheduleStartsAt
	}
	start = start.UTC()

	out := &BulkResult{}
	day := dayOf(start)
	for i := 0; i < maxGenerateDays && len(out.Created) < count; i++ {
		for _, slot := range slots {
			if len(out.Created) >= count {
				break
			}
			wd, ok := slot.Weekday()
			if !ok || day.Weekday() != wd {
				continue
			}
			at := atSlotTime(day, slot)
			if !at.After(start) {
				continue
			}
			row, err := book(at)
			if err != nil {
				out.Errors = append(out.Errors, BulkError{ScheduledAt: at, Reason: errs.UserMessage(err)})
				if errs.IsKind(err, errs.KindQuotaExhausted) {
					return out, nil
				}
				continue
			}
			out.Created = append(out.Created, *row)
		}
		day = day.AddDate(0, 0, 1)
	}
	return out, nil
}

func dayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func atSlotTime(day time.Time, slot circleModel.WeeklySlot) time.Time {
	hour, minute := slot.ClockTime()
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, time.UTC)
}
