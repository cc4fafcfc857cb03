// file: internals/features/sessions/scheduling/service/session_scheduler_service.go
package service

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"halaqat_backend/internals/configs"
	"halaqat_backend/internals/constants"
	"halaqat_backend/internals/errs"
	circleModel "halaqat_backend/internals/features/circles/model"
	"halaqat_backend/internals/features/sessions/scheduling/model"
	"halaqat_backend/internals/helpers/clock"
)

/*
=========================================================

	Scheduler

	All writes happen inside a transaction that serializes
	per teacher, so two concurrent bookings for the same
	teacher cannot both pass the conflict check.
	=========================================================
*/
type SchedulerService struct {
	DB    *gorm.DB
	Clock clock.Clock
}

func NewSchedulerService(db *gorm.DB, clk clock.Clock) *SchedulerService {
	if clk == nil {
		clk = clock.System()
	}
	return &SchedulerService{DB: db, Clock: clk}
}

/* =========================
   Inputs
========================= */

type CreateIndividualSessionInput struct {
	AcademyID          uuid.UUID
	IndividualCircleID uuid.UUID
	ScheduledAt        time.Time
	DurationMinutes    *int
	Title              string
	Description        *string
	CreatedBy          *uuid.UUID
}

type CreateGroupSessionInput struct {
	AcademyID       uuid.UUID
	CircleID        uuid.UUID
	ScheduledAt     time.Time
	DurationMinutes *int
	Title           string
	Description     *string
	CreatedBy       *uuid.UUID
}

type CreateTrialSessionInput struct {
	AcademyID       uuid.UUID
	TrialRequestID  uuid.UUID
	ScheduledAt     time.Time
	DurationMinutes *int
	CreatedBy       *uuid.UUID
}

// BulkResult reports a batch run; failures never abort the remainder.
type BulkResult struct {
	Created []model.QuranSessionModel `json:"created"`
	Errors  []BulkError               `json:"errors"`
}

type BulkError struct {
	ScheduledAt time.Time `json:"scheduled_at"`
	Reason      string    `json:"reason"`
}

/* =========================
   Individual sessions
========================= */

func (s *SchedulerService) CreateIndividualSession(ctx context.Context, in CreateIndividualSessionInput) (*model.QuranSessionModel, error) {
	var created *model.QuranSessionModel
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ic circleModel.IndividualCircleModel
		if err := tx.
			Where("individual_circle_id = ? AND individual_circle_academy_id = ?", in.IndividualCircleID, in.AcademyID).
			Take(&ic).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return errs.NotFound("الحلقة الفردية غير موجودة")
			}
			return err
		}

		if err := lockTeacher(tx, ic.IndividualCircleTeacherID); err != nil {
			return err
		}

		used, err := s.countQuotaUsed(tx, ic.IndividualCircleID)
		if err != nil {
			return err
		}
		if used >= ic.IndividualCircleTotalSessions {
			return errs.QuotaExhausted("لا توجد جلسات متبقية في الاشتراك")
		}

		duration := resolveDuration(in.DurationMinutes, ic.IndividualCircleSessionDurationMinutes, configs.DefaultIndividualDurationMinutes)
		if err := s.validateWindow(in.ScheduledAt, duration); err != nil {
			return err
		}
		if conflict, err := s.findConflict(tx, ic.IndividualCircleTeacherID, in.ScheduledAt, duration, nil); err != nil {
			return err
		} else if conflict != nil {
			return conflictError(conflict)
		}

		number, err := s.nextMonthlyNumber(tx, in.ScheduledAt, "quran_session_individual_circle_id = ?", ic.IndividualCircleID)
		if err != nil {
			return err
		}

		title := in.Title
		if strings.TrimSpace(title) == "" {
			title = fmt.Sprintf("جلسة فردية %d", number)
		}

		row := model.QuranSessionModel{
			QuranSessionAcademyID:            in.AcademyID,
			QuranSessionTeacherID:            ic.IndividualCircleTeacherID,
			QuranSessionType:                 model.SessionTypeIndividual,
			QuranSessionIndividualCircleID:   &ic.IndividualCircleID,
			QuranSessionStudentID:            &ic.IndividualCircleStudentID,
			QuranSessionSubscriptionID:       &ic.IndividualCircleSubscriptionID,
			QuranSessionCode:                 s.newSessionCode(constants.SessionCodeIndividual, ic.IndividualCircleID, in.ScheduledAt),
			QuranSessionMonth:                model.MonthOf(in.ScheduledAt),
			QuranSessionMonthlySessionNumber: number,
			QuranSessionTitle:                title,
			QuranSessionDescription:          in.Description,
			QuranSessionScheduledAt:          in.ScheduledAt.UTC(),
			QuranSessionDurationMinutes:      duration,
			QuranSessionStatus:               model.SessionScheduled,
			QuranSessionCreatedBy:            in.CreatedBy,
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		created = &row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

/* =========================
   Group sessions
========================= */

func (s *SchedulerService) CreateGroupSession(ctx context.Context, in CreateGroupSessionInput) (*model.QuranSessionModel, error) {
	var created *model.QuranSessionModel
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var qc circleModel.QuranCircleModel
		if err := tx.
			Where("quran_circle_id = ? AND quran_circle_academy_id = ?", in.CircleID, in.AcademyID).
			Take(&qc).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return errs.NotFound("الحلقة غير موجودة")
			}
			return err
		}

		if err := lockTeacher(tx, qc.QuranCircleTeacherID); err != nil {
			return err
		}

		duration := resolveDuration(in.DurationMinutes, qc.QuranCircleSessionDurationMinutes, configs.DefaultGroupDurationMinutes)
		if err := s.validateWindow(in.ScheduledAt, duration); err != nil {
			return err
		}
		if conflict, err := s.findConflict(tx, qc.QuranCircleTeacherID, in.ScheduledAt, duration, nil); err != nil {
			return err
		} else if conflict != nil {
			return conflictError(conflict)
		}

		number, err := s.nextMonthlyNumber(tx, in.ScheduledAt, "quran_session_circle_id = ?", qc.QuranCircleID)
		if err != nil {
			return err
		}

		title := in.Title
		if strings.TrimSpace(title) == "" {
			title = fmt.Sprintf("%s - جلسة %d", qc.QuranCircleName, number)
		}

		row := model.QuranSessionModel{
			QuranSessionAcademyID:            in.AcademyID,
			QuranSessionTeacherID:            qc.QuranCircleTeacherID,
			QuranSessionType:                 model.SessionTypeGroup,
			QuranSessionCircleID:             &qc.QuranCircleID,
			QuranSessionCode:                 s.newSessionCode(constants.SessionCodeGroup, qc.QuranCircleID, in.ScheduledAt),
			QuranSessionMonth:                model.MonthOf(in.ScheduledAt),
			QuranSessionMonthlySessionNumber: number,
			QuranSessionTitle:                title,
			QuranSessionDescription:          in.Description,
			QuranSessionScheduledAt:          in.ScheduledAt.UTC(),
			QuranSessionDurationMinutes:      duration,
			QuranSessionStatus:               model.SessionScheduled,
			QuranSessionCreatedBy:            in.CreatedBy,
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		created = &row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

/* =========================
   Trial sessions
========================= */

func (s *SchedulerService) CreateTrialSession(ctx context.Context, in CreateTrialSessionInput) (*model.QuranSessionModel, error) {
	var created *model.QuranSessionModel
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tr circleModel.TrialRequestModel
		if err := tx.
			Where("trial_request_id = ? AND trial_request_academy_id = ?", in.TrialRequestID, in.AcademyID).
			Take(&tr).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return errs.NotFound("طلب الجلسة التجريبية غير موجود")
			}
			return err
		}
		if tr.TrialRequestStatus != circleModel.TrialRequestPending {
			return errs.StateConflict("تمت جدولة هذا الطلب من قبل")
		}

		if err := lockTeacher(tx, tr.TrialRequestTeacherID); err != nil {
			return err
		}

		duration := resolveDuration(in.DurationMinutes, nil, configs.DefaultTrialDurationMinutes)
		if err := s.validateWindow(in.ScheduledAt, duration); err != nil {
			return err
		}
		if conflict, err := s.findConflict(tx, tr.TrialRequestTeacherID, in.ScheduledAt, duration, nil); err != nil {
			return err
		} else if conflict != nil {
			return conflictError(conflict)
		}

		number, err := s.nextMonthlyNumber(tx, in.ScheduledAt, "quran_session_trial_request_id = ?", tr.TrialRequestID)
		if err != nil {
			return err
		}

		row := model.QuranSessionModel{
			QuranSessionAcademyID:            in.AcademyID,
			QuranSessionTeacherID:            tr.TrialRequestTeacherID,
			QuranSessionType:                 model.SessionTypeTrial,
			QuranSessionStudentID:            &tr.TrialRequestStudentID,
			QuranSessionTrialRequestID:       &tr.TrialRequestID,
			QuranSessionCode:                 s.newSessionCode(constants.SessionCodeTrial, tr.TrialRequestID, in.ScheduledAt),
			QuranSessionMonth:                model.MonthOf(in.ScheduledAt),
			QuranSessionMonthlySessionNumber: number,
			QuranSessionTitle:                fmt.Sprintf("جلسة تجريبية - %s", tr.TrialRequestStudentName),
			QuranSessionScheduledAt:          in.ScheduledAt.UTC(),
			QuranSessionDurationMinutes:      duration,
			QuranSessionStatus:               model.SessionScheduled,
			QuranSessionCreatedBy:            in.CreatedBy,
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}

		at := in.ScheduledAt.UTC()
		if err := tx.Model(&circleModel.TrialRequestModel{}).
			Where("trial_request_id = ?", tr.TrialRequestID).
			Updates(map[string]any{
				"trial_request_status":       circleModel.TrialRequestScheduled,
				"trial_request_scheduled_at": at,
			}).Error; err != nil {
			return err
		}
		created = &row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

/* =========================
   Delete / reset
========================= */

// DeleteSession removes a session that has not started yet. For
// individual sessions the removal frees one quota unit because quota is
// counted over live rows only.
func (s *SchedulerService) DeleteSession(ctx context.Context, academyID, sessionID uuid.UUID) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row model.QuranSessionModel
		if err := tx.
			Where("quran_session_id = ? AND quran_session_academy_id = ?", sessionID, academyID).
			Take(&row).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return errs.NotFound("الجلسة غير موجودة")
			}
			return err
		}
		if !row.IsPreOngoing() {
			return errs.StateConflict("لا يمكن حذف جلسة بدأت أو انتهت")
		}
		return tx.Delete(&row).Error
	})
}

// ResetCircleSessions removes every session of a group circle and
// returns how many went away. Used when a circle's plan is rebuilt
// from scratch.
func (s *SchedulerService) ResetCircleSessions(ctx context.Context, academyID, circleID uuid.UUID) (int64, error) {
	res := s.DB.WithContext(ctx).
		Where("quran_session_academy_id = ? AND quran_session_circle_id = ?", academyID, circleID).
		Delete(&model.QuranSessionModel{})
	return res.RowsAffected, res.Error
}

/* =========================
   Queries
========================= */

// RemainingQuota is the live view of an individual circle's balance.
type RemainingQuota struct {
	Total     int `json:"total_sessions"`
	Used      int `json:"used_sessions"`
	Remaining int `json:"remaining_sessions"`
}

func (s *SchedulerService) GetRemainingIndividualSessions(ctx context.Context, academyID, individualCircleID uuid.UUID) (*RemainingQuota, error) {
	var ic circleModel.IndividualCircleModel
	if err := s.DB.WithContext(ctx).
		Where("individual_circle_id = ? AND individual_circle_academy_id = ?", individualCircleID, academyID).
		Take(&ic).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errs.NotFound("الحلقة الفردية غير موجودة")
		}
		return nil, err
	}
	used, err := s.countQuotaUsed(s.DB.WithContext(ctx), ic.IndividualCircleID)
	if err != nil {
		return nil, err
	}
	remaining := ic.IndividualCircleTotalSessions - used
	if remaining < 0 {
		remaining = 0
	}
	return &RemainingQuota{
		Total:     ic.IndividualCircleTotalSessions,
		Used:      used,
		Remaining: remaining,
	}, nil
}

func (s *SchedulerService) GetGroupSessionsForMonth(ctx context.Context, academyID, circleID uuid.UUID, month time.Time) ([]model.QuranSessionModel, error) {
	var rows []model.QuranSessionModel
	err := s.DB.WithContext(ctx).
		Where("quran_session_academy_id = ? AND quran_session_circle_id = ?", academyID, circleID).
		Where("quran_session_month = ?", model.MonthOf(month)).
		Order("quran_session_scheduled_at ASC").
		Find(&rows).Error
	return rows, err
}

// MonthlyProgress compares what a circle did this month against its
// informational monthly target.
type MonthlyProgress struct {
	Month            time.Time `json:"month"`
	Target           int       `json:"target"`
	Scheduled        int       `json:"scheduled"`
	Completed        int       `json:"completed"`
	Cancelled        int       `json:"cancelled"`
	CompletionRate   float64   `json:"completion_rate"`
	RemainingToHit   int       `json:"remaining_to_target"`
	TargetExceeded   bool      `json:"target_exceeded"`
	TotalThisMonth   int       `json:"total_this_month"`
}

func (s *SchedulerService) GetCircleMonthlyProgress(ctx context.Context, academyID, circleID uuid.UUID, month time.Time) (*MonthlyProgress, error) {
	var qc circleModel.QuranCircleModel
	if err := s.DB.WithContext(ctx).
		Where("quran_circle_id = ? AND quran_circle_academy_id = ?", circleID, academyID).
		Take(&qc).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errs.NotFound("الحلقة غير موجودة")
		}
		return nil, err
	}

	type row struct {
		Status model.SessionStatus `gorm:"column:quran_session_status"`
		N      int                 `gorm:"column:n"`
	}
	var counts []row
	if err := s.DB.WithContext(ctx).Model(&model.QuranSessionModel{}).
		Select("quran_session_status, COUNT(*) AS n").
		Where("quran_session_circle_id = ? AND quran_session_month = ?", circleID, model.MonthOf(month)).
		Group("quran_session_status").
		Scan(&counts).Error; err != nil {
		return nil, err
	}

	p := MonthlyProgress{Month: model.MonthOf(month), Target: qc.QuranCircleMonthlySessionsCount}
	for _, c := range counts {
		p.TotalThisMonth += c.N
		switch c.Status {
		case model.SessionScheduled, model.SessionReady, model.SessionOngoing:
			p.Scheduled += c.N
		case model.SessionCompleted:
			p.Completed += c.N
		case model.SessionCancelled, model.SessionMissed:
			p.Cancelled += c.N
		}
	}
	if p.Target > 0 {
		p.CompletionRate = float64(p.Completed) / float64(p.Target) * 100
	}
	p.RemainingToHit = p.Target - p.Completed - p.Scheduled
	if p.RemainingToHit < 0 {
		p.RemainingToHit = 0
		p.TargetExceeded = true
	}
	return &p, nil
}

// TeacherSessionStats aggregates a teacher's workload over a window.
type TeacherSessionStats struct {
	Total     int64 `json:"total_sessions"`
	Completed int64 `json:"completed_sessions"`
	Upcoming  int64 `json:"upcoming_sessions"`
	Cancelled int64 `json:"cancelled_sessions"`
	Missed    int64 `json:"missed_sessions"`

	Individual int64 `json:"individual_sessions"`
	Group      int64 `json:"group_sessions"`
	Trial      int64 `json:"trial_sessions"`
}

func (s *SchedulerService) GetTeacherSessionStats(ctx context.Context, academyID, teacherID uuid.UUID, from, to time.Time) (*TeacherSessionStats, error) {
	base := func() *gorm.DB {
		return s.DB.WithContext(ctx).Model(&model.QuranSessionModel{}).
			Where("quran_session_academy_id = ? AND quran_session_teacher_id = ?", academyID, teacherID).
			Where("quran_session_scheduled_at >= ? AND quran_session_scheduled_at < ?", from.UTC(), to.UTC())
	}

	var out TeacherSessionStats
	if err := base().Count(&out.Total).Error; err != nil {
		return nil, err
	}
	if err := base().Where("quran_session_status = ?", model.SessionCompleted).Count(&out.Completed).Error; err != nil {
		return nil, err
	}
	if err := base().Where("quran_session_status IN ?", model.BlockingStatuses()).Count(&out.Upcoming).Error; err != nil {
		return nil, err
	}
	if err := base().Where("quran_session_status = ?", model.SessionCancelled).Count(&out.Cancelled).Error; err != nil {
		return nil, err
	}
	if err := base().Where("quran_session_status = ?", model.SessionMissed).Count(&out.Missed).Error; err != nil {
		return nil, err
	}
	if err := base().Where("quran_session_type = ?", model.SessionTypeIndividual).Count(&out.Individual).Error; err != nil {
		return nil, err
	}
	if err := base().Where("quran_session_type = ?", model.SessionTypeGroup).Count(&out.Group).Error; err != nil {
		return nil, err
	}
	if err := base().Where("quran_session_type = ?", model.SessionTypeTrial).Count(&out.Trial).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

/* =========================
   Internals
========================= */

// findConflict returns the first blocking session whose half-open
// interval [scheduled_at, ends_at) overlaps the candidate window.
// Overlap is decided in Go so the check behaves the same on every
// dialect.
func (s *SchedulerService) findConflict(tx *gorm.DB, teacherID uuid.UUID, start time.Time, durationMinutes int, excludeID *uuid.UUID) (*model.QuranSessionModel, error) {
	start = start.UTC()
	end := start.Add(time.Duration(durationMinutes) * time.Minute)

	// Candidate windows cannot start earlier than the longest allowed
	// session before ours.
	q := tx.Model(&model.QuranSessionModel{}).
		Where("quran_session_teacher_id = ?", teacherID).
		Where("quran_session_status IN ?", model.BlockingStatuses()).
		Where("quran_session_scheduled_at < ?", end).
		Where("quran_session_scheduled_at > ?", start.Add(-time.Duration(configs.MaxSessionDurationMinutes)*time.Minute))
	if excludeID != nil {
		q = q.Where("quran_session_id <> ?", *excludeID)
	}

	var candidates []model.QuranSessionModel
	if err := q.Order("quran_session_scheduled_at ASC").Find(&candidates).Error; err != nil {
		return nil, err
	}
	for i := range candidates {
		c := &candidates[i]
		if c.QuranSessionScheduledAt.Before(end) && start.Before(c.EndsAt()) {
			return c, nil
		}
	}
	return nil, nil
}

func conflictError(c *model.QuranSessionModel) error {
	return errs.Conflict(fmt.Sprintf(
		"يوجد تعارض مع جلسة أخرى من %s إلى %s",
		c.QuranSessionScheduledAt.Format("2006-01-02 15:04"),
		c.EndsAt().Format("15:04"),
	))
}

func (s *SchedulerService) countQuotaUsed(tx *gorm.DB, individualCircleID uuid.UUID) (int, error) {
	var n int64
	err := tx.Model(&model.QuranSessionModel{}).
		Where("quran_session_individual_circle_id = ?", individualCircleID).
		Where("quran_session_status IN ?", model.QuotaStatuses()).
		Count(&n).Error
	return int(n), err
}

func (s *SchedulerService) nextMonthlyNumber(tx *gorm.DB, at time.Time, scopeCond string, scopeArg any) (int, error) {
	var n int64
	err := tx.Model(&model.QuranSessionModel{}).
		Where(scopeCond, scopeArg).
		Where("quran_session_month = ?", model.MonthOf(at)).
		Where("quran_session_status <> ?", model.SessionCancelled).
		Count(&n).Error
	return int(n) + 1, err
}

func (s *SchedulerService) validateWindow(start time.Time, durationMinutes int) error {
	if durationMinutes <= 0 || durationMinutes > configs.MaxSessionDurationMinutes {
		return errs.InvalidSchedule("مدة الجلسة غير صالحة")
	}
	if !start.After(s.Clock.Now()) {
		return errs.InvalidSchedule("لا يمكن جدولة جلسة في الماضي")
	}
	return nil
}

// newSessionCode builds e.g. "IND-a1b2c3d4-20260215-7041".
func (s *SchedulerService) newSessionCode(prefix string, scopeID uuid.UUID, at time.Time) string {
	short := strings.ReplaceAll(scopeID.String(), "-", "")[:8]
	return fmt.Sprintf("%s-%s-%s-%04d", prefix, short, at.UTC().Format("20060102"), rand.Intn(10000))
}

func resolveDuration(explicit, fromCircle *int, fallback int) int {
	if explicit != nil && *explicit > 0 {
		return *explicit
	}
	if fromCircle != nil && *fromCircle > 0 {
		return *fromCircle
	}
	return fallback
}

// lockTeacher serializes creates for one teacher. Advisory locks exist
// on postgres only; elsewhere the transaction itself is the guard.
// A failed lock aborts the create: without it the conflict check races.
func lockTeacher(tx *gorm.DB, teacherID uuid.UUID) error {
	if tx.Dialector.Name() != "postgres" {
		return nil
	}
	if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", teacherID.String()).Error; err != nil {
		return errs.Wrap(errs.KindTransientUpstream, "تعذر حجز مُعرِّف المعلم", err)
	}
	return nil
}
