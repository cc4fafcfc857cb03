// file: internals/features/sessions/attendance/service/attendance_stats_service.go
package service

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"halaqat_backend/internals/features/sessions/attendance/model"
	"halaqat_backend/internals/helpers/clock"
)

// Trend threshold on the 0..10 performance scale.
const trendThreshold = 0.5

type ImprovementTrend string

const (
	TrendImproving        ImprovementTrend = "improving"
	TrendDeclining        ImprovementTrend = "declining"
	TrendStable           ImprovementTrend = "stable"
	TrendInsufficientData ImprovementTrend = "insufficient_data"
)

/*
=========================================================

	Aggregator: folds over finalized reports only. Zero
	reports yields honest zero defaults, never an error.
	=========================================================
*/
type StatsService struct {
	DB    *gorm.DB
	Clock clock.Clock
}

func NewStatsService(db *gorm.DB) *StatsService {
	return &StatsService{DB: db, Clock: clock.System()}
}

// SessionStats summarizes one session's reports.
type SessionStats struct {
	TotalReports        int     `json:"total_reports"`
	Attended            int     `json:"attended"`
	Late                int     `json:"late"`
	Leaved              int     `json:"leaved"`
	Absent              int     `json:"absent"`
	ManuallyEvaluated   int     `json:"manually_evaluated"`
	AutoEvaluated       int     `json:"auto_evaluated"`
	AverageAttendance   float64 `json:"average_attendance_percentage"`
	AveragePerformance  float64 `json:"average_performance_score"`
	ScoredReports       int     `json:"scored_reports"`
}

func (s *StatsService) GetSessionStats(ctx context.Context, academyID, sessionID uuid.UUID) (*SessionStats, error) {
	var reports []model.SessionReportModel
	err := s.DB.WithContext(ctx).
		Where("session_report_academy_id = ? AND session_report_session_id = ?", academyID, sessionID).
		Where("session_report_is_calculated = ?", true).
		Find(&reports).Error
	if err != nil {
		return nil, err
	}

	out := &SessionStats{}
	var pctSum, scoreSum float64
	for i := range reports {
		r := &reports[i]
		out.TotalReports++
		switch r.SessionReportAttendanceStatus {
		case model.AttendanceAttended:
			out.Attended++
		case model.AttendanceLate:
			out.Late++
		case model.AttendanceLeaved:
			out.Leaved++
		case model.AttendanceAbsent:
			out.Absent++
		}
		if r.SessionReportManuallyEvaluated {
			out.ManuallyEvaluated++
		} else {
			out.AutoEvaluated++
		}
		pctSum += r.SessionReportAttendancePercentage
		if r.SessionReportPerformanceScore != nil {
			scoreSum += *r.SessionReportPerformanceScore
			out.ScoredReports++
		}
	}
	if out.TotalReports > 0 {
		out.AverageAttendance = round1(pctSum / float64(out.TotalReports))
	}
	if out.ScoredReports > 0 {
		out.AveragePerformance = round1(scoreSum / float64(out.ScoredReports))
	}
	return out, nil
}

// StudentStats folds a student's reports over an arbitrary session set.
// late and leaved count as attended for the rate, matching how rates
// are communicated to guardians.
type StudentStats struct {
	TotalSessions      int              `json:"total_sessions"`
	AttendedSessions   int              `json:"attended_sessions"`
	AbsentSessions     int              `json:"absent_sessions"`
	AttendanceRate     float64          `json:"attendance_rate"`
	TotalScore         float64          `json:"total_score"`
	AverageScore       float64          `json:"average_score"`
	ScoredReports      int              `json:"scored_reports"`
	ImprovementTrend   ImprovementTrend `json:"improvement_trend"`
	AverageAttendance  float64          `json:"average_attendance_percentage"`
	TotalMinutes       int              `json:"total_attendance_minutes"`

	// Rolling seven-day rate and counts per session variant.
	RateThisWeek      float64        `json:"rate_this_week"`
	SessionTypeCounts map[string]int `json:"session_type_counts"`
}

func (s *StatsService) GetStudentStats(ctx context.Context, academyID, studentID uuid.UUID, sessionIDs []uuid.UUID) (*StudentStats, error) {
	q := s.DB.WithContext(ctx).
		Where("session_report_academy_id = ? AND session_report_student_id = ?", academyID, studentID).
		Where("session_report_is_calculated = ?", true)
	if len(sessionIDs) > 0 {
		q = q.Where("session_report_session_id IN ?", sessionIDs)
	}

	var reports []model.SessionReportModel
	if err := q.Find(&reports).Error; err != nil {
		return nil, err
	}

	out := &StudentStats{ImprovementTrend: TrendInsufficientData, SessionTypeCounts: map[string]int{}}
	weekCutoff := s.Clock.Now().AddDate(0, 0, -7)
	weekTotal, weekAttended := 0, 0
	var pctSum float64
	for i := range reports {
		r := &reports[i]
		out.TotalSessions++
		attended := false
		switch r.SessionReportAttendanceStatus {
		case model.AttendanceAttended, model.AttendanceLate, model.AttendanceLeaved:
			out.AttendedSessions++
			attended = true
		case model.AttendanceAbsent:
			out.AbsentSessions++
		}
		if !r.SessionReportCreatedAt.Before(weekCutoff) {
			weekTotal++
			if attended {
				weekAttended++
			}
		}
		pctSum += r.SessionReportAttendancePercentage
		out.TotalMinutes += r.SessionReportActualAttendanceMinutes
		if r.SessionReportPerformanceScore != nil {
			out.TotalScore += *r.SessionReportPerformanceScore
			out.ScoredReports++
		}
	}
	if out.TotalSessions > 0 {
		out.AttendanceRate = round1(float64(out.AttendedSessions) / float64(out.TotalSessions) * 100)
		out.AverageAttendance = round1(pctSum / float64(out.TotalSessions))
	}
	if weekTotal > 0 {
		out.RateThisWeek = round1(float64(weekAttended) / float64(weekTotal) * 100)
	}
	if out.ScoredReports > 0 {
		out.AverageScore = round1(out.TotalScore / float64(out.ScoredReports))
	}
	if err := s.countSessionTypes(ctx, reports, out.SessionTypeCounts); err != nil {
		return nil, err
	}
	out.ImprovementTrend = improvementTrend(reports)
	return out, nil
}

func (s *StatsService) countSessionTypes(ctx context.Context, reports []model.SessionReportModel, counts map[string]int) error {
	if len(reports) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(reports))
	for i := range reports {
		ids = append(ids, reports[i].SessionReportSessionID)
	}
	var rows []struct {
		QuranSessionType string `gorm:"column:quran_session_type"`
		N                int    `gorm:"column:n"`
	}
	err := s.DB.WithContext(ctx).Table("quran_sessions").
		Select("quran_session_type, count(*) AS n").
		Where("quran_session_id IN ?", ids).
		Group("quran_session_type").
		Scan(&rows).Error
	if err != nil {
		return err
	}
	for _, row := range rows {
		counts[row.QuranSessionType] = row.N
	}
	return nil
}

// improvementTrend splits the chronologically ordered scored reports in
// half and compares mean performance.
func improvementTrend(reports []model.SessionReportModel) ImprovementTrend {
	scored := make([]model.SessionReportModel, 0, len(reports))
	for i := range reports {
		if reports[i].SessionReportPerformanceScore != nil {
			scored = append(scored, reports[i])
		}
	}
	if len(scored) < 2 {
		return TrendInsufficientData
	}
	sort.Slice(scored, func(i, j int) bool {
		return scored[i].SessionReportCreatedAt.Before(scored[j].SessionReportCreatedAt)
	})

	half := len(scored) / 2
	mean := func(rs []model.SessionReportModel) float64 {
		var sum float64
		for i := range rs {
			sum += *rs[i].SessionReportPerformanceScore
		}
		return sum / float64(len(rs))
	}
	earlier := mean(scored[:half])
	later := mean(scored[half:])

	switch {
	case later-earlier > trendThreshold:
		return TrendImproving
	case earlier-later > trendThreshold:
		return TrendDeclining
	default:
		return TrendStable
	}
}

/* =========================
   Export
========================= */

// ExportRow is the flat view handed to external reporting.
type ExportRow struct {
	SessionID            uuid.UUID              `json:"session_id"`
	SessionCode          string                 `json:"session_code"`
	ScheduledAt          time.Time              `json:"scheduled_at"`
	StudentID            uuid.UUID              `json:"student_id"`
	TeacherID            uuid.UUID              `json:"teacher_id"`
	AttendanceStatus     model.AttendanceStatus `json:"attendance_status"`
	AttendancePercentage float64                `json:"attendance_percentage"`
	ActualMinutes        int                    `json:"actual_attendance_minutes"`
	IsLate               bool                   `json:"is_late"`
	LateMinutes          int                    `json:"late_minutes"`
	PerformanceScore     *float64               `json:"performance_score,omitempty"`
	ManuallyEvaluated    bool                   `json:"manually_evaluated"`
}

func (s *StatsService) ExportAttendanceData(ctx context.Context, academyID uuid.UUID, from, to time.Time) ([]ExportRow, error) {
	var rows []ExportRow
	err := s.DB.WithContext(ctx).
		Table("session_reports").
		Select(`session_reports.session_report_session_id AS session_id,
			quran_sessions.quran_session_code AS session_code,
			quran_sessions.quran_session_scheduled_at AS scheduled_at,
			session_reports.session_report_student_id AS student_id,
			session_reports.session_report_teacher_id AS teacher_id,
			session_reports.session_report_attendance_status AS attendance_status,
			session_reports.session_report_attendance_percentage AS attendance_percentage,
			session_reports.session_report_actual_attendance_minutes AS actual_minutes,
			session_reports.session_report_is_late AS is_late,
			session_reports.session_report_late_minutes AS late_minutes,
			session_reports.session_report_performance_score AS performance_score,
			session_reports.session_report_manually_evaluated AS manually_evaluated`).
		Joins("JOIN quran_sessions ON quran_sessions.quran_session_id = session_reports.session_report_session_id").
		Where("session_reports.session_report_academy_id = ?", academyID).
		Where("session_reports.session_report_is_calculated = ?", true).
		Where("quran_sessions.quran_session_scheduled_at >= ? AND quran_sessions.quran_session_scheduled_at < ?", from.UTC(), to.UTC()).
		Order("quran_sessions.quran_session_scheduled_at ASC").
		Scan(&rows).Error
	return rows, err
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
