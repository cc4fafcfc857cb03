// file: internals/features/sessions/attendance/controller/attendance_controller.go
package controller

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"halaqat_backend/internals/features/sessions/attendance/dto"
	"halaqat_backend/internals/features/sessions/attendance/model"
	"halaqat_backend/internals/features/sessions/attendance/service"
	schedModel "halaqat_backend/internals/features/sessions/scheduling/model"
	helper "halaqat_backend/internals/helpers"
	authMw "halaqat_backend/internals/middlewares/auth"
	"halaqat_backend/internals/helpers/clock"
)

type AttendanceController struct {
	DB         *gorm.DB
	Tracker    *service.TrackerService
	Classifier *service.ClassifierService
	Stats      *service.StatsService
	Clock      clock.Clock
	Validate   *validator.Validate
}

func NewAttendanceController(db *gorm.DB, tracker *service.TrackerService, classifier *service.ClassifierService, stats *service.StatsService, clk clock.Clock) *AttendanceController {
	if clk == nil {
		clk = clock.System()
	}
	return &AttendanceController{
		DB:         db,
		Tracker:    tracker,
		Classifier: classifier,
		Stats:      stats,
		Clock:      clk,
		Validate:   validator.New(),
	}
}

/* ===================== TRACKING ===================== */

// POST /attendance/join
func (ctrl *AttendanceController) Join(c *fiber.Ctx) error {
	ev, err := ctrl.parseEvent(c)
	if err != nil {
		return err
	}
	row, err := ctrl.Tracker.HandleJoin(c.UserContext(), ev)
	if err != nil {
		return helper.FromDomainError(c, err)
	}
	return helper.Success(c, "تم تسجيل الانضمام", ctrl.trackerResponse(c, row))
}

// POST /attendance/leave
func (ctrl *AttendanceController) Leave(c *fiber.Ctx) error {
	ev, err := ctrl.parseEvent(c)
	if err != nil {
		return err
	}
	row, err := ctrl.Tracker.HandleLeave(c.UserContext(), ev)
	if err != nil {
		return helper.FromDomainError(c, err)
	}
	return helper.Success(c, "تم تسجيل المغادرة", ctrl.trackerResponse(c, row))
}

// POST /attendance/reconnect
func (ctrl *AttendanceController) Reconnect(c *fiber.Ctx) error {
	ev, err := ctrl.parseEvent(c)
	if err != nil {
		return err
	}
	row, err := ctrl.Tracker.HandleReconnection(c.UserContext(), ev)
	if err != nil {
		return helper.FromDomainError(c, err)
	}
	return helper.Success(c, "تم تسجيل إعادة الاتصال", ctrl.trackerResponse(c, row))
}

// POST /attendance/heartbeat
func (ctrl *AttendanceController) Heartbeat(c *fiber.Ctx) error {
	ev, err := ctrl.parseEvent(c)
	if err != nil {
		return err
	}
	if err := ctrl.Tracker.Heartbeat(c.UserContext(), ev); err != nil {
		return helper.FromDomainError(c, err)
	}
	return helper.Success(c, "تم تحديث النبض", nil)
}

// GET /attendance/sessions/:session_id/duration
func (ctrl *AttendanceController) CurrentDuration(c *fiber.Ctx) error {
	academyID, err := authMw.AcademyID(c)
	if err != nil {
		return err
	}
	sessionID, err := uuid.Parse(c.Params("session_id"))
	if err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "معرّف الجلسة غير صالح")
	}
	userID, err := authMw.UserID(c)
	if err != nil {
		return err
	}
	if raw := c.Query("user_id"); raw != "" {
		parsed, perr := uuid.Parse(raw)
		if perr != nil {
			return helper.JsonError(c, fiber.StatusBadRequest, "معرّف المستخدم غير صالح")
		}
		userID = parsed
	}

	minutes, err := ctrl.Tracker.GetCurrentSessionDuration(c.UserContext(), academyID, sessionID, userID)
	if err != nil {
		return helper.FromDomainError(c, err)
	}
	return helper.Success(c, "المدة الحالية", fiber.Map{
		"session_id":       sessionID,
		"user_id":          userID,
		"duration_minutes": minutes,
	})
}

/* ===================== CLASSIFICATION ===================== */

// POST /attendance/sessions/:session_id/classify
func (ctrl *AttendanceController) ClassifySession(c *fiber.Ctx) error {
	academyID, err := authMw.AcademyID(c)
	if err != nil {
		return err
	}
	sessionID, err := uuid.Parse(c.Params("session_id"))
	if err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "معرّف الجلسة غير صالح")
	}

	res, err := ctrl.Classifier.ClassifySession(c.UserContext(), academyID, sessionID)
	if err != nil {
		return helper.FromDomainError(c, err)
	}
	return helper.Success(c, "تم احتساب الحضور", res)
}

// POST /attendance/classify-completed
func (ctrl *AttendanceController) ClassifyCompleted(c *fiber.Ctx) error {
	if _, err := authMw.AcademyID(c); err != nil {
		return err
	}
	res, err := ctrl.Classifier.ClassifyCompletedSessions(c.UserContext())
	if err != nil {
		return helper.FromDomainError(c, err)
	}
	return helper.Success(c, "تم احتساب الجلسات المكتملة", res)
}

// POST /attendance/sessions/:session_id/students/:student_id/recalculate
func (ctrl *AttendanceController) Recalculate(c *fiber.Ctx) error {
	academyID, err := authMw.AcademyID(c)
	if err != nil {
		return err
	}
	sessionID, err := uuid.Parse(c.Params("session_id"))
	if err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "معرّف الجلسة غير صالح")
	}
	studentID, err := uuid.Parse(c.Params("student_id"))
	if err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "معرّف الطالب غير صالح")
	}

	report, err := ctrl.Classifier.RecalculateAttendance(c.UserContext(), academyID, sessionID, studentID)
	if err != nil {
		return helper.FromDomainError(c, err)
	}
	return helper.Success(c, "تمت إعادة الاحتساب", dto.FromReportModel(report))
}

// PATCH /attendance/reports/:report_id/evaluation
func (ctrl *AttendanceController) Evaluate(c *fiber.Ctx) error {
	academyID, err := authMw.AcademyID(c)
	if err != nil {
		return err
	}
	reportID, err := uuid.Parse(c.Params("report_id"))
	if err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "معرّف التقرير غير صالح")
	}

	var req dto.TeacherEvaluationRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Payload غير صالح")
	}
	if err := ctrl.Validate.Struct(req); err != nil {
		return helper.ValidationError(c, err)
	}

	report, err := ctrl.Classifier.RecordTeacherEvaluation(c.UserContext(), service.TeacherEvaluationInput{
		AcademyID:        academyID,
		ReportID:         reportID,
		PerformanceScore: req.PerformanceScore,
		Notes:            req.Notes,
		OverrideStatus:   req.OverrideStatus,
		OverrideReason:   req.OverrideReason,
	})
	if err != nil {
		return helper.FromDomainError(c, err)
	}
	return helper.Success(c, "تم حفظ التقييم", dto.FromReportModel(report))
}

/* ===================== STATS ===================== */

// GET /attendance/sessions/:session_id/stats
func (ctrl *AttendanceController) SessionStats(c *fiber.Ctx) error {
	academyID, err := authMw.AcademyID(c)
	if err != nil {
		return err
	}
	sessionID, err := uuid.Parse(c.Params("session_id"))
	if err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "معرّف الجلسة غير صالح")
	}

	stats, err := ctrl.Stats.GetSessionStats(c.UserContext(), academyID, sessionID)
	if err != nil {
		return helper.FromDomainError(c, err)
	}
	return helper.Success(c, "إحصائيات الجلسة", stats)
}

// POST /attendance/students/stats
func (ctrl *AttendanceController) StudentStats(c *fiber.Ctx) error {
	academyID, err := authMw.AcademyID(c)
	if err != nil {
		return err
	}

	var req dto.StudentStatsRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Payload غير صالح")
	}
	if err := ctrl.Validate.Struct(req); err != nil {
		return helper.ValidationError(c, err)
	}

	stats, err := ctrl.Stats.GetStudentStats(c.UserContext(), academyID, req.StudentID, req.SessionIDs)
	if err != nil {
		return helper.FromDomainError(c, err)
	}
	return helper.Success(c, "إحصائيات الطالب", stats)
}

// GET /attendance/export?from=2025-01-01T00:00:00Z&to=2025-02-01T00:00:00Z
func (ctrl *AttendanceController) Export(c *fiber.Ctx) error {
	academyID, err := authMw.AcademyID(c)
	if err != nil {
		return err
	}

	now := ctrl.Clock.Now()
	from := parseTimeOr(c.Query("from"), now.AddDate(0, -1, 0))
	to := parseTimeOr(c.Query("to"), now)
	if to.Before(from) {
		return helper.JsonError(c, fiber.StatusBadRequest, "نطاق التاريخ غير صالح")
	}

	rows, err := ctrl.Stats.ExportAttendanceData(c.UserContext(), academyID, from, to)
	if err != nil {
		return helper.FromDomainError(c, err)
	}

	paging := helper.ParsePaging(c)
	total := int64(len(rows))
	start := paging.Offset
	if start > len(rows) {
		start = len(rows)
	}
	end := start + paging.PerPage
	if end > len(rows) {
		end = len(rows)
	}

	return helper.Success(c, "بيانات الحضور", fiber.Map{
		"from":       from,
		"to":         to,
		"rows":       rows[start:end],
		"pagination": helper.BuildPagination(paging, total),
	})
}

/* ===================== HELPERS ===================== */

func (ctrl *AttendanceController) parseEvent(c *fiber.Ctx) (service.AttendanceEvent, error) {
	academyID, err := authMw.AcademyID(c)
	if err != nil {
		return service.AttendanceEvent{}, err
	}
	userID, err := authMw.UserID(c)
	if err != nil {
		return service.AttendanceEvent{}, err
	}

	var req dto.AttendanceEventRequest
	if err := c.BodyParser(&req); err != nil {
		return service.AttendanceEvent{}, helper.JsonError(c, fiber.StatusBadRequest, "Payload غير صالح")
	}
	if err := ctrl.Validate.Struct(req); err != nil {
		return service.AttendanceEvent{}, helper.ValidationError(c, err)
	}

	// Teachers may report on behalf of a student.
	if req.UserID != nil {
		userID = *req.UserID
	}
	return service.AttendanceEvent{
		AcademyID: academyID,
		SessionID: req.SessionID,
		UserID:    userID,
		Role:      req.Role,
	}, nil
}

func (ctrl *AttendanceController) trackerResponse(c *fiber.Ctx, row *model.MeetingAttendanceModel) dto.TrackerResponse {
	now := ctrl.Clock.Now()
	sessionEnd := now
	var session schedModel.QuranSessionModel
	if err := ctrl.DB.WithContext(c.UserContext()).
		First(&session, "quran_session_id = ?", row.MeetingAttendanceSessionID).Error; err == nil {
		sessionEnd = session.EndsAt()
	}
	return dto.FromTrackerModel(row, now, sessionEnd)
}

func parseTimeOr(raw string, fallback time.Time) time.Time {
	if raw == "" {
		return fallback
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t
	}
	return fallback
}
