// file: internals/features/sessions/scheduling/controller/session_controller.go
package controller

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	circleModel "halaqat_backend/internals/features/circles/model"
	"halaqat_backend/internals/features/sessions/scheduling/dto"
	"halaqat_backend/internals/features/sessions/scheduling/service"
	helper "halaqat_backend/internals/helpers"
	authMw "halaqat_backend/internals/middlewares/auth"
)

type SessionController struct {
	DB        *gorm.DB
	Scheduler *service.SchedulerService
	Validate  *validator.Validate
}

func NewSessionController(db *gorm.DB, scheduler *service.SchedulerService) *SessionController {
	return &SessionController{
		DB:        db,
		Scheduler: scheduler,
		Validate:  validator.New(),
	}
}

/* ===================== CREATE ===================== */

// POST /sessions/individual
func (ctrl *SessionController) CreateIndividual(c *fiber.Ctx) error {
	academyID, err := authMw.AcademyID(c)
	if err != nil {
		return err
	}
	userID, _ := authMw.UserID(c)

	var req dto.CreateIndividualSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Payload غير صالح")
	}
	if err := ctrl.Validate.Struct(req); err != nil {
		return helper.ValidationError(c, err)
	}

	row, err := ctrl.Scheduler.CreateIndividualSession(c.UserContext(), service.CreateIndividualSessionInput{
		AcademyID:          academyID,
		IndividualCircleID: req.IndividualCircleID,
		ScheduledAt:        req.ScheduledAt,
		DurationMinutes:    req.DurationMinutes,
		Title:              req.Title,
		Description:        req.Description,
		CreatedBy:          &userID,
	})
	if err != nil {
		return helper.FromDomainError(c, err)
	}
	return helper.SuccessWithCode(c, fiber.StatusCreated, "تم إنشاء الجلسة", dto.FromSessionModel(row))
}

// POST /sessions/group
func (ctrl *SessionController) CreateGroup(c *fiber.Ctx) error {
	academyID, err := authMw.AcademyID(c)
	if err != nil {
		return err
	}
	userID, _ := authMw.UserID(c)

	var req dto.CreateGroupSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Payload غير صالح")
	}
	if err := ctrl.Validate.Struct(req); err != nil {
		return helper.ValidationError(c, err)
	}

	row, err := ctrl.Scheduler.CreateGroupSession(c.UserContext(), service.CreateGroupSessionInput{
		AcademyID:       academyID,
		CircleID:        req.CircleID,
		ScheduledAt:     req.ScheduledAt,
		DurationMinutes: req.DurationMinutes,
		Title:           req.Title,
		Description:     req.Description,
		CreatedBy:       &userID,
	})
	if err != nil {
		return helper.FromDomainError(c, err)
	}
	return helper.SuccessWithCode(c, fiber.StatusCreated, "تم إنشاء الجلسة", dto.FromSessionModel(row))
}

// POST /sessions/trial
func (ctrl *SessionController) CreateTrial(c *fiber.Ctx) error {
	academyID, err := authMw.AcademyID(c)
	if err != nil {
		return err
	}
	userID, _ := authMw.UserID(c)

	var req dto.CreateTrialSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Payload غير صالح")
	}
	if err := ctrl.Validate.Struct(req); err != nil {
		return helper.ValidationError(c, err)
	}

	row, err := ctrl.Scheduler.CreateTrialSession(c.UserContext(), service.CreateTrialSessionInput{
		AcademyID:       academyID,
		TrialRequestID:  req.TrialRequestID,
		ScheduledAt:     req.ScheduledAt,
		DurationMinutes: req.DurationMinutes,
		CreatedBy:       &userID,
	})
	if err != nil {
		return helper.FromDomainError(c, err)
	}
	return helper.SuccessWithCode(c, fiber.StatusCreated, "تم حجز الجلسة التجريبية", dto.FromSessionModel(row))
}

/* ===================== BULK / GENERATE ===================== */

// POST /sessions/bulk
func (ctrl *SessionController) BulkCreate(c *fiber.Ctx) error {
	academyID, err := authMw.AcademyID(c)
	if err != nil {
		return err
	}
	userID, _ := authMw.UserID(c)

	var req dto.BulkCreateSessionsRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Payload غير صالح")
	}
	if err := ctrl.Validate.Struct(req); err != nil {
		return helper.ValidationError(c, err)
	}

	result, err := ctrl.Scheduler.BulkCreateSessions(c.UserContext(), service.BulkCreateInput{
		AcademyID:       academyID,
		CircleID:        req.CircleID,
		WeeklySlots:     dto.ToWeeklySlots(req.WeeklySlots),
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
		DurationMinutes: req.DurationMinutes,
		CreatedBy:       &userID,
	})
	if err != nil {
		return helper.FromDomainError(c, err)
	}
	return helper.Success(c, "اكتملت الجدولة", result)
}

// POST /sessions/generate
func (ctrl *SessionController) GenerateExact(c *fiber.Ctx) error {
	academyID, err := authMw.AcademyID(c)
	if err != nil {
		return err
	}
	userID, _ := authMw.UserID(c)

	var req dto.GenerateExactSessionsRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Payload غير صالح")
	}
	if err := ctrl.Validate.Struct(req); err != nil {
		return helper.ValidationError(c, err)
	}

	var sched circleModel.CircleScheduleModel
	if err := ctrl.DB.WithContext(c.UserContext()).
		Where("circle_schedule_id = ? AND circle_schedule_academy_id = ?", req.ScheduleID, academyID).
		Take(&sched).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return helper.JsonError(c, fiber.StatusNotFound, "الجدول غير موجود")
		}
		return helper.JsonError(c, fiber.StatusInternalServerError, err.Error())
	}

	result, err := ctrl.Scheduler.GenerateExactGroupSessions(c.UserContext(), academyID, &sched, req.Count, &userID)
	if err != nil {
		return helper.FromDomainError(c, err)
	}
	return helper.Success(c, "اكتمل التوليد", result)
}

// POST /sessions/individual-schedule
func (ctrl *SessionController) CreateIndividualSchedule(c *fiber.Ctx) error {
	academyID, err := authMw.AcademyID(c)
	if err != nil {
		return err
	}
	userID, _ := authMw.UserID(c)

	var req dto.CreateIndividualScheduleRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Payload غير صالح")
	}
	if err := ctrl.Validate.Struct(req); err != nil {
		return helper.ValidationError(c, err)
	}

	sched, result, err := ctrl.Scheduler.CreateIndividualCircleSchedule(c.UserContext(), service.CreateIndividualScheduleInput{
		AcademyID:          academyID,
		IndividualCircleID: req.IndividualCircleID,
		WeeklySlots:        dto.ToWeeklySlots(req.WeeklySlots),
		StartsAt:           req.StartsAt,
		DurationMinutes:    req.DurationMinutes,
		CreatedBy:          &userID,
	})
	if err != nil {
		return helper.FromDomainError(c, err)
	}
	return helper.SuccessWithCode(c, fiber.StatusCreated, "تم إنشاء الجدول", fiber.Map{
		"schedule":   sched,
		"generation": result,
	})
}

/* ===================== DELETE / RESET ===================== */

// DELETE /sessions/:id
func (ctrl *SessionController) Delete(c *fiber.Ctx) error {
	academyID, err := authMw.AcademyID(c)
	if err != nil {
		return err
	}
	sessionID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "معرّف الجلسة غير صالح")
	}
	if err := ctrl.Scheduler.DeleteSession(c.UserContext(), academyID, sessionID); err != nil {
		return helper.FromDomainError(c, err)
	}
	return helper.Success(c, "تم حذف الجلسة", nil)
}

// DELETE /circles/:id/sessions
func (ctrl *SessionController) ResetCircle(c *fiber.Ctx) error {
	academyID, err := authMw.AcademyID(c)
	if err != nil {
		return err
	}
	circleID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "معرّف الحلقة غير صالح")
	}
	removed, err := ctrl.Scheduler.ResetCircleSessions(c.UserContext(), academyID, circleID)
	if err != nil {
		return helper.FromDomainError(c, err)
	}
	return helper.Success(c, "تمت إعادة تعيين جلسات الحلقة", fiber.Map{"removed": removed})
}

/* ===================== QUERIES ===================== */

// GET /individual-circles/:id/remaining
func (ctrl *SessionController) RemainingQuota(c *fiber.Ctx) error {
	academyID, err := authMw.AcademyID(c)
	if err != nil {
		return err
	}
	circleID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "معرّف الحلقة غير صالح")
	}
	quota, err := ctrl.Scheduler.GetRemainingIndividualSessions(c.UserContext(), academyID, circleID)
	if err != nil {
		return helper.FromDomainError(c, err)
	}
	return helper.Success(c, "OK", quota)
}

// GET /circles/:id/sessions?month=2026-02
func (ctrl *SessionController) MonthSessions(c *fiber.Ctx) error {
	academyID, err := authMw.AcademyID(c)
	if err != nil {
		return err
	}
	circleID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "معرّف الحلقة غير صالح")
	}
	month := parseMonthOr(c.Query("month"), time.Now())

	rows, err := ctrl.Scheduler.GetGroupSessionsForMonth(c.UserContext(), academyID, circleID, month)
	if err != nil {
		return helper.FromDomainError(c, err)
	}
	return helper.Success(c, "OK", dto.FromSessionModels(rows))
}

// GET /circles/:id/progress?month=2026-02
func (ctrl *SessionController) MonthlyProgress(c *fiber.Ctx) error {
	academyID, err := authMw.AcademyID(c)
	if err != nil {
		return err
	}
	circleID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "معرّف الحلقة غير صالح")
	}
	month := parseMonthOr(c.Query("month"), time.Now())

	progress, err := ctrl.Scheduler.GetCircleMonthlyProgress(c.UserContext(), academyID, circleID, month)
	if err != nil {
		return helper.FromDomainError(c, err)
	}
	return helper.Success(c, "OK", progress)
}

// GET /teachers/:id/session-stats?from=...&to=...
func (ctrl *SessionController) TeacherStats(c *fiber.Ctx) error {
	academyID, err := authMw.AcademyID(c)
	if err != nil {
		return err
	}
	teacherID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "معرّف المعلم غير صالح")
	}
	now := time.Now().UTC()
	from := parseTimeOr(c.Query("from"), now.AddDate(0, -1, 0))
	to := parseTimeOr(c.Query("to"), now.AddDate(0, 1, 0))

	stats, err := ctrl.Scheduler.GetTeacherSessionStats(c.UserContext(), academyID, teacherID, from, to)
	if err != nil {
		return helper.FromDomainError(c, err)
	}
	return helper.Success(c, "OK", stats)
}

/* ===================== helpers ===================== */

func parseMonthOr(s string, def time.Time) time.Time {
	if t, err := time.Parse("2006-01", s); err == nil {
		return t
	}
	return def
}

func parseTimeOr(s string, def time.Time) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return def
}
