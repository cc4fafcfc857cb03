package constants

// Role claims carried in the JWT.
const (
	RoleStudent    = "student"
	RoleGuardian   = "guardian"
	RoleTeacher    = "quran_teacher"
	RoleSupervisor = "supervisor"
	RoleAdmin      = "admin"
)

// ==========================
// ✅ Grouped Role Slices
// ==========================
var (
	AllRoles = []string{
		RoleStudent,
		RoleGuardian,
		RoleTeacher,
		RoleSupervisor,
		RoleAdmin,
	}

	TeacherAndAbove = []string{
		RoleTeacher,
		RoleSupervisor,
		RoleAdmin,
	}

	AdminOnly = []string{
		RoleAdmin,
	}
)

// Session code prefixes by session variant.
const (
	SessionCodeIndividual = "IND"
	SessionCodeGroup      = "GRP"
	SessionCodeTrial      = "TRL"
)
