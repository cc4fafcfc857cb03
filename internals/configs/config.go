// file: internals/configs/config.go
package configs

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

var (
	JWTSecret string
)

// =======================
// ENV LOADER
// =======================
func LoadEnv() {
	if os.Getenv("RAILWAY_ENVIRONMENT") == "" {
		if err := godotenv.Load(); err != nil {
			log.Println("⚠️ No .env file found, using system ENV")
		} else {
			log.Println("✅ .env file loaded")
		}
	} else {
		log.Println("🚀 Running on Railway, using system ENV")
	}

	JWTSecret = GetEnv("JWT_SECRET")
	if JWTSecret == "" {
		log.Println("❌ JWT_SECRET is not set!")
	}
}

func GetEnv(key string) string {
	return os.Getenv(key)
}

func GetEnvOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func GetEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

// =======================
// ATTENDANCE ENGINE KNOBS
// =======================

// Lateness threshold beyond which presence is still classified absent.
// Per-circle overrides win; this is the academy-wide fallback.
func DefaultMaxLateMinutes() int {
	return GetEnvInt("ATTENDANCE_GRACE_MINUTES", 10)
}

// Grace window after a leave during which a rejoin is merged into the
// same presence span instead of opening a new cycle.
func ReconnectWindowSeconds() int {
	return GetEnvInt("ATTENDANCE_RECONNECT_WINDOW_SECONDS", 120)
}

// Age (days) after which never-classified tracker records are eligible
// for retention cleanup.
func AttendanceCleanupDays() int {
	return GetEnvInt("ATTENDANCE_CLEANUP_DAYS", 7)
}

// Fallback session durations when neither the request nor the
// subscription/circle configuration carries one.
const (
	DefaultIndividualDurationMinutes = 45
	DefaultGroupDurationMinutes      = 60
	DefaultTrialDurationMinutes      = 30
)

// Hard cap on any session duration. Enforced on every create path,
// including circle-configured defaults, and it bounds how far back the
// conflict check has to look for overlapping windows.
const MaxSessionDurationMinutes = 240
