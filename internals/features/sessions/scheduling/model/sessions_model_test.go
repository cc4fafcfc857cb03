// file: internals/features/sessions/scheduling/model/sessions_model_test.go
package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatusSets(t *testing.T) {
	assert.ElementsMatch(t,
		[]SessionStatus{SessionScheduled, SessionReady, SessionOngoing, SessionCompleted},
		QuotaStatuses())
	assert.ElementsMatch(t,
		[]SessionStatus{SessionScheduled, SessionReady, SessionOngoing},
		BlockingStatuses())

	// cancelled and missed free both the quota slot and the window
	assert.False(t, SessionCancelled.CountsAgainstQuota())
	assert.False(t, SessionMissed.BlocksInterval())
	assert.True(t, SessionCompleted.CountsAgainstQuota())
	assert.False(t, SessionCompleted.BlocksInterval())
}

func TestMonthOf(t *testing.T) {
	at := time.Date(2026, 2, 17, 22, 45, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), MonthOf(at))
}
