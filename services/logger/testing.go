package logsvc

import (
	"github.com/rollbar/rollbar-go"
	"go.uber.org/zap/zaptest"
)

// NewTestLogger logs through the test's output; Rollbar is disabled.
func NewTestLogger(t zaptest.TestingT) *RollbarLogger {
	rollbar.SetEnabled(false)
	return &RollbarLogger{zl: zaptest.NewLogger(t).Sugar()}
}
