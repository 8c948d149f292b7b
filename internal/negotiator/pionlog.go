package negotiator

import (
	"fmt"

	"github.com/pion/logging"

	"github.com/1ureka/meshcall/internal/util"
)

// pionLoggerFactory routes pion's scoped loggers into the application logger.
// Pion's own info output is chatty, so it is demoted to debug.
type pionLoggerFactory struct{}

func (pionLoggerFactory) NewLogger(scope string) logging.LeveledLogger {
	return pionLogger{scope: scope}
}

type pionLogger struct {
	scope string
}

func (p pionLogger) Trace(msg string) { util.LogTrace("[%s] %s", p.scope, msg) }
func (p pionLogger) Tracef(format string, args ...any) {
	util.LogTrace("[%s] %s", p.scope, fmt.Sprintf(format, args...))
}
func (p pionLogger) Debug(msg string) { util.LogTrace("[%s] %s", p.scope, msg) }
func (p pionLogger) Debugf(format string, args ...any) {
	util.LogTrace("[%s] %s", p.scope, fmt.Sprintf(format, args...))
}
func (p pionLogger) Info(msg string) { util.LogDebug("[%s] %s", p.scope, msg) }
func (p pionLogger) Infof(format string, args ...any) {
	util.LogDebug("[%s] %s", p.scope, fmt.Sprintf(format, args...))
}
func (p pionLogger) Warn(msg string) { util.LogWarning("[%s] %s", p.scope, msg) }
func (p pionLogger) Warnf(format string, args ...any) {
	util.LogWarning("[%s] %s", p.scope, fmt.Sprintf(format, args...))
}
func (p pionLogger) Error(msg string) { util.LogError("[%s] %s", p.scope, msg) }
func (p pionLogger) Errorf(format string, args ...any) {
	util.LogError("[%s] %s", p.scope, fmt.Sprintf(format, args...))
}
