package utils

import (
	"log/slog"
	"strings"
)

// LogEvent writes the standard module/action/request_id line.
// Keep message summarized; never log whole payloads.
func LogEvent(logger *slog.Logger, requestID, module, action, message string) {
	if logger == nil {
		return
	}
	logger.Info(message,
		"module", strings.ToUpper(module),
		"action", action,
		"request_id", strings.TrimSpace(requestID),
	)
}
