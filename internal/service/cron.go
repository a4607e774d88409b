package service

import (
	"log/slog"

	"github.com/robfig/cron/v3"
)

// defaultCron is the fallback schedule used whenever an updater or verifier
// is configured with a cron expression that fails to parse (§4.8, §4.9).
const defaultCron = "0/30 * * * * *"

// cronParser matches internal/config's 6-field (seconds-included) syntax.
var cronParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// resolveCron trial-parses expr and falls back to defaultCron on failure,
// logging a warning exactly as the original scheduler's pre-registration
// check does (`Job::new_async` trial call in updater_simple_llm.rs /
// verifier_simple_execution.rs).
func resolveCron(expr string, logger *slog.Logger) string {
	if expr == "" {
		return defaultCron
	}
	if _, err := cronParser.Parse(expr); err != nil {
		logger.Warn("invalid cron expression, using default", "cron", expr, "default", defaultCron, "error", err)
		return defaultCron
	}
	return expr
}
