package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
)

// cronParser validates cron expressions with the seconds field, matching the
// 6-field syntax used throughout §4.8/§4.9 ("0/30 * * * * *").
var cronParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// RegisterCustomValidators registers botwaf-specific validation rules.
func RegisterCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("cron6", validateCron); err != nil {
		return fmt.Errorf("failed to register cron6 validator: %w", err)
	}
	return nil
}

func validateCron(fl validator.FieldLevel) bool {
	expr := fl.Field().String()
	if expr == "" {
		return true // empty falls back to the default at registration time, not here
	}
	_, err := cronParser.Parse(expr)
	return err == nil
}

// Validate validates the AppConfig using struct tags and cross-field rules.
// Any failure here is ConfigInvalid (§7) and fatal at startup.
func (c *AppConfig) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := RegisterCustomValidators(v); err != nil {
		return err
	}

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	c.warnOnInvalidCronExpressions()

	if c.Cache.Provider == "redis" && len(c.Cache.Redis.Nodes) == 0 {
		return errors.New("cache.redis.nodes: at least one node is required when cache.provider=redis")
	}

	return nil
}

// warnOnInvalidCronExpressions logs, but does not reject, every configured
// updater/verifier cron expression that fails to parse. Per §4.8/§8 an
// invalid cron is not ConfigInvalid -- it falls back to "0/30 * * * * *" at
// scheduler registration time (internal/service/cron.go's resolveCron),
// exactly as the original's trial-parse-then-substitute behavior does
// (updater_simple_llm.rs). Startup must never abort over this.
func (c *AppConfig) warnOnInvalidCronExpressions() {
	for _, a := range c.Botwaf.Updaters {
		if a.Cron != "" {
			if _, err := cronParser.Parse(a.Cron); err != nil {
				slog.Warn("invalid updater cron expression, will fall back at runtime", "updater", a.Name, "cron", a.Cron, "error", err)
			}
		}
	}
	for _, a := range c.Botwaf.Verifiers {
		if a.Cron != "" {
			if _, err := cronParser.Parse(a.Cron); err != nil {
				slog.Warn("invalid verifier cron expression, will fall back at runtime", "verifier", a.Name, "cron", a.Cron, "error", err)
			}
		}
	}
}

// formatValidationErrors converts validator.ValidationErrors to user-friendly messages.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()
	tag := e.Tag()

	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be >= %s", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be <= %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "hostname_port":
		return fmt.Sprintf("%s must be a valid host:port", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, tag)
	}
}
