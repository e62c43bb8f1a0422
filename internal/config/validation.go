package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/giantswarm/hotpatch/pkg/logging"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string, value ...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*ve = append(*ve, ValidationError{
		Field:   field,
		Value:   val,
		Message: message,
	})
}

// ValidateOneOf checks if a value is in a list of allowed values
func ValidateOneOf(field, value string, allowed []string) error {
	for _, allowedValue := range allowed {
		if value == allowedValue {
			return nil
		}
	}
	return ValidationError{
		Field:   field,
		Value:   value,
		Message: fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")),
	}
}

// Validate checks cfg and collects every problem found.
func Validate(cfg HotpatchConfig) ValidationErrors {
	var errs ValidationErrors

	if u, err := url.Parse(cfg.Client.URL); err != nil {
		errs.Add("client.url", fmt.Sprintf("is not a valid URL: %v", err), cfg.Client.URL)
	} else if u.Scheme != "ws" && u.Scheme != "wss" {
		errs.Add("client.url", "must use the ws or wss scheme", cfg.Client.URL)
	}

	for n, res := range cfg.Client.Resources {
		if strings.TrimSpace(res.Path) == "" {
			errs.Add(fmt.Sprintf("client.resources[%d].path", n), "is required")
		}
	}
	for n, res := range cfg.Server.Missing {
		if strings.TrimSpace(res.Path) == "" {
			errs.Add(fmt.Sprintf("server.missing[%d].path", n), "is required")
		}
	}

	r := cfg.Client.Reconnect
	if r.InitialInterval <= 0 {
		errs.Add("client.reconnect.initialInterval", "must be positive", r.InitialInterval)
	}
	if r.MaxInterval < r.InitialInterval {
		errs.Add("client.reconnect.maxInterval", "must not be smaller than initialInterval", r.MaxInterval)
	}

	if strings.TrimSpace(cfg.Server.Listen) == "" {
		errs.Add("server.listen", "is required")
	}

	if _, err := logging.ParseLevel(cfg.Logging.Level); err != nil {
		errs.Add("logging.level", err.Error(), cfg.Logging.Level)
	}
	if err := ValidateOneOf("logging.format", cfg.Logging.Format, []string{string(logging.FormatText), string(logging.FormatJSON)}); err != nil {
		errs = append(errs, err.(ValidationError))
	}

	return errs
}
