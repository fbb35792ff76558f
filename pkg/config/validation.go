package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/marmos91/filedepot/pkg/auth"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// This function uses go-playground/validator for declarative validation
// via struct tags, with additional custom validation for complex rules
// that cannot be expressed in tags.
//
// Note: Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
//
// Returns an error describing validation failures.
func Validate(cfg *Config) error {
	// Run struct tag validation
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	// Custom validation rules that can't be expressed in tags
	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	// A bootstrap admin without a usable password would create an
	// account nobody can log into
	if cfg.Auth.BootstrapAdmin.Email != "" {
		if len(cfg.Auth.BootstrapAdmin.Password) < auth.MinPasswordLength {
			return fmt.Errorf("auth.bootstrap_admin: password must be at least %d characters", auth.MinPasswordLength)
		}
	}

	// Validate rate limiting makes sense when enabled
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.RequestsPerSecond == 0 {
			return fmt.Errorf("rate_limit: requests_per_second must be positive when rate limiting is enabled")
		}
		if cfg.RateLimit.Burst == 0 {
			return fmt.Errorf("rate_limit: burst must be positive when rate limiting is enabled")
		}
	}

	// Validate audit sinks are unique
	seen := make(map[string]bool)
	for i, sink := range cfg.Audit.Sinks {
		if seen[sink] {
			return fmt.Errorf("audit.sinks[%d]: duplicate sink %q", i, sink)
		}
		seen[sink] = true
	}

	// The default share expiry must fit under the cap, otherwise every
	// share created without an explicit expire_days would be rejected
	if cfg.Share.MaxExpireDays > 0 && cfg.Share.DefaultExpireDays > cfg.Share.MaxExpireDays {
		return fmt.Errorf("share: default_expire_days (%d) exceeds max_expire_days (%d)",
			cfg.Share.DefaultExpireDays, cfg.Share.MaxExpireDays)
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		// Return the first validation error with context
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
