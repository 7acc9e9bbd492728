package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate checks the configuration using struct tags plus custom rules that
// tags cannot express. Returns an error describing the first failure.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	return validateCustomRules(cfg)
}

func validateCustomRules(cfg *Config) error {
	// A queue smaller than the worker pool cannot keep the pool busy and
	// is almost always a configuration mistake.
	if cfg.Server.QueueSize > 0 && cfg.Server.Workers > 0 &&
		cfg.Server.QueueSize < cfg.Server.Workers {
		return fmt.Errorf("server: queue_size (%d) must be >= workers (%d)",
			cfg.Server.QueueSize, cfg.Server.Workers)
	}

	if cfg.Server.AcceptBurst > 0 && cfg.Server.AcceptRate == 0 {
		return fmt.Errorf("server: accept_burst set but accept_rate is 0")
	}

	return nil
}

// formatValidationError converts validator errors into readable messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
