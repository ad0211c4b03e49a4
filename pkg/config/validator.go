package config

import (
	"github.com/go-playground/validator/v10"

	"github.com/chesspuzzlekit/chesspuzzlekit/pkg/logger"
)

// RegisterCustomValidators registers the validation tags used by Config.
func RegisterCustomValidators(v *validator.Validate) error {
	return v.RegisterValidation("log_level", validateLogLevel)
}

// validateLogLevel accepts the levels understood by the logger package.
func validateLogLevel(fl validator.FieldLevel) bool {
	switch logger.LogLevel(fl.Field().String()) {
	case logger.DebugLevel, logger.InfoLevel, logger.WarnLevel, logger.ErrorLevel, logger.DisabledLevel:
		return true
	default:
		return false
	}
}
