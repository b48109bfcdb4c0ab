package config

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/intentest/intentest/internal/model"
	interrors "github.com/intentest/intentest/pkg/errors"
)

var (
	validatorOnce sync.Once
	validateInst  *validator.Validate

	semverPattern = regexp.MustCompile(`^\d+\.\d+(?:\.\d+)?(?:-[0-9A-Za-z-.]+)?(?:\+[0-9A-Za-z-.]+)?$`)
)

func validatorInstance() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New()

		_ = v.RegisterValidation("semver", func(fl validator.FieldLevel) bool {
			return semverPattern.MatchString(fl.Field().String())
		})

		_ = v.RegisterValidation("action_kind", func(fl validator.FieldLevel) bool {
			return model.ActionKind(fl.Field().String()).IsValid()
		})

		validateInst = v
	})

	return validateInst
}

// ValidateConfig performs schema and cross-field validation on the
// configuration.
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return interrors.NewValidationError("config", "configuration is nil", nil)
	}

	v := validatorInstance()
	if err := v.Struct(cfg); err != nil {
		return convertValidationError(err)
	}

	if cfg.AIModel.Type == "http" && cfg.AIModel.Endpoint == "" {
		return interrors.NewValidationError("ai_model.endpoint", "required when ai_model.type is http", nil)
	}

	for i, mapping := range cfg.CustomMappings {
		if _, err := regexp.Compile("(?i)" + mapping.Pattern); err != nil {
			field := fmt.Sprintf("custom_mappings[%d].pattern", i)
			return interrors.NewValidationError(field, fmt.Sprintf("invalid regular expression: %v", err), err)
		}
	}

	return nil
}

func convertValidationError(err error) error {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok || len(validationErrors) == 0 {
		return interrors.NewValidationError("config", err.Error(), err)
	}

	first := validationErrors[0]
	field := strings.TrimPrefix(first.Namespace(), "Config.")
	message := fmt.Sprintf("failed %q validation", first.Tag())
	return interrors.NewValidationError(field, message, err)
}
