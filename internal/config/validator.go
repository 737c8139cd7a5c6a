package config

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/quimera/catalog-ingest/internal/pkg/errors"
)

// telegramBotTokenRegex matches the bot token shape Telegram hands out,
// e.g. 123456:ABC-DEF1234ghIkl-zyx57W2v1u123ew11.
var telegramBotTokenRegex = regexp.MustCompile(`^\d{3,20}:[a-zA-Z0-9_-]{30,50}$`)

var validate = newValidator()

// newValidator builds the validator instance with the custom checks used
// by the configuration structs.
func newValidator() *validator.Validate {
	v := validator.New()

	// report JSON names (listen_port) instead of Go field names (ListenPort)
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	if err := v.RegisterValidation("telegram_bot_token", validateTelegramBotToken); err != nil {
		panic(fmt.Sprintf("failed to register the 'telegram_bot_token' validation: %v", err))
	}

	return v
}

func validateTelegramBotToken(fl validator.FieldLevel) bool {
	return telegramBotTokenRegex.MatchString(fl.Field().String())
}

// validateStruct runs the tag-based validation of s and converts the first
// failure into a readable configuration error.
func validateStruct(s any, contextName string) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	if validationErrors, ok := err.(validator.ValidationErrors); ok && len(validationErrors) > 0 {
		firstErr := validationErrors[0]
		return apperrors.Newf(apperrors.InvalidInput,
			"invalid %s configuration: field '%s' failed the '%s' check", contextName, firstErr.Field(), firstErr.Tag())
	}
	return apperrors.Wrapf(err, apperrors.InvalidInput, "failed to validate the %s configuration", contextName)
}
