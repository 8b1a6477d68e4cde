package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate

	languageTag = regexp.MustCompile(`^[a-z]{2,3}(-[A-Z]{2})?$`)
)

func init() {
	Validate = validator.New()
	Validate.RegisterTagNameFunc(fieldName)

	if err := Validate.RegisterValidation("time_window", validateTimeWindow); err != nil {
		panic(fmt.Sprintf("failed to register time_window validator: %v", err))
	}
	if err := Validate.RegisterValidation("language", validateLanguage); err != nil {
		panic(fmt.Sprintf("failed to register language validator: %v", err))
	}
}

// fieldName reports fields by their query or JSON name so messages match what the client sent
func fieldName(f reflect.StructField) string {
	for _, key := range []string{"query", "json"} {
		if name, _, _ := strings.Cut(f.Tag.Get(key), ","); name != "" && name != "-" {
			return name
		}
	}
	return ""
}

// validateTimeWindow accepts the trending windows "day" and "week"
func validateTimeWindow(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "day", "week":
		return true
	default:
		return false
	}
}

func validateLanguage(fl validator.FieldLevel) bool {
	return IsLanguageTag(fl.Field().String())
}

// IsLanguageTag reports whether s looks like "en" or "en-US"
func IsLanguageTag(s string) bool {
	return languageTag.MatchString(s)
}

// SanitizeText sanitizes text input by trimming whitespace and removing control characters
func SanitizeText(text string) string {
	text = strings.TrimSpace(text)

	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}

	return sanitized.String()
}

// Message turns a validator error into a short human readable sentence.
// Errors of other types are returned as-is.
func Message(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fieldMessage(fe))
	}
	return strings.Join(parts, "; ")
}

func fieldMessage(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "gt", "gte", "lt", "lte":
		return fmt.Sprintf("%s is out of range", field)
	case "url":
		return field + " must be a URL"
	case "time_window":
		return field + " must be day or week"
	case "language":
		return field + " must be a language tag like en-US"
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
