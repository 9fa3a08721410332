package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/benvon/tagdesk/internal/models"
	"github.com/go-playground/validator/v10"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate

	providerNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,31}$`)
)

func init() {
	Validate = validator.New()

	if err := Validate.RegisterValidation("provider_name", validateProviderName); err != nil {
		panic(fmt.Sprintf("failed to register provider_name validator: %v", err))
	}
	if err := Validate.RegisterValidation("theme", validateTheme); err != nil {
		panic(fmt.Sprintf("failed to register theme validator: %v", err))
	}
}

// validateProviderName accepts short lowercase identifiers such as "google".
func validateProviderName(fl validator.FieldLevel) bool {
	return providerNamePattern.MatchString(fl.Field().String())
}

func validateTheme(fl validator.FieldLevel) bool {
	switch models.Theme(fl.Field().String()) {
	case models.ThemeLight, models.ThemeDark:
		return true
	default:
		return false
	}
}

// FieldMessages maps validation failures to user-facing messages. messages
// is keyed by "Field.tag" (struct field name and failing rule); failures
// without an entry get a generic message. A non-validation error yields nil.
func FieldMessages(err error, messages map[string]string) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		if _, seen := out[fe.Field()]; seen {
			continue
		}
		if msg, ok := messages[fe.Field()+"."+fe.Tag()]; ok {
			out[fe.Field()] = msg
			continue
		}
		out[fe.Field()] = fmt.Sprintf("%s is invalid", fe.Field())
	}
	return out
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
