package config

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jsamuelsen/hitokoto-widget/internal/domain"
)

// validate reports fields by their koanf key, so messages name the same
// path an operator writes in YAML or maps from APP_ variables.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if key, _, _ := strings.Cut(f.Tag.Get("koanf"), ","); key != "" {
			return key
		}

		return strings.ToLower(f.Name)
	})

	// Style option keys come from the domain tables, never from tags.
	for _, o := range []domain.Option{domain.OptionFontFamily, domain.OptionFontSize, domain.OptionGradient} {
		_ = v.RegisterValidation(string(o), func(fl validator.FieldLevel) bool {
			return slices.Contains(domain.VariantKeys(o), fl.Field().String())
		})
	}

	return v
}

// Validate checks the loaded configuration. The service refuses to start
// on any failure, and every failing key is listed.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	lines := make([]string, len(fieldErrs))
	for i, fe := range fieldErrs {
		lines[i] = keyPath(fe.Namespace()) + " " + problem(fe)
	}

	return fmt.Errorf("config validation failed:\n  %s", strings.Join(lines, "\n  "))
}

// keyPath drops the root type from a namespace such as
// "Config.widget.style.border_radius".
func keyPath(namespace string) string {
	_, path, found := strings.Cut(namespace, ".")
	if !found {
		return namespace
	}

	return path
}

func problem(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_if":
		return "is required when " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case string(domain.OptionFontFamily), string(domain.OptionFontSize), string(domain.OptionGradient):
		return "must be one of: " + strings.Join(domain.VariantKeys(domain.Option(fe.Tag())), " ")
	case "url":
		return "must be a valid URL"
	case "hexcolor":
		return "must be a hex color"
	case "alphanum":
		return "must be alphanumeric"
	case "lowercase":
		return "must be lowercase"
	case "len":
		return "must be exactly " + fe.Param() + " characters"
	default:
		return "failed validation: " + fe.Tag()
	}
}
