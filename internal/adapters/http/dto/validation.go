package dto

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/jsamuelsen/hitokoto-widget/internal/domain"
)

var (
	// ErrValidation wraps struct tag failures and request-level rule failures.
	ErrValidation = errors.New("validation failed")

	// ErrBinding wraps a body, form or query that could not be decoded.
	ErrBinding = errors.New("binding failed")
)

var (
	requestValidator     *validator.Validate
	requestValidatorOnce sync.Once
)

// Validator returns the validator shared by all request types. Field errors
// carry the request's own field names. The "category" tag accepts any
// quote category code including the empty "all categories" code, and the
// font_family, font_size and gradient tags accept the domain table keys.
func Validator() *validator.Validate {
	requestValidatorOnce.Do(func() {
		requestValidator = validator.New(validator.WithRequiredStructEnabled())
		requestValidator.RegisterTagNameFunc(requestFieldName)
		_ = requestValidator.RegisterValidation("category", func(fl validator.FieldLevel) bool {
			_, err := domain.ParseCategory(fl.Field().String())
			return err == nil
		})
		for _, o := range variantOptions {
			_ = requestValidator.RegisterValidation(string(o), variantRule)
		}
	})

	return requestValidator
}

// variantOptions are validated against their domain option tables.
var variantOptions = []domain.Option{domain.OptionFontFamily, domain.OptionFontSize, domain.OptionGradient}

// variantRule accepts a key from the table of the option named by the tag.
func variantRule(fl validator.FieldLevel) bool {
	return slices.Contains(domain.VariantKeys(domain.Option(fl.GetTag())), fl.Field().String())
}

// requestFieldName names a field by its json tag, else its form tag.
func requestFieldName(fld reflect.StructField) string {
	for _, key := range [...]string{"json", "form"} {
		name, _, _ := strings.Cut(fld.Tag.Get(key), ",")
		switch name {
		case "-":
			return ""
		case "":
			continue
		default:
			return name
		}
	}

	return fld.Name
}

// requestRule is implemented by requests with rules spanning several fields.
type requestRule interface {
	Validate() error
}

// Validate checks struct tags, then the request's own rule if it has one.
func Validate(v any) error {
	if err := Validator().Struct(v); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}

	if r, ok := v.(requestRule); ok {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrValidation, err)
		}
	}

	return nil
}

// BindAndValidate decodes a JSON body into v and validates it.
func BindAndValidate(c *gin.Context, v any) error {
	return validateBound(v, c.ShouldBindJSON(v))
}

// BindQueryAndValidate decodes the query string into v and validates it.
func BindQueryAndValidate(c *gin.Context, v any) error {
	return validateBound(v, c.ShouldBindQuery(v))
}

// BindFormAndValidate decodes an urlencoded form into v and validates it.
func BindFormAndValidate(c *gin.Context, v any) error {
	return validateBound(v, c.ShouldBindWith(v, binding.Form))
}

func validateBound(v any, bindErr error) error {
	if bindErr != nil {
		return fmt.Errorf("%w: %w", ErrBinding, bindErr)
	}

	return Validate(v)
}

// ValidationErrors returns one message per failing field, keyed by the
// request field name. Errors without field failures yield an empty map.
func ValidationErrors(err error) map[string]string {
	details := make(map[string]string)

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return details
	}

	for _, fe := range fieldErrs {
		details[fe.Field()] = fieldMessage(fe)
	}

	return details
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case string(domain.OptionFontFamily), string(domain.OptionFontSize), string(domain.OptionGradient):
		return "must be one of: " + strings.Join(domain.VariantKeys(domain.Option(fe.Tag())), " ")
	case "hexcolor":
		return "must be a #rgb or #rrggbb color"
	case "category":
		return "must be a known category code"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	default:
		return "failed validation: " + fe.Tag()
	}
}
