// Package validation decodes request bodies and turns validation failures
// into field-level error maps.
//
// Request structs are checked with go-playground/validator `validate` tags.
// Domain rules that need more than a tag live in ozzo-validation Validate
// methods on the request types; FromOzzo converts their errors to the same
// shape.
//
//	var req CreateBuildingRequest
//	if fieldErrs := validation.BindJSON(c, &req); fieldErrs != nil {
//	    c.JSON(http.StatusBadRequest, fieldErrs)
//	    return
//	}
package validation

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/MaxymChyncha/house-security-system/internal/access"
	apperrors "github.com/MaxymChyncha/house-security-system/pkg/errors"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
	ginOnce      sync.Once
)

// GetValidator returns the shared validator with the custom tags registered.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		configure(validate)
	})
	return validate
}

// RegisterGinBinding installs the custom tags on gin's default validator so
// `binding` tags on query structs understand them too.
func RegisterGinBinding() {
	ginOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			configure(v)
		}
	})
}

func configure(v *validator.Validate) {
	v.RegisterTagNameFunc(fieldName)
	// only fails when called twice with the same tag
	_ = v.RegisterValidation("role", validateRole)
}

// fieldName reports fields by their json (or form) name
func fieldName(fld reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return fld.Name
}

func validateRole(fl validator.FieldLevel) bool {
	_, err := access.ParseRole(fl.Field().String())
	return err == nil
}

// BindJSON decodes the request body into dst and validates it. It returns nil
// when the body is well formed and valid.
func BindJSON(c *gin.Context, dst interface{}) apperrors.FieldErrors {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return apperrors.Field(apperrors.NonFieldErrors, "Unable to read request body.")
	}
	if len(body) == 0 {
		body = []byte("{}")
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return fromDecodeError(err, reflect.TypeOf(dst))
	}
	if n, ok := dst.(Normalizer); ok {
		n.Normalize()
	}

	return Struct(dst)
}

// Normalizer is implemented by payloads that clean their input, e.g. trim
// whitespace, before validation.
type Normalizer interface {
	Normalize()
}

// Struct validates a decoded value.
func Struct(s interface{}) apperrors.FieldErrors {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}
	return FromValidator(err)
}

// fromDecodeError maps a JSON decoding failure to a field error when the
// offending field is known.
func fromDecodeError(err error, dst reflect.Type) apperrors.FieldErrors {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return apperrors.Field(jsonName(dst, typeErr.Field), typeMessage(typeErr.Type))
	}

	var fieldErrs apperrors.FieldErrors
	if errors.As(err, &fieldErrs) {
		return fieldErrs
	}

	return apperrors.Field(apperrors.NonFieldErrors, fmt.Sprintf("JSON parse error - %s", err.Error()))
}

// jsonName resolves a decoder field reference, which may be either the Go
// field name or the json key, to the json key.
func jsonName(t reflect.Type, field string) string {
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return field
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := fieldName(f)
		if f.Name == field || name == field {
			return name
		}
	}
	return field
}

func typeMessage(t reflect.Type) string {
	if t == nil {
		return "Invalid value."
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "A valid integer is required."
	case reflect.String:
		return "Not a valid string."
	case reflect.Bool:
		return "Must be a valid boolean."
	default:
		return "Invalid value."
	}
}

// FromValidator converts validator.ValidationErrors into FieldErrors. The
// first failure per field wins.
func FromValidator(err error) apperrors.FieldErrors {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return apperrors.Field(apperrors.NonFieldErrors, err.Error())
	}

	out := apperrors.FieldErrors{}
	for _, fe := range validationErrs {
		if _, exists := out[fe.Field()]; exists {
			continue
		}
		out[fe.Field()] = translateError(fe)
	}
	return out
}

var errorMessageTemplates = map[string]string{
	"required": "This field is required.",
	"email":    "Enter a valid email address.",
	"alphanum": "Enter a valid value consisting of letters and numbers.",
}

func translateError(fe validator.FieldError) string {
	if msg, ok := errorMessageTemplates[fe.Tag()]; ok {
		return msg
	}

	isString := fe.Kind() == reflect.String
	switch fe.Tag() {
	case "role":
		return fmt.Sprintf("\"%v\" is not a valid choice.", fe.Value())
	case "min":
		if isString && fe.Param() == "1" {
			return "This field may not be blank."
		}
		if isString {
			return fmt.Sprintf("Ensure this field has at least %s characters.", fe.Param())
		}
		return fmt.Sprintf("Ensure this value is greater than or equal to %s.", fe.Param())
	case "max":
		if isString {
			return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
		}
		return fmt.Sprintf("Ensure this value is less than or equal to %s.", fe.Param())
	case "gte":
		return fmt.Sprintf("Ensure this value is greater than or equal to %s.", fe.Param())
	case "lte":
		return fmt.Sprintf("Ensure this value is less than or equal to %s.", fe.Param())
	case "oneof":
		return fmt.Sprintf("\"%v\" is not a valid choice.", fe.Value())
	default:
		return fmt.Sprintf("Failed %s validation.", fe.Tag())
	}
}
