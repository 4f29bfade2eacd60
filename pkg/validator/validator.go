package validator

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field" yaml:"field" xml:"field" bson:"field"`
	Code    string `json:"code" yaml:"code" xml:"code" bson:"code"`
	Message string `json:"message" yaml:"message" xml:"message" bson:"message"`
}

const (
	CodeRequired = "REQUIRED"
	CodeTooSmall = "TOO_SMALL"
	CodeTooLarge = "TOO_LARGE"
	CodeNotOneOf = "NOT_ONE_OF"
	CodeInvalid  = "INVALID"
)

var comparisons = map[string]string{
	"gte": ">=",
	"gt":  ">",
	"lte": "<=",
	"lt":  "<",
}

func codeOf(tag string) string {
	switch tag {
	case "required":
		return CodeRequired
	case "min", "gte", "gt":
		return CodeTooSmall
	case "max", "lte", "lt":
		return CodeTooLarge
	case "oneof":
		return CodeNotOneOf
	default:
		return CodeInvalid
	}
}

type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]

		if name == "-" {
			return ""
		}

		return name
	})

	return &Validator{validate: v}
}

func (v *Validator) Validate(i any) ([]ValidationError, bool) {
	if err := v.validate.Struct(i); err != nil {
		validationErrors := err.(validator.ValidationErrors)
		errors := make([]ValidationError, 0, len(validationErrors))

		for _, err := range validationErrors {
			var message string
			switch err.Tag() {
			case "required":
				message = fmt.Sprintf("%s is required", err.Field())
			case "min":
				message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
			case "max":
				message = fmt.Sprintf("%s must not exceed %s", err.Field(), err.Param())
			case "gte", "gt", "lte", "lt":
				message = fmt.Sprintf("%s must be %s %s", err.Field(), comparisons[err.Tag()], err.Param())
			case "oneof":
				message = fmt.Sprintf("%s must be one of [%s]", err.Field(), err.Param())
			default:
				message = fmt.Sprintf("%s is invalid", err.Field())
			}

			errors = append(errors, ValidationError{
				Field:   err.Field(),
				Code:    codeOf(err.Tag()),
				Message: message,
			})
		}

		return errors, false
	}

	return nil, true
}
