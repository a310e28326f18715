package common

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validatorOnce sync.Once
	validatorInst *validator.Validate
)

// Validator returns the shared validator which reports JSON field names.
func Validator() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		validatorInst = v
	})
	return validatorInst
}

// FieldError describes the first failing field of a payload.
type FieldError struct {
	Field string
	Tag   string
}

func (e FieldError) Error() string {
	return e.Field + " failed " + e.Tag
}

// ValidateStruct validates v and returns a FieldError for the first failure.
func ValidateStruct(v any) error {
	err := Validator().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return FieldError{Field: verrs[0].Field(), Tag: verrs[0].Tag()}
	}
	return err
}
