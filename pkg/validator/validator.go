// Package validator wraps go-playground/validator with the rules and error
// shape used by request payloads and service inputs.
package validator

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	engineOnce sync.Once
	engine     *validator.Validate

	tokenPattern = regexp.MustCompile(`^[a-z0-9]+([._-][a-z0-9]+)*$`)
)

// IsToken reports whether value is a lowercase machine name such as
// "manage-users" or "super-admin".
func IsToken(value string) bool {
	return tokenPattern.MatchString(value)
}

// ValidationError is one failed rule on one field. Field uses the json or
// mapstructure name.
type ValidationError struct {
	Field string `json:"field"`
	Tag   string `json:"tag"`
	Param string `json:"param,omitempty"`
}

// Message renders the failure for API clients.
func (v ValidationError) Message() string {
	field := humanField(v.Field)
	switch v.Tag {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, v.Param)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, v.Param)
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, v.Param)
	case "lte":
		return fmt.Sprintf("%s must be at most %s", field, v.Param)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(v.Param, " ", ", "))
	case "token":
		return field + " must be lowercase letters, digits and single separators"
	}
	if v.Param != "" {
		return fmt.Sprintf("%s failed validation: %s=%s", field, v.Tag, v.Param)
	}
	return fmt.Sprintf("%s failed validation: %s", field, v.Tag)
}

// ValidationErrors collects every failure found in one struct.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "validation failed"
	}
	messages := make([]string, len(v))
	for i, failure := range v {
		messages[i] = failure.Message()
	}
	return strings.Join(messages, "; ")
}

// Fields maps each failing field to its first message.
func (v ValidationErrors) Fields() map[string]string {
	if len(v) == 0 {
		return nil
	}
	fields := make(map[string]string, len(v))
	for _, failure := range v {
		if _, seen := fields[failure.Field]; !seen {
			fields[failure.Field] = failure.Message()
		}
	}
	return fields
}

// ValidateStruct checks s against its validate tags. Rule failures come back
// as ValidationErrors; anything else (such as a non-struct) is returned as is.
func ValidateStruct(s any) error {
	err := validatorEngine().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	failures := make(ValidationErrors, len(fieldErrs))
	for i, fe := range fieldErrs {
		failures[i] = ValidationError{Field: fe.Field(), Tag: fe.Tag(), Param: fe.Param()}
	}
	return failures
}

// RegisterValidation adds a custom rule to the shared engine.
func RegisterValidation(tag string, fn validator.Func) error {
	return validatorEngine().RegisterValidation(tag, fn)
}

func validatorEngine() *validator.Validate {
	engineOnce.Do(func() {
		engine = validator.New(validator.WithRequiredStructEnabled())
		engine.RegisterTagNameFunc(fieldName)
		_ = engine.RegisterValidation("token", func(fl validator.FieldLevel) bool {
			return IsToken(fl.Field().String())
		})
	})
	return engine
}

// fieldName reports a field by its json name, then its mapstructure name, so
// request payloads and config sections both read naturally in messages.
func fieldName(fld reflect.StructField) string {
	for _, tag := range []string{"json", "mapstructure"} {
		name, _, _ := strings.Cut(fld.Tag.Get(tag), ",")
		if name != "" && name != "-" {
			return name
		}
	}
	return fld.Name
}

func humanField(name string) string {
	if name == "" {
		return "field"
	}
	return strings.ToLower(strings.ReplaceAll(name, "_", " "))
}
