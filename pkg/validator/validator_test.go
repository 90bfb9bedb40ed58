package validator

import (
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
)

type createAdminPayload struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"min=8"`
	Internal string `json:"-" validate:"max=3"`
}

func TestValidateStructSuccess(t *testing.T) {
	payload := createAdminPayload{Name: "Ada", Email: "ada@example.com", Password: "correct-horse"}
	require.NoError(t, ValidateStruct(payload))
}

func TestValidateStructFailures(t *testing.T) {
	err := ValidateStruct(createAdminPayload{Email: "invalid", Password: "short", Internal: "toolong"})

	var failures ValidationErrors
	require.True(t, errors.As(err, &failures))
	require.Len(t, failures, 4)
	require.Equal(t, ValidationError{Field: "name", Tag: "required"}, failures[0])
	require.Equal(t, ValidationError{Field: "password", Tag: "min", Param: "8"}, failures[2])
	require.Equal(t, "Internal", failures[3].Field)

	require.Equal(t, map[string]string{
		"name":     "name is required",
		"email":    "email must be a valid email address",
		"password": "password must be at least 8 characters",
		"Internal": "internal must be at most 3 characters",
	}, failures.Fields())
}

func TestValidationErrorsMessage(t *testing.T) {
	failures := ValidationErrors{
		{Field: "email", Tag: "required"},
		{Field: "password", Tag: "min", Param: "8"},
		{Field: "role_name", Tag: "token"},
		{Field: "status", Tag: "oneof", Param: "active inactive"},
		{Field: "limit", Tag: "gte", Param: "1"},
		{Field: "code", Tag: "len", Param: "6"},
	}
	require.Equal(t, "email is required; password must be at least 8 characters; "+
		"role name must be lowercase letters, digits and single separators; "+
		"status must be one of: active, inactive; limit must be at least 1; code failed validation: len=6", failures.Error())

	require.Equal(t, "validation failed", ValidationErrors{}.Error())
	require.Nil(t, ValidationErrors{}.Fields())
}

func TestFieldNameFallsBackToMapstructure(t *testing.T) {
	type section struct {
		LogFormat string `mapstructure:"log_format" validate:"oneof=json console"`
	}
	err := ValidateStruct(section{LogFormat: "xml"})

	var failures ValidationErrors
	require.True(t, errors.As(err, &failures))
	require.Equal(t, "log_format", failures[0].Field)
	require.Equal(t, "log format must be one of: json, console", failures[0].Message())
}

func TestValidateStructRejectsNonStruct(t *testing.T) {
	err := ValidateStruct("not a struct")
	require.Error(t, err)

	var failures ValidationErrors
	require.False(t, errors.As(err, &failures))
}

func TestRegisterValidation(t *testing.T) {
	require.NoError(t, RegisterValidation("adminhub", func(fl validator.FieldLevel) bool {
		return fl.Field().String() == "adminhub"
	}))

	type custom struct {
		Value string `validate:"adminhub"`
	}
	require.NoError(t, ValidateStruct(custom{Value: "adminhub"}))
	require.Error(t, ValidateStruct(custom{Value: "other"}))
}

func TestTokenRule(t *testing.T) {
	type role struct {
		Name string `json:"name" validate:"required,token"`
	}

	for _, valid := range []string{"super-admin", "manage-users", "view.metrics", "admin"} {
		require.NoError(t, ValidateStruct(role{Name: valid}), valid)
	}

	for _, invalid := range []string{"Super-Admin", "manage users", "-admin", "admin-", "a--b"} {
		err := ValidateStruct(role{Name: invalid})
		var failures ValidationErrors
		require.True(t, errors.As(err, &failures), invalid)
		require.Len(t, failures, 1)
		require.Equal(t, "token", failures[0].Tag)
	}
}
