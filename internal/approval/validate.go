package approval

import (
	"errors"
	"regexp"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (in RegisterInput) normalized() RegisterInput {
	return RegisterInput{
		Username: strings.TrimSpace(in.Username),
		Email:    strings.ToLower(strings.TrimSpace(in.Email)),
		Password: in.Password,
	}
}

type PasswordPolicy struct {
	MinLength int
	MaxLength int
}

func (in RegisterInput) validate(p PasswordPolicy) error {
	err := validation.ValidateStruct(&in,
		validation.Field(&in.Username, validation.Required, validation.Length(3, 32), validation.Match(usernamePattern).Error("may only contain letters, digits, '.', '_' and '-'")),
		validation.Field(&in.Email, validation.Required, validation.Length(3, 254), is.EmailFormat),
		validation.Field(&in.Password, validation.Required, validation.Length(p.MinLength, p.MaxLength)),
	)
	return asValidationError(err)
}

// ValidatePassword applies the password rule on its own, for reset flows.
func ValidatePassword(pw string, p PasswordPolicy) error {
	if err := validation.Validate(pw, validation.Required, validation.Length(p.MinLength, p.MaxLength)); err != nil {
		return &Error{Kind: KindValidation, Field: "password", Message: "password: " + err.Error()}
	}
	return nil
}

// asValidationError reports the first failing field in a stable order.
func asValidationError(err error) error {
	if err == nil {
		return nil
	}
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		return &Error{Kind: KindValidation, Message: err.Error()}
	}
	fields := make([]string, 0, len(verrs))
	for f := range verrs {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	f := fields[0]
	return &Error{Kind: KindValidation, Field: f, Message: f + ": " + verrs[f].Error()}
}
