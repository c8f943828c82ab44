package auth

import (
	stderrors "errors"
	"fmt"
	"stream-lab/errors"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// Roles an operator account may carry.
const (
	RoleOperator = "operator"
	RoleAdmin    = "admin"
)

// Credentials is what an operator submits when an account is created.
type Credentials struct {
	Email    string   `validate:"required,email"`
	Password string   `validate:"required,min=12,max=72,strongpw"`
	Roles    []string `validate:"dive,oneof=operator admin"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("strongpw", func(fl validator.FieldLevel) bool {
		return strongPassword(fl.Field().String())
	})
	return v
}

// ValidateCredentials maps the first failing field to a domain error.
// Password problems surface as ErrInvalidPassword, everything else as ErrInvalidArgument.
func ValidateCredentials(c Credentials) error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !stderrors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("%w: %v", errors.ErrInvalidArgument, err)
	}
	first := fieldErrs[0]
	if first.Field() == "Password" {
		return fmt.Errorf("%w: failed on %s", errors.ErrInvalidPassword, first.Tag())
	}
	return fmt.Errorf("%w: %s failed on %s", errors.ErrInvalidArgument, first.Field(), first.Tag())
}

// strongPassword wants one upper, one lower, one digit and one symbol.
func strongPassword(s string) bool {
	var classes [4]bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			classes[0] = true
		case unicode.IsLower(r):
			classes[1] = true
		case unicode.IsDigit(r):
			classes[2] = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			classes[3] = true
		}
	}
	return classes[0] && classes[1] && classes[2] && classes[3]
}
