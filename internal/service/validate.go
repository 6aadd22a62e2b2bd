package service

import (
	"errors"

	"account_service/internal/apperror"

	"github.com/go-playground/validator/v10"
)

// bcrypt ignores everything past 72 bytes.
const maxPasswordBytes = 72

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	_ = v.RegisterValidation("bcrypt_len", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= maxPasswordBytes
	})

	return v
}

type passwordInput struct {
	Password string `validate:"min=8,bcrypt_len"`
	Confirm  string `validate:"omitempty,eqfield=Password"`
}

var passwordMessages = map[string]string{
	"Password.min":        msgPasswordShort,
	"Password.bcrypt_len": msgPasswordLong,
	"Confirm.eqfield":     msgPasswordMismatch,
}

func validateEmail(email string) error {
	if err := validate.Var(email, "required,email"); err != nil {
		return apperror.Wrap(err, apperror.KindValidation, msgInvalidEmail)
	}
	return nil
}

// validatePassword checks length in characters and bcrypt bytes. confirm is
// optional but must match when given.
func validatePassword(password, confirm string) error {
	err := validate.Struct(passwordInput{Password: password, Confirm: confirm})
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		fe := fieldErrs[0]
		if msg, ok := passwordMessages[fe.Field()+"."+fe.Tag()]; ok {
			return apperror.Wrap(err, apperror.KindValidation, msg)
		}
	}

	return apperror.Wrap(err, apperror.KindValidation, msgPasswordShort)
}
