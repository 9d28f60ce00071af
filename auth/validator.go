package auth

import (
	"regexp"
	"unicode"

	"github.com/go-playground/validator/v10"

	"halo-chat/domain"
	"halo-chat/errors"
)

var validate = validator.New()

var hexColorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

type RegisterRequest struct {
	Username    string `validate:"required,alphanum,min=3,max=20"`
	DisplayName string `validate:"required,min=1,max=40"`
	Email       string `validate:"required,email"`
	Password    string `validate:"required,min=12,max=72"`
	NameColor   string
}

func ValidateRegister(req RegisterRequest) error {
	if err := validate.Struct(req); err != nil {
		return err
	}
	if !isPasswordComplex(req.Password) {
		return errors.ErrInvalidPassword
	}
	if req.NameColor != "" && !ValidNameColor(req.NameColor) {
		return errors.ErrValidation
	}
	return nil
}

// ValidNameColor accepts a six digit hex color or the rainbow keyword.
func ValidNameColor(color string) bool {
	return color == domain.NameColorRainbow || hexColorPattern.MatchString(color)
}

func isPasswordComplex(s string) bool {
	var hasUpper, hasLower, hasNumber, hasSpecial bool
	for _, char := range s {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsNumber(char):
			hasNumber = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSpecial = true
		}
	}
	return hasUpper && hasLower && hasNumber && hasSpecial
}
