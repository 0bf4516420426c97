package models

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/desertthunder/cosmic/internal/shared"
)

// CodeAlphabet is the set of characters room codes are drawn from. It leaves out I, O, 0 and 1.
const CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterValidation("roomcode", func(fl validator.FieldLevel) bool {
			return IsRoomCode(fl.Field().String())
		})
	})
	return validate
}

// PublishRequest is the body of a publish call.
type PublishRequest struct {
	Code   string `json:"code" validate:"required,roomcode"`
	Member Member `json:"member"`
}

// IsRoomCode reports whether code is non-empty and only uses A-Z and 0-9. Generated codes draw
// from the narrower [CodeAlphabet], but any code of that shape is accepted on input.
// Length is checked by the room service, which knows the configured code length.
func IsRoomCode(code string) bool {
	if code == "" {
		return false
	}
	for _, r := range code {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// NormalizeCode upper-cases and trims a user supplied room code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate checks v against its struct tags and returns an error describing every failing field.
func Validate(v any) error {
	err := validatorInstance().Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, formatFieldError(fe))
	}
	return fmt.Errorf("%w: %s", shared.ErrInvalidInput, strings.Join(msgs, "; "))
}

func formatFieldError(fe validator.FieldError) string {
	field := fe.Namespace()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "roomcode":
		return fmt.Sprintf("%s is not a valid room code", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
