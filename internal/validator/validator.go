package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

var (
	ErrInvalidToken    = errors.New("invalid card token")
	ErrInvalidUsername = errors.New("invalid booth username")
)

const (
	maxTokenLength    = 128
	maxUsernameLength = 64
)

// Validator wraps validator/v10 with the card-token and booth-username tags
// and reports field names as they appear in JSON.
type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	_ = v.RegisterValidation("cardtoken", func(fl validator.FieldLevel) bool {
		return printable(strings.TrimSpace(fl.Field().String()), maxTokenLength)
	})
	_ = v.RegisterValidation("boothuser", func(fl validator.FieldLevel) bool {
		return printable(strings.TrimSpace(fl.Field().String()), maxUsernameLength)
	})
	return &Validator{validate: v}
}

func (v *Validator) Struct(s any) error {
	return v.validate.Struct(s)
}

// Details flattens validation errors into field -> message. Non-validation
// errors yield nil.
func Details(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	details := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		details[fe.Field()] = fmt.Sprintf("failed on '%s'", fe.Tag())
	}
	return details
}

// printable reports whether s is non-empty trimmed UTF-8 of at most limit
// characters with no control characters. Names in any script pass.
func printable(s string, limit int) bool {
	if s == "" || s != strings.TrimSpace(s) || !utf8.ValidString(s) {
		return false
	}
	if utf8.RuneCountInString(s) > limit {
		return false
	}
	for _, r := range s {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}

// ValidateToken accepts participant names, ids and card UIDs alike.
func ValidateToken(token string) error {
	if !printable(token, maxTokenLength) {
		return ErrInvalidToken
	}
	return nil
}

func ValidateUsername(username string) error {
	if !printable(username, maxUsernameLength) {
		return ErrInvalidUsername
	}
	return nil
}
