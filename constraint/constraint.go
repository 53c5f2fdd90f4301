package constraint

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/samber/lo"
)

// Number is the set of integer types a form field can hold.
type Number interface {
	int | int8 | int16 | int32 | int64
}

// FieldType is a constraint for the Go types a raw form value can be converted to.
type FieldType interface {
	Number | string
}

type Validator[T FieldType] func(v T) error
type ValidateFunc[T FieldType] func() (string, Validator[T])

// Normalizer rewrites a raw input value before it is converted and validated.
type Normalizer func(string) string

// emailPattern is a permissive syntactic check: local@domain.tld, where the
// word characters of each part may be any Unicode letter or digit.
// It is not RFC 5322 complete and says nothing about deliverability.
var emailPattern = regexp.MustCompile(`^[\p{L}\p{N}_.-]+@[\p{L}\p{N}_.-]+\.[\p{L}\p{N}_]+$`)

var (
	ErrIntegerOverflow = errors.New("integer overflow")
	ErrTypeMismatch    = errors.New("type mismatch")
	ErrRequired        = errors.New("is required but not found")
	ErrBlank           = errors.New("must not be blank")
	ErrNotValidEmail   = errors.New("not valid email address")
	ErrMustGt          = errors.New("must be greater than")
	ErrMustBetween     = errors.New("must be between")
)

// IsEmail reports whether str has the shape local@domain.tld.
func IsEmail(str string) bool {
	return emailPattern.MatchString(str)
}

// NotBlank validates that a string has at least one non-space character.
func NotBlank() ValidateFunc[string] {
	return func() (string, Validator[string]) {
		return "not_blank", func(str string) error {
			return lo.Ternary(strings.TrimSpace(str) == "", ErrBlank, nil)
		}
	}
}

// Email validates that a string looks like local@domain.tld.
func Email() ValidateFunc[string] {
	return func() (string, Validator[string]) {
		return "email", func(str string) error {
			return lo.Ternary(!IsEmail(str), fmt.Errorf("%w: %s", ErrNotValidEmail, str), nil)
		}
	}
}

// Gt validates that a value is greater than min.
func Gt[T Number](min T) ValidateFunc[T] {
	return func() (string, Validator[T]) {
		return "gt", func(val T) error {
			return lo.Ternary(val <= min, fmt.Errorf("%w %v", ErrMustGt, min), nil)
		}
	}
}

// Between validates that min <= value <= max.
func Between[T Number](min, max T) ValidateFunc[T] {
	lo.Assertf(min <= max, "empty range [%v, %v]", min, max)
	return func() (string, Validator[T]) {
		return "between", func(val T) error {
			return lo.Ternary(val < min || val > max, fmt.Errorf("%w %v and %v", ErrMustBetween, min, max), nil)
		}
	}
}
