package orderdesk

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/kcmvp/orderdesk/constraint"
	"github.com/samber/lo"
	"github.com/samber/mo"
	"github.com/tidwall/gjson"
)

// Source looks up the raw, untrusted value submitted for a field.
// It returns None when the field was not submitted at all, and an error when
// the submitted value cannot be read as text.
type Source func(name string) (mo.Option[string], error)

// JSONSource reads fields from a JSON object. String members yield their text,
// numbers and booleans their literal; null and absent members yield None.
// Objects and arrays are a type mismatch.
func JSONSource(json string) Source {
	return func(name string) (mo.Option[string], error) {
		res := gjson.Get(json, name)
		switch {
		case !res.Exists() || res.Type == gjson.Null:
			return mo.None[string](), nil
		case res.Type == gjson.String:
			return mo.Some(res.String()), nil
		case res.IsObject() || res.IsArray():
			return mo.None[string](), fmt.Errorf("%w: '%s' must be a string, number or boolean", constraint.ErrTypeMismatch, name)
		}
		return mo.Some(res.Raw), nil
	}
}

// ValuesSource reads fields from url.Values, as decoded from an HTML form post or a query string.
func ValuesSource(values url.Values) Source {
	return func(name string) (mo.Option[string], error) {
		if !values.Has(name) {
			return mo.None[string](), nil
		}
		return mo.Some(values.Get(name)), nil
	}
}

// MapSource reads fields from a plain map.
func MapSource(m map[string]string) Source {
	return func(name string) (mo.Option[string], error) {
		v, ok := m[name]
		return lo.Ternary(ok, mo.Some(v), mo.None[string]()), nil
	}
}

// FieldError is the failure of a single field.
type FieldError struct {
	Field   string
	Message string
	Err     error
}

func (e FieldError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("field '%s': %s", e.Field, e.Err.Error())
}

func (e FieldError) Unwrap() error {
	return e.Err
}

// ValidationError holds every field failure of one submission, in field declaration order.
// There is at most one error per field.
type ValidationError struct {
	Fields []FieldError
}

// Error implements the error interface, formatting all contained errors.
func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("validation failed with the following errors:")
	for _, fe := range e.Fields {
		b.WriteString(fmt.Sprintf(" - %s;", fe.Error()))
	}
	return b.String()
}

// Messages returns the user facing message of each failed field.
func (e *ValidationError) Messages() []string {
	if e == nil {
		return nil
	}
	return lo.Map(e.Fields, func(fe FieldError, _ int) string {
		return fe.Error()
	})
}

// Add appends a field failure.
func (e *ValidationError) Add(fe FieldError) {
	e.Fields = append(e.Fields, fe)
}

// Err returns the ValidationError as an error if it contains any failure.
func (e *ValidationError) Err() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// Unwrap exposes the individual field errors to errors.Is and errors.As.
func (e *ValidationError) Unwrap() []error {
	return lo.Map(e.Fields, func(fe FieldError, _ int) error {
		return fe
	})
}

// AsValidationError extracts a *ValidationError from err.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	ok := errors.As(err, &ve)
	return ve, ok
}

// formField is an internal, non-generic interface that allows Form
// to hold a collection of fields with different underlying generic types.
type formField interface {
	Name() string
	// validate returns the typed value, whether it was submitted, and the field failure if any.
	validate(src Source) (value any, found bool, err *FieldError)
}

type Field[T constraint.FieldType] struct {
	name        string
	message     string
	required    bool
	normalizers []constraint.Normalizer
	validators  []constraint.Validator[T]
}

var _ formField = (*Field[string])(nil)

// NewField declares a required field validated by vfs in the given order.
// Registering the same validator twice on a field is a programming error and panics.
func NewField[T constraint.FieldType](name string, vfs ...constraint.ValidateFunc[T]) *Field[T] {
	lo.Assertf(strings.TrimSpace(name) != "", "orderdesk: field name must not be empty")
	names := make(map[string]struct{})
	validators := make([]constraint.Validator[T], 0, len(vfs))
	for _, vf := range vfs {
		n, v := vf()
		_, exists := names[n]
		lo.Assertf(!exists, "orderdesk: duplicate validator '%s' for field '%s'", n, name)
		names[n] = struct{}{}
		validators = append(validators, v)
	}
	return &Field[T]{name: name, required: true, validators: validators}
}

func (f *Field[T]) Name() string {
	return f.name
}

// Optional marks the field as not required. A missing optional field is skipped.
func (f *Field[T]) Optional() *Field[T] {
	f.required = false
	return f
}

// Normalize registers normalizers applied, in order, to the raw value before conversion.
func (f *Field[T]) Normalize(fns ...constraint.Normalizer) *Field[T] {
	f.normalizers = append(f.normalizers, fns...)
	return f
}

// Message sets the user facing text reported for any failure of this field.
func (f *Field[T]) Message(msg string) *Field[T] {
	f.message = msg
	return f
}

func (f *Field[T]) validate(src Source) (any, bool, *FieldError) {
	rs, found := f.Validate(src)
	if rs.IsError() {
		return nil, found, &FieldError{Field: f.name, Message: f.message, Err: rs.Error()}
	}
	if !found {
		return nil, false, nil
	}
	return rs.MustGet(), true, nil
}

// Validate looks the field up in src, normalizes, converts and validates it.
// It returns the typed value or an error, and whether the field was submitted.
func (f *Field[T]) Validate(src Source) (mo.Result[T], bool) {
	opt, err := src(f.name)
	if err != nil {
		return mo.Err[T](err), true
	}
	raw, found := opt.Get()
	if !found {
		if f.required {
			return mo.Err[T](fmt.Errorf("%s %w", f.name, constraint.ErrRequired)), false
		}
		return mo.Ok(*new(T)), false
	}
	for _, n := range f.normalizers {
		raw = n(raw)
	}
	typedVal := typed[T](raw)
	if typedVal.IsError() {
		return typedVal, true
	}
	val := typedVal.MustGet()
	for _, v := range f.validators {
		if err := v(val); err != nil {
			return mo.Err[T](err), true
		}
	}
	return mo.Ok(val), true
}

// typed converts a raw string into T. Integers must be written as plain integers:
// fractions, exponents and out of range values are rejected.
func typed[T constraint.FieldType](raw string) mo.Result[T] {
	var zero T
	targetType := reflect.TypeOf(zero)
	if targetType.Kind() == reflect.String {
		return mo.Ok(any(raw).(T))
	}
	val, err := strconv.ParseInt(raw, 10, targetType.Bits())
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return mo.Err[T](fmt.Errorf("for type %T: %w", zero, constraint.ErrIntegerOverflow))
		}
		return mo.Err[T](fmt.Errorf("%w: '%s' is not a valid %T", constraint.ErrTypeMismatch, raw, zero))
	}
	return mo.Ok(reflect.ValueOf(val).Convert(targetType).Interface().(T))
}

// Form is a blueprint for validating one submission.
type Form struct {
	fields []formField
}

// WithFields is the constructor for a Form blueprint. Fields are checked in the given order.
func WithFields(fields ...formField) *Form {
	names := make(map[string]struct{})
	for _, f := range fields {
		_, exists := names[f.Name()]
		lo.Assertf(!exists, "orderdesk: duplicate field name '%s' in Form definition", f.Name())
		names[f.Name()] = struct{}{}
	}
	return &Form{fields: fields}
}

// Validate checks every field of the form against src. It never stops at the first
// failure: the returned error lists every failed field.
func (form *Form) Validate(src Source) mo.Result[Values] {
	errs := &ValidationError{}
	values := valueObject{}
	for _, field := range form.fields {
		v, found, err := field.validate(src)
		if err != nil {
			errs.Add(*err)
			continue
		}
		if found {
			values[field.Name()] = v
		}
	}
	if err := errs.Err(); err != nil {
		return mo.Err[Values](err)
	}
	return mo.Ok[Values](values)
}
