package orderdesk

import (
	"github.com/samber/lo"
	"github.com/samber/mo"
)

// Values is a sealed, read-only view over the typed values of a validated Form.
// Getters return None for fields that were not submitted and panic when the
// requested type does not match the declared field type.
type Values interface {
	String(name string) mo.Option[string]
	Int(name string) mo.Option[int]
	seal()
}

// valueObject is the map-backed implementation of Values.
type valueObject map[string]any

var _ Values = (*valueObject)(nil)

func (vo valueObject) seal() {}

func get[T any](vo valueObject, name string) mo.Option[T] {
	value, ok := vo[name]
	if !ok {
		return mo.None[T]()
	}
	typedValue, ok := value.(T)
	lo.Assertf(ok, "orderdesk: field '%s' has wrong type: expected %T, got %T", name, *new(T), value)
	return mo.Some(typedValue)
}

func (vo valueObject) String(name string) mo.Option[string] {
	return get[string](vo, name)
}

func (vo valueObject) Int(name string) mo.Option[int] {
	return get[int](vo, name)
}
