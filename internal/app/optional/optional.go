// Package optional carries tri-state PATCH fields from the HTTP adapter into services.
package optional

// Value is a tri-state field used to distinguish:
// - unspecified (omitted)
// - specified as null
// - specified with a value
type Value[T any] struct {
	specified bool
	isNull    bool
	value     T
}

func Unspecified[T any]() Value[T] { return Value[T]{} }
func Null[T any]() Value[T]        { return Value[T]{specified: true, isNull: true} }
func Some[T any](v T) Value[T]     { return Value[T]{specified: true, value: v} }

func (o Value[T]) IsSpecified() bool { return o.specified }
func (o Value[T]) IsNull() bool      { return o.specified && o.isNull }
func (o Value[T]) Value() T          { return o.value }

// Ptr returns nil for unspecified or null, otherwise a pointer to a copy of the value.
func (o Value[T]) Ptr() *T {
	if !o.specified || o.isNull {
		return nil
	}
	v := o.value
	return &v
}
