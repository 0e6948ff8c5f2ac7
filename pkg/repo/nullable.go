package repo

// Nullable carries tri-state update semantics: unset (leave the column
// untouched), set to NULL, or set to a value. Plain pointers cannot tell the
// first two apart, which partial-patch updates need.
type Nullable[T any] struct {
	Value T
	Valid bool
	Set   bool
}

func NewNullableValue[T any](value T) Nullable[T] {
	return Nullable[T]{Value: value, Valid: true, Set: true}
}

func NewNullableNull[T any]() Nullable[T] {
	return Nullable[T]{Set: true}
}

func (n Nullable[T]) IsUnset() bool {
	return !n.Set
}

// Arg renders the nullable as a query argument: the value, or nil for NULL.
func (n Nullable[T]) Arg() any {
	if !n.Set || !n.Valid {
		return nil
	}
	return n.Value
}
