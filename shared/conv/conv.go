// Package conv holds small pointer conversion helpers.
package conv

func Ptr[T any](v T) *T {
	return &v
}

func FromPtr[T any](v *T) T {
	if v == nil {
		return *new(T)
	}
	return *v
}

// FromPtrOr returns *v, or fallback when v is nil.
func FromPtrOr[T any](v *T, fallback T) T {
	if v == nil {
		return fallback
	}
	return *v
}
