package g

// Pointer returns a pointer to a copy of v.
func Pointer[T any](v T) *T {
	return &v
}
