package util

// ExtendSlice returns xs resized to need elements, reusing its capacity when possible.
func ExtendSlice[T any](xs []T, need int) []T {
	xs = xs[:cap(xs)]
	if n := need - cap(xs); n > 0 {
		xs = append(xs, make([]T, n)...)
	}
	return xs[:need]
}

func CopySlice[T any](dst []T, src []T) []T {
	dst = ExtendSlice(dst, len(src))
	n := copy(dst, src)
	dst = dst[:n]
	return dst
}

// InsertSlice inserts src at index i of xs, shifting the tail right.
func InsertSlice[T any](xs []T, i int, src ...T) []T {
	n := len(xs)
	xs = ExtendSlice(xs, n+len(src))
	copy(xs[i+len(src):], xs[i:n])
	copy(xs[i:], src)
	return xs
}
