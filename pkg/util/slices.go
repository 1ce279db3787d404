package util

func Find[T any](items []T, predicate func(T) bool) T {
	var zero T
	for _, item := range items {
		if predicate(item) {
			return item
		}
	}
	return zero
}
