package models

// Feed is a live query over one collection. Next blocks until the next full snapshot is
// available and returns iterator.Done once Stop has been called.
type Feed[T any] interface {
	Next() ([]T, error)
	Stop()
}
