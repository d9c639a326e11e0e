// internal/store/errors.go
package store

import "errors"

var (
	// ErrCandleNotFound сообщает об отсутствии сохранённой серии по ключу.
	ErrCandleNotFound = errors.New("store: candle series not found")
	// ErrRedisUnavailable сообщает о недоступности клиента Redis при инициализации.
	ErrRedisUnavailable = errors.New("store: redis client unavailable")
)
