package errors

import "errors"

// Общие ошибки приложения (виды ошибок).
// Доменные ошибки оборачивают один из этих видов через %w,
// поэтому вызывающий код проверяет вид через errors.Is.
var (
	// ErrNotFound используется, когда запись или ресурс не найдены.
	ErrNotFound = errors.New("record not found")

	// ErrValidation используется для ошибок валидации входных данных.
	ErrValidation = errors.New("validation failed")

	// ErrConflict используется для конфликтов состояния (например, уже есть активная сессия).
	ErrConflict = errors.New("resource state conflict")

	// ErrExhausted используется, когда пул заданий исчерпан.
	ErrExhausted = errors.New("item pool exhausted")
)
