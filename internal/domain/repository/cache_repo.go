package repository

import (
	"context"
	"time"
)

// ScoredMember — элемент отсортированного множества со значением score
type ScoredMember struct {
	Member string
	Score  float64
}

// CacheRepository определяет методы для работы с кешем
type CacheRepository interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, keys ...string) error
	SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	GetJSON(ctx context.Context, key string, dest interface{}) error
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
	// DeleteIfEquals атомарно удаляет ключ, только если его значение равно value.
	DeleteIfEquals(ctx context.Context, key string, value string) (bool, error)
	// ExtendIfEquals атомарно продлевает TTL ключа, только если его значение равно value.
	ExtendIfEquals(ctx context.Context, key string, value string, expiration time.Duration) (bool, error)

	// ZAdd добавляет элемент в отсортированное множество или обновляет его score.
	ZAdd(ctx context.Context, key string, score float64, member string) error
	// ZRangeByScore возвращает элементы со score не больше max.
	ZRangeByScore(ctx context.Context, key string, max float64) ([]ScoredMember, error)
	// ZRem удаляет элемент; true, если элемент был в множестве.
	ZRem(ctx context.Context, key string, member string) (bool, error)
}
