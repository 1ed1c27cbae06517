package redis

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/yourusername/rit-api/internal/domain/entity"
	"github.com/yourusername/rit-api/internal/domain/repository"
	apperrors "github.com/yourusername/rit-api/internal/pkg/errors"
)

// cachedItem — форма задания в кеше. entity.Item скрывает CorrectOption в JSON,
// поэтому для кеша нужна отдельная структура.
type cachedItem struct {
	ID            uint     `json:"id"`
	SubjectID     uint     `json:"subject_id"`
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectOption int      `json:"correct_option"`
	Difficulty    int      `json:"difficulty"`
}

func toCached(it entity.Item) cachedItem {
	return cachedItem{
		ID:            it.ID,
		SubjectID:     it.SubjectID,
		Text:          it.Text,
		Options:       it.Options,
		CorrectOption: it.CorrectOption,
		Difficulty:    it.Difficulty,
	}
}

func (c cachedItem) toEntity() entity.Item {
	return entity.Item{
		ID:            c.ID,
		SubjectID:     c.SubjectID,
		Text:          c.Text,
		Options:       entity.StringArray(c.Options),
		CorrectOption: c.CorrectOption,
		Difficulty:    c.Difficulty,
	}
}

// ItemCache — кеширующий декоратор банка заданий.
// Пул предмета хранится в Redis целиком и фильтруется в памяти.
// Данные могут отставать от БД на ttl; сессия защищена от этого снимком задания.
type ItemCache struct {
	next  repository.ItemRepository
	cache repository.CacheRepository
	ttl   time.Duration
}

// NewItemCache создаёт кеширующий банк заданий поверх next.
func NewItemCache(next repository.ItemRepository, cache repository.CacheRepository, ttl time.Duration) *ItemCache {
	return &ItemCache{next: next, cache: cache, ttl: ttl}
}

func subjectPoolKey(subjectID uint) string {
	return fmt.Sprintf("items:subject:%d", subjectID)
}

func itemKey(id uint) string {
	return fmt.Sprintf("items:id:%d", id)
}

// FindInRange возвращает задания пула в диапазоне сложности.
func (c *ItemCache) FindInRange(ctx context.Context, subjectID uint, lo, hi int, excludeIDs []uint) ([]entity.Item, error) {
	pool, err := c.subjectPool(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	excluded := toSet(excludeIDs)
	out := make([]entity.Item, 0, len(pool))
	for _, it := range pool {
		if it.Difficulty < lo || it.Difficulty > hi || excluded[it.ID] {
			continue
		}
		out = append(out, it)
	}
	return out, nil
}

// FindAll возвращает весь пул предмета, кроме исключённых.
func (c *ItemCache) FindAll(ctx context.Context, subjectID uint, excludeIDs []uint) ([]entity.Item, error) {
	pool, err := c.subjectPool(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	excluded := toSet(excludeIDs)
	out := make([]entity.Item, 0, len(pool))
	for _, it := range pool {
		if !excluded[it.ID] {
			out = append(out, it)
		}
	}
	return out, nil
}

// GetByID возвращает задание по ID.
func (c *ItemCache) GetByID(ctx context.Context, id uint) (*entity.Item, error) {
	var cached cachedItem
	err := c.cache.GetJSON(ctx, itemKey(id), &cached)
	if err == nil {
		it := cached.toEntity()
		return &it, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		log.Printf("[ItemCache] WARNING: ошибка Redis при чтении задания #%d: %v", id, err)
	}

	item, err := c.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if errSet := c.cache.SetJSON(ctx, itemKey(id), toCached(*item), c.ttl); errSet != nil {
		log.Printf("[ItemCache] WARNING: не удалось закешировать задание #%d: %v", id, errSet)
	}
	return item, nil
}

// Invalidate сбрасывает кеш пула предмета.
func (c *ItemCache) Invalidate(ctx context.Context, subjectID uint) error {
	return c.cache.Delete(ctx, subjectPoolKey(subjectID))
}

func (c *ItemCache) subjectPool(ctx context.Context, subjectID uint) ([]entity.Item, error) {
	key := subjectPoolKey(subjectID)

	var cached []cachedItem
	err := c.cache.GetJSON(ctx, key, &cached)
	if err == nil {
		pool := make([]entity.Item, len(cached))
		for i, ci := range cached {
			pool[i] = ci.toEntity()
		}
		return pool, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		// Redis недоступен: работаем напрямую с БД
		log.Printf("[ItemCache] WARNING: ошибка Redis при чтении пула предмета #%d: %v", subjectID, err)
	}

	pool, err := c.next.FindAll(ctx, subjectID, nil)
	if err != nil {
		return nil, err
	}

	toStore := make([]cachedItem, len(pool))
	for i, it := range pool {
		toStore[i] = toCached(it)
	}
	if errSet := c.cache.SetJSON(ctx, key, toStore, c.ttl); errSet != nil {
		log.Printf("[ItemCache] WARNING: не удалось закешировать пул предмета #%d: %v", subjectID, errSet)
	}
	return pool, nil
}

func toSet(ids []uint) map[uint]bool {
	set := make(map[uint]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
