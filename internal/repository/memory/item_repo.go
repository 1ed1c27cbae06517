package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/yourusername/rit-api/internal/domain/entity"
	apperrors "github.com/yourusername/rit-api/internal/pkg/errors"
)

// ItemRepo — банк заданий в памяти процесса. Используется симулятором.
type ItemRepo struct {
	mu    sync.RWMutex
	items map[uint]entity.Item
}

// NewItemRepo создает банк из переданных заданий
func NewItemRepo(items ...entity.Item) *ItemRepo {
	r := &ItemRepo{items: make(map[uint]entity.Item, len(items))}
	for _, it := range items {
		r.items[it.ID] = it
	}
	return r
}

// SyntheticBank создает задания предмета со сложностью от lo до hi с шагом step.
// Правильный ответ у каждого задания — вариант 0.
func SyntheticBank(subjectID uint, lo, hi, step int) *ItemRepo {
	var items []entity.Item
	id := uint(1)
	for d := lo; d <= hi; d += step {
		items = append(items, entity.Item{
			ID:            id,
			SubjectID:     subjectID,
			Text:          "Synthetic item",
			Options:       entity.StringArray{"A", "B", "C", "D"},
			CorrectOption: 0,
			Difficulty:    d,
		})
		id++
	}
	return NewItemRepo(items...)
}

func (r *ItemRepo) FindInRange(ctx context.Context, subjectID uint, lo, hi int, excludeIDs []uint) ([]entity.Item, error) {
	return r.find(subjectID, excludeIDs, func(it *entity.Item) bool {
		return it.Difficulty >= lo && it.Difficulty <= hi
	}), nil
}

func (r *ItemRepo) FindAll(ctx context.Context, subjectID uint, excludeIDs []uint) ([]entity.Item, error) {
	return r.find(subjectID, excludeIDs, func(*entity.Item) bool { return true }), nil
}

func (r *ItemRepo) GetByID(ctx context.Context, id uint) (*entity.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	it, ok := r.items[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	it.Options = append(entity.StringArray(nil), it.Options...)
	return &it, nil
}

// Len возвращает количество заданий
func (r *ItemRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

func (r *ItemRepo) find(subjectID uint, excludeIDs []uint, keep func(*entity.Item) bool) []entity.Item {
	excluded := make(map[uint]bool, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = true
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []entity.Item
	for _, it := range r.items {
		if it.SubjectID != subjectID || excluded[it.ID] || !keep(&it) {
			continue
		}
		it.Options = append(entity.StringArray(nil), it.Options...)
		out = append(out, it)
	}
	// Тот же порядок, что и у ItemRepo в postgres
	sort.Slice(out, func(i, j int) bool {
		if out[i].Difficulty != out[j].Difficulty {
			return out[i].Difficulty < out[j].Difficulty
		}
		return out[i].ID < out[j].ID
	})
	return out
}
