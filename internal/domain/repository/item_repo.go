package repository

import (
	"context"

	"github.com/yourusername/rit-api/internal/domain/entity"
)

// ItemRepository — банк заданий (только чтение).
type ItemRepository interface {
	// FindInRange возвращает задания предмета со сложностью в [lo, hi], кроме excludeIDs.
	FindInRange(ctx context.Context, subjectID uint, lo, hi int, excludeIDs []uint) ([]entity.Item, error)
	// FindAll возвращает все задания предмета, кроме excludeIDs.
	FindAll(ctx context.Context, subjectID uint, excludeIDs []uint) ([]entity.Item, error)
	GetByID(ctx context.Context, id uint) (*entity.Item, error)
}
