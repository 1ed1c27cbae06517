package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/yourusername/rit-api/internal/domain/entity"
	apperrors "github.com/yourusername/rit-api/internal/pkg/errors"
)

// ItemRepo реализует repository.ItemRepository
type ItemRepo struct {
	db *gorm.DB
}

// NewItemRepo создает новый репозиторий заданий
func NewItemRepo(db *gorm.DB) *ItemRepo {
	return &ItemRepo{db: db}
}

// FindInRange возвращает задания предмета в диапазоне сложности [lo, hi]
func (r *ItemRepo) FindInRange(ctx context.Context, subjectID uint, lo, hi int, excludeIDs []uint) ([]entity.Item, error) {
	var items []entity.Item
	query := r.db.WithContext(ctx).
		Where("subject_id = ? AND difficulty BETWEEN ? AND ?", subjectID, lo, hi)

	// Исключаем уже использованные в текущем тестировании задания
	if len(excludeIDs) > 0 {
		query = query.Where("id NOT IN ?", excludeIDs)
	}

	err := query.Order("difficulty, id").Find(&items).Error
	return items, err
}

// FindAll возвращает все задания предмета, кроме исключённых
func (r *ItemRepo) FindAll(ctx context.Context, subjectID uint, excludeIDs []uint) ([]entity.Item, error) {
	var items []entity.Item
	query := r.db.WithContext(ctx).Where("subject_id = ?", subjectID)
	if len(excludeIDs) > 0 {
		query = query.Where("id NOT IN ?", excludeIDs)
	}
	err := query.Order("difficulty, id").Find(&items).Error
	return items, err
}

// GetByID возвращает задание по ID
func (r *ItemRepo) GetByID(ctx context.Context, id uint) (*entity.Item, error) {
	var item entity.Item
	err := r.db.WithContext(ctx).First(&item, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}
