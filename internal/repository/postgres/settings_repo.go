package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/yourusername/rit-api/internal/domain/entity"
	apperrors "github.com/yourusername/rit-api/internal/pkg/errors"
)

// SettingsRepo реализует repository.SettingsRepository
type SettingsRepo struct {
	db *gorm.DB
}

// NewSettingsRepo создает репозиторий настроек тестирования
func NewSettingsRepo(db *gorm.DB) *SettingsRepo {
	return &SettingsRepo{db: db}
}

// QuestionCount возвращает число заданий для класса и предмета
func (r *SettingsRepo) QuestionCount(ctx context.Context, gradeID, subjectID uint) (int, error) {
	var setting entity.AssessmentSetting
	err := r.db.WithContext(ctx).
		Where("grade_id = ? AND subject_id = ?", gradeID, subjectID).
		First(&setting).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, apperrors.ErrNotFound
		}
		return 0, err
	}
	return setting.QuestionCount, nil
}

// StudentRepo реализует repository.StudentRepository
type StudentRepo struct {
	db *gorm.DB
}

// NewStudentRepo создает репозиторий справочника учеников
func NewStudentRepo(db *gorm.DB) *StudentRepo {
	return &StudentRepo{db: db}
}

// GradeOf возвращает класс ученика
func (r *StudentRepo) GradeOf(ctx context.Context, studentID uint) (uint, error) {
	var student entity.Student
	err := r.db.WithContext(ctx).Select("id", "grade_id").First(&student, studentID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, apperrors.ErrNotFound
		}
		return 0, err
	}
	return student.GradeID, nil
}
