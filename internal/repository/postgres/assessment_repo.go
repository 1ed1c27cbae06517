package postgres

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yourusername/rit-api/internal/domain/entity"
	apperrors "github.com/yourusername/rit-api/internal/pkg/errors"
)

// AssessmentRepo реализует repository.AssessmentRepository
type AssessmentRepo struct {
	db *gorm.DB
}

// NewAssessmentRepo создает новый репозиторий тестирований
func NewAssessmentRepo(db *gorm.DB) *AssessmentRepo {
	return &AssessmentRepo{db: db}
}

// CreateAssessment создает запись о начатом тестировании
func (r *AssessmentRepo) CreateAssessment(ctx context.Context, assessment *entity.Assessment) error {
	if assessment.Status == "" {
		assessment.Status = entity.AssessmentStatusInProgress
	}
	return r.db.WithContext(ctx).Create(assessment).Error
}

// GetAssessment возвращает тестирование по ID
func (r *AssessmentRepo) GetAssessment(ctx context.Context, id uint) (*entity.Assessment, error) {
	var assessment entity.Assessment
	err := r.db.WithContext(ctx).First(&assessment, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &assessment, nil
}

// AppendResponse добавляет ответ в журнал
func (r *AssessmentRepo) AppendResponse(ctx context.Context, response *entity.Response) error {
	err := r.db.WithContext(ctx).Create(response).Error
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: response #%d for assessment #%d already recorded",
				apperrors.ErrConflict, response.OrderIndex, response.AssessmentID)
		}
		return err
	}
	return nil
}

// GetResponses возвращает ответы тестирования в порядке order_index
func (r *AssessmentRepo) GetResponses(ctx context.Context, assessmentID uint) ([]entity.Response, error) {
	var responses []entity.Response
	err := r.db.WithContext(ctx).
		Where("assessment_id = ?", assessmentID).
		Order("order_index").
		Find(&responses).Error
	return responses, err
}

// FinalizeAssessment записывает итог тестирования.
// Повторный вызов с тем же итогом ничего не меняет и не возвращает ошибку;
// попытка перезаписать итог другим значением возвращает ErrConflict.
func (r *AssessmentRepo) FinalizeAssessment(ctx context.Context, result entity.FinalResult) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var assessment entity.Assessment
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&assessment, result.AssessmentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrNotFound
			}
			return err
		}

		if assessment.IsCompleted() {
			if assessment.Matches(result) {
				log.Printf("[AssessmentRepo] Тестирование #%d уже финализировано с тем же итогом", result.AssessmentID)
				return nil
			}
			return fmt.Errorf("%w: assessment #%d already finalized with a different result",
				apperrors.ErrConflict, result.AssessmentID)
		}

		now := time.Now()
		score := result.RITScore
		return tx.Model(&entity.Assessment{}).
			Where("id = ?", result.AssessmentID).
			Updates(map[string]interface{}{
				"status":           entity.AssessmentStatusCompleted,
				"rit_score":        score,
				"correct_count":    result.CorrectCount,
				"duration_minutes": result.DurationMinutes,
				"completed_at":     now,
			}).Error
	})
}

// MarkAbandoned помечает незавершённое тестирование как брошенное
func (r *AssessmentRepo) MarkAbandoned(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Model(&entity.Assessment{}).
		Where("id = ? AND status = ?", id, entity.AssessmentStatusInProgress).
		Update("status", entity.AssessmentStatusAbandoned).Error
}

// MostRecentRIT возвращает RIT последнего завершённого тестирования за год
func (r *AssessmentRepo) MostRecentRIT(ctx context.Context, studentID, subjectID uint, year int) (int, bool, error) {
	var assessment entity.Assessment
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND subject_id = ? AND year = ? AND status = ? AND rit_score IS NOT NULL",
			studentID, subjectID, year, entity.AssessmentStatusCompleted).
		Order("completed_at DESC, id DESC").
		First(&assessment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return *assessment.RITScore, true, nil
}
