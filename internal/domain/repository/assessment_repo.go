package repository

import (
	"context"

	"github.com/yourusername/rit-api/internal/domain/entity"
)

// AssessmentRepository — долговременное хранилище тестирований и журнал ответов.
type AssessmentRepository interface {
	CreateAssessment(ctx context.Context, assessment *entity.Assessment) error
	GetAssessment(ctx context.Context, id uint) (*entity.Assessment, error)

	// AppendResponse добавляет ответ в журнал.
	// Повтор (assessment_id, order_index) возвращает apperrors.ErrConflict.
	AppendResponse(ctx context.Context, response *entity.Response) error
	// GetResponses возвращает ответы тестирования в порядке order_index.
	GetResponses(ctx context.Context, assessmentID uint) ([]entity.Response, error)

	// FinalizeAssessment записывает итог. Повторный вызов с тем же итогом безопасен.
	FinalizeAssessment(ctx context.Context, result entity.FinalResult) error
	// MarkAbandoned помечает незавершённое тестирование как брошенное.
	MarkAbandoned(ctx context.Context, id uint) error

	// MostRecentRIT возвращает последний RIT ученика по предмету за год.
	// ok=false, если завершённых тестирований нет.
	MostRecentRIT(ctx context.Context, studentID, subjectID uint, year int) (score int, ok bool, err error)
}
