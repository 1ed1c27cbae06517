package repository

import "context"

// SettingsRepository — поставщик настроек тестирования.
type SettingsRepository interface {
	// QuestionCount возвращает число заданий для класса и предмета
	// или apperrors.ErrNotFound, если настройка не задана.
	QuestionCount(ctx context.Context, gradeID, subjectID uint) (int, error)
}

// StudentRepository — внешний справочник учеников.
type StudentRepository interface {
	GradeOf(ctx context.Context, studentID uint) (uint, error)
}
