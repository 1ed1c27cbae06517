package entity

import (
	"time"
)

// Константы статусов тестирования
const (
	AssessmentStatusInProgress = "in_progress"
	AssessmentStatusCompleted  = "completed"
	AssessmentStatusAbandoned  = "abandoned"
)

// Assessment — долговременная запись об одной попытке тестирования.
// Итоговые поля (RITScore, CorrectCount, DurationMinutes) заполняются один раз при финализации.
type Assessment struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	StudentID       uint       `gorm:"not null;index:idx_assessments_student_subject_year,priority:1" json:"student_id"`
	SubjectID       uint       `gorm:"not null;index:idx_assessments_student_subject_year,priority:2" json:"subject_id"`
	Year            int        `gorm:"not null;index:idx_assessments_student_subject_year,priority:3" json:"year"`
	Period          Period     `gorm:"size:10;not null" json:"period"`
	Status          string     `gorm:"size:20;not null;default:'in_progress';index" json:"status"`
	RITScore        *int       `gorm:"column:rit_score" json:"rit_score,omitempty"`
	CorrectCount    int        `gorm:"not null;default:0" json:"correct_count"`
	DurationMinutes int        `gorm:"not null;default:0" json:"duration_minutes"`
	StartedAt       time.Time  `gorm:"not null" json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Assessment) TableName() string {
	return "assessments"
}

// IsCompleted проверяет, завершено ли тестирование
func (a *Assessment) IsCompleted() bool {
	return a.Status == AssessmentStatusCompleted
}

// FinalResult — итог тестирования, записывается ровно один раз.
type FinalResult struct {
	AssessmentID    uint
	RITScore        int
	CorrectCount    int
	DurationMinutes int
}

// Matches сообщает, совпадает ли уже записанный итог с переданным.
func (a *Assessment) Matches(r FinalResult) bool {
	return a.RITScore != nil &&
		*a.RITScore == r.RITScore &&
		a.CorrectCount == r.CorrectCount &&
		a.DurationMinutes == r.DurationMinutes
}
