package entity

// AssessmentSetting задаёт количество заданий для пары (класс, предмет).
type AssessmentSetting struct {
	ID            uint `gorm:"primaryKey" json:"id"`
	GradeID       uint `gorm:"not null;uniqueIndex:idx_settings_grade_subject,priority:1" json:"grade_id"`
	SubjectID     uint `gorm:"not null;uniqueIndex:idx_settings_grade_subject,priority:2" json:"subject_id"`
	QuestionCount int  `gorm:"not null;default:10" json:"question_count"`
}

// TableName определяет имя таблицы для GORM
func (AssessmentSetting) TableName() string {
	return "assessment_settings"
}

// Student — справочная запись об ученике (ведётся внешним каталогом, здесь только чтение).
type Student struct {
	ID      uint `gorm:"primaryKey" json:"id"`
	GradeID uint `gorm:"not null;index" json:"grade_id"`
}

// TableName определяет имя таблицы для GORM
func (Student) TableName() string {
	return "students"
}
