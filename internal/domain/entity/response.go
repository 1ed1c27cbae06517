package entity

import (
	"time"
)

// Response — ответ на одно задание. Записи только добавляются.
// OrderIndex начинается с 1 и строго растёт в пределах тестирования.
type Response struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	AssessmentID   uint      `gorm:"not null;uniqueIndex:idx_responses_assessment_order,priority:1" json:"assessment_id"`
	OrderIndex     int       `gorm:"not null;uniqueIndex:idx_responses_assessment_order,priority:2" json:"order_index"`
	ItemID         uint      `gorm:"not null;index" json:"item_id"`
	SelectedIndex  int       `gorm:"not null" json:"selected_index"`
	IsCorrect      bool      `gorm:"not null" json:"is_correct"`
	ItemDifficulty int       `gorm:"not null" json:"item_difficulty"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName определяет имя таблицы для GORM
func (Response) TableName() string {
	return "responses"
}
