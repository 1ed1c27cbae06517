package entity

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Границы шкалы сложности (RIT).
const (
	MinDifficulty = 100
	MaxDifficulty = 350
)

// StringArray - пользовательский тип для работы с JSONB
type StringArray []string

// Scan реализует интерфейс sql.Scanner для StringArray
// Используется GORM для чтения JSONB данных из базы
func (o *StringArray) Scan(value interface{}) error {
	if value == nil {
		*o = StringArray{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to unmarshal JSONB value: expected []byte or string")
	}

	if len(bytes) == 0 {
		*o = StringArray{}
		return nil
	}

	return json.Unmarshal(bytes, o)
}

// Value реализует интерфейс driver.Valuer для StringArray
func (o StringArray) Value() (driver.Value, error) {
	if len(o) == 0 {
		return []byte("[]"), nil // Пустой JSON массив вместо null
	}
	return json.Marshal(o)
}

// Item представляет задание банка заданий.
// После создания задание не изменяется; ядро тестирования только читает его.
type Item struct {
	ID            uint        `gorm:"primaryKey" json:"id"`
	SubjectID     uint        `gorm:"not null;index:idx_items_subject_difficulty,priority:1" json:"subject_id"`
	Text          string      `gorm:"type:text;not null" json:"text"`
	Options       StringArray `gorm:"type:jsonb;not null" json:"options"`
	CorrectOption int         `gorm:"not null" json:"-"` // Скрыто от клиента
	Difficulty    int         `gorm:"not null;index:idx_items_subject_difficulty,priority:2" json:"difficulty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Item) TableName() string {
	return "items"
}

// IsCorrect проверяет, является ли выбранный вариант правильным
func (i *Item) IsCorrect(selectedOption int) bool {
	return selectedOption == i.CorrectOption
}

// OptionsCount возвращает количество вариантов ответа
func (i *Item) OptionsCount() int {
	return len(i.Options)
}

// IsValidOption проверяет, является ли выбранный вариант допустимым
func (i *Item) IsValidOption(selectedOption int) bool {
	return selectedOption >= 0 && selectedOption < len(i.Options)
}

// ItemView — задание без правильного ответа, то, что видит тестируемый.
type ItemView struct {
	ID         uint
	SubjectID  uint
	Text       string
	Options    StringArray
	Difficulty int
}

// Sanitized возвращает представление задания без CorrectOption.
func (i *Item) Sanitized() ItemView {
	options := make(StringArray, len(i.Options))
	copy(options, i.Options)
	return ItemView{
		ID:         i.ID,
		SubjectID:  i.SubjectID,
		Text:       i.Text,
		Options:    options,
		Difficulty: i.Difficulty,
	}
}
