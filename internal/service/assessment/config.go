package assessment

import (
	"time"

	"github.com/yourusername/rit-api/internal/domain/entity"
)

// Политики повторного старта для уже активной сессии.
const (
	DuplicateStartReject  = "reject"
	DuplicateStartReplace = "replace"
)

// Значения по умолчанию
const (
	DefaultQuestionCount      = 10
	DefaultStartingDifficulty = 225
	DefaultSelectionWindow    = 10
)

// Config содержит настройки адаптивного тестирования
type Config struct {
	// MinDifficulty/MaxDifficulty — границы шкалы сложности
	MinDifficulty int
	MaxDifficulty int

	// DefaultStartingDifficulty — стартовая сложность, если прошлого RIT за год нет
	DefaultStartingDifficulty int

	// DefaultQuestionCount — число заданий, если для класса и предмета нет настройки
	DefaultQuestionCount int

	// SelectionWindow — полуширина окна поиска задания вокруг целевой сложности
	SelectionWindow int

	// StepChoices — возможные шаги изменения сложности, выбираются равновероятно
	StepChoices []int

	// SessionTTL — время простоя, после которого сессия считается брошенной (0 — без ограничения)
	SessionTTL time.Duration

	// DuplicateStartPolicy — что делать со стартом при уже активной сессии: reject или replace
	DuplicateStartPolicy string
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() *Config {
	return &Config{
		MinDifficulty:             entity.MinDifficulty,
		MaxDifficulty:             entity.MaxDifficulty,
		DefaultStartingDifficulty: DefaultStartingDifficulty,
		DefaultQuestionCount:      DefaultQuestionCount,
		SelectionWindow:           DefaultSelectionWindow,
		StepChoices:               []int{3, 4, 5},
		SessionTTL:                2 * time.Hour,
		DuplicateStartPolicy:      DuplicateStartReject,
	}
}

// clamp ограничивает сложность границами шкалы
func (c *Config) clamp(difficulty int) int {
	return min(c.MaxDifficulty, max(c.MinDifficulty, difficulty))
}
