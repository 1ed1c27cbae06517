package assessment

import (
	"context"
	"fmt"
	"time"

	"github.com/yourusername/rit-api/internal/domain/entity"
)

// SessionKey идентифицирует активную сессию: не более одной на ключ.
type SessionKey struct {
	StudentID uint          `json:"student_id"`
	SubjectID uint          `json:"subject_id"`
	Period    entity.Period `json:"period"`
}

func (k SessionKey) String() string {
	return fmt.Sprintf("%d:%d:%s", k.StudentID, k.SubjectID, k.Period)
}

// ItemSnapshot фиксирует неизменяемые атрибуты выданного задания,
// чтобы сессия не увидела другие значения при обновлении кеша банка.
type ItemSnapshot struct {
	ID            uint `json:"id"`
	Difficulty    int  `json:"difficulty"`
	CorrectOption int  `json:"correct_option"`
	OptionsCount  int  `json:"options_count"`
}

func snapshotOf(item *entity.Item) *ItemSnapshot {
	return &ItemSnapshot{
		ID:            item.ID,
		Difficulty:    item.Difficulty,
		CorrectOption: item.CorrectOption,
		OptionsCount:  item.OptionsCount(),
	}
}

// Session — изменяемое состояние одного незавершённого тестирования
type Session struct {
	Key                      SessionKey    `json:"key"`
	AssessmentID             uint          `json:"assessment_id"`
	TotalQuestions           int           `json:"total_questions"`
	CurrentDifficulty        int           `json:"current_difficulty"`
	QuestionsAnswered        int           `json:"questions_answered"`
	HighestCorrectDifficulty int           `json:"highest_correct_difficulty"`
	CorrectCount             int           `json:"correct_count"`
	UsedItemIDs              []uint        `json:"used_item_ids"`
	CurrentItem              *ItemSnapshot `json:"current_item,omitempty"`
	StartedAt                time.Time     `json:"started_at"`
	LastActivityAt           time.Time     `json:"last_activity_at"`

	// Completed выставляется при финализации; хранилище удаляет такую сессию.
	Completed bool `json:"completed"`
}

// Clone возвращает глубокую копию сессии
func (s *Session) Clone() *Session {
	c := *s
	c.UsedItemIDs = append([]uint(nil), s.UsedItemIDs...)
	if s.CurrentItem != nil {
		item := *s.CurrentItem
		c.CurrentItem = &item
	}
	return &c
}

// IsUsed сообщает, выдавалось ли задание в этой сессии
func (s *Session) IsUsed(itemID uint) bool {
	for _, id := range s.UsedItemIDs {
		if id == itemID {
			return true
		}
	}
	return false
}

// MarkUsed добавляет задание в множество использованных
func (s *Session) MarkUsed(itemID uint) {
	if !s.IsUsed(itemID) {
		s.UsedItemIDs = append(s.UsedItemIDs, itemID)
	}
}

// SessionStore хранит сессии активных тестирований.
// Хранилище не выполняет долговременного ввода-вывода в БД.
type SessionStore interface {
	// Create сохраняет новую сессию; ErrSessionConflict, если ключ уже занят.
	Create(ctx context.Context, session *Session) error
	// Get возвращает копию сессии или ErrSessionNotFound.
	Get(ctx context.Context, key SessionKey) (*Session, error)
	// KeyOf находит ключ сессии по ID тестирования или возвращает ErrSessionNotFound.
	KeyOf(ctx context.Context, assessmentID uint) (SessionKey, error)
	// Mutate применяет fn к сессии, не более одного fn на ключ одновременно.
	// Изменения fn сохраняются даже при ошибке; сессия с Completed=true удаляется.
	Mutate(ctx context.Context, key SessionKey, fn func(*Session) error) error
	// Delete удаляет сессию; отсутствие сессии не считается ошибкой.
	Delete(ctx context.Context, key SessionKey) error
	// ExpireIdle удаляет и возвращает сессии без активности с момента cutoff.
	ExpireIdle(ctx context.Context, cutoff time.Time) ([]*Session, error)
}
