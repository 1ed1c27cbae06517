package assessment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/yourusername/rit-api/internal/domain/entity"
	"github.com/yourusername/rit-api/internal/domain/repository"
	apperrors "github.com/yourusername/rit-api/internal/pkg/errors"
)

// Dependencies содержит внешние зависимости Manager
type Dependencies struct {
	Items       repository.ItemRepository
	Assessments repository.AssessmentRepository
	Settings    repository.SettingsRepository // может быть nil: тогда число заданий по умолчанию
	Students    repository.StudentRepository  // может быть nil
	Sessions    SessionStore
	Random      Random
	Clock       func() time.Time
}

// Manager координирует жизненный цикл тестирования: старт, ответы и финализацию
type Manager struct {
	config      *Config
	items       repository.ItemRepository
	assessments repository.AssessmentRepository
	settings    repository.SettingsRepository
	students    repository.StudentRepository
	sessions    SessionStore
	selector    *ItemSelector
	adjuster    *DifficultyAdjuster
	now         func() time.Time
}

// StartResult — ответ на старт тестирования
type StartResult struct {
	AssessmentID       uint
	Item               entity.ItemView
	QuestionNumber     int
	TotalQuestions     int
	StartingDifficulty int
}

// Summary — итог завершённого тестирования
type Summary struct {
	AssessmentID      uint
	RITScore          int
	CorrectCount      int
	QuestionsAnswered int
	TotalQuestions    int
	DurationMinutes   int
}

// SubmitResult — результат обработки ответа.
// При Completed=true заполнен Summary, иначе Item со следующим заданием.
type SubmitResult struct {
	Completed      bool
	IsCorrect      bool
	CurrentRIT     int
	NextDifficulty int
	Item           *entity.ItemView
	QuestionNumber int
	TotalQuestions int
	Summary        *Summary
}

// SessionView — снимок активной сессии для клиента
type SessionView struct {
	AssessmentID      uint
	StudentID         uint
	SubjectID         uint
	Period            entity.Period
	QuestionsAnswered int
	TotalQuestions    int
	CurrentDifficulty int
	CurrentRIT        int
	CorrectCount      int
	StartedAt         time.Time
	LastActivityAt    time.Time
	// Item — задание, ожидающее ответа; nil, если банк исчерпан
	Item           *entity.ItemView
	QuestionNumber int
	Exhausted      bool
}

// NewManager создает новый менеджер тестирования
func NewManager(config *Config, deps Dependencies) (*Manager, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if deps.Items == nil || deps.Assessments == nil || deps.Sessions == nil {
		return nil, fmt.Errorf("items, assessments and sessions are required for assessment manager")
	}
	if len(config.StepChoices) == 0 {
		return nil, fmt.Errorf("step choices cannot be empty")
	}
	if config.MinDifficulty > config.MaxDifficulty {
		return nil, fmt.Errorf("invalid difficulty range [%d, %d]", config.MinDifficulty, config.MaxDifficulty)
	}
	if deps.Random == nil {
		deps.Random = DefaultRandom()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}

	return &Manager{
		config:      config,
		items:       deps.Items,
		assessments: deps.Assessments,
		settings:    deps.Settings,
		students:    deps.Students,
		sessions:    deps.Sessions,
		selector:    NewItemSelector(config, deps.Items, deps.Random),
		adjuster:    NewDifficultyAdjuster(config, deps.Random),
		now:         deps.Clock,
	}, nil
}

// Start начинает новое тестирование и возвращает первое задание
func (m *Manager) Start(ctx context.Context, studentID, subjectID uint, period string) (*StartResult, error) {
	p, err := entity.ParsePeriod(period)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPeriod, period)
	}

	key := SessionKey{StudentID: studentID, SubjectID: subjectID, Period: p}
	now := m.now()

	if err := m.resolveExisting(ctx, key, now); err != nil {
		return nil, err
	}

	starting, err := m.startingDifficulty(ctx, studentID, subjectID, now.Year())
	if err != nil {
		return nil, err
	}
	total := m.questionCount(ctx, studentID, subjectID)

	item, err := m.selector.Select(ctx, starting, subjectID, nil)
	if err != nil {
		if errors.Is(err, ErrNoItemAvailable) {
			return nil, fmt.Errorf("%w: subject %d", ErrNoQuestionsAvailable, subjectID)
		}
		return nil, err
	}

	a := &entity.Assessment{
		StudentID: studentID,
		SubjectID: subjectID,
		Year:      now.Year(),
		Period:    p,
		Status:    entity.AssessmentStatusInProgress,
		StartedAt: now,
	}
	if err := m.assessments.CreateAssessment(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to create assessment: %w", err)
	}

	session := &Session{
		Key:               key,
		AssessmentID:      a.ID,
		TotalQuestions:    total,
		CurrentDifficulty: item.Difficulty,
		UsedItemIDs:       []uint{item.ID},
		CurrentItem:       snapshotOf(item),
		StartedAt:         now,
		LastActivityAt:    now,
	}
	if err := m.sessions.Create(ctx, session); err != nil {
		// Параллельный старт успел занять ключ
		m.abandon(ctx, a.ID)
		return nil, err
	}

	log.Printf("[AssessmentManager] Тестирование %d начато: студент %d, предмет %d, период %s, стартовая сложность %d, заданий %d",
		a.ID, studentID, subjectID, p, starting, total)

	return &StartResult{
		AssessmentID:       a.ID,
		Item:               item.Sanitized(),
		QuestionNumber:     1,
		TotalQuestions:     total,
		StartingDifficulty: starting,
	}, nil
}

// Submit обрабатывает ответ на текущее задание.
// Ответы одной сессии обрабатываются строго по одному.
func (m *Manager) Submit(ctx context.Context, studentID, assessmentID, itemID uint, selectedIndex int) (*SubmitResult, error) {
	key, err := m.keyFor(ctx, studentID, assessmentID)
	if err != nil {
		return nil, err
	}

	var result *SubmitResult
	err = m.sessions.Mutate(ctx, key, func(s *Session) error {
		if s.AssessmentID != assessmentID {
			return ErrSessionNotFound
		}
		r, err := m.answer(ctx, s, itemID, selectedIndex)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Complete досрочно завершает тестирование по уже данным ответам.
// Повторный вызов для завершённого тестирования возвращает записанный итог.
func (m *Manager) Complete(ctx context.Context, studentID, assessmentID uint) (*Summary, error) {
	key, err := m.keyFor(ctx, studentID, assessmentID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return m.completedSummary(ctx, studentID, assessmentID)
		}
		return nil, err
	}

	var summary *Summary
	err = m.sessions.Mutate(ctx, key, func(s *Session) error {
		if s.AssessmentID != assessmentID {
			return ErrSessionNotFound
		}
		sum, err := m.finalize(ctx, s, m.now())
		if err != nil {
			return err
		}
		summary = sum
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// Session возвращает состояние активной сессии
func (m *Manager) Session(ctx context.Context, studentID, assessmentID uint) (*SessionView, error) {
	key, err := m.keyFor(ctx, studentID, assessmentID)
	if err != nil {
		return nil, err
	}
	s, err := m.sessions.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if s.AssessmentID != assessmentID {
		return nil, ErrSessionNotFound
	}

	view := &SessionView{
		AssessmentID:      s.AssessmentID,
		StudentID:         s.Key.StudentID,
		SubjectID:         s.Key.SubjectID,
		Period:            s.Key.Period,
		QuestionsAnswered: s.QuestionsAnswered,
		TotalQuestions:    s.TotalQuestions,
		CurrentDifficulty: s.CurrentDifficulty,
		CurrentRIT:        s.HighestCorrectDifficulty,
		CorrectCount:      s.CorrectCount,
		StartedAt:         s.StartedAt,
		LastActivityAt:    s.LastActivityAt,
	}
	if s.CurrentItem == nil {
		view.Exhausted = s.QuestionsAnswered < s.TotalQuestions
		return view, nil
	}

	item, err := m.items.GetByID(ctx, s.CurrentItem.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending item %d: %w", s.CurrentItem.ID, err)
	}
	itemView := item.Sanitized()
	itemView.Difficulty = s.CurrentItem.Difficulty
	view.Item = &itemView
	view.QuestionNumber = s.QuestionsAnswered + 1
	return view, nil
}

// SweepIdle помечает брошенными тестирования, сессии которых простаивали дольше SessionTTL
func (m *Manager) SweepIdle(ctx context.Context) (int, error) {
	if m.config.SessionTTL <= 0 {
		return 0, nil
	}
	expired, err := m.sessions.ExpireIdle(ctx, m.now().Add(-m.config.SessionTTL))
	if err != nil {
		return 0, fmt.Errorf("failed to expire idle sessions: %w", err)
	}
	for _, s := range expired {
		log.Printf("[AssessmentManager] Сессия %s (тестирование %d) простаивала с %s, помечаем как брошенную",
			s.Key, s.AssessmentID, s.LastActivityAt.Format(time.RFC3339))
		m.abandon(ctx, s.AssessmentID)
	}
	return len(expired), nil
}

// RunSweeper периодически вызывает SweepIdle до отмены ctx
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 || m.config.SessionTTL <= 0 {
		log.Println("[AssessmentManager] Очистка брошенных сессий отключена")
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("[AssessmentManager] Запуск очистки брошенных сессий (каждые %s, TTL %s)", interval, m.config.SessionTTL)
	for {
		select {
		case <-ticker.C:
			n, err := m.SweepIdle(ctx)
			if err != nil {
				log.Printf("[AssessmentManager] Ошибка при очистке сессий: %v", err)
			} else if n > 0 {
				log.Printf("[AssessmentManager] Очищено брошенных сессий: %d", n)
			}
		case <-ctx.Done():
			log.Println("[AssessmentManager] Завершение работы горутины очистки сессий")
			return
		}
	}
}

// answer выполняет переход сессии по одному ответу; вызывается внутри Mutate.
// Следующее задание подбирается до записи ответа: при сбое банка заданий
// сессия и журнал остаются нетронутыми и ответ можно повторить.
func (m *Manager) answer(ctx context.Context, s *Session, itemID uint, selectedIndex int) (*SubmitResult, error) {
	pending := s.CurrentItem
	if pending == nil || pending.ID != itemID {
		return nil, fmt.Errorf("%w: item %d", ErrItemMismatch, itemID)
	}
	if selectedIndex < 0 || selectedIndex >= pending.OptionsCount {
		return nil, fmt.Errorf("%w: %d not in [0, %d)", ErrInvalidOption, selectedIndex, pending.OptionsCount)
	}

	now := m.now()
	isCorrect := selectedIndex == pending.CorrectOption
	last := s.QuestionsAnswered+1 >= s.TotalQuestions

	var next int
	var item *entity.Item
	exhausted := false
	if !last {
		next = m.adjuster.Next(s.CurrentDifficulty, isCorrect)
		exclude, err := m.exclusionSet(ctx, s)
		if err != nil {
			return nil, err
		}
		item, err = m.selector.Select(ctx, next, s.Key.SubjectID, exclude)
		if err != nil {
			if !errors.Is(err, ErrNoItemAvailable) {
				return nil, err
			}
			exhausted = true
		}
	}

	response := &entity.Response{
		AssessmentID:   s.AssessmentID,
		OrderIndex:     s.QuestionsAnswered + 1,
		ItemID:         pending.ID,
		SelectedIndex:  selectedIndex,
		IsCorrect:      isCorrect,
		ItemDifficulty: pending.Difficulty,
	}
	if err := m.assessments.AppendResponse(ctx, response); err != nil {
		return nil, fmt.Errorf("failed to record response %d of assessment %d: %w", response.OrderIndex, s.AssessmentID, err)
	}

	s.QuestionsAnswered++
	if isCorrect {
		s.CorrectCount++
		if pending.Difficulty > s.HighestCorrectDifficulty {
			s.HighestCorrectDifficulty = pending.Difficulty
		}
	}
	s.MarkUsed(pending.ID)
	s.CurrentItem = nil
	s.LastActivityAt = now

	if last {
		summary, err := m.finalize(ctx, s, now)
		if err != nil {
			return nil, err
		}
		return &SubmitResult{
			Completed:      true,
			IsCorrect:      isCorrect,
			CurrentRIT:     summary.RITScore,
			TotalQuestions: s.TotalQuestions,
			Summary:        summary,
		}, nil
	}

	s.CurrentDifficulty = next
	if exhausted {
		log.Printf("[AssessmentManager] Банк заданий исчерпан: тестирование %d, предмет %d, ответов %d из %d",
			s.AssessmentID, s.Key.SubjectID, s.QuestionsAnswered, s.TotalQuestions)
		return nil, fmt.Errorf("%w: subject %d after %d answers", ErrNoMoreQuestions, s.Key.SubjectID, s.QuestionsAnswered)
	}

	s.MarkUsed(item.ID)
	s.CurrentItem = snapshotOf(item)
	view := item.Sanitized()

	log.Printf("[AssessmentManager] Тестирование %d: ответ #%d верный=%t, следующая сложность %d, задание ID=%d (%d)",
		s.AssessmentID, response.OrderIndex, isCorrect, next, item.ID, item.Difficulty)

	return &SubmitResult{
		Completed:      false,
		IsCorrect:      isCorrect,
		CurrentRIT:     s.HighestCorrectDifficulty,
		NextDifficulty: next,
		Item:           &view,
		QuestionNumber: s.QuestionsAnswered + 1,
		TotalQuestions: s.TotalQuestions,
	}, nil
}

// finalize записывает итог, пересчитанный по журналу ответов, и помечает сессию завершённой.
// Если итог уже записан, возвращает его без повторной записи.
func (m *Manager) finalize(ctx context.Context, s *Session, now time.Time) (*Summary, error) {
	a, err := m.assessments.GetAssessment(ctx, s.AssessmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load assessment %d: %w", s.AssessmentID, err)
	}
	if a.IsCompleted() {
		log.Printf("[AssessmentManager] Тестирование %d уже финализировано, удаляем сессию", s.AssessmentID)
		s.Completed = true
		return summaryOf(a, s.QuestionsAnswered, s.TotalQuestions), nil
	}

	responses, err := m.assessments.GetResponses(ctx, s.AssessmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load responses of assessment %d: %w", s.AssessmentID, err)
	}
	outcome := ScoreResponses(responses)
	if outcome.RITScore != s.HighestCorrectDifficulty || outcome.CorrectCount != s.CorrectCount {
		log.Printf("[AssessmentManager] Расхождение счётчиков сессии %d с журналом: RIT %d/%d, верных %d/%d. Используем журнал",
			s.AssessmentID, s.HighestCorrectDifficulty, outcome.RITScore, s.CorrectCount, outcome.CorrectCount)
	}

	result := entity.FinalResult{
		AssessmentID:    s.AssessmentID,
		RITScore:        outcome.RITScore,
		CorrectCount:    outcome.CorrectCount,
		DurationMinutes: durationMinutes(s.StartedAt, now),
	}
	if err := m.assessments.FinalizeAssessment(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to finalize assessment %d: %w", s.AssessmentID, err)
	}
	s.Completed = true

	log.Printf("[AssessmentManager] Тестирование %d завершено: RIT %d, верных %d из %d, %d мин",
		s.AssessmentID, result.RITScore, result.CorrectCount, outcome.Answered, result.DurationMinutes)

	return &Summary{
		AssessmentID:      s.AssessmentID,
		RITScore:          result.RITScore,
		CorrectCount:      result.CorrectCount,
		QuestionsAnswered: outcome.Answered,
		TotalQuestions:    s.TotalQuestions,
		DurationMinutes:   result.DurationMinutes,
	}, nil
}

// completedSummary отдаёт итог уже завершённого тестирования без активной сессии
func (m *Manager) completedSummary(ctx context.Context, studentID, assessmentID uint) (*Summary, error) {
	a, err := m.assessments.GetAssessment(ctx, assessmentID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if a.StudentID != studentID || !a.IsCompleted() {
		return nil, ErrSessionNotFound
	}
	responses, err := m.assessments.GetResponses(ctx, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load responses of assessment %d: %w", assessmentID, err)
	}
	return summaryOf(a, len(responses), 0), nil
}

func summaryOf(a *entity.Assessment, answered, total int) *Summary {
	sum := &Summary{
		AssessmentID:      a.ID,
		CorrectCount:      a.CorrectCount,
		QuestionsAnswered: answered,
		TotalQuestions:    total,
		DurationMinutes:   a.DurationMinutes,
	}
	if a.RITScore != nil {
		sum.RITScore = *a.RITScore
	}
	return sum
}

// exclusionSet объединяет задания сессии с заданиями из журнала ответов
func (m *Manager) exclusionSet(ctx context.Context, s *Session) ([]uint, error) {
	responses, err := m.assessments.GetResponses(ctx, s.AssessmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load responses of assessment %d: %w", s.AssessmentID, err)
	}
	exclude := append([]uint(nil), s.UsedItemIDs...)
	for _, r := range responses {
		if !s.IsUsed(r.ItemID) {
			exclude = append(exclude, r.ItemID)
		}
	}
	return exclude, nil
}

// keyFor находит ключ сессии и проверяет, что она принадлежит студенту
func (m *Manager) keyFor(ctx context.Context, studentID, assessmentID uint) (SessionKey, error) {
	key, err := m.sessions.KeyOf(ctx, assessmentID)
	if err != nil {
		return SessionKey{}, err
	}
	if key.StudentID != studentID {
		return SessionKey{}, ErrSessionNotFound
	}
	return key, nil
}

// resolveExisting применяет политику повторного старта к уже активной сессии
func (m *Manager) resolveExisting(ctx context.Context, key SessionKey, now time.Time) error {
	existing, err := m.sessions.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil
		}
		return err
	}

	idle := m.config.SessionTTL > 0 && now.Sub(existing.LastActivityAt) > m.config.SessionTTL
	if !idle && m.config.DuplicateStartPolicy != DuplicateStartReplace {
		return fmt.Errorf("%w: assessment %d", ErrSessionConflict, existing.AssessmentID)
	}

	log.Printf("[AssessmentManager] Замена сессии %s: тестирование %d помечается брошенным", key, existing.AssessmentID)
	if err := m.sessions.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to drop session %s: %w", key, err)
	}
	m.abandon(ctx, existing.AssessmentID)
	return nil
}

func (m *Manager) startingDifficulty(ctx context.Context, studentID, subjectID uint, year int) (int, error) {
	score, ok, err := m.assessments.MostRecentRIT(ctx, studentID, subjectID, year)
	if err != nil {
		return 0, fmt.Errorf("failed to load prior RIT score: %w", err)
	}
	if !ok || score <= 0 {
		return m.config.clamp(m.config.DefaultStartingDifficulty), nil
	}
	return m.config.clamp(score), nil
}

func (m *Manager) questionCount(ctx context.Context, studentID, subjectID uint) int {
	if m.settings == nil || m.students == nil {
		return m.config.DefaultQuestionCount
	}
	gradeID, err := m.students.GradeOf(ctx, studentID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			log.Printf("[AssessmentManager] Не удалось получить класс студента %d: %v", studentID, err)
		}
		return m.config.DefaultQuestionCount
	}
	count, err := m.settings.QuestionCount(ctx, gradeID, subjectID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			log.Printf("[AssessmentManager] Не удалось получить число заданий (класс %d, предмет %d): %v", gradeID, subjectID, err)
		}
		return m.config.DefaultQuestionCount
	}
	if count <= 0 {
		return m.config.DefaultQuestionCount
	}
	return count
}

func (m *Manager) abandon(ctx context.Context, assessmentID uint) {
	if err := m.assessments.MarkAbandoned(ctx, assessmentID); err != nil {
		log.Printf("[AssessmentManager] Не удалось пометить тестирование %d брошенным: %v", assessmentID, err)
	}
}
