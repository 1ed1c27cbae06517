package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/yourusername/rit-api/internal/domain/entity"
	apperrors "github.com/yourusername/rit-api/internal/pkg/errors"
)

// AssessmentRepo — хранилище тестирований и журнала ответов в памяти процесса
type AssessmentRepo struct {
	mu          sync.Mutex
	nextID      uint
	assessments map[uint]*entity.Assessment
	responses   map[uint][]entity.Response
	now         func() time.Time
}

// NewAssessmentRepo создает пустое хранилище
func NewAssessmentRepo() *AssessmentRepo {
	return &AssessmentRepo{
		assessments: make(map[uint]*entity.Assessment),
		responses:   make(map[uint][]entity.Response),
		now:         time.Now,
	}
}

func (r *AssessmentRepo) CreateAssessment(ctx context.Context, a *entity.Assessment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	a.ID = r.nextID
	if a.Status == "" {
		a.Status = entity.AssessmentStatusInProgress
	}
	cp := *a
	r.assessments[a.ID] = &cp
	return nil
}

func (r *AssessmentRepo) GetAssessment(ctx context.Context, id uint) (*entity.Assessment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assessments[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *AssessmentRepo) AppendResponse(ctx context.Context, resp *entity.Response) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.assessments[resp.AssessmentID]; !ok {
		return apperrors.ErrNotFound
	}
	for _, existing := range r.responses[resp.AssessmentID] {
		if existing.OrderIndex == resp.OrderIndex {
			return fmt.Errorf("%w: response #%d for assessment #%d already recorded",
				apperrors.ErrConflict, resp.OrderIndex, resp.AssessmentID)
		}
	}
	resp.CreatedAt = r.now()
	r.responses[resp.AssessmentID] = append(r.responses[resp.AssessmentID], *resp)
	return nil
}

func (r *AssessmentRepo) GetResponses(ctx context.Context, assessmentID uint) ([]entity.Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]entity.Response(nil), r.responses[assessmentID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out, nil
}

func (r *AssessmentRepo) FinalizeAssessment(ctx context.Context, result entity.FinalResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assessments[result.AssessmentID]
	if !ok {
		return apperrors.ErrNotFound
	}
	if a.IsCompleted() {
		if a.Matches(result) {
			return nil
		}
		return fmt.Errorf("%w: assessment #%d already finalized with a different result",
			apperrors.ErrConflict, result.AssessmentID)
	}
	score := result.RITScore
	now := r.now()
	a.RITScore = &score
	a.CorrectCount = result.CorrectCount
	a.DurationMinutes = result.DurationMinutes
	a.Status = entity.AssessmentStatusCompleted
	a.CompletedAt = &now
	return nil
}

func (r *AssessmentRepo) MarkAbandoned(ctx context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.assessments[id]; ok && a.Status == entity.AssessmentStatusInProgress {
		a.Status = entity.AssessmentStatusAbandoned
	}
	return nil
}

// MostRecentRIT возвращает RIT последнего завершённого тестирования за год
func (r *AssessmentRepo) MostRecentRIT(ctx context.Context, studentID, subjectID uint, year int) (int, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *entity.Assessment
	for _, a := range r.assessments {
		if a.StudentID != studentID || a.SubjectID != subjectID || a.Year != year ||
			!a.IsCompleted() || a.RITScore == nil {
			continue
		}
		if latest == nil || a.CompletedAt.After(*latest.CompletedAt) ||
			(a.CompletedAt.Equal(*latest.CompletedAt) && a.ID > latest.ID) {
			latest = a
		}
	}
	if latest == nil {
		return 0, false, nil
	}
	return *latest.RITScore, true, nil
}

// SeedCompleted добавляет завершённое тестирование с заданным RIT
func (r *AssessmentRepo) SeedCompleted(studentID, subjectID uint, year, ritScore int) uint {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	now := r.now()
	score := ritScore
	r.assessments[r.nextID] = &entity.Assessment{
		ID:          r.nextID,
		StudentID:   studentID,
		SubjectID:   subjectID,
		Year:        year,
		Period:      entity.PeriodFall,
		Status:      entity.AssessmentStatusCompleted,
		RITScore:    &score,
		StartedAt:   now,
		CompletedAt: &now,
	}
	return r.nextID
}
