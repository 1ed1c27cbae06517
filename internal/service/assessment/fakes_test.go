package assessment

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/yourusername/rit-api/internal/domain/entity"
	"github.com/yourusername/rit-api/internal/domain/repository"
	apperrors "github.com/yourusername/rit-api/internal/pkg/errors"
)

// scriptedRandom возвращает заранее заданную последовательность (по модулю n)
type scriptedRandom struct {
	mu     sync.Mutex
	values []int
	pos    int
}

func newScriptedRandom(values ...int) *scriptedRandom {
	return &scriptedRandom{values: values}
}

func (r *scriptedRandom) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.values) == 0 {
		return 0
	}
	v := r.values[r.pos%len(r.values)]
	r.pos++
	return v % n
}

// fakeClock — управляемые часы
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, time.October, 6, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// memItemBank — банк заданий в памяти, отдаёт копии
type memItemBank struct {
	mu    sync.Mutex
	items []entity.Item
}

func newMemItemBank(items ...entity.Item) *memItemBank {
	return &memItemBank{items: items}
}

// spacedBank создаёт задания предмета со сложностью от lo до hi с шагом step
func spacedBank(subjectID uint, lo, hi, step int) *memItemBank {
	bank := &memItemBank{}
	id := uint(1)
	for d := lo; d <= hi; d += step {
		bank.items = append(bank.items, testItem(id, subjectID, d))
		id++
	}
	return bank
}

func testItem(id, subjectID uint, difficulty int) entity.Item {
	return entity.Item{
		ID:            id,
		SubjectID:     subjectID,
		Text:          fmt.Sprintf("Question %d", id),
		Options:       entity.StringArray{"A", "B", "C", "D"},
		CorrectOption: 0,
		Difficulty:    difficulty,
	}
}

func (b *memItemBank) filter(subjectID uint, excludeIDs []uint, keep func(entity.Item) bool) []entity.Item {
	b.mu.Lock()
	defer b.mu.Unlock()
	excluded := make(map[uint]bool, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = true
	}
	var out []entity.Item
	for _, it := range b.items {
		if it.SubjectID != subjectID || excluded[it.ID] || !keep(it) {
			continue
		}
		cp := it
		cp.Options = append(entity.StringArray(nil), it.Options...)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Difficulty != out[j].Difficulty {
			return out[i].Difficulty < out[j].Difficulty
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (b *memItemBank) FindInRange(ctx context.Context, subjectID uint, lo, hi int, excludeIDs []uint) ([]entity.Item, error) {
	return b.filter(subjectID, excludeIDs, func(it entity.Item) bool {
		return it.Difficulty >= lo && it.Difficulty <= hi
	}), nil
}

func (b *memItemBank) FindAll(ctx context.Context, subjectID uint, excludeIDs []uint) ([]entity.Item, error) {
	return b.filter(subjectID, excludeIDs, func(entity.Item) bool { return true }), nil
}

func (b *memItemBank) GetByID(ctx context.Context, id uint) (*entity.Item, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, it := range b.items {
		if it.ID == id {
			cp := it
			return &cp, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (b *memItemBank) setCorrectOption(id uint, option int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.items {
		if b.items[i].ID == id {
			b.items[i].CorrectOption = option
		}
	}
}

// flakyItemBank отказывает в поиске по диапазону заданное число раз
type flakyItemBank struct {
	*memItemBank
	mu       sync.Mutex
	failures int
	err      error
}

func (b *flakyItemBank) failNext(n int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = n
	b.err = err
}

func (b *flakyItemBank) FindInRange(ctx context.Context, subjectID uint, lo, hi int, excludeIDs []uint) ([]entity.Item, error) {
	b.mu.Lock()
	if b.failures > 0 {
		b.failures--
		err := b.err
		b.mu.Unlock()
		return nil, err
	}
	b.mu.Unlock()
	return b.memItemBank.FindInRange(ctx, subjectID, lo, hi, excludeIDs)
}

// memAssessmentRepo — долговременное хранилище тестирований в памяти
type memAssessmentRepo struct {
	mu            sync.Mutex
	nextID        uint
	assessments   map[uint]*entity.Assessment
	responses     map[uint][]entity.Response
	prior         map[string]int
	finalizeCalls int
}

func newMemAssessmentRepo() *memAssessmentRepo {
	return &memAssessmentRepo{
		assessments: make(map[uint]*entity.Assessment),
		responses:   make(map[uint][]entity.Response),
		prior:       make(map[string]int),
	}
}

func priorKey(studentID, subjectID uint, year int) string {
	return fmt.Sprintf("%d:%d:%d", studentID, subjectID, year)
}

func (r *memAssessmentRepo) setPrior(studentID, subjectID uint, year, score int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prior[priorKey(studentID, subjectID, year)] = score
}

func (r *memAssessmentRepo) CreateAssessment(ctx context.Context, a *entity.Assessment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	a.ID = r.nextID
	cp := *a
	r.assessments[a.ID] = &cp
	return nil
}

func (r *memAssessmentRepo) GetAssessment(ctx context.Context, id uint) (*entity.Assessment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assessments[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *memAssessmentRepo) AppendResponse(ctx context.Context, resp *entity.Response) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.responses[resp.AssessmentID] {
		if existing.OrderIndex == resp.OrderIndex {
			return fmt.Errorf("%w: duplicate order index %d", apperrors.ErrConflict, resp.OrderIndex)
		}
	}
	r.responses[resp.AssessmentID] = append(r.responses[resp.AssessmentID], *resp)
	return nil
}

func (r *memAssessmentRepo) GetResponses(ctx context.Context, assessmentID uint) ([]entity.Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]entity.Response(nil), r.responses[assessmentID]...), nil
}

func (r *memAssessmentRepo) FinalizeAssessment(ctx context.Context, result entity.FinalResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finalizeCalls++
	a, ok := r.assessments[result.AssessmentID]
	if !ok {
		return apperrors.ErrNotFound
	}
	if a.IsCompleted() {
		if a.Matches(result) {
			return nil
		}
		return apperrors.ErrConflict
	}
	score := result.RITScore
	a.RITScore = &score
	a.CorrectCount = result.CorrectCount
	a.DurationMinutes = result.DurationMinutes
	a.Status = entity.AssessmentStatusCompleted
	return nil
}

func (r *memAssessmentRepo) MarkAbandoned(ctx context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.assessments[id]; ok && a.Status == entity.AssessmentStatusInProgress {
		a.Status = entity.AssessmentStatusAbandoned
	}
	return nil
}

func (r *memAssessmentRepo) MostRecentRIT(ctx context.Context, studentID, subjectID uint, year int) (int, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	score, ok := r.prior[priorKey(studentID, subjectID, year)]
	return score, ok, nil
}

func (r *memAssessmentRepo) status(id uint) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.assessments[id].Status
}

// stubSettings возвращает фиксированное число заданий
type stubSettings struct {
	count int
	err   error
}

func (s stubSettings) QuestionCount(ctx context.Context, gradeID, subjectID uint) (int, error) {
	return s.count, s.err
}

type stubStudents struct{}

func (stubStudents) GradeOf(ctx context.Context, studentID uint) (uint, error) {
	return 5, nil
}

// fakeCache — CacheRepository в памяти; TTL отсчитывается по реальному времени
type fakeCache struct {
	mu      sync.Mutex
	data    map[string]string
	expires map[string]time.Time
	zsets   map[string]map[string]float64
	extends int
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		data:    make(map[string]string),
		expires: make(map[string]time.Time),
		zsets:   make(map[string]map[string]float64),
	}
}

// lookup возвращает живое значение ключа; вызывается под c.mu
func (c *fakeCache) lookup(key string) (string, bool) {
	v, ok := c.data[key]
	if !ok {
		return "", false
	}
	if exp, has := c.expires[key]; has && !time.Now().Before(exp) {
		delete(c.data, key)
		delete(c.expires, key)
		return "", false
	}
	return v, true
}

// put записывает значение; вызывается под c.mu
func (c *fakeCache) put(key, value string, expiration time.Duration) {
	c.data[key] = value
	if expiration > 0 {
		c.expires[key] = time.Now().Add(expiration)
	} else {
		delete(c.expires, key)
	}
}

func (c *fakeCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.put(key, fmt.Sprint(value), expiration)
	return nil
}

func (c *fakeCache) Get(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.lookup(key)
	if !ok {
		return "", apperrors.ErrNotFound
	}
	return v, nil
}

func (c *fakeCache) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
		delete(c.expires, k)
	}
	return nil
}

func (c *fakeCache) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, string(data), expiration)
}

func (c *fakeCache) GetJSON(ctx context.Context, key string, dest interface{}) error {
	v, err := c.Get(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(v), dest)
}

func (c *fakeCache) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.lookup(key); ok {
		return false, nil
	}
	c.put(key, fmt.Sprint(value), expiration)
	return true, nil
}

func (c *fakeCache) DeleteIfEquals(ctx context.Context, key string, value string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.lookup(key); !ok || v != value {
		return false, nil
	}
	delete(c.data, key)
	delete(c.expires, key)
	return true, nil
}

func (c *fakeCache) ExtendIfEquals(ctx context.Context, key string, value string, expiration time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.lookup(key); !ok || v != value {
		return false, nil
	}
	c.put(key, value, expiration)
	c.extends++
	return true, nil
}

func (c *fakeCache) ZAdd(ctx context.Context, key string, score float64, member string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.zsets[key] == nil {
		c.zsets[key] = make(map[string]float64)
	}
	c.zsets[key][member] = score
	return nil
}

func (c *fakeCache) ZRangeByScore(ctx context.Context, key string, max float64) ([]repository.ScoredMember, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var members []repository.ScoredMember
	for m, score := range c.zsets[key] {
		if score <= max {
			members = append(members, repository.ScoredMember{Member: m, Score: score})
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].Score < members[j].Score })
	return members, nil
}

func (c *fakeCache) ZRem(ctx context.Context, key string, member string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.zsets[key][member]; !ok {
		return false, nil
	}
	delete(c.zsets[key], member)
	return true, nil
}

func (c *fakeCache) zsetLen(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.zsets[key])
}

func (c *fakeCache) extendCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.extends
}

func (c *fakeCache) keysWithPrefix(prefix string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var keys []string
	for k := range c.data {
		if _, ok := c.lookup(k); ok && strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys
}
