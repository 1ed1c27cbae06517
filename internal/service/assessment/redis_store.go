package assessment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/rit-api/internal/domain/entity"
	"github.com/yourusername/rit-api/internal/domain/repository"
	apperrors "github.com/yourusername/rit-api/internal/pkg/errors"
)

const (
	sessionKeyPrefix      = "assessment:session:"
	sessionIndexKeyPrefix = "assessment:session-index:"
	sessionLockKeyPrefix  = "assessment:session-lock:"
	// sessionActivityKey — отсортированное множество "assessmentID|ключ" по времени последней активности (мс)
	sessionActivityKey = "assessment:session-activity"

	defaultLockTTL     = 10 * time.Second
	defaultLockWait    = 5 * time.Second
	defaultLockBackoff = 20 * time.Millisecond
)

// RedisSessionStore хранит сессии в Redis, чтобы их видели все инстансы API.
// Изменения сериализуются распределённой блокировкой SET NX с токеном владельца;
// пока изменение выполняется, блокировка продлевается.
// Время активности сессий дублируется в отсортированное множество, по которому ExpireIdle
// находит брошенные сессии, в том числе уже удалённые по TTL.
type RedisSessionStore struct {
	cache       repository.CacheRepository
	ttl         time.Duration
	lockTTL     time.Duration
	lockWait    time.Duration
	lockBackoff time.Duration
}

// NewRedisSessionStore создаёт хранилище; ttl задаёт время жизни неактивной сессии
func NewRedisSessionStore(cache repository.CacheRepository, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{
		cache:       cache,
		ttl:         ttl,
		lockTTL:     defaultLockTTL,
		lockWait:    defaultLockWait,
		lockBackoff: defaultLockBackoff,
	}
}

func sessionKeyFor(key SessionKey) string  { return sessionKeyPrefix + key.String() }
func sessionLockFor(key SessionKey) string { return sessionLockKeyPrefix + key.String() }
func sessionIndexFor(assessmentID uint) string {
	return sessionIndexKeyPrefix + strconv.FormatUint(uint64(assessmentID), 10)
}

func activityMember(assessmentID uint, key SessionKey) string {
	return strconv.FormatUint(uint64(assessmentID), 10) + "|" + key.String()
}

func activityScore(t time.Time) float64 {
	return float64(t.UnixMilli())
}

func (r *RedisSessionStore) Create(ctx context.Context, session *Session) error {
	payload, err := encodeSession(session)
	if err != nil {
		return err
	}
	ok, err := r.cache.SetNX(ctx, sessionKeyFor(session.Key), payload, r.ttl)
	if err != nil {
		return fmt.Errorf("failed to create session %s: %w", session.Key, err)
	}
	if !ok {
		return fmt.Errorf("%w: key %s is held by another session", ErrSessionConflict, session.Key)
	}
	if err := r.cache.Set(ctx, sessionIndexFor(session.AssessmentID), session.Key.String(), r.ttl); err != nil {
		_ = r.cache.Delete(ctx, sessionKeyFor(session.Key))
		return fmt.Errorf("failed to index session %s: %w", session.Key, err)
	}
	if err := r.touch(ctx, session); err != nil {
		log.Printf("[RedisSessionStore] Не удалось записать активность сессии %s: %v", session.Key, err)
	}
	return nil
}

func (r *RedisSessionStore) Get(ctx context.Context, key SessionKey) (*Session, error) {
	var s Session
	if err := r.cache.GetJSON(ctx, sessionKeyFor(key), &s); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session %s: %w", key, err)
	}
	return &s, nil
}

func (r *RedisSessionStore) KeyOf(ctx context.Context, assessmentID uint) (SessionKey, error) {
	raw, err := r.cache.Get(ctx, sessionIndexFor(assessmentID))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return SessionKey{}, ErrSessionNotFound
		}
		return SessionKey{}, fmt.Errorf("failed to resolve session of assessment %d: %w", assessmentID, err)
	}
	key, err := parseSessionKey(raw)
	if err != nil {
		return SessionKey{}, fmt.Errorf("corrupted session index for assessment %d: %w", assessmentID, err)
	}
	return key, nil
}

func (r *RedisSessionStore) Mutate(ctx context.Context, key SessionKey, fn func(*Session) error) error {
	token, err := r.lock(ctx, key)
	if err != nil {
		return err
	}
	defer r.unlock(key, token)

	l := r.keepLease(key, token)
	s, err := r.Get(ctx, key)
	if err != nil {
		l.stop()
		return err
	}

	fnErr := fn(s)
	if lost := l.stop(); lost {
		// Блокировку мог взять другой инстанс: его состояние не перезаписываем
		log.Printf("[RedisSessionStore] Блокировка сессии %s потеряна во время изменения, результат не сохранён", key)
		return fmt.Errorf("%w: lock on %s expired during update", ErrSessionBusy, key)
	}

	if s.Completed {
		if err := r.remove(ctx, s); err != nil {
			log.Printf("[RedisSessionStore] Не удалось удалить завершённую сессию %s: %v", key, err)
		}
		return fnErr
	}
	if err := r.save(ctx, s); err != nil {
		if fnErr != nil {
			return fnErr
		}
		return err
	}
	return fnErr
}

func (r *RedisSessionStore) Delete(ctx context.Context, key SessionKey) error {
	s, err := r.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil
		}
		return err
	}
	return r.remove(ctx, s)
}

// ExpireIdle снимает сессии, неактивные с момента cutoff, включая уже истёкшие по TTL.
// Каждую сессию возвращает ровно один инстанс: тот, кто удалил её из множества активности.
func (r *RedisSessionStore) ExpireIdle(ctx context.Context, cutoff time.Time) ([]*Session, error) {
	members, err := r.cache.ZRangeByScore(ctx, sessionActivityKey, activityScore(cutoff)-1)
	if err != nil {
		return nil, fmt.Errorf("failed to list idle sessions: %w", err)
	}

	var expired []*Session
	for _, m := range members {
		assessmentID, key, err := parseActivityMember(m.Member)
		if err != nil {
			log.Printf("[RedisSessionStore] Повреждённая запись активности %q: %v", m.Member, err)
			_, _ = r.cache.ZRem(ctx, sessionActivityKey, m.Member)
			continue
		}
		s, err := r.expire(ctx, key, assessmentID, m, cutoff)
		if err != nil {
			log.Printf("[RedisSessionStore] Не удалось снять сессию %s (тестирование %d): %v", key, assessmentID, err)
			continue
		}
		if s != nil {
			expired = append(expired, s)
		}
	}
	return expired, nil
}

// expire снимает одну простаивающую сессию под её блокировкой.
// Возвращает nil, если сессия ожила или её уже снял другой инстанс.
func (r *RedisSessionStore) expire(ctx context.Context, key SessionKey, assessmentID uint, m repository.ScoredMember, cutoff time.Time) (*Session, error) {
	token, err := r.tryLock(ctx, key)
	if err != nil {
		return nil, err
	}
	if token == "" {
		// Сессия сейчас изменяется, значит не брошена
		return nil, nil
	}
	defer r.unlock(key, token)

	s, err := r.Get(ctx, key)
	switch {
	case err == nil && s.AssessmentID == assessmentID:
		if !s.LastActivityAt.Before(cutoff) {
			return nil, nil
		}
		if err := r.cache.Delete(ctx, sessionKeyFor(key), sessionIndexFor(assessmentID)); err != nil {
			return nil, fmt.Errorf("failed to drop session: %w", err)
		}
	case err == nil || errors.Is(err, ErrSessionNotFound):
		// Ключ истёк по TTL или уже занят новой сессией
		s = nil
		if err := r.cache.Delete(ctx, sessionIndexFor(assessmentID)); err != nil {
			return nil, fmt.Errorf("failed to drop session index: %w", err)
		}
	default:
		return nil, err
	}

	removed, err := r.cache.ZRem(ctx, sessionActivityKey, m.Member)
	if err != nil {
		return nil, fmt.Errorf("failed to drop activity record: %w", err)
	}
	if !removed {
		return nil, nil
	}
	if s == nil {
		s = &Session{Key: key, AssessmentID: assessmentID, LastActivityAt: time.UnixMilli(int64(m.Score)).UTC()}
	}
	return s, nil
}

func (r *RedisSessionStore) save(ctx context.Context, s *Session) error {
	payload, err := encodeSession(s)
	if err != nil {
		return err
	}
	if err := r.cache.Set(ctx, sessionKeyFor(s.Key), payload, r.ttl); err != nil {
		return fmt.Errorf("failed to save session %s: %w", s.Key, err)
	}
	if err := r.cache.Set(ctx, sessionIndexFor(s.AssessmentID), s.Key.String(), r.ttl); err != nil {
		return fmt.Errorf("failed to refresh session index %s: %w", s.Key, err)
	}
	return r.touch(ctx, s)
}

func (r *RedisSessionStore) touch(ctx context.Context, s *Session) error {
	return r.cache.ZAdd(ctx, sessionActivityKey, activityScore(s.LastActivityAt), activityMember(s.AssessmentID, s.Key))
}

func (r *RedisSessionStore) remove(ctx context.Context, s *Session) error {
	if err := r.cache.Delete(ctx, sessionKeyFor(s.Key), sessionIndexFor(s.AssessmentID)); err != nil {
		return err
	}
	_, err := r.cache.ZRem(ctx, sessionActivityKey, activityMember(s.AssessmentID, s.Key))
	return err
}

func (r *RedisSessionStore) lock(ctx context.Context, key SessionKey) (string, error) {
	deadline := time.Now().Add(r.lockWait)
	for {
		token, err := r.tryLock(ctx, key)
		if err != nil {
			return "", err
		}
		if token != "" {
			return token, nil
		}
		if time.Now().After(deadline) {
			return "", ErrSessionBusy
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(r.lockBackoff):
		}
	}
}

// tryLock делает одну попытку взять блокировку; пустой токен означает, что она занята
func (r *RedisSessionStore) tryLock(ctx context.Context, key SessionKey) (string, error) {
	token := uuid.NewString()
	ok, err := r.cache.SetNX(ctx, sessionLockFor(key), token, r.lockTTL)
	if err != nil {
		return "", fmt.Errorf("failed to lock session %s: %w", key, err)
	}
	if !ok {
		return "", nil
	}
	return token, nil
}

// lease продлевает блокировку, пока выполняется изменение сессии
type lease struct {
	cancel context.CancelFunc
	done   chan struct{}
	lost   atomic.Bool
}

func (r *RedisSessionStore) keepLease(key SessionKey, token string) *lease {
	ctx, cancel := context.WithCancel(context.Background())
	l := &lease{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(l.done)
		ticker := time.NewTicker(r.lockTTL / 3)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				ok, err := r.cache.ExtendIfEquals(ctx, sessionLockFor(key), token, r.lockTTL)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					log.Printf("[RedisSessionStore] Не удалось продлить блокировку %s: %v", key, err)
					continue
				}
				if !ok {
					l.lost.Store(true)
					return
				}
			}
		}
	}()
	return l
}

// stop останавливает продление и сообщает, была ли блокировка потеряна
func (l *lease) stop() bool {
	l.cancel()
	<-l.done
	return l.lost.Load()
}

func (r *RedisSessionStore) unlock(key SessionKey, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := r.cache.DeleteIfEquals(ctx, sessionLockFor(key), token); err != nil {
		log.Printf("[RedisSessionStore] Не удалось снять блокировку %s: %v", key, err)
	}
}

func encodeSession(s *Session) (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("failed to encode session %s: %w", s.Key, err)
	}
	return string(data), nil
}

// parseSessionKey разбирает строку вида student:subject:period
func parseSessionKey(raw string) (SessionKey, error) {
	parts := strings.Split(raw, ":")
	if len(parts) != 3 {
		return SessionKey{}, fmt.Errorf("malformed session key %q", raw)
	}
	studentID, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return SessionKey{}, fmt.Errorf("malformed student id in %q: %w", raw, err)
	}
	subjectID, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return SessionKey{}, fmt.Errorf("malformed subject id in %q: %w", raw, err)
	}
	period, err := entity.ParsePeriod(parts[2])
	if err != nil {
		return SessionKey{}, err
	}
	return SessionKey{StudentID: uint(studentID), SubjectID: uint(subjectID), Period: period}, nil
}

// parseActivityMember разбирает запись вида assessmentID|student:subject:period
func parseActivityMember(member string) (uint, SessionKey, error) {
	rawID, rawKey, ok := strings.Cut(member, "|")
	if !ok {
		return 0, SessionKey{}, fmt.Errorf("malformed activity record %q", member)
	}
	id, err := strconv.ParseUint(rawID, 10, 64)
	if err != nil {
		return 0, SessionKey{}, fmt.Errorf("malformed assessment id in %q: %w", member, err)
	}
	key, err := parseSessionKey(rawKey)
	if err != nil {
		return 0, SessionKey{}, err
	}
	return uint(id), key, nil
}
