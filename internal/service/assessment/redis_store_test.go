package assessment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/rit-api/internal/domain/entity"
)

func TestRedisSessionStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	cache := newFakeCache()
	store := NewRedisSessionStore(cache, time.Hour)
	s := testSession(5, time.Date(2025, time.January, 20, 8, 0, 0, 0, time.UTC))

	require.NoError(t, store.Create(ctx, s))
	assert.ErrorIs(t, store.Create(ctx, testSession(6, time.Now())), ErrSessionConflict)

	got, err := store.Get(ctx, s.Key)
	require.NoError(t, err)
	assert.Equal(t, s.AssessmentID, got.AssessmentID)
	assert.Equal(t, s.UsedItemIDs, got.UsedItemIDs)
	assert.Equal(t, *s.CurrentItem, *got.CurrentItem)
	assert.True(t, s.StartedAt.Equal(got.StartedAt))

	key, err := store.KeyOf(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, s.Key, key)
}

func TestRedisSessionStore_MutatePersistsAndUnlocks(t *testing.T) {
	ctx := context.Background()
	cache := newFakeCache()
	store := NewRedisSessionStore(cache, time.Hour)
	s := testSession(5, time.Now())
	require.NoError(t, store.Create(ctx, s))

	require.NoError(t, store.Mutate(ctx, s.Key, func(s *Session) error {
		s.QuestionsAnswered = 2
		s.MarkUsed(12)
		return nil
	}))

	got, err := store.Get(ctx, s.Key)
	require.NoError(t, err)
	assert.Equal(t, 2, got.QuestionsAnswered)
	assert.Equal(t, []uint{11, 12}, got.UsedItemIDs)
	assert.Empty(t, cache.keysWithPrefix(sessionLockKeyPrefix))
}

func TestRedisSessionStore_CompletedSessionIsRemoved(t *testing.T) {
	ctx := context.Background()
	cache := newFakeCache()
	store := NewRedisSessionStore(cache, time.Hour)
	s := testSession(5, time.Now())
	require.NoError(t, store.Create(ctx, s))

	require.NoError(t, store.Mutate(ctx, s.Key, func(s *Session) error {
		s.Completed = true
		return nil
	}))

	_, err := store.Get(ctx, s.Key)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = store.KeyOf(ctx, 5)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Empty(t, cache.keysWithPrefix("assessment:"))
	assert.Equal(t, 0, cache.zsetLen(sessionActivityKey))
}

func TestRedisSessionStore_BusyLock(t *testing.T) {
	ctx := context.Background()
	cache := newFakeCache()
	store := NewRedisSessionStore(cache, time.Hour)
	store.lockWait = 50 * time.Millisecond
	store.lockBackoff = 5 * time.Millisecond
	s := testSession(5, time.Now())
	require.NoError(t, store.Create(ctx, s))

	// Блокировку держит другой инстанс
	ok, err := cache.SetNX(ctx, sessionLockFor(s.Key), "other", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	called := false
	err = store.Mutate(ctx, s.Key, func(*Session) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrSessionBusy)
	assert.False(t, called)

	// Чужая блокировка не снимается
	v, err := cache.Get(ctx, sessionLockFor(s.Key))
	require.NoError(t, err)
	assert.Equal(t, "other", v)
}

func TestRedisSessionStore_LeaseRenewedDuringSlowMutation(t *testing.T) {
	ctx := context.Background()
	cache := newFakeCache()
	store := NewRedisSessionStore(cache, time.Hour)
	store.lockTTL = 60 * time.Millisecond
	s := testSession(5, time.Now())
	require.NoError(t, store.Create(ctx, s))

	require.NoError(t, store.Mutate(ctx, s.Key, func(s *Session) error {
		time.Sleep(150 * time.Millisecond)
		// Без продления блокировка уже истекла бы
		ok, err := cache.SetNX(ctx, sessionLockFor(s.Key), "other", time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)
		s.QuestionsAnswered = 1
		return nil
	}))

	assert.Greater(t, cache.extendCount(), 0)
	assert.Empty(t, cache.keysWithPrefix(sessionLockKeyPrefix))
	got, err := store.Get(ctx, s.Key)
	require.NoError(t, err)
	assert.Equal(t, 1, got.QuestionsAnswered)
}

func TestRedisSessionStore_LostLeaseDiscardsChanges(t *testing.T) {
	ctx := context.Background()
	cache := newFakeCache()
	store := NewRedisSessionStore(cache, time.Hour)
	store.lockTTL = 30 * time.Millisecond
	s := testSession(5, time.Now())
	require.NoError(t, store.Create(ctx, s))

	err := store.Mutate(ctx, s.Key, func(s *Session) error {
		// Блокировку перехватил другой инстанс
		require.NoError(t, cache.Delete(ctx, sessionLockFor(s.Key)))
		ok, err := cache.SetNX(ctx, sessionLockFor(s.Key), "other", time.Minute)
		require.NoError(t, err)
		require.True(t, ok)
		time.Sleep(60 * time.Millisecond)
		s.QuestionsAnswered = 5
		return nil
	})
	assert.ErrorIs(t, err, ErrSessionBusy)

	got, err := store.Get(ctx, s.Key)
	require.NoError(t, err)
	assert.Equal(t, 0, got.QuestionsAnswered)
	v, err := cache.Get(ctx, sessionLockFor(s.Key))
	require.NoError(t, err)
	assert.Equal(t, "other", v)
}

func TestRedisSessionStore_ExpireIdle(t *testing.T) {
	ctx := context.Background()
	cache := newFakeCache()
	store := NewRedisSessionStore(cache, time.Hour)
	base := time.Date(2025, time.January, 20, 8, 0, 0, 0, time.UTC)

	idle := testSession(5, base)
	require.NoError(t, store.Create(ctx, idle))

	fresh := testSession(6, base.Add(3*time.Hour))
	fresh.Key.StudentID = 8
	require.NoError(t, store.Create(ctx, fresh))

	// Истёкшая по TTL сессия, ключ которой уже занят новой
	gone := testSession(4, base)
	gone.Key.StudentID = 9
	require.NoError(t, store.Create(ctx, gone))
	require.NoError(t, cache.Delete(ctx, sessionKeyFor(gone.Key), sessionIndexFor(4)))
	replacement := testSession(10, base.Add(3*time.Hour))
	replacement.Key.StudentID = 9
	require.NoError(t, store.Create(ctx, replacement))

	expired, err := store.ExpireIdle(ctx, base.Add(2*time.Hour))
	require.NoError(t, err)
	ids := []uint{}
	for _, s := range expired {
		ids = append(ids, s.AssessmentID)
	}
	assert.ElementsMatch(t, []uint{4, 5}, ids)

	_, err = store.Get(ctx, idle.Key)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = store.KeyOf(ctx, 5)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	// Новая сессия на том же ключе не тронута
	got, err := store.Get(ctx, replacement.Key)
	require.NoError(t, err)
	assert.Equal(t, uint(10), got.AssessmentID)
	_, err = store.Get(ctx, fresh.Key)
	require.NoError(t, err)

	// Повторная очистка ничего не возвращает
	expired, err = store.ExpireIdle(ctx, base.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, expired)
	assert.Equal(t, 2, cache.zsetLen(sessionActivityKey))
}

func TestRedisSessionStore_Delete(t *testing.T) {
	ctx := context.Background()
	cache := newFakeCache()
	store := NewRedisSessionStore(cache, time.Hour)
	s := testSession(5, time.Now())
	require.NoError(t, store.Create(ctx, s))

	require.NoError(t, store.Delete(ctx, s.Key))
	require.NoError(t, store.Delete(ctx, s.Key))
	assert.Empty(t, cache.keysWithPrefix("assessment:"))
}

func TestParseSessionKey(t *testing.T) {
	key, err := parseSessionKey("7:3:Winter")
	require.NoError(t, err)
	assert.Equal(t, SessionKey{StudentID: 7, SubjectID: 3, Period: entity.PeriodWinter}, key)

	for _, raw := range []string{"", "7:3", "x:3:Fall", "7:y:Fall", "7:3:Summer"} {
		_, err := parseSessionKey(raw)
		assert.Error(t, err, raw)
	}

	id, key, err := parseActivityMember("12|7:3:Spring")
	require.NoError(t, err)
	assert.Equal(t, uint(12), id)
	assert.Equal(t, SessionKey{StudentID: 7, SubjectID: 3, Period: entity.PeriodSpring}, key)
	_, _, err = parseActivityMember("7:3:Spring")
	assert.Error(t, err)
}
