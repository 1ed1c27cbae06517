package assessment

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/rit-api/internal/domain/entity"
)

func TestItemSelector_PicksNearestInWindow(t *testing.T) {
	bank := newMemItemBank(
		testItem(1, 1, 200),
		testItem(2, 1, 205),
		testItem(3, 1, 212),
		testItem(4, 1, 230),
		testItem(5, 2, 210), // другой предмет
	)
	sel := NewItemSelector(DefaultConfig(), bank, newScriptedRandom())

	item, err := sel.Select(context.Background(), 210, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, uint(3), item.ID)
}

func TestItemSelector_BreaksTiesAmongEquallyClose(t *testing.T) {
	bank := newMemItemBank(testItem(1, 1, 205), testItem(2, 1, 215), testItem(3, 1, 219))

	seen := map[uint]bool{}
	for _, draw := range []int{0, 1} {
		sel := NewItemSelector(DefaultConfig(), bank, newScriptedRandom(draw))
		item, err := sel.Select(context.Background(), 210, 1, nil)
		require.NoError(t, err)
		assert.Equal(t, 5, distance(item.Difficulty, 210))
		seen[item.ID] = true
	}
	assert.Equal(t, map[uint]bool{1: true, 2: true}, seen)
}

func TestItemSelector_SkipsExcluded(t *testing.T) {
	bank := newMemItemBank(testItem(1, 1, 210), testItem(2, 1, 213), testItem(3, 1, 218))
	sel := NewItemSelector(DefaultConfig(), bank, newScriptedRandom())

	item, err := sel.Select(context.Background(), 210, 1, []uint{1})
	require.NoError(t, err)
	assert.Equal(t, uint(2), item.ID)
}

func TestItemSelector_FallsBackToWholePool(t *testing.T) {
	bank := newMemItemBank(testItem(1, 1, 100), testItem(2, 1, 150))
	sel := NewItemSelector(DefaultConfig(), bank, newScriptedRandom())

	item, err := sel.Select(context.Background(), 300, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, uint(2), item.ID)
}

func TestItemSelector_NoItemAvailable(t *testing.T) {
	bank := newMemItemBank(testItem(1, 1, 200), testItem(2, 1, 300))
	sel := NewItemSelector(DefaultConfig(), bank, newScriptedRandom())

	_, err := sel.Select(context.Background(), 250, 1, []uint{1, 2})
	assert.ErrorIs(t, err, ErrNoItemAvailable)

	_, err = sel.Select(context.Background(), 250, 42, nil)
	assert.ErrorIs(t, err, ErrNoItemAvailable)
}

// Выбранное задание никогда не исключено и ближе всех к цели среди кандидатов окна
func TestItemSelector_NearestMatchProperty(t *testing.T) {
	sel := func(bank *memItemBank) *ItemSelector {
		return NewItemSelector(DefaultConfig(), bank, DefaultRandom())
	}

	for round := 0; round < 200; round++ {
		bank := &memItemBank{}
		for id := uint(1); id <= 40; id++ {
			bank.items = append(bank.items, testItem(id, 1, 100+rand.IntN(251)))
		}
		var exclude []uint
		excluded := map[uint]bool{}
		for id := uint(1); id <= 40; id++ {
			if rand.IntN(3) == 0 {
				exclude = append(exclude, id)
				excluded[id] = true
			}
		}
		target := 100 + rand.IntN(251)

		item, err := sel(bank).Select(context.Background(), target, 1, exclude)
		if len(excluded) == 40 {
			assert.ErrorIs(t, err, ErrNoItemAvailable)
			continue
		}
		require.NoError(t, err)
		assert.False(t, excluded[item.ID], "excluded item %d returned", item.ID)

		best := -1
		inWindow := false
		for _, it := range bank.items {
			if excluded[it.ID] {
				continue
			}
			d := distance(it.Difficulty, target)
			if d <= DefaultSelectionWindow {
				inWindow = true
			}
			if best < 0 || d < best {
				best = d
			}
		}
		assert.Equal(t, best, distance(item.Difficulty, target))
		if inWindow {
			assert.LessOrEqual(t, distance(item.Difficulty, target), DefaultSelectionWindow)
		}
	}
}

func TestItemSelector_RefiltersCachedCandidates(t *testing.T) {
	// Банк, игнорирующий исключения, как устаревший кеш
	sel := NewItemSelector(DefaultConfig(), staleBank{items: []entity.Item{testItem(1, 1, 210), testItem(2, 1, 216)}}, newScriptedRandom())

	item, err := sel.Select(context.Background(), 210, 1, []uint{1})
	require.NoError(t, err)
	assert.Equal(t, uint(2), item.ID)
}

type staleBank struct {
	items []entity.Item
}

func (b staleBank) FindInRange(ctx context.Context, subjectID uint, lo, hi int, excludeIDs []uint) ([]entity.Item, error) {
	return b.items, nil
}

func (b staleBank) FindAll(ctx context.Context, subjectID uint, excludeIDs []uint) ([]entity.Item, error) {
	return b.items, nil
}

func (b staleBank) GetByID(ctx context.Context, id uint) (*entity.Item, error) {
	return &b.items[0], nil
}
