package assessment

import (
	"context"
	"fmt"
	"log"

	"github.com/yourusername/rit-api/internal/domain/entity"
	"github.com/yourusername/rit-api/internal/domain/repository"
)

// ItemSelector подбирает неиспользованное задание, ближайшее к целевой сложности
type ItemSelector struct {
	config *Config
	items  repository.ItemRepository
	rnd    Random
}

// NewItemSelector создаёт новый селектор
func NewItemSelector(config *Config, items repository.ItemRepository, rnd Random) *ItemSelector {
	return &ItemSelector{
		config: config,
		items:  items,
		rnd:    rnd,
	}
}

// Select выбирает задание предмета для целевой сложности.
// 1. Кандидаты в окне [target-window, target+window] без excludeIDs.
// 2. Если окно пусто — весь пул предмета без excludeIDs.
// 3. Среди кандидатов — минимальный |difficulty - target|, равные выбираются случайно.
// Если кандидатов нет совсем, возвращает ErrNoItemAvailable.
func (s *ItemSelector) Select(ctx context.Context, target int, subjectID uint, excludeIDs []uint) (*entity.Item, error) {
	excluded := make(map[uint]bool, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = true
	}

	lo, hi := target-s.config.SelectionWindow, target+s.config.SelectionWindow
	candidates, err := s.items.FindInRange(ctx, subjectID, lo, hi, excludeIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to find items in range [%d, %d]: %w", lo, hi, err)
	}
	if item := s.pickNearest(candidates, target, excluded); item != nil {
		return item, nil
	}

	// Окно пусто — расширяем поиск на весь пул предмета
	candidates, err = s.items.FindAll(ctx, subjectID, excludeIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to find items for subject %d: %w", subjectID, err)
	}
	if item := s.pickNearest(candidates, target, excluded); item != nil {
		log.Printf("[ItemSelector] Fallback: subject %d, target %d, взято задание ID=%d со сложностью %d",
			subjectID, target, item.ID, item.Difficulty)
		return item, nil
	}

	return nil, ErrNoItemAvailable
}

// pickNearest возвращает ближайшего к target кандидата или nil.
// Исключённые задания отбрасываются повторно: банк может отдавать данные из кеша.
func (s *ItemSelector) pickNearest(candidates []entity.Item, target int, excluded map[uint]bool) *entity.Item {
	bestDistance := -1
	var ties []int
	for i := range candidates {
		if excluded[candidates[i].ID] {
			continue
		}
		d := distance(candidates[i].Difficulty, target)
		switch {
		case bestDistance < 0 || d < bestDistance:
			bestDistance = d
			ties = append(ties[:0], i)
		case d == bestDistance:
			ties = append(ties, i)
		}
	}
	if len(ties) == 0 {
		return nil
	}

	chosen := candidates[ties[0]]
	if len(ties) > 1 {
		chosen = candidates[ties[s.rnd.IntN(len(ties))]]
	}
	return &chosen
}

func distance(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}
