package assessment

import (
	"math"
	"time"

	"github.com/yourusername/rit-api/internal/domain/entity"
)

// Outcome — итог, вычисленный по журналу ответов.
type Outcome struct {
	RITScore     int
	CorrectCount int
	Answered     int
}

// ScoreResponses вычисляет RIT как максимальную сложность среди верных ответов.
// Если верных ответов нет, RIT равен 0.
func ScoreResponses(responses []entity.Response) Outcome {
	var out Outcome
	for _, r := range responses {
		out.Answered++
		if !r.IsCorrect {
			continue
		}
		out.CorrectCount++
		if r.ItemDifficulty > out.RITScore {
			out.RITScore = r.ItemDifficulty
		}
	}
	return out
}

// durationMinutes округляет длительность до целых минут
func durationMinutes(startedAt, finishedAt time.Time) int {
	d := finishedAt.Sub(startedAt)
	if d < 0 {
		return 0
	}
	return int(math.Round(d.Minutes()))
}
