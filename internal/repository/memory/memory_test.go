package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/rit-api/internal/domain/entity"
	apperrors "github.com/yourusername/rit-api/internal/pkg/errors"
)

func TestSyntheticBank(t *testing.T) {
	bank := SyntheticBank(1, 100, 350, 5)
	assert.Equal(t, 51, bank.Len())

	items, err := bank.FindInRange(context.Background(), 1, 215, 235, []uint{25})
	require.NoError(t, err)
	var difficulties []int
	for _, it := range items {
		difficulties = append(difficulties, it.Difficulty)
	}
	// ID 25 — сложность 220
	assert.Equal(t, []int{215, 225, 230, 235}, difficulties)

	all, err := bank.FindAll(context.Background(), 2, nil)
	require.NoError(t, err)
	assert.Empty(t, all)

	_, err = bank.GetByID(context.Background(), 999)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestAssessmentRepo_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewAssessmentRepo()

	a := &entity.Assessment{StudentID: 1, SubjectID: 2, Year: 2025, Period: entity.PeriodFall}
	require.NoError(t, repo.CreateAssessment(ctx, a))
	require.NotZero(t, a.ID)

	require.NoError(t, repo.AppendResponse(ctx, &entity.Response{AssessmentID: a.ID, OrderIndex: 1, ItemID: 5, IsCorrect: true, ItemDifficulty: 230}))
	err := repo.AppendResponse(ctx, &entity.Response{AssessmentID: a.ID, OrderIndex: 1, ItemID: 6})
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	result := entity.FinalResult{AssessmentID: a.ID, RITScore: 230, CorrectCount: 1, DurationMinutes: 3}
	require.NoError(t, repo.FinalizeAssessment(ctx, result))
	require.NoError(t, repo.FinalizeAssessment(ctx, result))

	result.RITScore = 240
	assert.ErrorIs(t, repo.FinalizeAssessment(ctx, result), apperrors.ErrConflict)

	score, ok, err := repo.MostRecentRIT(ctx, 1, 2, 2025)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 230, score)

	_, ok, err = repo.MostRecentRIT(ctx, 1, 2, 2024)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAssessmentRepo_MarkAbandonedOnlyInProgress(t *testing.T) {
	ctx := context.Background()
	repo := NewAssessmentRepo()
	id := repo.SeedCompleted(1, 2, 2025, 250)

	require.NoError(t, repo.MarkAbandoned(ctx, id))
	a, err := repo.GetAssessment(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, entity.AssessmentStatusCompleted, a.Status)
}
