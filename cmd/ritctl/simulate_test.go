package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePolicy(t *testing.T) {
	p, err := parsePolicy("ability:250")
	require.NoError(t, err)
	assert.True(t, p(1, 250))
	assert.False(t, p(1, 255))

	p, err = parsePolicy("alternate")
	require.NoError(t, err)
	assert.True(t, p(1, 300))
	assert.False(t, p(2, 100))

	_, err = parsePolicy("ability:x")
	assert.Error(t, err)
	_, err = parsePolicy("sometimes")
	assert.Error(t, err)
}

func TestRunSimulation_AllCorrect(t *testing.T) {
	var out bytes.Buffer
	summary, err := runSimulation(context.Background(), &out, simulateOptions{
		Questions: 10, Policy: "correct", Seed: 42, Period: "Fall",
	})
	require.NoError(t, err)

	assert.Equal(t, 10, summary.QuestionsAnswered)
	assert.Equal(t, 10, summary.CorrectCount)
	// 225 плюс девять шагов от 3 до 5
	assert.GreaterOrEqual(t, summary.RITScore, 245)
	assert.LessOrEqual(t, summary.RITScore, 275)
	assert.Contains(t, out.String(), "starting_difficulty=225")
}

func TestRunSimulation_PriorAndWrong(t *testing.T) {
	var out bytes.Buffer
	summary, err := runSimulation(context.Background(), &out, simulateOptions{
		Questions: 5, Policy: "wrong", Prior: 300, Seed: 7, Period: "Spring",
	})
	require.NoError(t, err)

	assert.Equal(t, 0, summary.RITScore)
	assert.Equal(t, 5, summary.QuestionsAnswered)
	assert.Contains(t, out.String(), "starting_difficulty=300")
}

func TestRunSimulation_ExhaustsBank(t *testing.T) {
	var out bytes.Buffer
	summary, err := runSimulation(context.Background(), &out, simulateOptions{
		Questions: 60, Policy: "alternate", Seed: 1, Period: "Winter",
	})
	require.NoError(t, err)

	assert.Equal(t, 51, summary.QuestionsAnswered)
	assert.Contains(t, out.String(), "item bank exhausted")
}

func TestRunSimulation_InvalidInput(t *testing.T) {
	var out bytes.Buffer
	_, err := runSimulation(context.Background(), &out, simulateOptions{Questions: 0, Policy: "correct", Period: "Fall"})
	assert.Error(t, err)
	_, err = runSimulation(context.Background(), &out, simulateOptions{Questions: 3, Policy: "correct", Period: "Summer"})
	assert.Error(t, err)
}
