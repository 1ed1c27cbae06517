package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/yourusername/rit-api/internal/repository/memory"
	"github.com/yourusername/rit-api/internal/service/assessment"
)

const (
	simStudentID = uint(1)
	simSubjectID = uint(1)
)

type simulateOptions struct {
	Questions int
	Policy    string
	Prior     int
	Seed      uint64
	Period    string
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run an adaptive assessment against a synthetic item bank",
	Long: "Runs a full assessment against 51 synthetic items (difficulty 100-350 every 5 points)\n" +
		"and prints the adaptive path. Policies: correct, wrong, alternate, ability:N\n" +
		"(answers correctly while item difficulty <= N).",
	RunE: func(cmd *cobra.Command, args []string) error {
		var opts simulateOptions
		opts.Questions, _ = cmd.Flags().GetInt("questions")
		opts.Policy, _ = cmd.Flags().GetString("policy")
		opts.Prior, _ = cmd.Flags().GetInt("prior")
		opts.Seed, _ = cmd.Flags().GetUint64("seed")
		opts.Period, _ = cmd.Flags().GetString("period")

		_, err := runSimulation(cmd.Context(), cmd.OutOrStdout(), opts)
		return err
	},
}

func init() {
	simulateCmd.Flags().Int("questions", assessment.DefaultQuestionCount, "Number of questions")
	simulateCmd.Flags().String("policy", "ability:260", "Answer policy: correct, wrong, alternate, ability:N")
	simulateCmd.Flags().Int("prior", 0, "Prior RIT score for the current year (0 = none)")
	simulateCmd.Flags().Uint64("seed", 0, "Random seed (0 = non-deterministic)")
	simulateCmd.Flags().String("period", "Fall", "Assessment period")
}

// answerPolicy решает, отвечает ли симулируемый ученик верно
type answerPolicy func(step, difficulty int) bool

func parsePolicy(s string) (answerPolicy, error) {
	switch {
	case s == "correct":
		return func(int, int) bool { return true }, nil
	case s == "wrong":
		return func(int, int) bool { return false }, nil
	case s == "alternate":
		return func(step, _ int) bool { return step%2 == 1 }, nil
	case strings.HasPrefix(s, "ability:"):
		ability, err := strconv.Atoi(strings.TrimPrefix(s, "ability:"))
		if err != nil {
			return nil, fmt.Errorf("invalid ability in policy %q: %w", s, err)
		}
		return func(_, difficulty int) bool { return difficulty <= ability }, nil
	}
	return nil, fmt.Errorf("unknown policy %q", s)
}

func runSimulation(ctx context.Context, out io.Writer, opts simulateOptions) (*assessment.Summary, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	policy, err := parsePolicy(opts.Policy)
	if err != nil {
		return nil, err
	}
	if opts.Questions <= 0 {
		return nil, fmt.Errorf("questions must be positive, got %d", opts.Questions)
	}

	var rnd assessment.Random = assessment.DefaultRandom()
	if opts.Seed != 0 {
		rnd = rand.New(rand.NewPCG(opts.Seed, opts.Seed))
	}

	items := memory.SyntheticBank(simSubjectID, 100, 350, 5)
	store := memory.NewAssessmentRepo()
	if opts.Prior > 0 {
		store.SeedCompleted(simStudentID, simSubjectID, time.Now().Year(), opts.Prior)
	}

	cfg := assessment.DefaultConfig()
	cfg.DefaultQuestionCount = opts.Questions
	manager, err := assessment.NewManager(cfg, assessment.Dependencies{
		Items:       items,
		Assessments: store,
		Sessions:    assessment.NewMemorySessionStore(),
		Random:      rnd,
	})
	if err != nil {
		return nil, err
	}

	start, err := manager.Start(ctx, simStudentID, simSubjectID, opts.Period)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(out, "assessment=%d starting_difficulty=%d total_questions=%d\n",
		start.AssessmentID, start.StartingDifficulty, start.TotalQuestions)
	fmt.Fprintf(out, "%-4s %-6s %-10s %-8s %-6s\n", "#", "item", "difficulty", "correct", "next")

	item := start.Item
	for step := 1; ; step++ {
		correct := policy(step, item.Difficulty)
		selected := 1
		if correct {
			selected = 0
		}

		res, err := manager.Submit(ctx, simStudentID, start.AssessmentID, item.ID, selected)
		if err != nil {
			if !errors.Is(err, assessment.ErrNoMoreQuestions) {
				return nil, err
			}
			fmt.Fprintf(out, "%-4d %-6d %-10d %-8t %-6s\n", step, item.ID, item.Difficulty, correct, "-")
			fmt.Fprintln(out, "item bank exhausted, completing early")
			summary, err := manager.Complete(ctx, simStudentID, start.AssessmentID)
			if err != nil {
				return nil, err
			}
			printSummary(out, summary)
			return summary, nil
		}

		if res.Completed {
			fmt.Fprintf(out, "%-4d %-6d %-10d %-8t %-6s\n", step, item.ID, item.Difficulty, res.IsCorrect, "-")
			printSummary(out, res.Summary)
			return res.Summary, nil
		}
		fmt.Fprintf(out, "%-4d %-6d %-10d %-8t %-6d\n", step, item.ID, item.Difficulty, res.IsCorrect, res.NextDifficulty)
		item = *res.Item
	}
}

func printSummary(out io.Writer, s *assessment.Summary) {
	fmt.Fprintf(out, "rit_score=%d correct=%d answered=%d duration_minutes=%d\n",
		s.RITScore, s.CorrectCount, s.QuestionsAnswered, s.DurationMinutes)
}
