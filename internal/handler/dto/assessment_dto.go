package dto

import (
	"time"

	"github.com/yourusername/rit-api/internal/domain/entity"
	"github.com/yourusername/rit-api/internal/handler/helper"
	"github.com/yourusername/rit-api/internal/service/assessment"
)

// StartAssessmentRequest — запрос на начало тестирования
type StartAssessmentRequest struct {
	StudentID uint   `json:"student_id" binding:"required"`
	SubjectID uint   `json:"subject_id" binding:"required"`
	Period    string `json:"period" binding:"required"`
}

// SubmitAnswerRequest — ответ на текущее задание
type SubmitAnswerRequest struct {
	StudentID uint `json:"student_id" binding:"required"`
	ItemID    uint `json:"item_id" binding:"required"`
	// Указатель, чтобы отличить 0 от отсутствующего поля
	SelectedIndex *int `json:"selected_index" binding:"required"`
}

// CompleteAssessmentRequest — запрос на досрочное завершение
type CompleteAssessmentRequest struct {
	StudentID uint `json:"student_id" binding:"required"`
}

// ItemResponse представляет задание без правильного ответа
type ItemResponse struct {
	ID         uint                `json:"id"`
	SubjectID  uint                `json:"subject_id"`
	Text       string              `json:"text"`
	Options    []helper.ItemOption `json:"options"`
	Difficulty int                 `json:"difficulty"`
}

// StartAssessmentResponse — ответ на начало тестирования
type StartAssessmentResponse struct {
	AssessmentID   uint          `json:"assessment_id"`
	Item           *ItemResponse `json:"item"`
	QuestionNumber int           `json:"question_number"`
	TotalQuestions int           `json:"total_questions"`
}

// FinalResultResponse — итог тестирования
type FinalResultResponse struct {
	AssessmentID      uint `json:"assessment_id"`
	RITScore          int  `json:"rit_score"`
	CorrectCount      int  `json:"correct_count"`
	QuestionsAnswered int  `json:"questions_answered"`
	TotalQuestions    int  `json:"total_questions,omitempty"`
	DurationMinutes   int  `json:"duration_minutes"`
}

// SubmitAnswerResponse — результат обработки ответа
type SubmitAnswerResponse struct {
	Completed      bool                 `json:"completed"`
	IsCorrect      bool                 `json:"is_correct"`
	CurrentRIT     int                  `json:"current_rit"`
	NextDifficulty int                  `json:"next_difficulty,omitempty"`
	Item           *ItemResponse        `json:"item,omitempty"`
	QuestionNumber int                  `json:"question_number,omitempty"`
	TotalQuestions int                  `json:"total_questions"`
	Result         *FinalResultResponse `json:"result,omitempty"`
}

// SessionResponse — состояние активной сессии
type SessionResponse struct {
	AssessmentID      uint          `json:"assessment_id"`
	StudentID         uint          `json:"student_id"`
	SubjectID         uint          `json:"subject_id"`
	Period            string        `json:"period"`
	QuestionsAnswered int           `json:"questions_answered"`
	TotalQuestions    int           `json:"total_questions"`
	CurrentDifficulty int           `json:"current_difficulty"`
	CurrentRIT        int           `json:"current_rit"`
	CorrectCount      int           `json:"correct_count"`
	QuestionNumber    int           `json:"question_number,omitempty"`
	Item              *ItemResponse `json:"item,omitempty"`
	Exhausted         bool          `json:"exhausted"`
	StartedAt         time.Time     `json:"started_at"`
	LastActivityAt    time.Time     `json:"last_activity_at"`
}

// NewItemResponse создает DTO задания
func NewItemResponse(item *entity.ItemView) *ItemResponse {
	if item == nil {
		return nil
	}
	return &ItemResponse{
		ID:         item.ID,
		SubjectID:  item.SubjectID,
		Text:       item.Text,
		Options:    helper.ConvertOptionsToObjects(item.Options),
		Difficulty: item.Difficulty,
	}
}

// NewStartAssessmentResponse создает DTO старта
func NewStartAssessmentResponse(res *assessment.StartResult) *StartAssessmentResponse {
	return &StartAssessmentResponse{
		AssessmentID:   res.AssessmentID,
		Item:           NewItemResponse(&res.Item),
		QuestionNumber: res.QuestionNumber,
		TotalQuestions: res.TotalQuestions,
	}
}

// NewFinalResultResponse создает DTO итога
func NewFinalResultResponse(s *assessment.Summary) *FinalResultResponse {
	if s == nil {
		return nil
	}
	return &FinalResultResponse{
		AssessmentID:      s.AssessmentID,
		RITScore:          s.RITScore,
		CorrectCount:      s.CorrectCount,
		QuestionsAnswered: s.QuestionsAnswered,
		TotalQuestions:    s.TotalQuestions,
		DurationMinutes:   s.DurationMinutes,
	}
}

// NewSubmitAnswerResponse создает DTO результата ответа
func NewSubmitAnswerResponse(res *assessment.SubmitResult) *SubmitAnswerResponse {
	return &SubmitAnswerResponse{
		Completed:      res.Completed,
		IsCorrect:      res.IsCorrect,
		CurrentRIT:     res.CurrentRIT,
		NextDifficulty: res.NextDifficulty,
		Item:           NewItemResponse(res.Item),
		QuestionNumber: res.QuestionNumber,
		TotalQuestions: res.TotalQuestions,
		Result:         NewFinalResultResponse(res.Summary),
	}
}

// NewSessionResponse создает DTO состояния сессии
func NewSessionResponse(v *assessment.SessionView) *SessionResponse {
	return &SessionResponse{
		AssessmentID:      v.AssessmentID,
		StudentID:         v.StudentID,
		SubjectID:         v.SubjectID,
		Period:            string(v.Period),
		QuestionsAnswered: v.QuestionsAnswered,
		TotalQuestions:    v.TotalQuestions,
		CurrentDifficulty: v.CurrentDifficulty,
		CurrentRIT:        v.CurrentRIT,
		CorrectCount:      v.CorrectCount,
		QuestionNumber:    v.QuestionNumber,
		Item:              NewItemResponse(v.Item),
		Exhausted:         v.Exhausted,
		StartedAt:         v.StartedAt,
		LastActivityAt:    v.LastActivityAt,
	}
}
