package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/rit-api/internal/handler/dto"
	apperrors "github.com/yourusername/rit-api/internal/pkg/errors"
	"github.com/yourusername/rit-api/internal/service/assessment"
)

// AssessmentService — операции адаптивного тестирования, доступные HTTP-слою
type AssessmentService interface {
	Start(ctx context.Context, studentID, subjectID uint, period string) (*assessment.StartResult, error)
	Submit(ctx context.Context, studentID, assessmentID, itemID uint, selectedIndex int) (*assessment.SubmitResult, error)
	Session(ctx context.Context, studentID, assessmentID uint) (*assessment.SessionView, error)
	Complete(ctx context.Context, studentID, assessmentID uint) (*assessment.Summary, error)
}

// AssessmentHandler обрабатывает запросы тестирования
type AssessmentHandler struct {
	service AssessmentService
}

// NewAssessmentHandler создает новый обработчик тестирования
func NewAssessmentHandler(service AssessmentService) *AssessmentHandler {
	return &AssessmentHandler{service: service}
}

// StartAssessment начинает тестирование и возвращает первое задание
func (h *AssessmentHandler) StartAssessment(c *gin.Context) {
	var req dto.StartAssessmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "error_type": "bad_request"})
		return
	}

	res, err := h.service.Start(c.Request.Context(), req.StudentID, req.SubjectID, req.Period)
	if err != nil {
		h.handleAssessmentError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewStartAssessmentResponse(res))
}

// SubmitAnswer принимает ответ на текущее задание
func (h *AssessmentHandler) SubmitAnswer(c *gin.Context) {
	assessmentID := c.MustGet("assessmentID").(uint)

	var req dto.SubmitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "error_type": "bad_request"})
		return
	}

	res, err := h.service.Submit(c.Request.Context(), req.StudentID, assessmentID, req.ItemID, *req.SelectedIndex)
	if err != nil {
		h.handleAssessmentError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewSubmitAnswerResponse(res))
}

// GetSession возвращает состояние активной сессии
func (h *AssessmentHandler) GetSession(c *gin.Context) {
	assessmentID := c.MustGet("assessmentID").(uint)

	studentID, err := strconv.ParseUint(c.Query("student_id"), 10, 32)
	if err != nil || studentID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid student_id", "error_type": "bad_request"})
		return
	}

	view, err := h.service.Session(c.Request.Context(), uint(studentID), assessmentID)
	if err != nil {
		h.handleAssessmentError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewSessionResponse(view))
}

// CompleteAssessment досрочно завершает тестирование
func (h *AssessmentHandler) CompleteAssessment(c *gin.Context) {
	assessmentID := c.MustGet("assessmentID").(uint)

	var req dto.CompleteAssessmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "error_type": "bad_request"})
		return
	}

	summary, err := h.service.Complete(c.Request.Context(), req.StudentID, assessmentID)
	if err != nil {
		h.handleAssessmentError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewFinalResultResponse(summary))
}

// errorKinds — соответствие ошибок тестирования коду ответа и error_type.
// Порядок важен: конкретные ошибки проверяются раньше их вида.
var errorKinds = []struct {
	err       error
	status    int
	errorType string
}{
	{assessment.ErrSessionNotFound, http.StatusNotFound, "session_not_found"},
	{assessment.ErrInvalidPeriod, http.StatusUnprocessableEntity, "invalid_period"},
	{assessment.ErrInvalidOption, http.StatusUnprocessableEntity, "invalid_option"},
	{assessment.ErrItemMismatch, http.StatusUnprocessableEntity, "item_mismatch"},
	{assessment.ErrNoQuestionsAvailable, http.StatusGone, "no_questions_available"},
	{assessment.ErrNoMoreQuestions, http.StatusGone, "no_more_questions"},
	{assessment.ErrSessionConflict, http.StatusConflict, "session_conflict"},
	{assessment.ErrSessionBusy, http.StatusConflict, "session_busy"},
	{apperrors.ErrNotFound, http.StatusNotFound, "not_found"},
	{apperrors.ErrValidation, http.StatusUnprocessableEntity, "validation"},
	{apperrors.ErrConflict, http.StatusConflict, "conflict"},
	{apperrors.ErrExhausted, http.StatusGone, "exhausted"},
}

func (h *AssessmentHandler) handleAssessmentError(c *gin.Context, err error) {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			c.JSON(k.status, gin.H{"error": err.Error(), "error_type": k.errorType})
			return
		}
	}
	log.Printf("ERROR: Internal server error in AssessmentHandler: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "error_type": "internal"})
}
