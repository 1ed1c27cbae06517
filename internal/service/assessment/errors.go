package assessment

import (
	"fmt"

	apperrors "github.com/yourusername/rit-api/internal/pkg/errors"
)

// Ошибки тестирования. Каждая оборачивает вид ошибки из apperrors,
// поэтому проверяется и точно (errors.Is(err, ErrNoMoreQuestions)), и по виду.
var (
	ErrInvalidPeriod = fmt.Errorf("%w: invalid period", apperrors.ErrValidation)
	ErrInvalidOption = fmt.Errorf("%w: selected option is out of range", apperrors.ErrValidation)
	ErrItemMismatch  = fmt.Errorf("%w: item is not the pending question", apperrors.ErrValidation)

	ErrSessionNotFound = fmt.Errorf("%w: assessment session not found", apperrors.ErrNotFound)
	ErrSessionConflict = fmt.Errorf("%w: assessment already in progress", apperrors.ErrConflict)
	ErrSessionBusy     = fmt.Errorf("%w: assessment session is busy", apperrors.ErrConflict)

	ErrNoItemAvailable      = fmt.Errorf("%w: no item available", apperrors.ErrExhausted)
	ErrNoQuestionsAvailable = fmt.Errorf("%w: no questions available", apperrors.ErrExhausted)
	ErrNoMoreQuestions      = fmt.Errorf("%w: no more questions", apperrors.ErrExhausted)
)
