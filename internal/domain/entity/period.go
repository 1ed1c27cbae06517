package entity

import (
	"fmt"
	"strings"

	apperrors "github.com/yourusername/rit-api/internal/pkg/errors"
)

// Period — сезонное окно проведения тестирования.
type Period string

const (
	PeriodFall   Period = "Fall"
	PeriodWinter Period = "Winter"
	PeriodSpring Period = "Spring"
)

// ParsePeriod разбирает название периода без учёта регистра.
func ParsePeriod(s string) (Period, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fall":
		return PeriodFall, nil
	case "winter":
		return PeriodWinter, nil
	case "spring":
		return PeriodSpring, nil
	}
	return "", fmt.Errorf("%w: unknown period %q (expected Fall, Winter or Spring)", apperrors.ErrValidation, s)
}

// IsValid сообщает, является ли значение одним из допустимых периодов.
func (p Period) IsValid() bool {
	return p == PeriodFall || p == PeriodWinter || p == PeriodSpring
}
