package assessment

import "math/rand/v2"

// Random — источник случайности для шага сложности и выбора среди равных кандидатов.
type Random interface {
	// IntN возвращает равномерно распределённое число в [0, n).
	IntN(n int) int
}

type globalRandom struct{}

func (globalRandom) IntN(n int) int { return rand.IntN(n) }

// DefaultRandom возвращает потокобезопасный глобальный источник
func DefaultRandom() Random {
	return globalRandom{}
}
