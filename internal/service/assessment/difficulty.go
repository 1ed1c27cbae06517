package assessment

// DifficultyAdjuster вычисляет целевую сложность следующего задания.
// Не хранит состояния; случайность берётся из внедрённого Random.
type DifficultyAdjuster struct {
	config *Config
	rnd    Random
}

// NewDifficultyAdjuster создаёт новый корректор сложности
func NewDifficultyAdjuster(config *Config, rnd Random) *DifficultyAdjuster {
	return &DifficultyAdjuster{config: config, rnd: rnd}
}

// Next возвращает сложность после ответа: шаг вверх при верном ответе, вниз при неверном.
// Результат всегда в [MinDifficulty, MaxDifficulty], даже если current вне шкалы.
func (a *DifficultyAdjuster) Next(current int, wasCorrect bool) int {
	step := a.config.StepChoices[a.rnd.IntN(len(a.config.StepChoices))]
	if wasCorrect {
		return a.config.clamp(current + step)
	}
	return a.config.clamp(current - step)
}
