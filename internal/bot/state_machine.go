package bot

import "sniper/internal/models"

// ValidTransitions определяет допустимые переходы статуса позиции
var ValidTransitions = map[string][]string{
	models.StatusOpen:    {models.StatusClosing},
	models.StatusClosing: {models.StatusOpen, models.StatusClosed}, // Open при неудачной продаже
	models.StatusClosed:  {},                                      // терминальное
}

// CanTransition проверяет допустимость перехода
func CanTransition(from, to string) bool {
	allowed, ok := ValidTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// StatusInfo возвращает описание статуса для UI
func StatusInfo(s string) string {
	switch s {
	case models.StatusOpen:
		return "Позиция открыта, мониторится"
	case models.StatusClosing:
		return "Идёт продажа..."
	case models.StatusClosed:
		return "Позиция закрыта"
	default:
		return "Неизвестный статус"
	}
}
