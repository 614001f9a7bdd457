package matching

import "fmt"

// Mode режим обработки запроса чата. Закрытый набор значений:
// решение о запуске поиска принимается одной функцией, а не
// сравнениями строк по всему коду.
type Mode int

const (
	// ModeAuto поиск запускается, только если переданы наименования.
	ModeAuto Mode = iota
	// ModeChat поиск не запускается никогда.
	ModeChat
	// ModeEstimate поиск запускается всегда, пустой список наименований
	// дает пустой отчет.
	ModeEstimate
)

// String возвращает строковое имя режима.
func (m Mode) String() string {
	switch m {
	case ModeAuto:
		return "auto"
	case ModeChat:
		return "chat"
	case ModeEstimate:
		return "estimate"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode разбирает режим из строки запроса. Пустая строка
// означает auto. Неизвестное значение — ошибка валидации входа.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "auto":
		return ModeAuto, nil
	case "chat":
		return ModeChat, nil
	case "estimate":
		return ModeEstimate, nil
	default:
		return ModeAuto, fmt.Errorf("неизвестный режим %q", s)
	}
}

// Decision решение диспетчера режимов: запускать ли поисковый конвейер.
type Decision int

const (
	// SkipPipeline поиск не выполняется, запрос идет по разговорной ветке.
	SkipPipeline Decision = iota
	// RunPipeline выполняется сопоставление и агрегация.
	RunPipeline
)

// Decide решает, запускать ли конвейер сопоставления для данного режима.
// Функция тотальна и не имеет побочных эффектов; никакого состояния
// между запросами не существует.
func Decide(mode Mode, namesProvided bool) Decision {
	switch mode {
	case ModeChat:
		return SkipPipeline
	case ModeEstimate:
		return RunPipeline
	default: // ModeAuto
		if namesProvided {
			return RunPipeline
		}
		return SkipPipeline
	}
}
