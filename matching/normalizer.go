package matching

import (
	"strings"
	"unicode"
)

// Normalizer приводит наименования к канонической форме для поиска.
// Одна и та же конфигурация используется и при импорте каталога,
// и при обработке запросов: расхождение между ними делает точный
// поиск невозможным.
type Normalizer struct {
	separators map[rune]bool
}

// DefaultSeparators разделители, которые сохраняются при нормализации.
const DefaultSeparators = " -"

// NewNormalizer создает нормализатор. separators задает символы,
// которые остаются в тексте помимо букв и цифр; пустая строка
// означает набор по умолчанию (пробел и дефис).
func NewNormalizer(separators string) *Normalizer {
	if separators == "" {
		separators = DefaultSeparators
	}
	set := make(map[rune]bool, len(separators))
	for _, r := range separators {
		set[r] = true
	}
	// Пробел нужен всегда: без него схлопывание пробелов склеит слова
	set[' '] = true
	return &Normalizer{separators: set}
}

// Normalize выполняет нормализацию текста:
//  1. нижний регистр;
//  2. замена "ё" на "е";
//  3. все символы кроме букв, цифр и разделителей заменяются пробелом;
//  4. схлопывание пробелов и обрезка краев.
//
// Функция идемпотентна: повторная нормализация ничего не меняет.
// Никогда не возвращает ошибку, непригодный вход дает пустую строку.
func (n *Normalizer) Normalize(text string) string {
	text = strings.ToLower(text)
	text = strings.ReplaceAll(text, "ё", "е")

	var builder strings.Builder
	builder.Grow(len(text))
	for _, r := range text {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			builder.WriteRune(r)
		case n.separators[r]:
			builder.WriteRune(r)
		default:
			builder.WriteRune(' ')
		}
	}

	return strings.Join(strings.Fields(builder.String()), " ")
}
