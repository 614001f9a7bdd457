package matching

import "strings"

// NGramScorer считает похожесть строк по множествам N-грамм.
// Для поиска по каталогу используются триграммы (n=3).
type NGramScorer struct {
	n int
}

// NewNGramScorer создает генератор N-грамм. При n < 2 используются триграммы.
func NewNGramScorer(n int) *NGramScorer {
	if n < 2 {
		n = 3
	}
	return &NGramScorer{n: n}
}

// Generate создает множество N-грамм нормализованного текста.
// По краям добавляются символы-заполнители, чтобы начало и конец
// строки тоже участвовали в сравнении. N-граммы, состоящие только
// из заполнителей, отбрасываются.
func (s *NGramScorer) Generate(text string) map[string]bool {
	if text == "" {
		return map[string]bool{}
	}

	pad := strings.Repeat("_", s.n-1)
	runes := []rune(pad + text + pad)

	grams := make(map[string]bool, len(runes))
	for i := 0; i+s.n <= len(runes); i++ {
		gram := string(runes[i : i+s.n])
		if strings.Trim(gram, "_") == "" {
			continue
		}
		grams[gram] = true
	}
	return grams
}

// Similarity вычисляет коэффициент Жаккара по N-граммам двух строк:
// размер пересечения множеств, деленный на размер объединения.
// Результат в диапазоне [0, 1], 1.0 означает совпадение множеств.
func (s *NGramScorer) Similarity(a, b string) float64 {
	gramsA := s.Generate(a)
	gramsB := s.Generate(b)
	return jaccard(gramsA, gramsB)
}

// SimilarityToSet то же, что Similarity, но принимает заранее
// построенное множество N-грамм запроса. Позволяет не пересчитывать
// N-граммы запроса для каждого кандидата пула.
func (s *NGramScorer) SimilarityToSet(queryGrams map[string]bool, candidate string) float64 {
	return jaccard(queryGrams, s.Generate(candidate))
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	intersection := 0
	for gram := range a {
		if b[gram] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0.0
	}
	return float64(intersection) / float64(union)
}
