package matching

import (
	"sync"
	"unicode/utf8"
)

// DefaultThreshold порог приема нечеткого совпадения по умолчанию.
const DefaultThreshold = 0.3

// Matcher сопоставляет строки пользователя с позициями каталога.
// Не хранит состояния между запросами, безопасен для параллельного
// использования.
type Matcher struct {
	normalizer *Normalizer
	scorer     *NGramScorer
	threshold  float64
}

// NewMatcher создает сопоставитель. Порог должен быть заранее проверен
// конфигурацией (0 < threshold <= 1).
func NewMatcher(normalizer *Normalizer, scorer *NGramScorer, threshold float64) *Matcher {
	return &Matcher{
		normalizer: normalizer,
		scorer:     scorer,
		threshold:  threshold,
	}
}

// Normalizer возвращает нормализатор, с которым работает сопоставитель.
// Импортер обязан использовать именно его, иначе точный поиск не сработает.
func (m *Matcher) Normalizer() *Normalizer {
	return m.normalizer
}

// Match ищет лучшую позицию каталога для одного запроса.
// Сначала проверяется точное совпадение нормализованных имен (оценка 1.0),
// затем кандидаты ранжируются по триграммной похожести. Оценка ниже порога
// означает "не найдено": движок никогда не подставляет сомнительное
// совпадение. Пустой запрос и пустой пул тоже дают "не найдено".
func (m *Matcher) Match(query MatchQuery, pool []CatalogItem) MatchResult {
	notFound := MatchResult{Input: query.Text}

	norm := m.normalizer.Normalize(query.Text)
	if norm == "" || len(pool) == 0 {
		return notFound
	}

	// Точное совпадение всегда выигрывает, оценивать кандидатов не нужно
	var exact *CatalogItem
	for i := range pool {
		if pool[i].NameNorm != norm {
			continue
		}
		if exact == nil || preferred(&pool[i], exact, query.Text) {
			exact = &pool[i]
		}
	}
	if exact != nil {
		return found(query.Text, exact, 1.0)
	}

	queryGrams := m.scorer.Generate(norm)

	var best *CatalogItem
	bestScore := -1.0
	for i := range pool {
		score := m.scorer.SimilarityToSet(queryGrams, pool[i].NameNorm)
		switch {
		case score > bestScore:
			best, bestScore = &pool[i], score
		case score == bestScore && preferred(&pool[i], best, query.Text):
			best = &pool[i]
		}
	}

	if best == nil || bestScore < m.threshold {
		return notFound
	}
	return found(query.Text, best, bestScore)
}

// MatchAll сопоставляет пакет строк с одним пулом. Каждая строка
// обрабатывается в своей горутине, результаты собираются строго
// в порядке входа.
func (m *Matcher) MatchAll(names []string, pool []CatalogItem) []MatchResult {
	results := make([]MatchResult, len(names))

	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			results[i] = m.Match(MatchQuery{Text: name}, pool)
		}(i, name)
	}
	wg.Wait()

	return results
}

// preferred решает, предпочесть ли кандидата a кандидату b при равной
// оценке. Сначала сравнивается близость длины исходного наименования
// к длине запроса, затем артикул по возрастанию. Правило делает
// победителя независимым от порядка обхода пула.
func preferred(a, b *CatalogItem, queryText string) bool {
	queryLen := utf8.RuneCountInString(queryText)
	diffA := absInt(utf8.RuneCountInString(a.Name) - queryLen)
	diffB := absInt(utf8.RuneCountInString(b.Name) - queryLen)
	if diffA != diffB {
		return diffA < diffB
	}
	return a.Article < b.Article
}

func found(input string, item *CatalogItem, score float64) MatchResult {
	return MatchResult{
		Found:               true,
		Input:               input,
		Article:             item.Article,
		MatchedName:         item.Name,
		CabinetID:           item.CabinetID,
		CabinetCode:         item.CabinetCode,
		ProjectCode:         item.ProjectCode,
		NomenclatureType:    item.NomenclatureType,
		StageName:           item.StageName,
		AssemblyTimeMinutes: item.AssemblyTimeMinutes,
		Score:               score,
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
