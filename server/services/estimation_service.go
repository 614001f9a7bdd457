package services

import (
	"context"
	"sync"

	"estimator/internal/config"
	"estimator/matching"
	apperrors "estimator/server/errors"
)

// CatalogStore доступ к каталогу позиций. Реализуется database.DB;
// в тестах подменяется заглушкой.
type CatalogStore interface {
	FetchCatalog(ctx context.Context) ([]matching.CatalogItem, error)
	FetchCandidatesByTrigrams(ctx context.Context, trigrams []string, limit int, projectCode, cabinetCode string) ([]matching.CatalogItem, error)
}

// EstimationService связывает хранилище каталога с движком сопоставления.
// Не хранит состояния между запросами: снимок каталога передается движку
// явно, параллельные запросы не мешают друг другу.
type EstimationService struct {
	store           CatalogStore
	normalizer      *matching.Normalizer
	scorer          *matching.NGramScorer
	matcher         *matching.Matcher
	maxCandidates   int
	useTrigramIndex bool
}

// NewEstimationService создает сервис расчета. Нормализатор и порог
// берутся из конфигурации: те же параметры использует импортер каталога.
func NewEstimationService(store CatalogStore, cfg *config.Config) *EstimationService {
	normalizer := matching.NewNormalizer(cfg.NormalizerSeparators)
	scorer := matching.NewNGramScorer(cfg.NGramSize)
	return &EstimationService{
		store:           store,
		normalizer:      normalizer,
		scorer:          scorer,
		matcher:         matching.NewMatcher(normalizer, scorer, cfg.FuzzyThreshold),
		maxCandidates:   cfg.MaxCandidates,
		useTrigramIndex: cfg.UseTrigramIndex,
	}
}

// Estimate выполняет поиск и расчет для пакета наименований.
// Пустой список наименований дает пустой отчет, это не ошибка.
// Недоступность каталога возвращается как повторяемая ошибка 503
// и никогда не маскируется под "не найдено".
func (s *EstimationService) Estimate(ctx context.Context, names []string, projectCode, cabinetCode string) (*matching.Report, error) {
	if len(names) == 0 {
		return matching.Aggregate(nil), nil
	}

	var results []matching.MatchResult
	var err error
	if s.useTrigramIndex {
		results, err = s.matchWithIndex(ctx, names, projectCode, cabinetCode)
	} else {
		results, err = s.matchWithSnapshot(ctx, names, projectCode, cabinetCode)
	}
	if err != nil {
		return nil, apperrors.NewServiceUnavailableError(
			"каталог временно недоступен, попробуйте еще раз", err)
	}

	return matching.Aggregate(results), nil
}

// matchWithSnapshot читает каталог целиком одним запросом и сопоставляет
// все наименования против отфильтрованного пула в памяти.
func (s *EstimationService) matchWithSnapshot(ctx context.Context, names []string, projectCode, cabinetCode string) ([]matching.MatchResult, error) {
	snapshot, err := s.store.FetchCatalog(ctx)
	if err != nil {
		return nil, err
	}
	pool := matching.SelectPool(snapshot, projectCode, cabinetCode)
	return s.matcher.MatchAll(names, pool), nil
}

// matchWithIndex отбирает кандидатов для каждого наименования через
// триграммный индекс хранилища. Наименования обрабатываются параллельно,
// результаты собираются строго в порядке входа; ошибка чтения по одному
// наименованию не влияет на результаты остальных, но делает весь запрос
// повторяемой ошибкой.
func (s *EstimationService) matchWithIndex(ctx context.Context, names []string, projectCode, cabinetCode string) ([]matching.MatchResult, error) {
	results := make([]matching.MatchResult, len(names))
	errs := make([]error, len(names))

	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()

			norm := s.normalizer.Normalize(name)
			if norm == "" {
				results[i] = matching.MatchResult{Input: name}
				return
			}

			grams := s.scorer.Generate(norm)
			list := make([]string, 0, len(grams))
			for g := range grams {
				list = append(list, g)
			}

			candidates, err := s.store.FetchCandidatesByTrigrams(
				ctx, list, s.maxCandidates, projectCode, cabinetCode)
			if err != nil {
				errs[i] = err
				results[i] = matching.MatchResult{Input: name}
				return
			}

			results[i] = s.matcher.Match(matching.MatchQuery{
				Text:        name,
				ProjectCode: projectCode,
				CabinetCode: cabinetCode,
			}, candidates)
		}(i, name)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}
