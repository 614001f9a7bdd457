package importer

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"
	"strconv"
	"time"

	"estimator/database"
	"estimator/matching"
)

// CatalogImporter загружает строки каталога в базу: справочники,
// позиции и триграммный индекс. Наименования нормализуются той же
// функцией, что и запросы, иначе точное совпадение перестает работать.
type CatalogImporter struct {
	db         *database.DB
	normalizer *matching.Normalizer
	scorer     *matching.NGramScorer

	stageTimes  map[string]int
	defaultTime int
	strict      bool
	incremental bool
}

// ImporterOptions настройки импорта.
type ImporterOptions struct {
	// StageTimes справочник этап → минуты для строк без времени.
	StageTimes map[string]int
	// DefaultTime время для строк, не покрытых справочником.
	// Отрицательное значение означает "не задано": такие строки отвергаются.
	DefaultTime int
	// Strict останавливает импорт на первой ошибке строки.
	Strict bool
	// Incremental пропускает артикулы, уже существующие в базе.
	Incremental bool
}

// ImportResult статистика импорта.
type ImportResult struct {
	Total      int        `json:"total"`
	Imported   int        `json:"imported"`
	Skipped    int        `json:"skipped"`
	Duplicates int        `json:"duplicates"`
	Errors     []RowError `json:"errors"`
	Started    time.Time  `json:"started"`
	Completed  time.Time  `json:"completed"`
	Duration   string     `json:"duration"`
}

// NewCatalogImporter создает импортер каталога.
func NewCatalogImporter(db *database.DB, normalizer *matching.Normalizer, scorer *matching.NGramScorer, opts ImporterOptions) *CatalogImporter {
	if opts.StageTimes == nil {
		opts.StageTimes = map[string]int{}
	}
	return &CatalogImporter{
		db:          db,
		normalizer:  normalizer,
		scorer:      scorer,
		stageTimes:  opts.StageTimes,
		defaultTime: opts.DefaultTime,
		strict:      opts.Strict,
		incremental: opts.Incremental,
	}
}

// Import загружает строки каталога. Повторы артикула внутри файла
// схлопываются, побеждает последняя строка. В строгом режиме первая
// ошибка строки прерывает импорт целиком.
func (ci *CatalogImporter) Import(ctx context.Context, rows []CatalogRow) (*ImportResult, error) {
	result := &ImportResult{
		Total:   len(rows),
		Errors:  make([]RowError, 0),
		Started: time.Now(),
	}

	rows, duplicates := dedupeByArticle(rows)
	result.Duplicates = duplicates
	if duplicates > 0 {
		log.Printf("Повторяющиеся артикулы в файле: %d, оставлена последняя строка каждого", duplicates)
	}

	var existing map[string]bool
	if ci.incremental {
		var err error
		existing, err = ci.db.ListArticles(ctx)
		if err != nil {
			return nil, fmt.Errorf("не удалось прочитать артикулы каталога: %w", err)
		}
	}

	logInterval := 100
	if len(rows) > 1000 {
		logInterval = 500
	}

	for idx, row := range rows {
		if ci.incremental && existing[row.Article] {
			result.Skipped++
			continue
		}

		if err := ci.importRow(ctx, row); err != nil {
			rowErr := RowError{Line: row.Line, Reason: err.Error()}
			if ci.strict {
				return result, rowErr
			}
			result.Errors = append(result.Errors, rowErr)
			continue
		}
		result.Imported++

		if (idx+1)%logInterval == 0 {
			log.Printf("Обработано %d/%d строк (%.1f%%)",
				idx+1, len(rows), float64(idx+1)/float64(len(rows))*100)
		}
	}

	result.Completed = time.Now()
	result.Duration = result.Completed.Sub(result.Started).String()

	log.Printf("Импорт завершен: %d загружено, %d пропущено, %d повторов, %d ошибок за %s",
		result.Imported, result.Skipped, result.Duplicates, len(result.Errors), result.Duration)

	return result, nil
}

// importRow загружает одну строку: справочники, позицию, триграммы.
func (ci *CatalogImporter) importRow(ctx context.Context, row CatalogRow) error {
	minutes, err := ci.resolveTime(row)
	if err != nil {
		return err
	}

	projectID, err := ci.db.GetOrCreateProject(ctx, row.ProjectCode)
	if err != nil {
		return err
	}
	cabinetID, err := ci.db.GetOrCreateCabinet(ctx, projectID, row.CabinetCode)
	if err != nil {
		return err
	}
	stageID, err := ci.db.GetOrCreateStage(ctx, row.StageName)
	if err != nil {
		return err
	}
	typeID, err := ci.db.GetOrCreateNomenclatureType(ctx, row.NomenclatureType, stageID)
	if err != nil {
		return err
	}

	nameNorm := ci.normalizer.Normalize(row.Name)
	itemID, err := ci.db.UpsertItem(ctx, cabinetID, typeID, row.Article, row.Name, nameNorm, minutes)
	if err != nil {
		return err
	}

	grams := ci.scorer.Generate(nameNorm)
	trigrams := make([]string, 0, len(grams))
	for g := range grams {
		trigrams = append(trigrams, g)
	}
	sort.Strings(trigrams)

	return ci.db.ReplaceItemTrigrams(ctx, itemID, trigrams)
}

// resolveTime выбирает время сборки: строка → справочник этапов →
// значение по умолчанию.
func (ci *CatalogImporter) resolveTime(row CatalogRow) (int, error) {
	if row.HasTime {
		return row.TimeMinutes, nil
	}
	if minutes, ok := ci.stageTimes[row.StageName]; ok {
		return minutes, nil
	}
	if ci.defaultTime >= 0 {
		return ci.defaultTime, nil
	}
	return 0, fmt.Errorf("время не задано ни в строке, ни в справочнике этапа %q", row.StageName)
}

// dedupeByArticle оставляет последнюю строку каждого артикула,
// сохраняя порядок первых вхождений.
func dedupeByArticle(rows []CatalogRow) ([]CatalogRow, int) {
	last := make(map[string]CatalogRow, len(rows))
	order := make([]string, 0, len(rows))
	duplicates := 0

	for _, row := range rows {
		if _, seen := last[row.Article]; seen {
			duplicates++
		} else {
			order = append(order, row.Article)
		}
		last[row.Article] = row
	}

	out := make([]CatalogRow, 0, len(order))
	for _, article := range order {
		out = append(out, last[article])
	}
	return out, duplicates
}

// LoadStageTimes читает JSON-справочник этап → минуты.
func LoadStageTimes(filePath string) (map[string]int, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("не удалось прочитать справочник этапов %s: %w", filePath, err)
	}
	var times map[string]int
	if err := json.Unmarshal(data, &times); err != nil {
		return nil, fmt.Errorf("не удалось разобрать справочник этапов: %w", err)
	}
	for stage, minutes := range times {
		if minutes < 0 {
			return nil, fmt.Errorf("отрицательное время %d для этапа %q", minutes, stage)
		}
	}
	return times, nil
}

// WriteErrorsCSV сохраняет отчет об отвергнутых строках.
func WriteErrorsCSV(filePath string, rowErrors []RowError) error {
	f, err := os.Create(filePath)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Comma = ';'
	if err := w.Write([]string{"Строка", "Причина"}); err != nil {
		return err
	}
	for _, re := range rowErrors {
		if err := w.Write([]string{strconv.Itoa(re.Line), re.Reason}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// WriteStatsJSON сохраняет статистику импорта.
func WriteStatsJSON(filePath string, result *ImportResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filePath, append(data, '\n'), 0o644)
}
