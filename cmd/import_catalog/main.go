package main

import (
	"context"
	"flag"
	"log"
	"path/filepath"
	"strings"

	"estimator/database"
	"estimator/importer"
	"estimator/internal/config"
	"estimator/matching"
)

func main() {
	var (
		filePath    = flag.String("file", "", "Путь к файлу каталога (.csv с разделителем ';' или .xlsx)")
		dbPath      = flag.String("db", "", "Путь к базе каталога (по умолчанию из DATABASE_PATH)")
		stageTimes  = flag.String("stage-times", "", "JSON-справочник этап → минуты для строк без времени")
		defaultTime = flag.Int("default-time", -1, "Время в минутах для строк без времени и справочника (-1 — отвергать такие строки)")
		errorsOut   = flag.String("errors-out", "", "Сохранить отчет об отвергнутых строках в CSV")
		statsOut    = flag.String("stats-out", "", "Сохранить статистику импорта в JSON")
		strict      = flag.Bool("strict", false, "Прерывать импорт на первой ошибке строки")
		incremental = flag.Bool("incremental", false, "Пропускать артикулы, уже существующие в базе")
	)
	flag.Parse()

	if *filePath == "" {
		log.Fatal("Укажите файл каталога: -file data/catalog.csv")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}
	if *dbPath == "" {
		*dbPath = cfg.DatabasePath
	}

	var times map[string]int
	if *stageTimes != "" {
		times, err = importer.LoadStageTimes(*stageTimes)
		if err != nil {
			log.Fatalf("Ошибка справочника этапов: %v", err)
		}
		log.Printf("Справочник этапов: %d записей", len(times))
	}

	parser := importer.NewCatalogParser(importer.DefaultParserConfig())

	var (
		rows      []importer.CatalogRow
		rowErrors []importer.RowError
	)
	switch strings.ToLower(filepath.Ext(*filePath)) {
	case ".xlsx":
		rows, rowErrors, err = parser.ParseXLSXFile(*filePath)
	default:
		rows, rowErrors, err = parser.ParseCSVFile(*filePath)
	}
	if err != nil {
		log.Fatalf("Ошибка разбора файла %s: %v", *filePath, err)
	}
	log.Printf("Разобрано строк: %d, отвергнуто при разборе: %d", len(rows), len(rowErrors))
	if *strict && len(rowErrors) > 0 {
		log.Fatalf("Строгий режим: файл содержит некорректные строки, первая: %v", rowErrors[0])
	}

	db, err := database.NewDB(*dbPath)
	if err != nil {
		log.Fatalf("Ошибка открытия базы каталога: %v", err)
	}
	defer db.Close()

	normalizer := matching.NewNormalizer(cfg.NormalizerSeparators)
	scorer := matching.NewNGramScorer(cfg.NGramSize)
	ci := importer.NewCatalogImporter(db, normalizer, scorer, importer.ImporterOptions{
		StageTimes:  times,
		DefaultTime: *defaultTime,
		Strict:      *strict,
		Incremental: *incremental,
	})

	result, err := ci.Import(context.Background(), rows)
	if err != nil {
		log.Fatalf("Импорт прерван: %v", err)
	}

	// Ошибки разбора и ошибки импорта попадают в один отчет
	allErrors := append(rowErrors, result.Errors...)
	if *errorsOut != "" && len(allErrors) > 0 {
		if err := importer.WriteErrorsCSV(*errorsOut, allErrors); err != nil {
			log.Printf("⚠ Не удалось сохранить отчет об ошибках: %v", err)
		} else {
			log.Printf("Отчет об ошибках: %s (%d строк)", *errorsOut, len(allErrors))
		}
	}
	if *statsOut != "" {
		if err := importer.WriteStatsJSON(*statsOut, result); err != nil {
			log.Printf("⚠ Не удалось сохранить статистику: %v", err)
		} else {
			log.Printf("Статистика импорта: %s", *statsOut)
		}
	}

	stats, err := db.Stats(context.Background())
	if err != nil {
		log.Fatalf("Ошибка чтения статистики каталога: %v", err)
	}
	log.Printf("Каталог после импорта: %d позиций, %d шкафов, %d проектов, %d триграмм",
		stats.Items, stats.Cabinets, stats.Projects, stats.Trigrams)
}
