package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// CatalogRow одна строка входного файла каталога после разбора.
// TimeMinutes заполнено только при HasTime: пустая ячейка времени не
// ошибка, время подставит импортер (справочник этапов или значение
// по умолчанию).
type CatalogRow struct {
	Line             int
	ProjectCode      string
	CabinetCode      string
	Article          string
	Name             string
	NomenclatureType string
	StageName        string
	TimeMinutes      int
	HasTime          bool
}

// RowError ошибка разбора или валидации одной строки.
type RowError struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("строка %d: %s", e.Line, e.Reason)
}

// ParserConfig настройки разбора CSV.
type ParserConfig struct {
	Delimiter rune
	MaxErrors int
}

// DefaultParserConfig возвращает настройки для выгрузок 1С:
// точка с запятой, до 100 ошибок до остановки разбора.
func DefaultParserConfig() ParserConfig {
	return ParserConfig{
		Delimiter: ';',
		MaxErrors: 100,
	}
}

// CatalogParser разбирает CSV-выгрузки каталога оборудования.
type CatalogParser struct {
	config ParserConfig
}

// NewCatalogParser создает парсер каталога.
func NewCatalogParser(config ParserConfig) *CatalogParser {
	if config.Delimiter == 0 {
		config.Delimiter = ';'
	}
	if config.MaxErrors <= 0 {
		config.MaxErrors = 100
	}
	return &CatalogParser{config: config}
}

// Колонки входного файла. Заголовок "Шаблон врмени в минутах" приходит
// из 1С именно с такой опечаткой, принимаем оба варианта.
var columnAliases = map[string][]string{
	"project": {"проект"},
	"cabinet": {"шкаф"},
	"article": {"артикул"},
	"name":    {"наименование"},
	"type":    {"вид номенклатуры"},
	"stage":   {"название этапа"},
	"time":    {"шаблон врмени в минутах", "шаблон времени в минутах"},
}

var requiredColumns = []string{"project", "cabinet", "article", "name", "type", "stage"}

// ParseCSVFile читает и разбирает CSV-файл каталога.
func (p *CatalogParser) ParseCSVFile(filePath string) ([]CatalogRow, []RowError, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, nil, fmt.Errorf("не удалось прочитать файл %s: %w", filePath, err)
	}
	return p.ParseCSVData(data)
}

// ParseCSVData разбирает CSV из байтов. Кодировка определяется
// автоматически (UTF-8 или одна из кириллических однобайтовых).
// Возвращает разобранные строки и список отвергнутых строк с причинами;
// ошибка возвращается только когда файл непригоден целиком.
func (p *CatalogParser) ParseCSVData(data []byte) ([]CatalogRow, []RowError, error) {
	converted, err := decodeToUTF8(data)
	if err != nil {
		return nil, nil, fmt.Errorf("не удалось определить кодировку файла: %w", err)
	}

	reader := csv.NewReader(strings.NewReader(string(converted)))
	reader.Comma = p.config.Delimiter
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("не удалось прочитать заголовок: %w", err)
	}

	cols, err := mapColumns(headers)
	if err != nil {
		return nil, nil, err
	}

	var (
		rows      []CatalogRow
		rowErrors []RowError
	)
	line := 1
	for {
		line++
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			rowErrors = append(rowErrors, RowError{Line: line, Reason: err.Error()})
			if len(rowErrors) >= p.config.MaxErrors {
				return rows, rowErrors, fmt.Errorf("слишком много ошибок разбора (%d), файл отвергнут", len(rowErrors))
			}
			continue
		}
		if isEmptyRecord(record) {
			continue
		}

		row, rowErr := buildRow(line, record, cols)
		if rowErr != nil {
			rowErrors = append(rowErrors, *rowErr)
			continue
		}
		rows = append(rows, row)
	}

	return rows, rowErrors, nil
}

// mapColumns сопоставляет заголовки файла с колонками каталога.
func mapColumns(headers []string) (map[string]int, error) {
	byHeader := make(map[string]int, len(headers))
	for i, h := range headers {
		byHeader[strings.ToLower(strings.TrimSpace(h))] = i
	}

	cols := make(map[string]int)
	for key, aliases := range columnAliases {
		for _, alias := range aliases {
			if idx, ok := byHeader[alias]; ok {
				cols[key] = idx
				break
			}
		}
	}

	var missing []string
	for _, key := range requiredColumns {
		if _, ok := cols[key]; !ok {
			missing = append(missing, columnAliases[key][0])
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("в заголовке не найдены колонки: %s", strings.Join(missing, ", "))
	}
	return cols, nil
}

func buildRow(line int, record []string, cols map[string]int) (CatalogRow, *RowError) {
	field := func(key string) string {
		idx, ok := cols[key]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	row := CatalogRow{
		Line:             line,
		ProjectCode:      field("project"),
		CabinetCode:      field("cabinet"),
		Article:          field("article"),
		Name:             field("name"),
		NomenclatureType: field("type"),
		StageName:        field("stage"),
	}

	switch {
	case row.Article == "":
		return row, &RowError{Line: line, Reason: "пустой артикул"}
	case row.Name == "":
		return row, &RowError{Line: line, Reason: "пустое наименование"}
	case row.ProjectCode == "":
		return row, &RowError{Line: line, Reason: "пустой код проекта"}
	case row.CabinetCode == "":
		return row, &RowError{Line: line, Reason: "пустой код шкафа"}
	}

	if raw := field("time"); raw != "" {
		minutes, err := strconv.Atoi(raw)
		if err != nil {
			return row, &RowError{Line: line, Reason: fmt.Sprintf("время %q не целое число", raw)}
		}
		if minutes < 0 {
			return row, &RowError{Line: line, Reason: fmt.Sprintf("отрицательное время %d", minutes)}
		}
		row.TimeMinutes = minutes
		row.HasTime = true
	}

	return row, nil
}

func isEmptyRecord(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
